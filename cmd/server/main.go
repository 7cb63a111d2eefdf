package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	mqcontracts "projecttracker/contracts/mq"
	"projecttracker/internal/config"
	"projecttracker/internal/handler"
	"projecttracker/internal/httpserver"
	"projecttracker/internal/mail"
	"projecttracker/internal/mqhandler"
	"projecttracker/internal/otdr"
	"projecttracker/internal/project"
	"projecttracker/pkg/db"
	"projecttracker/pkg/logger"
	"projecttracker/pkg/mq"
)

func main() {
	cfg := config.Load()

	log := logger.NewLogger(cfg.Env)
	defer log.Sync()

	log.Info("Starting tracker API...",
		zap.String("env", cfg.Env),
		zap.Bool("db_enabled", cfg.DB.Enabled),
		zap.String("mq_url", cfg.MQ.URL),
		zap.String("mail_provider", cfg.Mail.Provider),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	engine, err := cfg.Engine()
	if err != nil {
		log.Fatal("Invalid tracker config", zap.Error(err))
	}

	// Stores
	var (
		pool       *pgxpool.Pool
		repo       project.Repository
		otdrStore  otdr.Store
		readyCheck = map[string]httpserver.ReadinessCheck{}
	)
	if cfg.DB.Enabled {
		pool, err = db.NewConnection(ctx, cfg.DB, log)
		if err != nil {
			log.Fatal("Failed to init DB", zap.Error(err))
		}
		defer pool.Close()
		if err := db.EnsureSchema(ctx, pool); err != nil {
			log.Fatal("Failed to apply schema", zap.Error(err))
		}
		repo = project.NewPostgresRepository(pool, log)
		otdrStore = otdr.NewPostgresStore(pool, log)
		readyCheck["db"] = pool.Ping
	} else {
		log.Warn("DB disabled, running on in-memory stores")
		repo = project.NewMemoryRepository()
		otdrStore = otdr.NewMemoryStore()
	}

	// Services
	cache := project.NewCache(repo, engine, cfg.CacheTTL(), log)
	otdrService := otdr.NewService(otdrStore, engine.Registry(), log)

	var opts []project.Option
	var publisher *mq.Publisher
	if cfg.MQ.URL != "" {
		publisher, err = mq.NewPublisher(cfg.MQ.URL, cfg.MQ.Exchange)
		if err != nil {
			log.Fatal("Failed to init MQ publisher", zap.Error(err))
		}
		defer publisher.Close()
		opts = append(opts, project.WithPublisher(publisher))
		readyCheck["mq"] = func(context.Context) error {
			if !publisher.IsConnected() {
				return errors.New("publisher disconnected")
			}
			return nil
		}
	}
	projectService := project.NewService(cache, repo, engine, otdrService, log, opts...)

	sender, err := mail.NewFromConfig(cfg.Mail, log)
	if err != nil {
		log.Fatal("Failed to init mail provider", zap.Error(err))
	}

	// project.changed consumer: every instance drops its snapshot when any
	// instance writes.
	var consumer *mq.Consumer
	if cfg.MQ.URL != "" {
		consumer, err = mq.NewConsumer(cfg.MQ.URL, cfg.MQ.Exchange, "", mqcontracts.RoutingKeyProjectChanged, log)
		if err != nil {
			log.Fatal("Failed to init consumer", zap.Error(err))
		}
		defer consumer.Close()
		consumer.SetHandler(mqhandler.NewProjectChangedHandler(cache, log).Handle)

		go func() {
			if err := consumer.StartConsuming(); err != nil {
				log.Error("project.changed consumer stopped", zap.Error(err))
			}
		}()
	}

	if _, err := cache.Refresh(ctx); err != nil {
		log.Warn("Initial project load failed, will retry on first read", zap.Error(err))
	}

	// HTTP Server
	router := httpserver.NewRouter(httpserver.Handlers{
		Auth:    handler.NewAuthHandler(cfg.Admin, cfg.JWT, log),
		Mail:    handler.NewMailHandler(sender, log),
		OTDR:    handler.NewOTDRHandler(otdrService, log),
		Project: handler.NewProjectHandler(projectService, log),
	}, cfg.JWT.Secret, log, readyCheck)

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           router.Engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info("HTTP server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	log.Info("Shutting down tracker API gracefully...")

	if consumer != nil {
		consumer.Stop()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP server shutdown error", zap.Error(err))
	}

	log.Info("Tracker API shutdown complete")
}
