package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"projecttracker/internal/config"
	"projecttracker/internal/httpserver"
	"projecttracker/internal/mail"
	"projecttracker/internal/mailqueue"
	"projecttracker/internal/otdr"
	"projecttracker/internal/project"
	"projecttracker/internal/reminder"
	"projecttracker/internal/scheduler"
	pkgconfig "projecttracker/pkg/config"
	"projecttracker/pkg/db"
	"projecttracker/pkg/logger"
	redisclient "projecttracker/pkg/redis"
	"projecttracker/pkg/util"
)

func main() {
	cfg := config.Load()

	log := logger.NewLogger(cfg.Env)
	defer log.Sync()

	log.Info("Starting tracker worker...",
		zap.String("env", cfg.Env),
		zap.String("reminder_schedule", cfg.Reminder.Schedule),
		zap.String("otdr_reset_schedule", cfg.OTDR.ResetSchedule),
		zap.String("timezone", cfg.OTDR.Timezone),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	engine, err := cfg.Engine()
	if err != nil {
		log.Fatal("Invalid tracker config", zap.Error(err))
	}
	loc, err := cfg.Location()
	if err != nil {
		log.Fatal("Invalid timezone", zap.Error(err))
	}

	// Redis
	rdb, err := redisclient.NewRedisClient(ctx, cfg.Redis)
	if err != nil {
		log.Fatal("Failed to init Redis", zap.Error(err))
	}
	defer rdb.Close()
	deduper := util.NewDeduper(rdb, cfg.DedupTTL(), log)

	// Stores
	var (
		repo      project.Repository
		otdrStore otdr.Store
		queue     mailqueue.Queue
		checks    = map[string]httpserver.ReadinessCheck{"redis": func(ctx context.Context) error {
			return rdb.Ping(ctx).Err()
		}}
	)
	if cfg.DB.Enabled {
		pool, err := db.NewConnection(ctx, cfg.DB, log)
		if err != nil {
			log.Fatal("Failed to init DB", zap.Error(err))
		}
		defer pool.Close()
		if err := db.EnsureSchema(ctx, pool); err != nil {
			log.Fatal("Failed to apply schema", zap.Error(err))
		}
		repo = project.NewPostgresRepository(pool, log)
		otdrStore = otdr.NewPostgresStore(pool, log)
		queue = mailqueue.NewPostgresQueue(pool)
		checks["db"] = pool.Ping
	} else {
		log.Warn("DB disabled, running on in-memory stores")
		repo = project.NewMemoryRepository()
		otdrStore = otdr.NewMemoryStore()
		queue = mailqueue.NewMemoryQueue()
	}

	// Mail
	sender, err := mail.NewFromConfig(cfg.Mail, log)
	if err != nil {
		log.Fatal("Failed to init mail provider", zap.Error(err))
	}
	dispatcher := mailqueue.NewDispatcher(queue, sender, log).
		WithInterval(cfg.MailQueueInterval()).
		WithBatchSize(cfg.MailQueue.BatchSize)
	go dispatcher.Start(ctx)

	// Jobs
	cache := project.NewCache(repo, engine, 0, log)
	scanner := reminder.NewScanner(cache, engine, deduper, queue, cfg.ReminderScanner(loc), log)
	otdrService := otdr.NewService(otdrStore, engine.Registry(), log)

	sched := scheduler.New(loc, log)
	if err := sched.Add("deadline-scan", cfg.Reminder.Schedule, scheduler.DeadlineScan(scanner)); err != nil {
		log.Fatal("Failed to schedule deadline scan", zap.Error(err))
	}
	if err := sched.Add("otdr-reset", cfg.OTDR.ResetSchedule,
		scheduler.OTDRReset(otdrService, deduper, loc, nil, log)); err != nil {
		log.Fatal("Failed to schedule OTDR reset", zap.Error(err))
	}
	sched.Start()

	if cfg.Reminder.RunOnStart {
		go func() {
			if err := sched.Run("deadline-scan", scheduler.DeadlineScan(scanner)); err != nil {
				log.Error("Startup deadline scan failed", zap.Error(err))
			}
		}()
	}

	// HTTP Server (health checks and metrics)
	port := pkgconfig.GetEnv("WORKER_PORT", "8081")
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           httpserver.NewHealthRouter(log, checks).Engine,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		log.Info("Worker health server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	log.Info("Tracker worker is fully initialized and running")

	<-ctx.Done()
	log.Info("Shutting down tracker worker gracefully...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	sched.Stop(shutdownCtx)
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP server shutdown error", zap.Error(err))
	}

	log.Info("Tracker worker shutdown complete")
}
