package mail

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"projecttracker/pkg/circuitbreaker"
	"projecttracker/pkg/config"
	"projecttracker/pkg/logger"
	"projecttracker/pkg/metrics"
)

// Guarded validates messages and trips a circuit breaker when the provider
// keeps failing. It never retries.
type Guarded struct {
	sender  Sender
	breaker *circuitbreaker.CircuitBreaker
	logger  *zap.Logger
}

func NewGuarded(sender Sender, cfg circuitbreaker.Config, log *zap.Logger) *Guarded {
	cfg.OnStateChange = func(from, to circuitbreaker.State) {
		log.Warn("Mail circuit breaker state changed",
			zap.String("provider", sender.Name()),
			zap.String("from", from.String()),
			zap.String("to", to.String()),
		)
	}
	return &Guarded{
		sender:  sender,
		breaker: circuitbreaker.NewCircuitBreaker(cfg),
		logger:  log,
	}
}

func (g *Guarded) Name() string { return g.sender.Name() }

func (g *Guarded) Send(ctx context.Context, msg Message) (Result, error) {
	if err := msg.Validate(); err != nil {
		return Result{Provider: g.Name()}, err
	}

	start := time.Now()
	var res Result
	err := g.breaker.Execute(func() error {
		var sendErr error
		res, sendErr = g.sender.Send(ctx, msg)
		return sendErr
	})

	status := "sent"
	if err != nil {
		status = "failed"
		if errors.Is(err, circuitbreaker.ErrCircuitBreakerOpen) {
			status = "rejected"
		}
	}
	metrics.RecordMailSendLatency(g.Name(), status, time.Since(start))

	log := logger.WithTrace(ctx, g.logger).With(
		zap.String("provider", g.Name()),
		zap.Strings("to", msg.To),
		zap.String("subject", msg.Subject),
	)
	if err != nil {
		log.Error("Mail send failed", zap.String("status", status), zap.Error(err))
		return Result{Provider: g.Name()}, fmt.Errorf("send mail via %s: %w", g.Name(), err)
	}
	log.Info("Mail sent", zap.String("message_id", res.MessageID))
	res.Success = true
	res.Provider = g.Name()
	return res, nil
}

// NewFromConfig builds the configured provider wrapped in a breaker.
func NewFromConfig(cfg config.MailConfig, log *zap.Logger) (*Guarded, error) {
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second

	var (
		sender Sender
		err    error
	)
	switch cfg.Provider {
	case "", "smtp":
		sender, err = NewSMTPSender(SMTPConfig{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			Username: cfg.SMTPUser,
			Password: cfg.SMTPPassword,
			From:     cfg.From,
			Timeout:  timeout,
		})
	case "resend":
		sender, err = NewResendSender(cfg.ResendAPIKey, cfg.From, timeout)
	case "sendgrid":
		sender, err = NewSendGridSender(cfg.SendGridAPIKey, cfg.From, timeout)
	default:
		err = fmt.Errorf("unknown mail provider %q", cfg.Provider)
	}
	if err != nil {
		return nil, err
	}
	return NewGuarded(sender, circuitbreaker.DefaultConfig(), log), nil
}
