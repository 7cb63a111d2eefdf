package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"projecttracker/pkg/trace"
)

// JobFunc is one scheduled unit of work.
type JobFunc func(ctx context.Context) error

// Scheduler runs named jobs on cron specs in a fixed location.
type Scheduler struct {
	cron    *cron.Cron
	logger  *zap.Logger
	timeout time.Duration
	base    context.Context
	cancel  context.CancelFunc
}

func New(loc *time.Location, logger *zap.Logger) *Scheduler {
	if loc == nil {
		loc = time.UTC
	}
	cl := cronLogger{logger.Sugar()}
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		cron: cron.New(
			cron.WithLocation(loc),
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
		logger:  logger,
		timeout: 10 * time.Minute,
		base:    ctx,
		cancel:  cancel,
	}
}

// Add registers fn under spec ("@every 1h", "0 0 1 4 *", ...).
func (s *Scheduler) Add(name, spec string, fn JobFunc) error {
	_, err := s.cron.AddFunc(spec, func() {
		if err := s.Run(name, fn); err != nil {
			s.logger.Error("Scheduled job failed", zap.String("job", name), zap.Error(err))
		}
	})
	if err != nil {
		return fmt.Errorf("schedule %s (%q): %w", name, spec, err)
	}
	s.logger.Info("Job scheduled", zap.String("job", name), zap.String("spec", spec))
	return nil
}

// Run executes fn once with a fresh trace id and the job timeout.
func (s *Scheduler) Run(name string, fn JobFunc) error {
	ctx, cancel := context.WithTimeout(s.base, s.timeout)
	defer cancel()
	ctx, traceID := trace.Ensure(ctx)

	start := time.Now()
	err := fn(ctx)
	s.logger.Info("Job finished",
		zap.String("job", name),
		zap.String("trace_id", traceID),
		zap.Duration("took", time.Since(start)),
		zap.Bool("ok", err == nil),
	)
	return err
}

func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop cancels running jobs and waits for them until ctx expires.
func (s *Scheduler) Stop(ctx context.Context) {
	s.cancel()
	done := s.cron.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
		s.logger.Warn("Scheduler stop timed out")
	}
}

type cronLogger struct {
	s *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.s.Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.s.Errorw(msg, append(keysAndValues, "error", err)...)
}
