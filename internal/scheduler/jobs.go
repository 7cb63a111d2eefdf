package scheduler

import (
	"context"
	"time"

	"go.uber.org/zap"

	"projecttracker/internal/model"
	"projecttracker/internal/reminder"
)

type Scanner interface {
	Scan(ctx context.Context) (reminder.Report, error)
}

type Resetter interface {
	ResetAll(ctx context.Context) error
}

type OnceGuard interface {
	AcquireOnce(ctx context.Context, scope, key string) bool
	Release(ctx context.Context, scope, key string)
}

// DeadlineScan runs the reminder scanner.
func DeadlineScan(scanner Scanner) JobFunc {
	return func(ctx context.Context) error {
		_, err := scanner.Scan(ctx)
		return err
	}
}

// OTDRReset clears all OTDR records at most once per calendar day in loc,
// however many instances fire the schedule. A failed reset gives the day back
// so the next firing tries again.
func OTDRReset(resetter Resetter, guard OnceGuard, loc *time.Location, now func() time.Time, logger *zap.Logger) JobFunc {
	if loc == nil {
		loc = time.UTC
	}
	if now == nil {
		now = time.Now
	}
	return func(ctx context.Context) error {
		day := model.DateOf(now().In(loc)).String()
		if !guard.AcquireOnce(ctx, "otdr-reset", day) {
			logger.Info("OTDR reset already done today", zap.String("day", day))
			return nil
		}
		if err := resetter.ResetAll(ctx); err != nil {
			logger.Error("OTDR reset failed, releasing the day for retry",
				zap.String("day", day),
				zap.Error(err),
			)
			guard.Release(ctx, "otdr-reset", day)
			return err
		}
		return nil
	}
}
