package otdr

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"projecttracker/internal/apperrors"
	"projecttracker/internal/model"
	"projecttracker/internal/stage"
	"projecttracker/pkg/metrics"
)

// Service is the OTDR aggregator over a Store.
type Service struct {
	store    Store
	registry *stage.Registry
	logger   *zap.Logger
	now      func() time.Time
}

type Option func(*Service)

// WithClock replaces time.Now, mostly for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func NewService(store Store, registry *stage.Registry, logger *zap.Logger, opts ...Option) *Service {
	if registry == nil {
		registry = stage.Default
	}
	s := &Service{store: store, registry: registry, logger: logger, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RecordStageEvent folds one toggle into the stage's record and returns it.
// A completed event without a completion date counts as completed today.
func (s *Service) RecordStageEvent(ctx context.Context, ev Event) (*Record, error) {
	if ev.ProjectID == "" {
		return nil, apperrors.Invalid("projectId", "is required")
	}
	if !s.registry.Contains(ev.Stage) {
		return nil, apperrors.Invalid("stageName", fmt.Sprintf("unknown stage %q", ev.Stage))
	}
	if ev.Completed && ev.CompletedDate.IsZero() {
		ev.CompletedDate = model.DateOf(s.now())
	}

	var applied bool
	rec, err := s.store.Update(ctx, ev.Stage, func(r *Record) error {
		applied = r.Apply(ev)
		return nil
	})
	if err != nil {
		s.logger.Error("Failed to record stage event",
			zap.String("project_id", ev.ProjectID),
			zap.String("stage", string(ev.Stage)),
			zap.Error(err),
		)
		return nil, fmt.Errorf("record otdr event: %w", err)
	}

	metrics.SetOTDR(string(ev.Stage), rec.OTDR)
	s.logger.Info("OTDR updated",
		zap.String("project_id", ev.ProjectID),
		zap.String("stage", string(ev.Stage)),
		zap.Bool("completed", ev.Completed),
		zap.Bool("applied", applied),
		zap.Float64("otdr", rec.OTDR),
		zap.Int("on_time", rec.OnTimeProjects),
		zap.Int("total", rec.TotalProjects),
	)
	return rec, nil
}

// ResetAll clears every stage's record. Safe to repeat.
func (s *Service) ResetAll(ctx context.Context) error {
	ids := s.registry.IDs()
	if err := s.store.ResetAll(ctx, ids); err != nil {
		s.logger.Error("Failed to reset OTDR records", zap.Error(err))
		return fmt.Errorf("reset otdr: %w", err)
	}
	for _, id := range ids {
		metrics.SetOTDR(string(id), 0)
	}
	s.logger.Info("OTDR records reset", zap.Int("stages", len(ids)))
	return nil
}

// Record returns the full record for one stage, empty when never recorded.
func (s *Service) Record(ctx context.Context, id model.StageID) (*Record, error) {
	if !s.registry.Contains(id) {
		return nil, &apperrors.NotFoundError{Entity: "stage", ID: string(id)}
	}
	return s.store.Get(ctx, id)
}

// Stats summarises every registry stage in registry order.
func (s *Service) Stats(ctx context.Context) ([]Stat, error) {
	recs, err := s.store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list otdr records: %w", err)
	}
	byStage := make(map[model.StageID]*Record, len(recs))
	for _, r := range recs {
		byStage[r.StageName] = r
	}

	out := make([]Stat, 0, s.registry.Len())
	for _, st := range s.registry.Stages() {
		stat := Stat{StageName: st.Name, Label: st.Label}
		if r, ok := byStage[st.Name]; ok {
			stat.OTDR = r.OTDR
			stat.OnTimeProjects = r.OnTimeProjects
			stat.TotalProjects = r.TotalProjects
		}
		out = append(out, stat)
	}
	return out, nil
}
