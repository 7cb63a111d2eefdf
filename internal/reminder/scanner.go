package reminder

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"projecttracker/internal/mail"
	"projecttracker/internal/model"
	"projecttracker/internal/stage"
	"projecttracker/pkg/metrics"
)

// DedupScope namespaces reminder keys in the deduper.
const DedupScope = "reminder"

type ProjectSource interface {
	Refresh(ctx context.Context) ([]model.Project, error)
}

type Deduper interface {
	AcquireOnce(ctx context.Context, scope, key string) bool
	Release(ctx context.Context, scope, key string)
}

type Enqueuer interface {
	Enqueue(ctx context.Context, msg mail.Message, dedupKey string) (bool, error)
}

type Config struct {
	LeadDays   int
	Recipients map[model.StageID]string
	SkipStages []model.StageID
	Location   *time.Location
}

// Scanner queues a reminder for every open in-use stage due exactly
// LeadDays from today.
type Scanner struct {
	source ProjectSource
	engine *stage.Engine
	dedup  Deduper
	queue  Enqueuer
	logger *zap.Logger
	cfg    Config
	skip   map[model.StageID]bool
	now    func() time.Time
}

func NewScanner(source ProjectSource, engine *stage.Engine, dedup Deduper, queue Enqueuer, cfg Config, logger *zap.Logger) *Scanner {
	if cfg.LeadDays <= 0 {
		cfg.LeadDays = 5
	}
	if cfg.SkipStages == nil {
		cfg.SkipStages = []model.StageID{stage.Dispatch}
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	skip := make(map[model.StageID]bool, len(cfg.SkipStages))
	for _, id := range cfg.SkipStages {
		skip[id] = true
	}
	return &Scanner{
		source: source,
		engine: engine,
		dedup:  dedup,
		queue:  queue,
		logger: logger,
		cfg:    cfg,
		skip:   skip,
		now:    time.Now,
	}
}

// Report summarises one scan.
type Report struct {
	Due        int
	Queued     int
	Skipped    int
	Duplicates int
	Failed     int
}

// DedupKey identifies one reminder: a project, a stage and the due date it
// was sent for. Moving the due date makes a new reminder possible.
func DedupKey(projectID string, id model.StageID, due model.Date) string {
	return fmt.Sprintf("%s:%s:%s", projectID, id, due)
}

func (s *Scanner) Scan(ctx context.Context) (Report, error) {
	var rep Report
	projects, err := s.source.Refresh(ctx)
	if err != nil {
		return rep, fmt.Errorf("load projects for reminders: %w", err)
	}

	today := model.DateOf(s.now().In(s.cfg.Location))
	target := today.AddDays(s.cfg.LeadDays)

	for i := range projects {
		p := &projects[i]
		for _, id := range s.engine.InUseStages(p) {
			st := p.Stages[id]
			if st.Completed || st.DueDate.IsZero() || !st.DueDate.Equal(target) {
				continue
			}
			rep.Due++
			s.remind(ctx, p, id, st, &rep)
		}
	}

	s.logger.Info("Deadline scan finished",
		zap.String("target_date", target.String()),
		zap.Int("due", rep.Due),
		zap.Int("queued", rep.Queued),
		zap.Int("skipped", rep.Skipped),
		zap.Int("duplicates", rep.Duplicates),
		zap.Int("failed", rep.Failed),
	)
	return rep, nil
}

func (s *Scanner) remind(ctx context.Context, p *model.Project, id model.StageID, st model.StageState, rep *Report) {
	log := s.logger.With(
		zap.String("project_id", p.ID),
		zap.String("stage", string(id)),
		zap.String("due_date", st.DueDate.String()),
	)

	if s.skip[id] {
		log.Debug("Skipping reminder for excluded stage")
		rep.Skipped++
		return
	}
	to := s.cfg.Recipients[id]
	if to == "" {
		log.Debug("No reminder recipient configured for stage")
		rep.Skipped++
		return
	}

	key := DedupKey(p.ID, id, st.DueDate)
	if !s.dedup.AcquireOnce(ctx, DedupScope, key) {
		rep.Duplicates++
		return
	}

	msg, err := BuildReminder(to, Data{
		ProjectName: p.Name,
		Description: p.Description,
		Stage:       stageTitle(string(id)),
		DueDate:     st.DueDate.String(),
		Person:      st.Person,
		LeadDays:    s.cfg.LeadDays,
	})
	if err != nil {
		log.Error("Failed to render reminder", zap.Error(err))
		s.dedup.Release(ctx, DedupScope, key)
		rep.Failed++
		return
	}

	// The key only sticks once the queue holds the reminder, so a failed
	// enqueue is retried by the next scan.
	queued, err := s.queue.Enqueue(ctx, msg, key)
	switch {
	case err != nil:
		log.Error("Failed to queue reminder", zap.Error(err))
		s.dedup.Release(ctx, DedupScope, key)
		rep.Failed++
	case !queued:
		rep.Duplicates++
	default:
		rep.Queued++
		metrics.IncrementReminderQueued(string(id))
		log.Info("Reminder queued", zap.String("to", to))
	}
}
