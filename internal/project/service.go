package project

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	mqcontracts "projecttracker/contracts/mq"
	"projecttracker/internal/apperrors"
	"projecttracker/internal/model"
	"projecttracker/internal/otdr"
	"projecttracker/internal/stage"
	"projecttracker/pkg/logger"
	"projecttracker/pkg/metrics"
)

// OTDRRecorder receives stage completion events.
type OTDRRecorder interface {
	RecordStageEvent(ctx context.Context, ev otdr.Event) (*otdr.Record, error)
}

// Publisher announces project changes to other instances.
type Publisher interface {
	PublishWithContext(ctx context.Context, routingKey string, payload any) error
}

type Service struct {
	cache     *Cache
	repo      Repository
	engine    *stage.Engine
	otdr      OTDRRecorder
	publisher Publisher
	logger    *zap.Logger

	now   func() time.Time
	newID func() string
}

type Option func(*Service)

// WithClock replaces time.Now, mostly for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func WithIDGenerator(gen func() string) Option {
	return func(s *Service) { s.newID = gen }
}

// WithPublisher enables project.changed events. Without one, changes are
// only visible to this process.
func WithPublisher(p Publisher) Option {
	return func(s *Service) { s.publisher = p }
}

func NewService(cache *Cache, repo Repository, engine *stage.Engine, recorder OTDRRecorder, logger *zap.Logger, opts ...Option) *Service {
	s := &Service{
		cache:  cache,
		repo:   repo,
		engine: engine,
		otdr:   recorder,
		logger: logger,
		now:    time.Now,
		newID:  uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) Engine() *stage.Engine { return s.engine }

func (s *Service) today() model.Date { return model.DateOf(s.now()) }

// StageInput is the editable part of a stage.
type StageInput struct {
	Person  string     `json:"person"`
	DueDate model.Date `json:"dueDate"`
}

// Draft is the editable part of a project.
type Draft struct {
	Name         string                       `json:"name"`
	Description  string                       `json:"description"`
	Status       model.Status                 `json:"status"`
	Assignee     string                       `json:"assignee"`
	Remarks      string                       `json:"remarks"`
	ProjectType  string                       `json:"projectType"`
	BusinessUnit string                       `json:"bu"`
	Stages       map[model.StageID]StageInput `json:"stages"`
}

func (s *Service) validate(d *Draft) error {
	d.Name = strings.TrimSpace(d.Name)
	required := []struct{ field, value string }{
		{"name", d.Name},
		{"description", d.Description},
		{"assignee", d.Assignee},
		{"projectType", d.ProjectType},
		{"bu", d.BusinessUnit},
	}
	for _, r := range required {
		if strings.TrimSpace(r.value) == "" {
			return apperrors.Invalid(r.field, "is required")
		}
	}
	if d.Status == "" {
		d.Status = model.StatusYetToStart
	}
	if !d.Status.Valid() {
		return apperrors.Invalid("status", fmt.Sprintf("unknown status %q", d.Status))
	}
	for id := range d.Stages {
		if !s.engine.Registry().Contains(id) {
			return apperrors.Invalid("stages", fmt.Sprintf("unknown stage %q", id))
		}
	}
	return nil
}

// Create stores a new project with every registry stage open.
func (s *Service) Create(ctx context.Context, d Draft) (model.Project, error) {
	if err := s.validate(&d); err != nil {
		return model.Project{}, err
	}

	p := model.Project{
		ID:        s.newID(),
		CreatedAt: s.now().UTC(),
		Stages:    make(map[model.StageID]model.StageState, s.engine.Registry().Len()),
	}
	applyDraft(&p, d)
	for _, id := range s.engine.Registry().IDs() {
		in := d.Stages[id]
		p.Stages[id] = model.StageState{Person: strings.TrimSpace(in.Person), DueDate: in.DueDate}
	}

	if err := s.save(ctx, p, mqcontracts.ActionCreated, ""); err != nil {
		return model.Project{}, err
	}
	logger.WithTrace(ctx, s.logger).Info("Project created",
		zap.String("project_id", p.ID),
		zap.String("name", p.Name),
	)
	return s.derived(p), nil
}

// Update replaces the editable fields. Stage completion is kept as is.
func (s *Service) Update(ctx context.Context, id string, d Draft) (model.Project, error) {
	if err := s.validate(&d); err != nil {
		return model.Project{}, err
	}
	p, err := s.cache.Find(ctx, id)
	if err != nil {
		return model.Project{}, err
	}

	applyDraft(&p, d)
	if p.Stages == nil {
		p.Stages = make(map[model.StageID]model.StageState)
	}
	for _, sid := range s.engine.Registry().IDs() {
		st := p.Stages[sid]
		in, ok := d.Stages[sid]
		if !ok {
			if _, existed := p.Stages[sid]; !existed {
				continue
			}
		}
		st.Person = strings.TrimSpace(in.Person)
		st.DueDate = in.DueDate
		p.Stages[sid] = st
	}

	if err := s.save(ctx, p, mqcontracts.ActionUpdated, ""); err != nil {
		return model.Project{}, err
	}
	logger.WithTrace(ctx, s.logger).Info("Project updated", zap.String("project_id", p.ID))
	return s.derived(p), nil
}

func applyDraft(p *model.Project, d Draft) {
	p.Name = d.Name
	p.Description = d.Description
	p.Status = d.Status
	p.Assignee = strings.TrimSpace(d.Assignee)
	p.Remarks = d.Remarks
	p.ProjectType = d.ProjectType
	p.BusinessUnit = d.BusinessUnit
}

func (s *Service) Delete(ctx context.Context, id string) error {
	if _, err := s.cache.Find(ctx, id); err != nil {
		return err
	}
	s.cache.Remove(id)
	if err := s.repo.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete project %s: %w", id, err)
	}
	s.publish(ctx, id, mqcontracts.ActionDeleted, "")
	logger.WithTrace(ctx, s.logger).Info("Project deleted", zap.String("project_id", id))
	return nil
}

func (s *Service) Get(ctx context.Context, id string) (model.Project, error) {
	return s.cache.Find(ctx, id)
}

type ToggleStageRequest struct {
	ProjectID string        `json:"projectId"`
	Stage     model.StageID `json:"stageName"`
	Completed bool          `json:"completed"`
}

// ToggleStageResponse carries the updated project and, when the stage is in
// use and OTDR recording succeeded, the stage's new OTDR record.
type ToggleStageResponse struct {
	Project model.Project `json:"project"`
	OTDR    *otdr.Record  `json:"otdr,omitempty"`
}

// ToggleStage marks a stage complete or open. The whole record is written
// back; concurrent edits to the same project are last-writer-wins.
func (s *Service) ToggleStage(ctx context.Context, req ToggleStageRequest) (ToggleStageResponse, error) {
	log := logger.WithTrace(ctx, s.logger)
	if !s.engine.Registry().Contains(req.Stage) {
		return ToggleStageResponse{}, apperrors.Invalid("stageName", fmt.Sprintf("unknown stage %q", req.Stage))
	}
	p, err := s.cache.Find(ctx, req.ProjectID)
	if err != nil {
		return ToggleStageResponse{}, err
	}

	now := s.now()
	if p.Stages == nil {
		p.Stages = make(map[model.StageID]model.StageState)
	}
	st := p.Stages[req.Stage]
	st.SetCompleted(req.Completed, now)
	p.Stages[req.Stage] = st
	s.engine.Derive(&p)

	resp := ToggleStageResponse{Project: p}
	if st.InUse() && s.otdr != nil {
		ev := otdr.Event{
			ProjectID:   p.ID,
			ProjectName: p.Name,
			Stage:       req.Stage,
			DueDate:     st.DueDate,
			Completed:   req.Completed,
		}
		if req.Completed {
			ev.CompletedDate = model.DateOf(now)
		}
		rec, err := s.otdr.RecordStageEvent(ctx, ev)
		if err != nil {
			log.Warn("OTDR update failed, stage toggle kept",
				zap.String("project_id", p.ID),
				zap.String("stage", string(req.Stage)),
				zap.Error(err),
			)
		} else {
			resp.OTDR = rec
		}
	}
	metrics.IncrementStageToggle(string(req.Stage), req.Completed)

	if err := s.save(ctx, p, mqcontracts.ActionToggled, string(req.Stage)); err != nil {
		return resp, err
	}
	log.Info("Stage toggled",
		zap.String("project_id", p.ID),
		zap.String("stage", string(req.Stage)),
		zap.Bool("completed", req.Completed),
		zap.String("current_stage", string(p.CurrentStage)),
		zap.Int("progress", p.Progress),
	)
	return resp, nil
}

// save derives p, puts it in the cache and writes it to the repository.
// A failed write is returned; the cache keeps the new record.
func (s *Service) save(ctx context.Context, p model.Project, action, stageName string) error {
	s.engine.Derive(&p)
	s.cache.Put(p)
	if err := s.repo.Upsert(ctx, p); err != nil {
		return fmt.Errorf("save project %s: %w", p.ID, err)
	}
	s.publish(ctx, p.ID, action, stageName)
	return nil
}

func (s *Service) derived(p model.Project) model.Project {
	s.engine.Derive(&p)
	return p
}

func (s *Service) publish(ctx context.Context, id, action, stageName string) {
	if s.publisher == nil {
		return
	}
	payload := mqcontracts.ProjectChangedPayload{
		ProjectID: id,
		Action:    action,
		Stage:     stageName,
		ChangedAt: s.now().UTC(),
	}
	if err := s.publisher.PublishWithContext(ctx, mqcontracts.RoutingKeyProjectChanged, payload); err != nil {
		logger.WithTrace(ctx, s.logger).Warn("Failed to publish project change",
			zap.String("project_id", id),
			zap.String("action", action),
			zap.Error(err),
		)
	}
}

// Filter narrows List. Empty or "all" disables a field.
type Filter struct {
	Status       string
	Stage        string
	ProjectType  string
	BusinessUnit string
	Search       string
	OverdueOnly  bool
}

func matches(want, got string) bool {
	return want == "" || strings.EqualFold(want, "all") || strings.EqualFold(want, got)
}

// List returns the filtered projects, newest first.
func (s *Service) List(ctx context.Context, f Filter) ([]model.Project, error) {
	projects, err := s.cache.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	today := s.today()
	search := strings.ToLower(strings.TrimSpace(f.Search))

	out := make([]model.Project, 0, len(projects))
	for i := range projects {
		p := &projects[i]
		if !matches(f.Status, string(p.Status)) ||
			!matches(f.Stage, string(p.CurrentStage)) ||
			!matches(f.ProjectType, p.ProjectType) ||
			!matches(f.BusinessUnit, p.BusinessUnit) {
			continue
		}
		if search != "" &&
			!strings.Contains(strings.ToLower(p.Name), search) &&
			!strings.Contains(strings.ToLower(p.Description), search) &&
			!strings.Contains(strings.ToLower(p.Assignee), search) {
			continue
		}
		if f.OverdueOnly && !s.engine.IsProjectOverdue(p, today) {
			continue
		}
		out = append(out, *p)
	}
	return out, nil
}

func (s *Service) Overdue(ctx context.Context) ([]model.Project, error) {
	projects, err := s.cache.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return s.engine.OverdueProjects(projects, s.today()), nil
}

type Summary struct {
	Total     int `json:"total"`
	Active    int `json:"active"`
	Completed int `json:"completed"`
	Overdue   int `json:"overdue"`
}

func (s *Service) Summary(ctx context.Context) (Summary, error) {
	projects, err := s.cache.Snapshot(ctx)
	if err != nil {
		return Summary{}, err
	}
	today := s.today()
	sum := Summary{Total: len(projects)}
	for i := range projects {
		switch projects[i].Status {
		case model.StatusActive:
			sum.Active++
		case model.StatusCompleted:
			sum.Completed++
		}
		if s.engine.IsProjectOverdue(&projects[i], today) {
			sum.Overdue++
		}
	}
	return sum, nil
}

// TimelineStep is one in-use stage in workflow order, numbered from 1.
type TimelineStep struct {
	Step        int           `json:"step"`
	Stage       model.StageID `json:"stage"`
	Label       string        `json:"label"`
	Person      string        `json:"person"`
	DueDate     model.Date    `json:"dueDate"`
	Completed   bool          `json:"completed"`
	CompletedAt *time.Time    `json:"completedAt,omitempty"`
	Current     bool          `json:"current"`
	Overdue     bool          `json:"overdue"`
}

func (s *Service) Timeline(ctx context.Context, id string) ([]TimelineStep, error) {
	p, err := s.cache.Find(ctx, id)
	if err != nil {
		return nil, err
	}
	today := s.today()
	inUse := s.engine.InUseStages(&p)
	steps := make([]TimelineStep, 0, len(inUse))
	for i, sid := range inUse {
		st := p.Stages[sid]
		steps = append(steps, TimelineStep{
			Step:        i + 1,
			Stage:       sid,
			Label:       s.engine.Registry().Label(sid),
			Person:      st.Person,
			DueDate:     st.DueDate,
			Completed:   st.Completed,
			CompletedAt: st.CompletedAt,
			Current:     sid == p.CurrentStage,
			Overdue:     stage.IsOverdue(st, today),
		})
	}
	return steps, nil
}
