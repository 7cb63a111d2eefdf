package stage

import (
	"projecttracker/internal/model"
)

// Engine derives current stage, overdue flags and progress from a project's
// sparse stage record. It holds no per-project state and is safe to share.
type Engine struct {
	registry *Registry
	rule     ProgressRule
	policy   CompletionPolicy
}

type Option func(*Engine)

func WithProgressRule(rule ProgressRule) Option {
	return func(e *Engine) {
		if rule != nil {
			e.rule = rule
		}
	}
}

func WithCompletionPolicy(p CompletionPolicy) Option {
	return func(e *Engine) { e.policy = p }
}

func NewEngine(registry *Registry, opts ...Option) *Engine {
	if registry == nil {
		registry = Default
	}
	e := &Engine{
		registry: registry,
		rule:     StageCountRule{},
		policy:   HoldAtNinety,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Engine) Registry() *Registry { return e.registry }

func (e *Engine) Rule() ProgressRule { return e.rule }

func (e *Engine) Policy() CompletionPolicy { return e.policy }

// InUseStages lists, in registry order, the stages with an assigned person.
func (e *Engine) InUseStages(p *model.Project) []model.StageID {
	if p == nil || p.Stages == nil {
		return nil
	}
	var out []model.StageID
	for _, s := range e.registry.stages {
		if st, ok := p.Stages[s.Name]; ok && st.InUse() {
			out = append(out, s.Name)
		}
	}
	return out
}

// CurrentStage is the first open in-use stage. With every in-use stage done it
// is the last in-use stage; with none in use it is the registry's first stage.
func (e *Engine) CurrentStage(p *model.Project) model.StageID {
	inUse := e.InUseStages(p)
	return e.currentOf(p, inUse)
}

func (e *Engine) currentOf(p *model.Project, inUse []model.StageID) model.StageID {
	if len(inUse) == 0 {
		return e.registry.First()
	}
	for _, id := range inUse {
		if !p.Stages[id].Completed {
			return id
		}
	}
	return inUse[len(inUse)-1]
}

// CurrentDueDate is the due date of the current stage, zero when unset.
func (e *Engine) CurrentDueDate(p *model.Project) model.Date {
	st, ok := p.Stage(e.CurrentStage(p))
	if !ok {
		return model.Date{}
	}
	return st.DueDate
}

// IsOverdue compares calendar days only.
func IsOverdue(s model.StageState, today model.Date) bool {
	if s.DueDate.IsZero() || s.Completed {
		return false
	}
	return s.DueDate.Before(today)
}

// IsProjectOverdue reports whether any in-use stage is overdue.
func (e *Engine) IsProjectOverdue(p *model.Project, today model.Date) bool {
	for _, id := range e.InUseStages(p) {
		if IsOverdue(p.Stages[id], today) {
			return true
		}
	}
	return false
}

func (e *Engine) OverdueProjects(projects []model.Project, today model.Date) []model.Project {
	var out []model.Project
	for i := range projects {
		if e.IsProjectOverdue(&projects[i], today) {
			out = append(out, projects[i])
		}
	}
	return out
}

// Facts is everything a ProgressRule may look at.
type Facts struct {
	Status    model.Status
	InUse     []model.StageID
	Completed int
	Current   model.StageID
}

func (e *Engine) Facts(p *model.Project) Facts {
	inUse := e.InUseStages(p)
	done := 0
	for _, id := range inUse {
		if p.Stages[id].Completed {
			done++
		}
	}
	return Facts{
		Status:    p.Status,
		InUse:     inUse,
		Completed: done,
		Current:   e.currentOf(p, inUse),
	}
}

func (e *Engine) Progress(p *model.Project) int {
	return e.rule.Progress(e.Facts(p))
}

// Derive normalises a project in place: completion policy first, then the
// current stage and the progress percentage. Running it twice is a no-op.
func (e *Engine) Derive(p *model.Project) {
	f := e.Facts(p)
	if e.policy == AutoComplete && len(f.InUse) > 0 && f.Completed == len(f.InUse) {
		p.Status = model.StatusCompleted
		f.Status = model.StatusCompleted
	}
	p.CurrentStage = f.Current
	p.Progress = e.rule.Progress(f)
}
