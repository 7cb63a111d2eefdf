package stage

import (
	"fmt"

	"projecttracker/internal/model"
)

// ProgressRule maps derived facts to a 0-100 percentage.
type ProgressRule interface {
	Name() string
	Progress(f Facts) int
}

const (
	RuleStageCount     = "stage-count"
	RuleFixedMilestone = "fixed-milestone"

	// stageBudget is the share of progress that stage completion can earn;
	// the rest is reserved for the completed status.
	stageBudget = 90
)

// StageCountRule splits a 90 point budget evenly across in-use stages.
type StageCountRule struct{}

func (StageCountRule) Name() string { return RuleStageCount }

func (StageCountRule) Progress(f Facts) int {
	switch f.Status {
	case model.StatusCompleted:
		return 100
	case model.StatusYetToStart:
		return 0
	}
	if len(f.InUse) == 0 {
		return 0
	}
	p := f.Completed * stageBudget / len(f.InUse)
	if p > stageBudget {
		return stageBudget
	}
	return p
}

// MilestoneRule assigns a fixed percentage to whichever stage is current.
type MilestoneRule struct {
	Milestones map[model.StageID]int
}

func (MilestoneRule) Name() string { return RuleFixedMilestone }

func (r MilestoneRule) Progress(f Facts) int {
	switch f.Status {
	case model.StatusCompleted:
		return 100
	case model.StatusYetToStart:
		return 0
	}
	v := r.Milestones[f.Current]
	if v < 0 {
		return 0
	}
	if v > 99 {
		return 99
	}
	return v
}

// DefaultMilestones covers the stage names of both shipped registries.
func DefaultMilestones() map[model.StageID]int {
	return map[model.StageID]int{
		Design:           5,
		Production:       20,
		MechanicalDesign: 5,
		ElectricalDesign: 10,
		Manufacturing:    20,
		Wiring:           30,
		Assembly:         35,
		Controls:         40,
		Dispatch:         60,
		Installation:     80,
	}
}

// NewRule builds a rule by its configured name. overrides replace entries of
// the default milestone table and are ignored by the stage-count rule.
func NewRule(name string, overrides map[string]int) (ProgressRule, error) {
	switch name {
	case "", RuleStageCount:
		return StageCountRule{}, nil
	case RuleFixedMilestone:
		m := DefaultMilestones()
		for k, v := range overrides {
			m[model.StageID(k)] = v
		}
		return MilestoneRule{Milestones: m}, nil
	}
	return nil, fmt.Errorf("unknown progress rule %q", name)
}

// CompletionPolicy decides what happens when every in-use stage is done but
// the project status is not completed.
type CompletionPolicy string

const (
	HoldAtNinety CompletionPolicy = "hold"
	AutoComplete CompletionPolicy = "auto-complete"
)

func ParseCompletionPolicy(s string) (CompletionPolicy, error) {
	switch CompletionPolicy(s) {
	case "", HoldAtNinety:
		return HoldAtNinety, nil
	case AutoComplete:
		return AutoComplete, nil
	}
	return "", fmt.Errorf("unknown completion policy %q", s)
}
