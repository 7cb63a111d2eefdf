package stage

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"projecttracker/internal/model"
)

var today = model.NewDate(2025, time.January, 11)

func day(s string) model.Date {
	d, err := model.ParseDate(s)
	if err != nil {
		panic(err)
	}
	return d
}

func projectWith(status model.Status, stages map[model.StageID]model.StageState) *model.Project {
	return &model.Project{ID: "p1", Name: "Line 4", Status: status, Stages: stages}
}

func TestInUseStages(t *testing.T) {
	e := NewEngine(Default)

	t.Run("registry order is preserved", func(t *testing.T) {
		p := projectWith(model.StatusActive, map[model.StageID]model.StageState{
			Controls:         {Person: "C"},
			MechanicalDesign: {Person: "M"},
			Wiring:           {Person: "  "},
		})
		assert.Equal(t, []model.StageID{MechanicalDesign, Controls}, e.InUseStages(p))
	})

	t.Run("missing stage map means none in use", func(t *testing.T) {
		p := projectWith(model.StatusActive, nil)
		assert.Empty(t, e.InUseStages(p))
		assert.Equal(t, MechanicalDesign, e.CurrentStage(p))
		assert.Equal(t, 0, e.Progress(p))
	})

	t.Run("stages outside the registry are ignored", func(t *testing.T) {
		p := projectWith(model.StatusActive, map[model.StageID]model.StageState{
			"painting": {Person: "P"},
		})
		assert.Empty(t, e.InUseStages(p))
	})
}

func TestCurrentStageWithNothingInUse(t *testing.T) {
	for _, status := range []model.Status{model.StatusYetToStart, model.StatusActive, model.StatusCompleted, model.StatusOnHold} {
		p := projectWith(status, map[model.StageID]model.StageState{Wiring: {DueDate: today}})
		assert.Equal(t, MechanicalDesign, NewEngine(Default).CurrentStage(p), "status %s", status)
		assert.Equal(t, Design, NewEngine(Legacy).CurrentStage(p), "status %s", status)
	}
}

func TestCurrentStageAdvancesMonotonically(t *testing.T) {
	e := NewEngine(Default)
	p := projectWith(model.StatusActive, map[model.StageID]model.StageState{
		ElectricalDesign: {Person: "E"},
		Manufacturing:    {Person: "M"},
		Controls:         {Person: "C"},
		Installation:     {Person: "I"},
	})
	inUse := e.InUseStages(p)
	require.Len(t, inUse, 4)

	prev := -1
	for i, id := range inUse {
		cur := e.CurrentStage(p)
		assert.Equal(t, id, cur)
		idx := Default.Index(cur)
		assert.GreaterOrEqual(t, idx, prev)
		prev = idx

		st := p.Stages[id]
		st.SetCompleted(true, time.Now())
		p.Stages[id] = st

		if i == len(inUse)-1 {
			assert.Equal(t, Installation, e.CurrentStage(p))
		}
	}
}

func TestCurrentStageStopsAtFirstOpenStage(t *testing.T) {
	e := NewEngine(Default)
	p := projectWith(model.StatusActive, map[model.StageID]model.StageState{
		MechanicalDesign: {Person: "M"},
		Wiring:           {Person: "W", Completed: true},
		Assembly:         {Person: "A"},
	})
	// a later completion does not skip an earlier open stage
	assert.Equal(t, MechanicalDesign, e.CurrentStage(p))
}

func TestIsOverdue(t *testing.T) {
	tests := []struct {
		name  string
		state model.StageState
		want  bool
	}{
		{"no due date", model.StageState{Person: "A"}, false},
		{"due yesterday", model.StageState{DueDate: today.AddDays(-1)}, true},
		{"due today", model.StageState{DueDate: today}, false},
		{"due tomorrow", model.StageState{DueDate: today.AddDays(1)}, false},
		{"completed and long past", model.StageState{DueDate: day("2020-01-01"), Completed: true}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsOverdue(tt.state, today))
		})
	}
}

func TestOverdueProjects(t *testing.T) {
	e := NewEngine(Default)
	late := *projectWith(model.StatusActive, map[model.StageID]model.StageState{
		Controls: {Person: "C", DueDate: today.AddDays(-1)},
	})
	late.ID = "late"
	unassigned := *projectWith(model.StatusActive, map[model.StageID]model.StageState{
		Controls: {DueDate: today.AddDays(-10)},
	})
	unassigned.ID = "unassigned"
	onTrack := *projectWith(model.StatusActive, map[model.StageID]model.StageState{
		Controls: {Person: "C", DueDate: today.AddDays(3)},
	})
	onTrack.ID = "on-track"
	noStages := model.Project{ID: "empty"}

	got := e.OverdueProjects([]model.Project{late, unassigned, onTrack, noStages}, today)
	require.Len(t, got, 1)
	assert.Equal(t, "late", got[0].ID)
}

func TestCurrentDueDate(t *testing.T) {
	e := NewEngine(Default)
	p := projectWith(model.StatusActive, map[model.StageID]model.StageState{
		MechanicalDesign: {Person: "M", DueDate: day("2025-01-05"), Completed: true},
		Wiring:           {Person: "W", DueDate: day("2025-02-01")},
	})
	assert.Equal(t, day("2025-02-01"), e.CurrentDueDate(p))
	assert.True(t, e.CurrentDueDate(projectWith(model.StatusActive, nil)).IsZero())
}

// Scenarios from the product walkthrough, on the legacy five-stage registry.
func TestWalkthroughScenarios(t *testing.T) {
	e := NewEngine(Legacy)
	p := projectWith(model.StatusActive, map[model.StageID]model.StageState{
		Design: {Person: "Alice", DueDate: day("2025-01-10")},
	})

	t.Run("A: single open stage", func(t *testing.T) {
		assert.Equal(t, []model.StageID{Design}, e.InUseStages(p))
		assert.Equal(t, Design, e.CurrentStage(p))
		assert.Equal(t, 0, e.Progress(p))
	})

	t.Run("B: single stage completed", func(t *testing.T) {
		st := p.Stages[Design]
		st.SetCompleted(true, time.Now())
		p.Stages[Design] = st

		assert.Equal(t, Design, e.CurrentStage(p))
		assert.Equal(t, 90, e.Progress(p))
	})

	t.Run("C: completed status wins", func(t *testing.T) {
		done := p.Clone()
		done.Status = model.StatusCompleted
		assert.Equal(t, 100, e.Progress(&done))

		fresh := projectWith(model.StatusCompleted, nil)
		assert.Equal(t, 100, e.Progress(fresh))
	})

	t.Run("D: stage due yesterday", func(t *testing.T) {
		q := projectWith(model.StatusActive, map[model.StageID]model.StageState{
			Controls: {Person: "Ravi", DueDate: today.AddDays(-1)},
		})
		assert.True(t, IsOverdue(q.Stages[Controls], today))
		assert.Len(t, e.OverdueProjects([]model.Project{*q}, today), 1)
	})
}

func TestDerive(t *testing.T) {
	stages := func() map[model.StageID]model.StageState {
		return map[model.StageID]model.StageState{
			MechanicalDesign: {Person: "M", Completed: true},
			Assembly:         {Person: "A", Completed: true},
		}
	}

	t.Run("hold keeps status and caps at 90", func(t *testing.T) {
		p := projectWith(model.StatusActive, stages())
		e := NewEngine(Default)
		e.Derive(p)
		assert.Equal(t, model.StatusActive, p.Status)
		assert.Equal(t, 90, p.Progress)
		assert.Equal(t, Assembly, p.CurrentStage)

		e.Derive(p)
		assert.Equal(t, 90, p.Progress)
	})

	t.Run("auto-complete transitions status", func(t *testing.T) {
		p := projectWith(model.StatusOnHold, stages())
		NewEngine(Default, WithCompletionPolicy(AutoComplete)).Derive(p)
		assert.Equal(t, model.StatusCompleted, p.Status)
		assert.Equal(t, 100, p.Progress)
	})

	t.Run("auto-complete needs at least one stage in use", func(t *testing.T) {
		p := projectWith(model.StatusActive, nil)
		NewEngine(Default, WithCompletionPolicy(AutoComplete)).Derive(p)
		assert.Equal(t, model.StatusActive, p.Status)
		assert.Equal(t, 0, p.Progress)
		assert.Equal(t, MechanicalDesign, p.CurrentStage)
	})
}
