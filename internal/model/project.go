package model

import (
	"encoding/json"
	"strings"
	"time"
)

type StageID string

// Status is the lifecycle state of a project.
type Status string

const (
	StatusYetToStart Status = "yet-to-start"
	StatusActive     Status = "active"
	StatusCompleted  Status = "completed"
	StatusOnHold     Status = "on-hold"
)

func (s Status) Valid() bool {
	switch s {
	case StatusYetToStart, StatusActive, StatusCompleted, StatusOnHold:
		return true
	}
	return false
}

// NotCompletedMarker is what completedTimestamp holds while a stage is open.
const NotCompletedMarker = "Yet to be completed"

// StageState is one project's record for one workflow stage.
type StageState struct {
	Person      string
	DueDate     Date
	Completed   bool
	CompletedAt *time.Time
}

// InUse reports whether someone is assigned to the stage.
func (s StageState) InUse() bool {
	return strings.TrimSpace(s.Person) != ""
}

// SetCompleted flips the completion flag and keeps the timestamp in step with it.
func (s *StageState) SetCompleted(done bool, at time.Time) {
	s.Completed = done
	if !done {
		s.CompletedAt = nil
		return
	}
	ts := at.UTC()
	s.CompletedAt = &ts
}

type stageStateJSON struct {
	Person             string `json:"person"`
	DueDate            Date   `json:"dueDate"`
	Completed          bool   `json:"completed"`
	CompletedTimestamp string `json:"completedTimestamp"`
}

func (s StageState) MarshalJSON() ([]byte, error) {
	out := stageStateJSON{
		Person:             s.Person,
		DueDate:            s.DueDate,
		Completed:          s.Completed,
		CompletedTimestamp: NotCompletedMarker,
	}
	if s.Completed && s.CompletedAt != nil {
		out.CompletedTimestamp = s.CompletedAt.UTC().Format(time.RFC3339)
	}
	return json.Marshal(out)
}

func (s *StageState) UnmarshalJSON(b []byte) error {
	var in stageStateJSON
	if err := json.Unmarshal(b, &in); err != nil {
		return err
	}
	*s = StageState{Person: in.Person, DueDate: in.DueDate}
	if in.Completed {
		at := time.Time{}
		if ts, err := time.Parse(time.RFC3339, in.CompletedTimestamp); err == nil {
			at = ts
		}
		s.Completed = true
		if !at.IsZero() {
			s.CompletedAt = &at
		}
	}
	return nil
}

// Project is the canonical in-memory project record. Every store adapter
// converts into this shape before derivation runs.
type Project struct {
	ID           string                 `json:"id"`
	Name         string                 `json:"name"`
	Description  string                 `json:"description"`
	Status       Status                 `json:"status"`
	Assignee     string                 `json:"assignee"`
	Progress     int                    `json:"progress"`
	Remarks      string                 `json:"remarks,omitempty"`
	ProjectType  string                 `json:"projectType"`
	BusinessUnit string                 `json:"bu"`
	CreatedAt    time.Time              `json:"createdAt"`
	Stages       map[StageID]StageState `json:"stages"`
	CurrentStage StageID                `json:"currentStage"`
}

// Stage returns the state of a stage; ok is false when the stage map lacks it.
func (p *Project) Stage(id StageID) (StageState, bool) {
	if p.Stages == nil {
		return StageState{}, false
	}
	s, ok := p.Stages[id]
	return s, ok
}

// Clone returns a copy that shares no mutable state with p.
func (p Project) Clone() Project {
	out := p
	if p.Stages != nil {
		out.Stages = make(map[StageID]StageState, len(p.Stages))
		for k, v := range p.Stages {
			if v.CompletedAt != nil {
				ts := *v.CompletedAt
				v.CompletedAt = &ts
			}
			out.Stages[k] = v
		}
	}
	return out
}
