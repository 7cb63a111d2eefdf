package project

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"projecttracker/internal/model"
)

// Stored documents come from several generations of the tracker. Each field
// is looked up under every key it has been written with, first match wins.
var (
	keysID          = []string{"id", "projectId", "project_id"}
	keysName        = []string{"name", "projectName", "project_name"}
	keysDescription = []string{"description"}
	keysStatus      = []string{"status"}
	keysAssignee    = []string{"assignee", "projectManager", "project_manager"}
	keysProgress    = []string{"progress"}
	keysRemarks     = []string{"remarks"}
	keysType        = []string{"projectType", "project_type", "type"}
	keysBU          = []string{"bu", "businessUnit", "business_unit"}
	keysCreatedAt   = []string{"createdAt", "created_at"}
	keysStages      = []string{"stages"}
	keysCurrent     = []string{"currentStage", "currentProjectStage", "current_stage", "priority"}

	keysPerson      = []string{"person", "assignee"}
	keysDueDate     = []string{"dueDate", "due_date"}
	keysCompleted   = []string{"completed"}
	keysCompletedAt = []string{"completedTimestamp", "completed_timestamp", "completedAt", "completed_at"}
)

type rawDoc map[string]json.RawMessage

func (d rawDoc) lookup(keys []string) (json.RawMessage, bool) {
	for _, k := range keys {
		if v, ok := d[k]; ok && string(v) != "null" {
			return v, true
		}
	}
	return nil, false
}

func (d rawDoc) str(keys []string) string {
	v, ok := d.lookup(keys)
	if !ok {
		return ""
	}
	var s string
	if err := json.Unmarshal(v, &s); err == nil {
		return s
	}
	// numbers and bools are kept in their literal form
	return strings.Trim(string(v), `"`)
}

func (d rawDoc) integer(keys []string) int {
	v, ok := d.lookup(keys)
	if !ok {
		return 0
	}
	var f float64
	if err := json.Unmarshal(v, &f); err == nil {
		return int(f)
	}
	if n, err := strconv.Atoi(d.str(keys)); err == nil {
		return n
	}
	return 0
}

func (d rawDoc) boolean(keys []string) bool {
	v, ok := d.lookup(keys)
	if !ok {
		return false
	}
	var b bool
	if err := json.Unmarshal(v, &b); err == nil {
		return b
	}
	return strings.EqualFold(d.str(keys), "true")
}

// DecodeProject converts a stored document of any known shape into the
// canonical project record. Derived fields are left for the engine.
func DecodeProject(raw []byte) (model.Project, error) {
	var doc rawDoc
	if err := json.Unmarshal(raw, &doc); err != nil {
		return model.Project{}, fmt.Errorf("decode project document: %w", err)
	}

	p := model.Project{
		ID:           doc.str(keysID),
		Name:         doc.str(keysName),
		Description:  doc.str(keysDescription),
		Status:       normalizeStatus(doc.str(keysStatus)),
		Assignee:     doc.str(keysAssignee),
		Progress:     doc.integer(keysProgress),
		Remarks:      doc.str(keysRemarks),
		ProjectType:  doc.str(keysType),
		BusinessUnit: doc.str(keysBU),
		CurrentStage: normalizeStageID(doc.str(keysCurrent)),
		Stages:       map[model.StageID]model.StageState{},
	}
	if ts := doc.str(keysCreatedAt); ts != "" {
		p.CreatedAt = parseTimestamp(ts)
	}

	if v, ok := doc.lookup(keysStages); ok {
		var stages map[string]rawDoc
		if err := json.Unmarshal(v, &stages); err != nil {
			return model.Project{}, fmt.Errorf("decode stages of project %s: %w", p.ID, err)
		}
		for name, sd := range stages {
			p.Stages[normalizeStageID(name)] = decodeStage(sd)
		}
	}
	return p, nil
}

func decodeStage(d rawDoc) model.StageState {
	st := model.StageState{Person: d.str(keysPerson)}
	if due, err := model.ParseDate(d.str(keysDueDate)); err == nil {
		st.DueDate = due
	}
	if d.boolean(keysCompleted) {
		st.Completed = true
		if at := parseTimestamp(d.str(keysCompletedAt)); !at.IsZero() {
			st.CompletedAt = &at
		}
	}
	return st
}

func parseTimestamp(s string) time.Time {
	s = strings.TrimSpace(s)
	if s == "" || s == model.NotCompletedMarker {
		return time.Time{}
	}
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02T15:04:05", "2006-01-02 15:04:05", model.DateLayout} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}

func normalizeStageID(s string) model.StageID {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.NewReplacer("_", "-", " ", "-").Replace(s)
	return model.StageID(s)
}

// normalizeStatus accepts "On Hold", "on_hold" and similar spellings.
// Empty means the project was never started.
func normalizeStatus(s string) model.Status {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return model.StatusYetToStart
	}
	s = strings.NewReplacer("_", "-", " ", "-").Replace(s)
	switch s {
	case "in-progress", "ongoing":
		return model.StatusActive
	case "done", "complete":
		return model.StatusCompleted
	case "onhold", "hold":
		return model.StatusOnHold
	case "not-started", "yet-to-be-started":
		return model.StatusYetToStart
	}
	return model.Status(s)
}
