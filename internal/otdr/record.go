package otdr

import (
	"math"

	"projecttracker/internal/model"
)

// Entry tracks one project's delivery of one stage.
type Entry struct {
	ProjectID     string      `json:"projectId"`
	ProjectName   string      `json:"projectName,omitempty"`
	DueDate       model.Date  `json:"dueDate"`
	Completed     bool        `json:"completed"`
	CompletedDate *model.Date `json:"completedDate"`
	OnTime        *bool       `json:"onTime"`
}

// Record is the per-stage on-time delivery aggregate.
type Record struct {
	StageName      model.StageID `json:"stageName"`
	Entries        []Entry       `json:"entries"`
	TotalProjects  int           `json:"totalProjects"`
	OnTimeProjects int           `json:"onTimeProjects"`
	OTDR           float64       `json:"otdr"`
}

func NewRecord(stageName model.StageID) *Record {
	return &Record{StageName: stageName, Entries: []Entry{}}
}

// Event is a single stage-completion toggle.
type Event struct {
	ProjectID     string        `json:"projectId"`
	ProjectName   string        `json:"projectName"`
	Stage         model.StageID `json:"stageName"`
	DueDate       model.Date    `json:"dueDate"`
	Completed     bool          `json:"completed"`
	CompletedDate model.Date    `json:"completedDate"`
}

// Apply folds a toggle into the record. It returns false when the event was
// ignored: an unknown project whose stage has no due date.
//
// OnTime is set whenever a completed event carries a completion date, including
// the event that creates the entry. Older records left it null on creation and
// only filled it on a later toggle. A completed event without a date clears
// both fields; Service.RecordStageEvent stamps today before calling Apply.
func (r *Record) Apply(ev Event) bool {
	i := r.find(ev.ProjectID)
	if i < 0 {
		if ev.DueDate.IsZero() {
			return false
		}
		r.Entries = append(r.Entries, Entry{
			ProjectID:   ev.ProjectID,
			ProjectName: ev.ProjectName,
			DueDate:     ev.DueDate,
		})
		i = len(r.Entries) - 1
	}

	e := &r.Entries[i]
	if ev.ProjectName != "" {
		e.ProjectName = ev.ProjectName
	}
	if !ev.DueDate.IsZero() {
		e.DueDate = ev.DueDate
	}
	e.Completed = ev.Completed
	if ev.Completed && !ev.CompletedDate.IsZero() {
		done := ev.CompletedDate
		onTime := !done.After(e.DueDate)
		e.CompletedDate = &done
		e.OnTime = &onTime
	} else {
		e.CompletedDate = nil
		e.OnTime = nil
	}

	r.recompute()
	return true
}

// Reset empties the record.
func (r *Record) Reset() {
	r.Entries = []Entry{}
	r.recompute()
}

func (r *Record) find(projectID string) int {
	for i := range r.Entries {
		if r.Entries[i].ProjectID == projectID {
			return i
		}
	}
	return -1
}

func (r *Record) recompute() {
	onTime := 0
	for _, e := range r.Entries {
		if e.OnTime != nil && *e.OnTime {
			onTime++
		}
	}
	r.TotalProjects = len(r.Entries)
	r.OnTimeProjects = onTime
	r.OTDR = Percentage(onTime, r.TotalProjects)
}

// Percentage is onTime/total*100 rounded to one decimal, 0 when total is 0.
func Percentage(onTime, total int) float64 {
	if total <= 0 {
		return 0
	}
	return math.Round(float64(onTime)*1000/float64(total)) / 10
}

// Stat is the read-side summary of a Record.
type Stat struct {
	StageName      model.StageID `json:"stageName"`
	Label          string        `json:"label"`
	OTDR           float64       `json:"otdr"`
	OnTimeProjects int           `json:"onTimeProjects"`
	TotalProjects  int           `json:"totalProjects"`
}
