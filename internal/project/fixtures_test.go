package project

import (
	"context"
	"errors"
	"sync"
	"time"

	"projecttracker/internal/model"
)

var (
	jan = func(day int) model.Date { return model.NewDate(2025, time.January, day) }
	feb = func(day int) model.Date { return model.NewDate(2025, time.February, day) }

	testNow = time.Date(2025, time.January, 11, 10, 0, 0, 0, time.UTC)
)

// retrofit has three of the eight default stages in use; mechanical design
// is a day late.
func retrofit() model.Project {
	return model.Project{
		ID:           "p-retrofit",
		Name:         "Line 4 retrofit",
		Description:  "Conveyor upgrade",
		Status:       model.StatusActive,
		Assignee:     "Dana",
		ProjectType:  "Retrofit",
		BusinessUnit: "Automation",
		CreatedAt:    time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC),
		Stages: map[model.StageID]model.StageState{
			"mechanical-design": {Person: "Ari", DueDate: jan(10)},
			"manufacturing":     {Person: "Kim", DueDate: jan(20)},
			"assembly":          {Person: "Sam", DueDate: feb(1)},
			"wiring":            {DueDate: jan(15)},
		},
	}
}

func packaging() model.Project {
	return model.Project{
		ID:           "p-packaging",
		Name:         "Packaging cell",
		Description:  "Greenfield cell",
		Status:       model.StatusCompleted,
		Assignee:     "Lee",
		ProjectType:  "New build",
		BusinessUnit: "Packaging",
		CreatedAt:    time.Date(2025, 1, 5, 0, 0, 0, 0, time.UTC),
		Stages: map[model.StageID]model.StageState{
			"controls": {Person: "Jo", DueDate: jan(3), Completed: true},
		},
	}
}

type countingRepo struct {
	*MemoryRepository
	mu    sync.Mutex
	lists int
}

func (r *countingRepo) List(ctx context.Context) ([]model.Project, error) {
	r.mu.Lock()
	r.lists++
	r.mu.Unlock()
	return r.MemoryRepository.List(ctx)
}

type failingWrites struct {
	*MemoryRepository
}

var errDiskFull = errors.New("disk full")

func (failingWrites) Upsert(context.Context, model.Project) error { return errDiskFull }

type recordedPublish struct {
	routingKey string
	payload    any
}

type fakePublisher struct {
	mu    sync.Mutex
	sent  []recordedPublish
	fails bool
}

func (f *fakePublisher) PublishWithContext(_ context.Context, routingKey string, payload any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fails {
		return errors.New("channel closed")
	}
	f.sent = append(f.sent, recordedPublish{routingKey, payload})
	return nil
}
