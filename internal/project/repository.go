package project

import (
	"context"
	"sync"

	"projecttracker/internal/apperrors"
	"projecttracker/internal/model"
)

// Repository persists whole project records. Writes are last-writer-wins.
type Repository interface {
	List(ctx context.Context) ([]model.Project, error)
	Upsert(ctx context.Context, p model.Project) error
	Delete(ctx context.Context, id string) error
}

// MemoryRepository is the in-process Repository used when no database is
// configured.
type MemoryRepository struct {
	mu       sync.RWMutex
	projects map[string]model.Project
}

func NewMemoryRepository(seed ...model.Project) *MemoryRepository {
	r := &MemoryRepository{projects: make(map[string]model.Project, len(seed))}
	for _, p := range seed {
		r.projects[p.ID] = p.Clone()
	}
	return r
}

func (r *MemoryRepository) List(ctx context.Context) ([]model.Project, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]model.Project, 0, len(r.projects))
	for _, p := range r.projects {
		out = append(out, p.Clone())
	}
	sortNewestFirst(out)
	return out, nil
}

func (r *MemoryRepository) Upsert(ctx context.Context, p model.Project) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.projects[p.ID] = p.Clone()
	return nil
}

func (r *MemoryRepository) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.projects[id]; !ok {
		return apperrors.ProjectNotFound(id)
	}
	delete(r.projects, id)
	return nil
}
