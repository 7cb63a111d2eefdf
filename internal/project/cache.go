package project

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"projecttracker/internal/apperrors"
	"projecttracker/internal/model"
	"projecttracker/internal/stage"
)

// Cache owns the in-memory snapshot of all projects. Every record it hands
// out has been through Engine.Derive and is a private copy.
type Cache struct {
	repo   Repository
	engine *stage.Engine
	ttl    time.Duration
	now    func() time.Time
	logger *zap.Logger

	mu       sync.RWMutex
	projects []model.Project
	loadedAt time.Time
	valid    bool
}

// NewCache builds an empty cache. A zero ttl keeps the snapshot until it is
// invalidated.
func NewCache(repo Repository, engine *stage.Engine, ttl time.Duration, logger *zap.Logger) *Cache {
	return &Cache{
		repo:   repo,
		engine: engine,
		ttl:    ttl,
		now:    time.Now,
		logger: logger,
	}
}

// Snapshot returns the cached projects, loading them first if needed.
func (c *Cache) Snapshot(ctx context.Context) ([]model.Project, error) {
	c.mu.RLock()
	if c.fresh() {
		out := cloneAll(c.projects)
		c.mu.RUnlock()
		return out, nil
	}
	c.mu.RUnlock()
	return c.Refresh(ctx)
}

// fresh must be called with mu held.
func (c *Cache) fresh() bool {
	if !c.valid {
		return false
	}
	return c.ttl <= 0 || c.now().Sub(c.loadedAt) < c.ttl
}

// Refresh reloads from the repository and derives every record.
func (c *Cache) Refresh(ctx context.Context) ([]model.Project, error) {
	projects, err := c.repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("refresh project cache: %w", err)
	}
	for i := range projects {
		c.engine.Derive(&projects[i])
	}
	sortNewestFirst(projects)

	c.mu.Lock()
	c.projects = projects
	c.loadedAt = c.now()
	c.valid = true
	out := cloneAll(c.projects)
	c.mu.Unlock()

	c.logger.Debug("Project cache refreshed", zap.Int("projects", len(projects)))
	return out, nil
}

func (c *Cache) Invalidate() {
	c.mu.Lock()
	c.valid = false
	c.mu.Unlock()
}

// Find returns one project from the snapshot.
func (c *Cache) Find(ctx context.Context, id string) (model.Project, error) {
	projects, err := c.Snapshot(ctx)
	if err != nil {
		return model.Project{}, err
	}
	for _, p := range projects {
		if p.ID == id {
			return p, nil
		}
	}
	return model.Project{}, apperrors.ProjectNotFound(id)
}

// Put replaces or inserts p. It is a no-op on an unloaded cache; the next
// Snapshot reads p back from the repository.
func (c *Cache) Put(p model.Project) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.valid {
		return
	}
	p = p.Clone()
	for i := range c.projects {
		if c.projects[i].ID == p.ID {
			c.projects[i] = p
			return
		}
	}
	c.projects = append(c.projects, p)
	sortNewestFirst(c.projects)
}

func (c *Cache) Remove(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := range c.projects {
		if c.projects[i].ID == id {
			c.projects = append(c.projects[:i], c.projects[i+1:]...)
			return
		}
	}
}

func cloneAll(in []model.Project) []model.Project {
	out := make([]model.Project, len(in))
	for i := range in {
		out[i] = in[i].Clone()
	}
	return out
}

func sortNewestFirst(projects []model.Project) {
	sort.SliceStable(projects, func(i, j int) bool {
		return projects[i].CreatedAt.After(projects[j].CreatedAt)
	})
}
