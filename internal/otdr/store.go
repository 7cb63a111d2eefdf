package otdr

import (
	"context"
	"sort"
	"sync"

	"projecttracker/internal/model"
)

// Store persists OTDR records. Update must treat a missing record as empty.
type Store interface {
	Update(ctx context.Context, stageName model.StageID, fn func(*Record) error) (*Record, error)
	Get(ctx context.Context, stageName model.StageID) (*Record, error)
	List(ctx context.Context) ([]*Record, error)
	ResetAll(ctx context.Context, stages []model.StageID) error
}

// MemoryStore keeps records in process. Used by tests and local runs without
// a database.
type MemoryStore struct {
	mu      sync.Mutex
	records map[model.StageID]*Record
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[model.StageID]*Record)}
}

func (s *MemoryStore) Update(ctx context.Context, stageName model.StageID, fn func(*Record) error) (*Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec := cloneRecord(s.records[stageName])
	if rec == nil {
		rec = NewRecord(stageName)
	}
	if err := fn(rec); err != nil {
		return nil, err
	}
	s.records[stageName] = rec
	return cloneRecord(rec), nil
}

func (s *MemoryStore) Get(ctx context.Context, stageName model.StageID) (*Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if rec, ok := s.records[stageName]; ok {
		return cloneRecord(rec), nil
	}
	return NewRecord(stageName), nil
}

func (s *MemoryStore) List(ctx context.Context) ([]*Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*Record, 0, len(s.records))
	for _, rec := range s.records {
		out = append(out, cloneRecord(rec))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StageName < out[j].StageName })
	return out, nil
}

func (s *MemoryStore) ResetAll(ctx context.Context, stages []model.StageID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = make(map[model.StageID]*Record, len(stages))
	for _, id := range stages {
		s.records[id] = NewRecord(id)
	}
	return nil
}

func cloneRecord(r *Record) *Record {
	if r == nil {
		return nil
	}
	out := *r
	out.Entries = make([]Entry, len(r.Entries))
	copy(out.Entries, r.Entries)
	return &out
}
