package mailqueue

import (
	"context"
	"sync"
	"time"

	"projecttracker/internal/mail"
)

type Status string

const (
	StatusQueued     Status = "queued"
	StatusProcessing Status = "processing"
	StatusSent       Status = "sent"
	StatusFailed     Status = "failed"
)

// Item is one row of the outgoing mail queue.
type Item struct {
	ID        int64
	DedupKey  string
	Message   mail.Message
	Status    Status
	Provider  string
	MessageID string
	LastError string
	CreatedAt time.Time
	ClaimedAt *time.Time
	SentAt    *time.Time
}

// Queue moves items queued → processing → sent or failed. Failed items stay
// failed. The only way back to queued is RequeueStale, for items whose worker
// died between claiming and marking them.
type Queue interface {
	// Enqueue reports false when dedupKey was already used.
	Enqueue(ctx context.Context, msg mail.Message, dedupKey string) (bool, error)
	ClaimQueued(ctx context.Context, limit int) ([]Item, error)
	MarkSent(ctx context.Context, id int64, res mail.Result) error
	MarkFailed(ctx context.Context, id int64, reason string) error
	// RequeueStale returns items claimed more than olderThan ago to queued.
	RequeueStale(ctx context.Context, olderThan time.Duration) (int, error)
}

type MemoryQueue struct {
	mu     sync.Mutex
	nextID int64
	items  []*Item
	keys   map[string]struct{}
	now    func() time.Time
}

func NewMemoryQueue() *MemoryQueue {
	return &MemoryQueue{keys: make(map[string]struct{}), now: time.Now}
}

func (q *MemoryQueue) Enqueue(ctx context.Context, msg mail.Message, dedupKey string) (bool, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if dedupKey != "" {
		if _, seen := q.keys[dedupKey]; seen {
			return false, nil
		}
		q.keys[dedupKey] = struct{}{}
	}
	q.nextID++
	q.items = append(q.items, &Item{
		ID:        q.nextID,
		DedupKey:  dedupKey,
		Message:   msg,
		Status:    StatusQueued,
		CreatedAt: q.now().UTC(),
	})
	return true, nil
}

func (q *MemoryQueue) ClaimQueued(ctx context.Context, limit int) ([]Item, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	var out []Item
	for _, it := range q.items {
		if len(out) >= limit {
			break
		}
		if it.Status == StatusQueued {
			at := q.now().UTC()
			it.Status = StatusProcessing
			it.ClaimedAt = &at
			out = append(out, *it)
		}
	}
	return out, nil
}

func (q *MemoryQueue) RequeueStale(ctx context.Context, olderThan time.Duration) (int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	cutoff := q.now().UTC().Add(-olderThan)
	n := 0
	for _, it := range q.items {
		if it.Status == StatusProcessing && it.ClaimedAt != nil && it.ClaimedAt.Before(cutoff) {
			it.Status = StatusQueued
			it.ClaimedAt = nil
			n++
		}
	}
	return n, nil
}

func (q *MemoryQueue) MarkSent(ctx context.Context, id int64, res mail.Result) error {
	return q.update(id, func(it *Item) {
		at := q.now().UTC()
		it.Status = StatusSent
		it.Provider = res.Provider
		it.MessageID = res.MessageID
		it.SentAt = &at
	})
}

func (q *MemoryQueue) MarkFailed(ctx context.Context, id int64, reason string) error {
	return q.update(id, func(it *Item) {
		it.Status = StatusFailed
		it.LastError = reason
	})
}

func (q *MemoryQueue) update(id int64, fn func(*Item)) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, it := range q.items {
		if it.ID == id {
			fn(it)
			return nil
		}
	}
	return nil
}

// Items returns a copy of every item, oldest first.
func (q *MemoryQueue) Items() []Item {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]Item, 0, len(q.items))
	for _, it := range q.items {
		out = append(out, *it)
	}
	return out
}
