// Package memory holds the in-process job store: a concurrent map of tracked
// jobs keyed by id. Durable persistence is an external collaborator behind
// the same interface.
package memory

import (
	"errors"
	"sort"
	"sync"

	"github.com/google/uuid"

	"reconstruction-service/internal/tracker"
)

var ErrNotFound = errors.New("not found")

type JobRepository struct {
	mu   sync.RWMutex
	jobs map[uuid.UUID]*tracker.Tracker
}

func NewJobRepository() *JobRepository {
	return &JobRepository{jobs: make(map[uuid.UUID]*tracker.Tracker)}
}

func (r *JobRepository) Put(t *tracker.Tracker) error {
	id, err := uuid.Parse(t.ID())
	if err != nil {
		return err
	}
	r.mu.Lock()
	r.jobs[id] = t
	r.mu.Unlock()
	return nil
}

func (r *JobRepository) Get(id uuid.UUID) (*tracker.Tracker, error) {
	r.mu.RLock()
	t, ok := r.jobs[id]
	r.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	return t, nil
}

// List returns trackers ordered by job creation time, newest first.
func (r *JobRepository) List() []*tracker.Tracker {
	r.mu.RLock()
	out := make([]*tracker.Tracker, 0, len(r.jobs))
	for _, t := range r.jobs {
		out = append(out, t)
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		return out[i].Snapshot().CreatedAt.After(out[j].Snapshot().CreatedAt)
	})
	return out
}

func (r *JobRepository) Delete(id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.jobs[id]; !ok {
		return ErrNotFound
	}
	delete(r.jobs, id)
	return nil
}
