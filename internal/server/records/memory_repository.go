package records

import (
	"context"
	"sort"
	"sync"
)

type MemoryRepository struct {
	mu      sync.RWMutex
	entries map[string]*Entry
	creates map[string]string
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		entries: make(map[string]*Entry),
		creates: make(map[string]string),
	}
}

func (r *MemoryRepository) Get(ctx context.Context, id string) (*Entry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[id]
	if !ok {
		return nil, nil
	}
	return e.clone(), nil
}

func (r *MemoryRepository) Put(ctx context.Context, e *Entry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[e.ID] = e.clone()
	return nil
}

func (r *MemoryRepository) ChangedSince(ctx context.Context, from, to int64) ([]*Entry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*Entry
	for _, e := range r.entries {
		if e.ChangedAt > from && e.ChangedAt <= to {
			out = append(out, e.clone())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].ChangedAt != out[j].ChangedAt {
			return out[i].ChangedAt < out[j].ChangedAt
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func createKey(deviceID, recordID string) string {
	return deviceID + "/" + recordID
}

func (r *MemoryRepository) CreatedBy(ctx context.Context, deviceID, recordID string) (string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.creates[createKey(deviceID, recordID)], nil
}

func (r *MemoryRepository) RememberCreate(ctx context.Context, deviceID, recordID, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.creates[createKey(deviceID, recordID)] = id
	return nil
}
