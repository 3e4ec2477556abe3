package persistence

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryStore keeps drafts in a map
type MemoryStore struct {
	mu     sync.RWMutex
	drafts map[string]Draft
	now    Clock
}

// NewMemoryStore creates an empty store. A nil clock uses time.Now.
func NewMemoryStore(now Clock) *MemoryStore {
	if now == nil {
		now = time.Now
	}
	return &MemoryStore{drafts: make(map[string]Draft), now: now}
}

func (s *MemoryStore) Save(_ context.Context, d Draft) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.drafts[d.Key] = stamp(d, s.now)
	return nil
}

func (s *MemoryStore) Load(_ context.Context, key string) (Draft, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.drafts[key]
	if !ok {
		return Draft{}, ErrNotFound
	}
	return d, nil
}

func (s *MemoryStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.drafts, key)
	return nil
}

func (s *MemoryStore) ListAll(_ context.Context) ([]Draft, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Draft, 0, len(s.drafts))
	for _, d := range s.drafts {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

func (s *MemoryStore) PurgeOlderThan(_ context.Context, maxAge time.Duration) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cutoff := s.now().Add(-maxAge)
	n := 0
	for k, d := range s.drafts {
		if d.SavedAt.Before(cutoff) {
			delete(s.drafts, k)
			n++
		}
	}
	return n, nil
}
