package datastore

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"
)

// MemoryStore is a thread-safe in-memory Store.
type MemoryStore struct {
	mu       sync.RWMutex
	entities map[string]*Entity
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entities: make(map[string]*Entity)}
}

// Get implements Store.
func (s *MemoryStore) Get(_ context.Context, key string) (*Entity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entities[key]
	if !ok {
		return nil, ErrNoSuchEntity
	}
	return e.Clone(), nil
}

// Put implements Store.
func (s *MemoryStore) Put(_ context.Context, e *Entity) (string, error) {
	if err := validate(e); err != nil {
		return "", err
	}
	stored := e.Clone()
	if stored.Key == "" {
		stored.Key = uuid.NewString()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.entities[stored.Key] = stored
	return stored.Key, nil
}

// Delete implements Store.
func (s *MemoryStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.entities[key]; !ok {
		return ErrNoSuchEntity
	}
	delete(s.entities, key)
	return nil
}

// List implements Store.
func (s *MemoryStore) List(_ context.Context, kind string) ([]*Entity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*Entity, 0, len(s.entities))
	for _, e := range s.entities {
		if e.Kind == kind {
			result = append(result, e.Clone())
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Key < result[j].Key })
	return result, nil
}

// Close implements Store.
func (s *MemoryStore) Close() error { return nil }

var _ Store = (*MemoryStore)(nil)
