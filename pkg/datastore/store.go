package datastore

import (
	"context"
	"errors"
	"maps"
)

// ErrNoSuchEntity is returned by Get and Delete for a key that is not stored.
var ErrNoSuchEntity = errors.New("datastore: no such entity")

// Entity is a stored record.
type Entity struct {
	Key        string            `json:"key"`
	Kind       string            `json:"kind"`
	Parent     string            `json:"parent,omitempty"`
	Properties map[string]string `json:"properties,omitempty"`
}

// Clone returns a deep copy of e.
func (e *Entity) Clone() *Entity {
	if e == nil {
		return nil
	}
	c := *e
	c.Properties = maps.Clone(e.Properties)
	return &c
}

// Store persists entities.
type Store interface {
	// Get returns the entity stored under key, or ErrNoSuchEntity.
	Get(ctx context.Context, key string) (*Entity, error)
	// Put stores e and returns its key. An empty key is allocated.
	Put(ctx context.Context, e *Entity) (string, error)
	// Delete removes key, or returns ErrNoSuchEntity.
	Delete(ctx context.Context, key string) error
	// List returns the entities of kind ordered by key.
	List(ctx context.Context, kind string) ([]*Entity, error)
	// Close releases backend resources.
	Close() error
}

func validate(e *Entity) error {
	if e == nil {
		return badValue("entity is nil")
	}
	if e.Kind == "" {
		return badValue("entity kind is required")
	}
	return nil
}
