package datastore

import (
	"context"

	"github.com/getmockd/chaoskit/pkg/hook"
	"github.com/getmockd/chaoskit/pkg/policy"
)

// Service is the hook service name for datastore calls.
const Service = "datastore"

// OpRunQuery is the name List reports to hooks. It is not a tracked
// operation, so chaos never touches it.
const OpRunQuery = "RUNQUERY"

// GuardedStore runs the Service hooks before each call to the wrapped Store.
type GuardedStore struct {
	store Store
	hooks *hook.Registry
}

// Guard wraps store so every call passes through hooks first.
func Guard(store Store, hooks *hook.Registry) *GuardedStore {
	return &GuardedStore{store: store, hooks: hooks}
}

func (g *GuardedStore) before(ctx context.Context, op string) error {
	return g.hooks.Call(ctx, Service, op)
}

// Get implements Store.
func (g *GuardedStore) Get(ctx context.Context, key string) (*Entity, error) {
	if err := g.before(ctx, string(policy.OpGet)); err != nil {
		return nil, err
	}
	return g.store.Get(ctx, key)
}

// Put implements Store.
func (g *GuardedStore) Put(ctx context.Context, e *Entity) (string, error) {
	if err := g.before(ctx, string(policy.OpPut)); err != nil {
		return "", err
	}
	return g.store.Put(ctx, e)
}

// Delete implements Store.
func (g *GuardedStore) Delete(ctx context.Context, key string) error {
	if err := g.before(ctx, string(policy.OpDelete)); err != nil {
		return err
	}
	return g.store.Delete(ctx, key)
}

// List implements Store.
func (g *GuardedStore) List(ctx context.Context, kind string) ([]*Entity, error) {
	if err := g.before(ctx, OpRunQuery); err != nil {
		return nil, err
	}
	return g.store.List(ctx, kind)
}

// Close closes the wrapped store.
func (g *GuardedStore) Close() error {
	return g.store.Close()
}

var _ Store = (*GuardedStore)(nil)
