// Package hook is the interception boundary between a host service and the
// chaos engine: an ordered list of pre-call hooks, keyed by service, that the
// host runs before every real operation.
package hook

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// ErrAlreadyInstalled is returned when a hook name is appended twice for the
// same service.
var ErrAlreadyInstalled = errors.New("hook already installed")

// Func runs before operation op of service. A non-nil error aborts the
// operation and is returned to its caller.
type Func func(ctx context.Context, service, op string) error

type entry struct {
	name    string
	service string
	fn      Func
}

// Registry holds pre-call hooks in the order they were appended.
type Registry struct {
	mu    sync.RWMutex
	hooks []entry
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Append adds fn under name for service.
func (r *Registry) Append(name, service string, fn Func) error {
	if name == "" || service == "" {
		return errors.New("hook name and service are required")
	}
	if fn == nil {
		return fmt.Errorf("hook %q: func cannot be nil", name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for _, h := range r.hooks {
		if h.name == name && h.service == service {
			return fmt.Errorf("%w: %q for service %q", ErrAlreadyInstalled, name, service)
		}
	}
	r.hooks = append(r.hooks, entry{name: name, service: service, fn: fn})
	return nil
}

// Remove deletes the hook registered under name for service.
func (r *Registry) Remove(name, service string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i, h := range r.hooks {
		if h.name == name && h.service == service {
			r.hooks = append(r.hooks[:i], r.hooks[i+1:]...)
			return true
		}
	}
	return false
}

// Has reports whether name is registered for service.
func (r *Registry) Has(name, service string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, h := range r.hooks {
		if h.name == name && h.service == service {
			return true
		}
	}
	return false
}

// Len returns the number of hooks for service.
func (r *Registry) Len(service string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n := 0
	for _, h := range r.hooks {
		if h.service == service {
			n++
		}
	}
	return n
}

// Call runs the hooks for service in order and stops at the first error.
func (r *Registry) Call(ctx context.Context, service, op string) error {
	r.mu.RLock()
	hooks := make([]entry, 0, len(r.hooks))
	for _, h := range r.hooks {
		if h.service == service {
			hooks = append(hooks, h)
		}
	}
	r.mu.RUnlock()

	for _, h := range hooks {
		if err := h.fn(ctx, service, op); err != nil {
			return err
		}
	}
	return nil
}
