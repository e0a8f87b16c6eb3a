package chaos

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/getmockd/chaoskit/pkg/policy"
)

// ErrorFactory builds the error injected for op.
type ErrorFactory func(op policy.OperationKind) error

// Resolver turns an error label from a policy into an ErrorFactory. Resolve
// returns *UnresolvableEffectError for a label it does not know.
type Resolver interface {
	Resolve(label string) (ErrorFactory, error)
}

// ResolverFunc adapts a function to Resolver.
type ResolverFunc func(label string) (ErrorFactory, error)

func (f ResolverFunc) Resolve(label string) (ErrorFactory, error) {
	return f(label)
}

// Registry is a Resolver backed by an explicit allow-list of labels. It is
// safe for concurrent use; registration normally happens once at startup.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]ErrorFactory
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]ErrorFactory)}
}

// Register adds a factory under label. Labels are case-sensitive and may only
// be registered once.
func (r *Registry) Register(label string, factory ErrorFactory) error {
	if label == "" {
		return errors.New("error label cannot be empty")
	}
	if factory == nil {
		return fmt.Errorf("error label %q: factory cannot be nil", label)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.factories[label]; exists {
		return fmt.Errorf("error label %q already registered", label)
	}
	r.factories[label] = factory
	return nil
}

// MustRegister is like Register but panics on error.
func (r *Registry) MustRegister(label string, factory ErrorFactory) {
	if err := r.Register(label, factory); err != nil {
		panic(err)
	}
}

// Alias registers alias as another name for an existing label.
func (r *Registry) Alias(alias, label string) error {
	factory, err := r.Resolve(label)
	if err != nil {
		return err
	}
	return r.Register(alias, factory)
}

// Resolve implements Resolver.
func (r *Registry) Resolve(label string) (ErrorFactory, error) {
	r.mu.RLock()
	factory, ok := r.factories[label]
	r.mu.RUnlock()
	if !ok {
		return nil, &UnresolvableEffectError{Label: label}
	}
	return factory, nil
}

// Check reports whether label is registered. Pass it to policy.WithLabelCheck
// to reject unknown labels when a policy is loaded.
func (r *Registry) Check(label string) error {
	_, err := r.Resolve(label)
	return err
}

// Labels returns the registered labels in sorted order.
func (r *Registry) Labels() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	labels := make([]string, 0, len(r.factories))
	for l := range r.factories {
		labels = append(labels, l)
	}
	sort.Strings(labels)
	return labels
}
