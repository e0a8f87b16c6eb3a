package hook

import (
	"context"
	"sync"
)

// DefaultName is the hook name used by Install.
const DefaultName = "chaoskit"

// Dispatcher is the part of chaos.Dispatcher the hook needs.
type Dispatcher interface {
	Dispatch(ctx context.Context, op string) error
}

// Installation is the handle returned by Install. The host owns it for the
// lifetime of the process.
type Installation struct {
	registry *Registry
	name     string
	service  string

	once sync.Once
}

// InstallOption configures Install.
type InstallOption func(*Installation)

// WithName installs under name instead of DefaultName.
func WithName(name string) InstallOption {
	return func(i *Installation) {
		if name != "" {
			i.name = name
		}
	}
}

// Install appends a hook that sends every operation of service through d.
// Installing a second time under the same name fails with ErrAlreadyInstalled.
func Install(r *Registry, service string, d Dispatcher, opts ...InstallOption) (*Installation, error) {
	inst := &Installation{registry: r, name: DefaultName, service: service}
	for _, opt := range opts {
		opt(inst)
	}

	fn := func(ctx context.Context, _ string, op string) error {
		return d.Dispatch(ctx, op)
	}
	if err := r.Append(inst.name, service, fn); err != nil {
		return nil, err
	}
	return inst, nil
}

// Name returns the hook name.
func (i *Installation) Name() string { return i.name }

// Service returns the hooked service.
func (i *Installation) Service() string { return i.service }

// Uninstall removes the hook. It is safe to call more than once.
func (i *Installation) Uninstall() {
	i.once.Do(func() {
		i.registry.Remove(i.name, i.service)
	})
}
