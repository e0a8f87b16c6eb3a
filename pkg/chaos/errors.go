package chaos

import (
	"errors"
	"fmt"

	"github.com/getmockd/chaoskit/pkg/policy"
)

var (
	// ErrInjectedFault is returned when an error policy fires without any
	// configured errors to choose from.
	ErrInjectedFault = errors.New("chaos: injected fault")

	// ErrSamplerPrecondition is returned when a policy fires but every weight in
	// its distribution is zero. It wraps choice.ErrNoPositiveWeight.
	ErrSamplerPrecondition = errors.New("chaos: sampled a distribution with no positive weight")
)

// UnresolvableEffectError reports an error label the resolver does not know.
type UnresolvableEffectError struct {
	Label string
}

func (e *UnresolvableEffectError) Error() string {
	return fmt.Sprintf("chaos: no error registered for label %q", e.Label)
}

// Fault is the error Dispatch returns when the errors category fires. Err is
// the resolved error, or one of the package's own errors when resolution was
// not possible.
type Fault struct {
	Op    policy.OperationKind
	Label string
	Err   error
}

func (f *Fault) Error() string {
	if f.Label == "" {
		return fmt.Sprintf("chaos %s: %v", f.Op, f.Err)
	}
	return fmt.Sprintf("chaos %s [%s]: %v", f.Op, f.Label, f.Err)
}

func (f *Fault) Unwrap() error {
	return f.Err
}

// IsFault reports whether err was injected by a Dispatcher.
func IsFault(err error) bool {
	var f *Fault
	return errors.As(err, &f)
}
