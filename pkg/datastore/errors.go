package datastore

import (
	"errors"
	"fmt"

	"github.com/getmockd/chaoskit/pkg/chaos"
	"github.com/getmockd/chaoskit/pkg/policy"
)

// Datastore failure kinds. Injected faults and real validation failures share
// them so callers handle both the same way.
var (
	ErrBadValue       = errors.New("datastore: bad value")
	ErrBadRequest     = errors.New("datastore: bad request")
	ErrEntityNotFound = errors.New("datastore: entity not found")
	ErrInternal       = errors.New("datastore: internal error")
	ErrTimeout        = errors.New("datastore: timeout")
)

// Error labels accepted in policy documents.
const (
	LabelBadValue       = "BadValueError"
	LabelBadRequest     = "BadRequestError"
	LabelEntityNotFound = "EntityNotFoundError"
	LabelInternal       = "InternalError"
	LabelTimeout        = "Timeout"
)

// OpError is a failure of one datastore operation.
type OpError struct {
	Op  policy.OperationKind
	Err error
}

func (e *OpError) Error() string {
	return fmt.Sprintf("%v during %s", e.Err, e.Op)
}

func (e *OpError) Unwrap() error {
	return e.Err
}

// IsRetryable reports whether err is a transient failure worth retrying.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrTimeout) || errors.Is(err, ErrInternal)
}

func badValue(msg string) error {
	return fmt.Errorf("%w: %s", ErrBadValue, msg)
}

func factory(kind error) chaos.ErrorFactory {
	return func(op policy.OperationKind) error {
		return &OpError{Op: op, Err: kind}
	}
}

// DefaultRegistry returns a resolver for the datastore error labels.
// "TimeoutError" is accepted as an alias of "Timeout".
func DefaultRegistry() *chaos.Registry {
	r := chaos.NewRegistry()
	r.MustRegister(LabelBadValue, factory(ErrBadValue))
	r.MustRegister(LabelBadRequest, factory(ErrBadRequest))
	r.MustRegister(LabelEntityNotFound, factory(ErrEntityNotFound))
	r.MustRegister(LabelInternal, factory(ErrInternal))
	r.MustRegister(LabelTimeout, factory(ErrTimeout))
	if err := r.Alias("TimeoutError", LabelTimeout); err != nil {
		panic(err)
	}
	return r
}
