package chaos

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/getmockd/chaoskit/pkg/chance"
	"github.com/getmockd/chaoskit/pkg/choice"
	"github.com/getmockd/chaoskit/pkg/policy"
)

// Sleeper blocks the caller for an injected delay.
type Sleeper interface {
	// Sleep returns nil after d, or ctx.Err() if ctx ends first.
	Sleep(ctx context.Context, d time.Duration) error
}

// SleeperFunc adapts a function to Sleeper.
type SleeperFunc func(ctx context.Context, d time.Duration) error

func (f SleeperFunc) Sleep(ctx context.Context, d time.Duration) error {
	return f(ctx, d)
}

// TimerSleeper waits on a timer and honors cancellation of ctx.
var TimerSleeper Sleeper = SleeperFunc(func(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
})

// NoSleep returns immediately. Decisions are still made and counted.
var NoSleep Sleeper = SleeperFunc(func(context.Context, time.Duration) error { return nil })

// ErrorEffect evaluates an error policy.
type ErrorEffect struct {
	Source   chance.Source
	Resolver Resolver
}

// Evaluate rolls p once. It returns a nil error when the roll misses; otherwise
// a *Fault and, when one was sampled, the label that produced it.
func (e ErrorEffect) Evaluate(op policy.OperationKind, p *policy.Policy[string]) (label string, err error) {
	if p.IsInert() || !chance.Roll(e.Source, p.Rate) {
		return "", nil
	}
	if p.Choices.Empty() {
		return "", &Fault{Op: op, Err: ErrInjectedFault}
	}

	label, err = p.Choices.Next(e.Source)
	if err != nil {
		return "", &Fault{Op: op, Err: samplerErr(err)}
	}

	factory, err := e.Resolver.Resolve(label)
	if err != nil {
		return label, &Fault{Op: op, Label: label, Err: err}
	}
	injected := factory(op)
	if injected == nil {
		injected = ErrInjectedFault
	}
	return label, &Fault{Op: op, Label: label, Err: injected}
}

// Execute is Evaluate without the label.
func (e ErrorEffect) Execute(op policy.OperationKind, p *policy.Policy[string]) error {
	_, err := e.Evaluate(op, p)
	return err
}

// LatencyEffect evaluates a latency policy and blocks for the result.
type LatencyEffect struct {
	Source  chance.Source
	Sleeper Sleeper
}

// Evaluate rolls p once. fired is false when the roll misses or the policy has
// no latency to apply.
func (e LatencyEffect) Evaluate(op policy.OperationKind, p *policy.Policy[policy.LatencySpec]) (delay time.Duration, fired bool, err error) {
	if p.IsInert() || !chance.Roll(e.Source, p.Rate) {
		return 0, false, nil
	}
	if p.Choices.Empty() {
		return 0, false, nil
	}

	spec, err := p.Choices.Next(e.Source)
	if err != nil {
		return 0, false, &Fault{Op: op, Err: samplerErr(err)}
	}
	delay, err = spec.Duration(e.Source)
	if err != nil {
		return 0, false, &policy.ConfigurationError{
			Path:   string(policy.CategoryLatencies) + "." + string(op),
			Reason: "invalid latency " + spec.String(),
			Err:    err,
		}
	}
	return delay, true, nil
}

// Execute evaluates p and blocks for the chosen delay.
func (e LatencyEffect) Execute(ctx context.Context, op policy.OperationKind, p *policy.Policy[policy.LatencySpec]) error {
	delay, fired, err := e.Evaluate(op, p)
	if err != nil || !fired {
		return err
	}
	return e.Stall(ctx, delay)
}

// Stall blocks for d using the configured Sleeper.
func (e LatencyEffect) Stall(ctx context.Context, d time.Duration) error {
	sleeper := e.Sleeper
	if sleeper == nil {
		sleeper = TimerSleeper
	}
	return sleeper.Sleep(ctx, d)
}

func samplerErr(err error) error {
	if errors.Is(err, choice.ErrNoPositiveWeight) {
		return fmt.Errorf("%w: %w", ErrSamplerPrecondition, err)
	}
	return err
}
