package chaos

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/getmockd/chaoskit/pkg/chance"
	"github.com/getmockd/chaoskit/pkg/logging"
	"github.com/getmockd/chaoskit/pkg/policy"
)

const instrumentationName = "github.com/getmockd/chaoskit/pkg/chaos"

// Recorder receives dispatch outcomes, typically to export them as metrics.
type Recorder interface {
	RecordDispatch(op, outcome string)
	RecordFault(op, label string)
	RecordDelay(op string, d time.Duration)
}

// Dispatcher evaluates operations against a ChaosConfig. It is safe for
// concurrent use.
type Dispatcher struct {
	config   atomic.Pointer[policy.ChaosConfig]
	src      chance.Source
	resolver Resolver
	sleeper  Sleeper
	logger   *slog.Logger
	recorder Recorder
	tracer   trace.Tracer
	stats    *statsTracker
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithSource sets the random source. Defaults to chance.Default().
func WithSource(src chance.Source) Option {
	return func(d *Dispatcher) {
		if src != nil {
			d.src = src
		}
	}
}

// WithResolver sets the resolver for error labels. Without one every label is
// unresolvable.
func WithResolver(r Resolver) Option {
	return func(d *Dispatcher) {
		if r != nil {
			d.resolver = r
		}
	}
}

// WithSleeper replaces TimerSleeper.
func WithSleeper(s Sleeper) Option {
	return func(d *Dispatcher) {
		if s != nil {
			d.sleeper = s
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(d *Dispatcher) {
		if logger != nil {
			d.logger = logger
		}
	}
}

// WithRecorder reports every dispatch to r.
func WithRecorder(r Recorder) Option {
	return func(d *Dispatcher) {
		d.recorder = r
	}
}

// WithTracer sets the tracer used for dispatch spans. Defaults to the global
// tracer provider.
func WithTracer(t trace.Tracer) Option {
	return func(d *Dispatcher) {
		if t != nil {
			d.tracer = t
		}
	}
}

// NewDispatcher creates a Dispatcher for cfg. A nil cfg is policy.Disabled().
func NewDispatcher(cfg *policy.ChaosConfig, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		src:      chance.Default(),
		resolver: NewRegistry(),
		sleeper:  TimerSleeper,
		logger:   logging.Nop(),
		tracer:   otel.Tracer(instrumentationName),
		stats:    newStatsTracker(),
	}
	for _, opt := range opts {
		opt(d)
	}
	d.SetConfig(cfg)
	return d
}

// SetConfig replaces the config. Dispatches already running finish against
// the config they started with.
func (d *Dispatcher) SetConfig(cfg *policy.ChaosConfig) {
	if cfg == nil {
		cfg = policy.Disabled()
	}
	d.config.Store(cfg)
}

// Config returns the current config.
func (d *Dispatcher) Config() *policy.ChaosConfig {
	return d.config.Load()
}

// Decide evaluates operation without blocking. Each enabled category rolls
// exactly once; an error ends evaluation before latencies are considered.
func (d *Dispatcher) Decide(operation string) Decision {
	cfg := d.config.Load()
	dec := Decision{Operation: operation, Outcome: OutcomeDisabled}
	if !cfg.Enabled {
		return dec
	}

	op, ok := policy.ParseOperation(operation)
	if !ok {
		d.logger.Debug("untracked operation, skipping", "operation", operation)
		dec.Outcome = OutcomeUntracked
		return dec
	}
	dec.Op = op
	dec.Outcome = OutcomePass

	errs := ErrorEffect{Source: d.src, Resolver: d.resolver}
	lat := LatencyEffect{Source: d.src, Sleeper: d.sleeper}

	for _, cat := range cfg.ActiveCategories() {
		switch cat {
		case policy.CategoryErrors:
			p, ok := cfg.Errors.For(op)
			if !ok {
				continue
			}
			label, err := errs.Evaluate(op, p)
			if err != nil {
				dec.Outcome = OutcomeError
				dec.Label = label
				dec.Err = err
				return dec
			}

		case policy.CategoryLatencies:
			p, ok := cfg.Latencies.For(op)
			if !ok {
				continue
			}
			delay, fired, err := lat.Evaluate(op, p)
			if err != nil {
				dec.Outcome = OutcomeError
				dec.Err = err
				return dec
			}
			if fired {
				dec.Outcome = OutcomeDelay
				dec.Delay = delay
			}
		}
	}
	return dec
}

// Dispatch is called by the host before running operation. A non-nil error
// means the real operation must not run and the error goes to its caller. An
// injected delay blocks here; if ctx ends during it, ctx.Err() is returned.
func (d *Dispatcher) Dispatch(ctx context.Context, operation string) error {
	ctx, span := d.tracer.Start(ctx, "chaos.Dispatch",
		trace.WithAttributes(attribute.String("chaos.operation", operation)))
	defer span.End()

	dec := d.Decide(operation)
	d.record(dec)
	span.SetAttributes(attribute.String("chaos.outcome", string(dec.Outcome)))

	switch dec.Outcome {
	case OutcomeError:
		span.SetAttributes(attribute.String("chaos.fault", dec.FaultLabel()))
		span.RecordError(dec.Err)
		span.SetStatus(codes.Error, "fault injected")
		d.logger.Info("injecting fault",
			"operation", operation, "op", dec.Op, "label", dec.FaultLabel(), "error", dec.Err)
		return dec.Err

	case OutcomeDelay:
		span.SetAttributes(attribute.Int64("chaos.delay_ms", dec.Delay.Milliseconds()))
		d.logger.Info("injecting latency", "operation", operation, "op", dec.Op, "delay", dec.Delay)
		if err := d.sleeper.Sleep(ctx, dec.Delay); err != nil {
			span.RecordError(err)
			return err
		}
	}
	return nil
}

// Stats returns a copy of the dispatch counters.
func (d *Dispatcher) Stats() Stats {
	return d.stats.snapshot()
}

// ResetStats zeroes the dispatch counters.
func (d *Dispatcher) ResetStats() {
	d.stats.reset()
}

func (d *Dispatcher) record(dec Decision) {
	d.stats.record(dec)
	if d.recorder == nil {
		return
	}
	op := string(dec.Op)
	if op == "" {
		op = "none"
	}
	d.recorder.RecordDispatch(op, string(dec.Outcome))
	switch dec.Outcome {
	case OutcomeError:
		d.recorder.RecordFault(op, dec.FaultLabel())
	case OutcomeDelay:
		d.recorder.RecordDelay(op, dec.Delay)
	}
}
