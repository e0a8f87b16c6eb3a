package chaos

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/getmockd/chaoskit/pkg/chance"
	"github.com/getmockd/chaoskit/pkg/choice"
	"github.com/getmockd/chaoskit/pkg/policy"
)

var (
	errTimeout  = errors.New("deadline exceeded")
	errInternal = errors.New("internal error")
)

func testRegistry() *Registry {
	r := NewRegistry()
	r.MustRegister("TimeoutError", func(op policy.OperationKind) error {
		return fmt.Errorf("%s: %w", op, errTimeout)
	})
	r.MustRegister("InternalError", func(op policy.OperationKind) error {
		return fmt.Errorf("%s: %w", op, errInternal)
	})
	return r
}

func mustConfig(t *testing.T, doc string) *policy.ChaosConfig {
	t.Helper()
	d, err := policy.Parse([]byte(doc))
	require.NoError(t, err)
	cfg, err := policy.Hydrate(d)
	require.NoError(t, err)
	return cfg
}

type recordingSleeper struct {
	mu    sync.Mutex
	slept []time.Duration
}

func (s *recordingSleeper) Sleep(_ context.Context, d time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.slept = append(s.slept, d)
	return nil
}

func (s *recordingSleeper) calls() []time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]time.Duration(nil), s.slept...)
}

const writeErrors = `
enabled: true
errors:
  enabled: true
  WRITE: [{TimeoutError: 70, InternalError: 30}, 1.0]
`

func TestDispatch_WeightedErrors(t *testing.T) {
	d := NewDispatcher(mustConfig(t, writeErrors),
		WithResolver(testRegistry()),
		WithSource(chance.NewSource(42)),
	)

	const trials = 10000
	var timeouts, internals int
	for range trials {
		err := d.Dispatch(context.Background(), "WRITE")
		require.Error(t, err, "a rate of 1.0 never passes")
		require.True(t, IsFault(err))
		switch {
		case errors.Is(err, errTimeout):
			timeouts++
		case errors.Is(err, errInternal):
			internals++
		default:
			t.Fatalf("unexpected error %v", err)
		}
	}

	assert.InDelta(t, 0.7, float64(timeouts)/trials, 0.03)
	assert.InDelta(t, 0.3, float64(internals)/trials, 0.03)

	stats := d.Stats()
	assert.Equal(t, int64(trials), stats.ErrorsInjected)
	assert.Equal(t, int64(timeouts), stats.ErrorsByLabel["TimeoutError"])
	assert.Equal(t, int64(internals), stats.ErrorsByLabel["InternalError"])
}

func TestDispatch_FaultCarriesOperationAndLabel(t *testing.T) {
	src := chance.NewFixed(0).WithInts(75)
	d := NewDispatcher(mustConfig(t, writeErrors), WithResolver(testRegistry()), WithSource(src))

	err := d.Dispatch(context.Background(), "put")
	var f *Fault
	require.ErrorAs(t, err, &f)
	assert.Equal(t, policy.OpPut, f.Op)
	assert.Equal(t, "InternalError", f.Label)
	assert.ErrorIs(t, err, errInternal)
	assert.Equal(t, "chaos PUT [InternalError]: PUT: internal error", err.Error())
}

const getLatency = `
enabled: true
latencies:
  enabled: true
  GET: [[500, 1500], 1.0]
`

func TestDispatch_LatencyRange(t *testing.T) {
	sleeper := &recordingSleeper{}
	d := NewDispatcher(mustConfig(t, getLatency),
		WithSource(chance.NewSource(7)),
		WithSleeper(sleeper),
	)

	for range 500 {
		require.NoError(t, d.Dispatch(context.Background(), "GET"))
	}

	slept := sleeper.calls()
	require.Len(t, slept, 500)
	for _, s := range slept {
		assert.GreaterOrEqual(t, s, 500*time.Millisecond)
		assert.LessOrEqual(t, s, 1500*time.Millisecond)
	}
	assert.Equal(t, int64(500), d.Stats().DelaysInjected)
}

func TestDispatch_LatencyWallClock(t *testing.T) {
	if testing.Short() {
		t.Skip("sleeps for up to 1.5s")
	}
	d := NewDispatcher(mustConfig(t, getLatency), WithSource(chance.NewSource(1)))

	start := time.Now()
	require.NoError(t, d.Dispatch(context.Background(), "READ"))
	elapsed := time.Since(start)

	assert.GreaterOrEqual(t, elapsed, 500*time.Millisecond)
	assert.Less(t, elapsed, 2*time.Second)
}

func TestDispatch_RangeBoundsAreInclusive(t *testing.T) {
	cfg := mustConfig(t, getLatency)

	lo := NewDispatcher(cfg, WithSource(chance.NewFixed(0).WithInts(0, 0)))
	dec := lo.Decide("GET")
	assert.Equal(t, OutcomeDelay, dec.Outcome)
	assert.Equal(t, 500*time.Millisecond, dec.Delay)

	// The second draw picks the offset inside the 1,000,000,001ns-wide range.
	hi := NewDispatcher(cfg, WithSource(chance.NewFixed(0).WithInts(0, int64(time.Second))))
	dec = hi.Decide("GET")
	assert.Equal(t, 1500*time.Millisecond, dec.Delay)
}

const everything = `
enabled: false
errors:
  enabled: true
  GET: [{TimeoutError: 1}, 1.0]
  PUT: [{TimeoutError: 1}, 1.0]
  DELETE: [{TimeoutError: 1}, 1.0]
latencies:
  enabled: true
  GET: [1000, 1.0]
  PUT: [1000, 1.0]
  DELETE: [1000, 1.0]
`

func TestDispatch_RootDisabledIsNoop(t *testing.T) {
	src := chance.NewFixed(0)
	sleeper := &recordingSleeper{}
	d := NewDispatcher(mustConfig(t, everything),
		WithResolver(testRegistry()), WithSource(src), WithSleeper(sleeper))

	for _, op := range []string{"GET", "PUT", "DELETE", "READ", "WRITE"} {
		assert.NoError(t, d.Dispatch(context.Background(), op))
		assert.Equal(t, OutcomeDisabled, d.Decide(op).Outcome)
	}
	assert.Empty(t, sleeper.calls())
	assert.Zero(t, src.Calls, "no roll when disabled")
}

func TestDispatch_EmptyConfigIsNoop(t *testing.T) {
	src := chance.NewFixed(0)
	d := NewDispatcher(mustConfig(t, ""), WithSource(src))
	for _, op := range policy.Operations() {
		assert.NoError(t, d.Dispatch(context.Background(), string(op)))
	}
	assert.Zero(t, src.Calls)

	assert.NoError(t, NewDispatcher(nil).Dispatch(context.Background(), "GET"))
}

func TestDispatch_UntrackedOperation(t *testing.T) {
	cfg := mustConfig(t, `
enabled: true
errors:
  enabled: true
  GET: [{TimeoutError: 1}, 1.0]
latencies:
  enabled: true
  GET: [1000, 1.0]
`)
	src := chance.NewFixed(0)
	sleeper := &recordingSleeper{}
	d := NewDispatcher(cfg, WithResolver(testRegistry()), WithSource(src), WithSleeper(sleeper))

	for _, op := range []string{"RUNQUERY", "AllocateIds", ""} {
		require.NoError(t, d.Dispatch(context.Background(), op))
		dec := d.Decide(op)
		assert.Equal(t, OutcomeUntracked, dec.Outcome)
		assert.False(t, dec.Tracked())
	}
	assert.Zero(t, src.Calls)
	assert.Empty(t, sleeper.calls())
	assert.Equal(t, int64(3), d.Stats().Untracked)
}

func TestDispatch_EmptyErrorListFiresGenericFault(t *testing.T) {
	cfg := mustConfig(t, `
enabled: true
errors:
  enabled: true
  DELETE: {rate: 1.0}
`)
	d := NewDispatcher(cfg, WithSource(chance.NewFixed(0.5)))

	err := d.Dispatch(context.Background(), "DELETE")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInjectedFault)
	assert.True(t, IsFault(err))

	dec := d.Decide("DELETE")
	assert.Equal(t, GenericLabel, dec.FaultLabel())
	assert.Equal(t, int64(1), d.Stats().ErrorsByLabel[GenericLabel])
}

func TestDispatch_UnresolvableLabel(t *testing.T) {
	cfg := mustConfig(t, `
enabled: true
errors:
  enabled: true
  PUT: [{Bogus: 1}, 1.0]
`)
	d := NewDispatcher(cfg, WithResolver(testRegistry()), WithSource(chance.NewFixed(0)))

	err := d.Dispatch(context.Background(), "PUT")
	var ue *UnresolvableEffectError
	require.ErrorAs(t, err, &ue)
	assert.Equal(t, "Bogus", ue.Label)
	assert.True(t, IsFault(err))
}

func TestDispatch_AllZeroWeights(t *testing.T) {
	cfg := mustConfig(t, `
enabled: true
errors:
  enabled: true
  PUT: [{TimeoutError: 0, InternalError: 0}, 1.0]
latencies:
  enabled: true
  GET:
    rate: 1.0
    choices: [{latency: 10, weight: 0}]
`)
	d := NewDispatcher(cfg, WithResolver(testRegistry()), WithSource(chance.NewFixed(0)), WithSleeper(NoSleep))

	err := d.Dispatch(context.Background(), "PUT")
	assert.ErrorIs(t, err, ErrSamplerPrecondition)
	assert.ErrorIs(t, err, choice.ErrNoPositiveWeight)

	err = d.Dispatch(context.Background(), "GET")
	assert.ErrorIs(t, err, ErrSamplerPrecondition)
}

func TestDispatch_OneRollPerCategory(t *testing.T) {
	cfg := mustConfig(t, `
enabled: true
errors:
  enabled: true
  GET: [{TimeoutError: 1}, 0.4]
latencies:
  enabled: true
  GET: [100, 0.4]
`)

	t.Run("both miss", func(t *testing.T) {
		src := chance.NewFixed(0.5)
		sleeper := &recordingSleeper{}
		d := NewDispatcher(cfg, WithResolver(testRegistry()), WithSource(src), WithSleeper(sleeper))

		require.NoError(t, d.Dispatch(context.Background(), "GET"))
		assert.Equal(t, 2, src.Calls)
		assert.Empty(t, sleeper.calls())
	})

	t.Run("boundary draw fires", func(t *testing.T) {
		src := chance.NewFixed(0.5, 0.4)
		sleeper := &recordingSleeper{}
		d := NewDispatcher(cfg, WithResolver(testRegistry()), WithSource(src), WithSleeper(sleeper))

		require.NoError(t, d.Dispatch(context.Background(), "GET"))
		assert.Equal(t, 2, src.Calls)
		assert.Equal(t, []time.Duration{100 * time.Millisecond}, sleeper.calls())
	})

	t.Run("error skips latency", func(t *testing.T) {
		src := chance.NewFixed(0.1)
		sleeper := &recordingSleeper{}
		d := NewDispatcher(cfg, WithResolver(testRegistry()), WithSource(src), WithSleeper(sleeper))

		err := d.Dispatch(context.Background(), "GET")
		assert.ErrorIs(t, err, errTimeout)
		assert.Equal(t, 1, src.Calls, "latencies are never rolled after an error")
		assert.Empty(t, sleeper.calls())
	})
}

func TestDispatch_DisabledCategorySkipped(t *testing.T) {
	cfg := mustConfig(t, `
enabled: true
errors:
  enabled: false
  GET: [{TimeoutError: 1}, 1.0]
latencies:
  enabled: true
  GET: [5, 1.0]
`)
	src := chance.NewFixed(0)
	sleeper := &recordingSleeper{}
	d := NewDispatcher(cfg, WithResolver(testRegistry()), WithSource(src), WithSleeper(sleeper))

	require.NoError(t, d.Dispatch(context.Background(), "GET"))
	assert.Equal(t, 1, src.Calls)
	assert.Equal(t, []time.Duration{5 * time.Millisecond}, sleeper.calls())
}

func TestDispatch_CancelDuringStall(t *testing.T) {
	cfg := mustConfig(t, "enabled: true\nlatencies:\n  enabled: true\n  PUT: [10s, 1.0]\n")
	d := NewDispatcher(cfg, WithSource(chance.NewFixed(0)))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	start := time.Now()
	err := d.Dispatch(ctx, "PUT")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.False(t, IsFault(err))
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestDecide_DoesNotBlock(t *testing.T) {
	cfg := mustConfig(t, "enabled: true\nlatencies:\n  enabled: true\n  DELETE: [1h, 1.0]\n")
	d := NewDispatcher(cfg, WithSource(chance.NewFixed(0)))

	dec := d.Decide("delete")
	assert.Equal(t, OutcomeDelay, dec.Outcome)
	assert.Equal(t, policy.OpDelete, dec.Op)
	assert.Equal(t, time.Hour, dec.Delay)
	assert.NoError(t, dec.Err)
}

func TestDispatcher_SetConfig(t *testing.T) {
	d := NewDispatcher(nil, WithResolver(testRegistry()), WithSource(chance.NewFixed(0)))
	require.NoError(t, d.Dispatch(context.Background(), "WRITE"))

	d.SetConfig(mustConfig(t, writeErrors))
	assert.Error(t, d.Dispatch(context.Background(), "WRITE"))

	d.SetConfig(nil)
	assert.False(t, d.Config().Enabled)
	assert.NoError(t, d.Dispatch(context.Background(), "WRITE"))
}

func TestDispatcher_Stats(t *testing.T) {
	cfg := mustConfig(t, `
enabled: true
errors:
  enabled: true
  PUT: [{TimeoutError: 1}, 1.0]
latencies:
  enabled: true
  GET: [250, 1.0]
`)
	d := NewDispatcher(cfg, WithResolver(testRegistry()), WithSource(chance.NewFixed(0)), WithSleeper(NoSleep))

	ctx := context.Background()
	_ = d.Dispatch(ctx, "PUT")
	_ = d.Dispatch(ctx, "GET")
	_ = d.Dispatch(ctx, "GET")
	_ = d.Dispatch(ctx, "DELETE")
	_ = d.Dispatch(ctx, "RUNQUERY")

	stats := d.Stats()
	assert.Equal(t, int64(5), stats.Dispatches)
	assert.Equal(t, int64(1), stats.ErrorsInjected)
	assert.Equal(t, int64(2), stats.DelaysInjected)
	assert.Equal(t, 500*time.Millisecond, stats.TotalDelay)
	assert.Equal(t, int64(1), stats.Passed)
	assert.Equal(t, int64(1), stats.Untracked)

	stats.ErrorsByLabel["TimeoutError"] = 99
	assert.Equal(t, int64(1), d.Stats().ErrorsByLabel["TimeoutError"], "snapshot is a copy")

	d.ResetStats()
	assert.Zero(t, d.Stats().Dispatches)
}

type fakeRecorder struct {
	mu         sync.Mutex
	dispatches map[string]int
	faults     map[string]int
	delays     []time.Duration
}

func newFakeRecorder() *fakeRecorder {
	return &fakeRecorder{dispatches: map[string]int{}, faults: map[string]int{}}
}

func (r *fakeRecorder) RecordDispatch(op, outcome string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.dispatches[op+"/"+outcome]++
}

func (r *fakeRecorder) RecordFault(op, label string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.faults[op+"/"+label]++
}

func (r *fakeRecorder) RecordDelay(_ string, d time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.delays = append(r.delays, d)
}

func TestDispatcher_Recorder(t *testing.T) {
	cfg := mustConfig(t, `
enabled: true
errors:
  enabled: true
  PUT: [{TimeoutError: 1}, 1.0]
latencies:
  enabled: true
  GET: [250, 1.0]
`)
	rec := newFakeRecorder()
	d := NewDispatcher(cfg, WithResolver(testRegistry()), WithSource(chance.NewFixed(0)),
		WithSleeper(NoSleep), WithRecorder(rec))

	ctx := context.Background()
	_ = d.Dispatch(ctx, "WRITE")
	_ = d.Dispatch(ctx, "GET")
	_ = d.Dispatch(ctx, "DELETE")
	_ = d.Dispatch(ctx, "LIST")

	assert.Equal(t, map[string]int{
		"PUT/error":      1,
		"GET/delay":      1,
		"DELETE/pass":    1,
		"none/untracked": 1,
	}, rec.dispatches)
	assert.Equal(t, map[string]int{"PUT/TimeoutError": 1}, rec.faults)
	assert.Equal(t, []time.Duration{250 * time.Millisecond}, rec.delays)
}

func TestDispatcher_Spans(t *testing.T) {
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	d := NewDispatcher(mustConfig(t, writeErrors),
		WithResolver(testRegistry()),
		WithSource(chance.NewFixed(0)),
		WithTracer(tp.Tracer("test")),
	)

	require.Error(t, d.Dispatch(context.Background(), "WRITE"))
	require.NoError(t, d.Dispatch(context.Background(), "GET"))

	spans := sr.Ended()
	require.Len(t, spans, 2)

	assert.Equal(t, "chaos.Dispatch", spans[0].Name())
	assert.Equal(t, codes.Error, spans[0].Status().Code)
	assert.Contains(t, spans[0].Attributes(), attribute.String("chaos.fault", "TimeoutError"))
	assert.Contains(t, spans[0].Attributes(), attribute.String("chaos.outcome", "error"))

	assert.Equal(t, codes.Unset, spans[1].Status().Code)
	assert.Contains(t, spans[1].Attributes(), attribute.String("chaos.outcome", "pass"))
}

func TestDispatch_Concurrent(t *testing.T) {
	cfg := mustConfig(t, `
enabled: true
errors:
  enabled: true
  PUT: [{TimeoutError: 1, InternalError: 1}, 0.5]
latencies:
  enabled: true
  PUT: [[1, 5], 0.5]
  GET: [[1, 5], 1.0]
`)
	d := NewDispatcher(cfg, WithResolver(testRegistry()),
		WithSource(chance.NewSource(99)), WithSleeper(NoSleep))

	const workers, each = 16, 500
	var wg sync.WaitGroup
	for w := range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			op := "PUT"
			if w%2 == 0 {
				op = "GET"
			}
			for range each {
				_ = d.Dispatch(context.Background(), op)
			}
		}()
	}
	wg.Wait()

	stats := d.Stats()
	assert.Equal(t, int64(workers*each), stats.Dispatches)
	assert.Equal(t, stats.Dispatches, stats.ErrorsInjected+stats.DelaysInjected+stats.Passed)

	// Half the dispatches are PUT, which fails about half the time.
	rate := float64(stats.ErrorsInjected) / float64(workers*each/2)
	assert.False(t, math.IsNaN(rate))
	assert.InDelta(t, 0.5, rate, 0.05)
}
