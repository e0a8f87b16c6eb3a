package chaos

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/getmockd/chaoskit/pkg/chance"
	"github.com/getmockd/chaoskit/pkg/choice"
	"github.com/getmockd/chaoskit/pkg/policy"
)

func errorPolicy(rate float64, weights []int, labels []string) *policy.Policy[string] {
	return &policy.Policy[string]{Rate: rate, Choices: choice.MustNew(weights, labels)}
}

func latencyPolicy(rate float64, specs ...policy.LatencySpec) *policy.Policy[policy.LatencySpec] {
	weights := make([]int, len(specs))
	for i := range weights {
		weights[i] = 1
	}
	return &policy.Policy[policy.LatencySpec]{Rate: rate, Choices: choice.MustNew(weights, specs)}
}

func TestErrorEffect(t *testing.T) {
	tests := []struct {
		name      string
		policy    *policy.Policy[string]
		draw      float64
		wantLabel string
		wantErr   error
	}{
		{
			name:   "inert policy never rolls",
			policy: policy.Inert[string](),
		},
		{
			name:   "roll misses",
			policy: errorPolicy(0.2, []int{1}, []string{"TimeoutError"}),
			draw:   0.5,
		},
		{
			name:      "roll hits",
			policy:    errorPolicy(0.5, []int{1}, []string{"TimeoutError"}),
			draw:      0.5,
			wantLabel: "TimeoutError",
			wantErr:   errTimeout,
		},
		{
			name:    "empty distribution",
			policy:  &policy.Policy[string]{Rate: 1, Choices: choice.Empty[string]()},
			wantErr: ErrInjectedFault,
		},
		{
			name:    "all weights zero",
			policy:  errorPolicy(1, []int{0}, []string{"TimeoutError"}),
			wantErr: ErrSamplerPrecondition,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := ErrorEffect{Source: chance.NewFixed(tt.draw), Resolver: testRegistry()}
			label, err := e.Evaluate(policy.OpGet, tt.policy)
			assert.Equal(t, tt.wantLabel, label)
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
			assert.True(t, IsFault(err))
		})
	}
}

func TestErrorEffect_NilFactoryResultStillFails(t *testing.T) {
	r := NewRegistry()
	r.MustRegister("Quiet", func(policy.OperationKind) error { return nil })

	e := ErrorEffect{Source: chance.NewFixed(0), Resolver: r}
	err := e.Execute(policy.OpPut, errorPolicy(1, []int{1}, []string{"Quiet"}))
	assert.ErrorIs(t, err, ErrInjectedFault)
}

func TestErrorEffect_ResolverFunc(t *testing.T) {
	calls := 0
	r := ResolverFunc(func(label string) (ErrorFactory, error) {
		calls++
		return func(op policy.OperationKind) error { return errors.New(label + " on " + string(op)) }, nil
	})

	e := ErrorEffect{Source: chance.NewFixed(0), Resolver: r}
	err := e.Execute(policy.OpDelete, errorPolicy(1, []int{1}, []string{"Gone"}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Gone on DELETE")
	assert.Equal(t, 1, calls)
}

func TestLatencyEffect(t *testing.T) {
	t.Run("fixed", func(t *testing.T) {
		sleeper := &recordingSleeper{}
		e := LatencyEffect{Source: chance.NewFixed(0), Sleeper: sleeper}
		require.NoError(t, e.Execute(context.Background(), policy.OpGet, latencyPolicy(1, policy.FixedMillis(1000))))
		assert.Equal(t, []time.Duration{time.Second}, sleeper.calls())
	})

	t.Run("miss", func(t *testing.T) {
		sleeper := &recordingSleeper{}
		e := LatencyEffect{Source: chance.NewFixed(0.9), Sleeper: sleeper}
		require.NoError(t, e.Execute(context.Background(), policy.OpGet, latencyPolicy(0.5, policy.FixedMillis(1000))))
		assert.Empty(t, sleeper.calls())
	})

	t.Run("absent spec is a no-op", func(t *testing.T) {
		sleeper := &recordingSleeper{}
		e := LatencyEffect{Source: chance.NewFixed(0), Sleeper: sleeper}
		p := &policy.Policy[policy.LatencySpec]{Rate: 1, Choices: choice.Empty[policy.LatencySpec]()}
		delay, fired, err := e.Evaluate(policy.OpGet, p)
		require.NoError(t, err)
		assert.False(t, fired)
		assert.Zero(t, delay)
	})

	t.Run("malformed spec is a configuration error", func(t *testing.T) {
		e := LatencyEffect{Source: chance.NewFixed(0), Sleeper: NoSleep}
		err := e.Execute(context.Background(), policy.OpGet, latencyPolicy(1, policy.RangeMillis(3000, 1000)))
		require.Error(t, err)
		assert.True(t, policy.IsConfigurationError(err))
	})

	t.Run("picks among choices", func(t *testing.T) {
		e := LatencyEffect{Source: chance.NewFixed(0).WithInts(1)}
		delay, fired, err := e.Evaluate(policy.OpPut, latencyPolicy(1, policy.FixedMillis(10), policy.FixedMillis(20)))
		require.NoError(t, err)
		assert.True(t, fired)
		assert.Equal(t, 20*time.Millisecond, delay)
	})

	t.Run("default sleeper honors cancellation", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		e := LatencyEffect{}
		assert.ErrorIs(t, e.Stall(ctx, time.Hour), context.Canceled)
	})
}

func TestTimerSleeper(t *testing.T) {
	start := time.Now()
	require.NoError(t, TimerSleeper.Sleep(context.Background(), 20*time.Millisecond))
	assert.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)

	require.NoError(t, TimerSleeper.Sleep(context.Background(), 0))
	require.NoError(t, NoSleep.Sleep(context.Background(), time.Hour))
}
