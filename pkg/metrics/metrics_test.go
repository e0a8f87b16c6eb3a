package metrics

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecorder_Dispatches(t *testing.T) {
	reg := prometheus.NewRegistry()
	r := NewRecorder(reg)

	r.RecordDispatch("PUT", "error")
	r.RecordDispatch("PUT", "error")
	r.RecordDispatch("GET", "pass")

	assert.Equal(t, 2, testutil.CollectAndCount(r.Dispatches))

	expected := `
		# HELP chaoskit_dispatches_total Chaos dispatches by operation and outcome.
		# TYPE chaoskit_dispatches_total counter
		chaoskit_dispatches_total{op="GET",outcome="pass"} 1
		chaoskit_dispatches_total{op="PUT",outcome="error"} 2
	`
	require.NoError(t, testutil.CollectAndCompare(r.Dispatches, strings.NewReader(expected)))
}

func TestRecorder_Faults(t *testing.T) {
	r := NewRecorder(nil)
	r.RecordFault("DELETE", "Timeout")
	r.RecordFault("DELETE", "Timeout")
	r.RecordFault("GET", "generic")

	assert.Equal(t, 2.0, testutil.ToFloat64(r.Faults.WithLabelValues("DELETE", "Timeout")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.Faults.WithLabelValues("GET", "generic")))
}

func TestRecorder_Delays(t *testing.T) {
	reg := prometheus.NewRegistry()
	r := NewRecorder(reg)
	r.RecordDelay("GET", 750*time.Millisecond)
	r.RecordDelay("GET", 2*time.Second)

	count, err := testutil.GatherAndCount(reg, "chaoskit_injected_delay_seconds")
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	var buf bytes.Buffer
	require.NoError(t, WriteText(&buf, reg))
	out := buf.String()
	assert.Contains(t, out, `chaoskit_injected_delay_seconds_count{op="GET"} 2`)
	assert.Contains(t, out, `chaoskit_injected_delay_seconds_sum{op="GET"} 2.75`)
	assert.Contains(t, out, `chaoskit_injected_delay_seconds_bucket{op="GET",le="1"} 1`)
}

func TestNewRecorder_DoubleRegistrationPanics(t *testing.T) {
	reg := prometheus.NewRegistry()
	NewRecorder(reg)
	assert.Panics(t, func() { NewRecorder(reg) })
}
