package metrics

import (
	"fmt"
	"io"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
)

// Namespace prefixes every metric name.
const Namespace = "chaoskit"

// DelayBuckets covers injected delays from 10ms to 30s.
var DelayBuckets = []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30}

// Recorder holds the dispatch collectors.
type Recorder struct {
	// Dispatches counts dispatches.
	// Labels: op, outcome
	Dispatches *prometheus.CounterVec

	// Faults counts injected errors.
	// Labels: op, label
	Faults *prometheus.CounterVec

	// Delays observes injected delays in seconds.
	// Labels: op
	Delays *prometheus.HistogramVec
}

// NewRecorder creates the collectors and registers them with reg. A nil reg
// leaves them unregistered.
func NewRecorder(reg prometheus.Registerer) *Recorder {
	r := &Recorder{
		Dispatches: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      "dispatches_total",
				Help:      "Chaos dispatches by operation and outcome.",
			},
			[]string{"op", "outcome"},
		),
		Faults: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      "faults_total",
				Help:      "Injected errors by operation and error label.",
			},
			[]string{"op", "label"},
		),
		Delays: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: Namespace,
				Name:      "injected_delay_seconds",
				Help:      "Injected latency in seconds.",
				Buckets:   DelayBuckets,
			},
			[]string{"op"},
		),
	}
	if reg != nil {
		reg.MustRegister(r.Dispatches, r.Faults, r.Delays)
	}
	return r
}

// RecordDispatch counts one dispatch.
func (r *Recorder) RecordDispatch(op, outcome string) {
	r.Dispatches.WithLabelValues(op, outcome).Inc()
}

// RecordFault counts one injected error.
func (r *Recorder) RecordFault(op, label string) {
	r.Faults.WithLabelValues(op, label).Inc()
}

// RecordDelay observes one injected delay.
func (r *Recorder) RecordDelay(op string, d time.Duration) {
	r.Delays.WithLabelValues(op).Observe(d.Seconds())
}

// WriteText writes everything g gathers in the Prometheus text format.
func WriteText(w io.Writer, g prometheus.Gatherer) error {
	families, err := g.Gather()
	if err != nil {
		return fmt.Errorf("failed to gather metrics: %w", err)
	}
	for _, mf := range families {
		if _, err := expfmt.MetricFamilyToText(w, mf); err != nil {
			return fmt.Errorf("failed to write metric %s: %w", mf.GetName(), err)
		}
	}
	return nil
}
