// Package metrics exports chaos dispatch outcomes as Prometheus metrics.
//
// A Recorder satisfies chaos.Recorder:
//
//	reg := prometheus.NewRegistry()
//	rec := metrics.NewRecorder(reg)
//	d := chaos.NewDispatcher(cfg, chaos.WithRecorder(rec))
//
// Exported series:
//
//   - chaoskit_dispatches_total: dispatches by op and outcome
//     (disabled, untracked, pass, error, delay)
//   - chaoskit_faults_total: injected errors by op and label
//   - chaoskit_injected_delay_seconds: histogram of injected delays by op
//
// Op is the normalized operation (GET, PUT, DELETE) or "none" for
// dispatches that never reached a policy.
package metrics
