// Package tracing bootstraps OpenTelemetry for chaoskit.
//
// The Dispatcher opens a "chaos.Dispatch" span for every call, tagged with the
// operation, the outcome and any injected fault or delay. Spans go to the
// global tracer provider, which is a no-op until Init installs one:
//
//	shutdown, err := tracing.Init(tracing.Config{ServiceName: "chaoskit"})
//	if err != nil {
//	    return err
//	}
//	defer shutdown(context.Background())
//
// Init exports to a writer (stdout by default) using the stdouttrace exporter.
package tracing
