package tracing

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// Config configures Init.
type Config struct {
	// ServiceName is reported as service.name. Required.
	ServiceName string

	// ServiceVersion is reported as service.version when set.
	ServiceVersion string

	// Output receives exported spans. Defaults to os.Stdout.
	Output io.Writer

	// PrettyPrint indents the exported JSON.
	PrettyPrint bool

	// SampleRatio is the fraction of traces kept, in [0, 1]. Zero keeps all.
	SampleRatio float64
}

// ShutdownFunc flushes and stops the provider installed by Init.
type ShutdownFunc func(ctx context.Context) error

// Validate checks cfg.
func (c Config) Validate() error {
	if c.ServiceName == "" {
		return errors.New("tracing: service name is required")
	}
	if c.SampleRatio < 0 || c.SampleRatio > 1 {
		return fmt.Errorf("tracing: sample ratio must be between 0.0 and 1.0, got %v", c.SampleRatio)
	}
	return nil
}

// NewProvider builds a tracer provider exporting to cfg.Output without
// installing it globally.
func NewProvider(cfg Config) (*sdktrace.TracerProvider, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	out := cfg.Output
	if out == nil {
		out = os.Stdout
	}

	opts := []stdouttrace.Option{stdouttrace.WithWriter(out)}
	if cfg.PrettyPrint {
		opts = append(opts, stdouttrace.WithPrettyPrint())
	}
	exporter, err := stdouttrace.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("tracing: failed to create exporter: %w", err)
	}

	attrs := []attribute.KeyValue{attribute.String("service.name", cfg.ServiceName)}
	if cfg.ServiceVersion != "" {
		attrs = append(attrs, attribute.String("service.version", cfg.ServiceVersion))
	}

	sampler := sdktrace.AlwaysSample()
	if cfg.SampleRatio > 0 && cfg.SampleRatio < 1 {
		sampler = sdktrace.ParentBased(sdktrace.TraceIDRatioBased(cfg.SampleRatio))
	}

	return sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithSampler(sampler),
		sdktrace.WithResource(resource.NewWithAttributes("", attrs...)),
	), nil
}

// Init installs a provider from cfg as the global tracer provider.
func Init(cfg Config) (ShutdownFunc, error) {
	tp, err := NewProvider(cfg)
	if err != nil {
		return nil, err
	}
	otel.SetTracerProvider(tp)
	return tp.Shutdown, nil
}
