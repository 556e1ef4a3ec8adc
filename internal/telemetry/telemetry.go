// Package telemetry implements the telemetry.otlp module, which exports
// traces over OTLP/HTTP. When no endpoint is configured the module is a
// no-op and the global tracer provider stays untouched, so span creation
// elsewhere in the process costs nothing.
package telemetry

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"gopkg.in/yaml.v3"

	"github.com/replyloop/replyloop/internal/core"
)

func init() {
	core.RegisterModule(&Module{})
}

// Compile-time interface guards.
var (
	_ core.Configurable = (*Module)(nil)
	_ core.Provisioner  = (*Module)(nil)
	_ core.Validator    = (*Module)(nil)
	_ core.Stopper      = (*Module)(nil)
)

const defaultServiceName = "replyloop"

// Config holds the telemetry module configuration.
type Config struct {
	// Endpoint is the OTLP/HTTP collector endpoint (host:port). Tracing
	// is disabled when empty.
	Endpoint string `yaml:"endpoint"`

	// Insecure disables TLS towards the collector. Defaults to true,
	// matching the common local-collector setup.
	Insecure *bool `yaml:"insecure"`

	// Headers are extra request headers sent to the collector.
	Headers map[string]string `yaml:"headers"`

	// SampleRate is the trace sampling ratio in (0, 1]. Defaults to 1.
	SampleRate float64 `yaml:"sample_rate"`

	// ServiceName overrides the reported service name.
	ServiceName string `yaml:"service_name"`
}

func (c *Config) defaults() {
	if c.Insecure == nil {
		t := true
		c.Insecure = &t
	}
	if c.SampleRate <= 0 || c.SampleRate > 1 {
		c.SampleRate = 1
	}
	if c.ServiceName == "" {
		c.ServiceName = defaultServiceName
	}
}

func (c *Config) validate() error {
	if c.SampleRate < 0 || c.SampleRate > 1 {
		return fmt.Errorf("telemetry: sample_rate must be in (0, 1], got %v", c.SampleRate)
	}
	return nil
}

// Module wires the OTLP trace exporter into the process.
type Module struct {
	config   Config
	logger   *slog.Logger
	provider *sdktrace.TracerProvider
}

// ModuleInfo implements core.Module.
func (m *Module) ModuleInfo() core.ModuleInfo {
	return core.ModuleInfo{
		ID:  "telemetry.otlp",
		New: func() core.Module { return &Module{} },
	}
}

// Configure implements core.Configurable.
func (m *Module) Configure(node *yaml.Node) error {
	if err := node.Decode(&m.config); err != nil {
		return fmt.Errorf("telemetry: decode config: %w", err)
	}
	m.config.defaults()
	return nil
}

// Provision implements core.Provisioner.
func (m *Module) Provision(ctx *core.AppContext) error {
	m.config.defaults()
	m.logger = ctx.Logger

	if m.config.Endpoint == "" {
		m.logger.Info("tracing disabled, no endpoint configured")
		return nil
	}

	endpoint := strings.TrimPrefix(m.config.Endpoint, "http://")
	endpoint = strings.TrimPrefix(endpoint, "https://")

	opts := []otlptracehttp.Option{otlptracehttp.WithEndpoint(endpoint)}
	if *m.config.Insecure {
		opts = append(opts, otlptracehttp.WithInsecure())
	}
	if len(m.config.Headers) > 0 {
		opts = append(opts, otlptracehttp.WithHeaders(m.config.Headers))
	}

	exporter, err := otlptracehttp.New(context.Background(), opts...)
	if err != nil {
		return fmt.Errorf("telemetry: create exporter: %w", err)
	}

	res, err := resource.New(context.Background(),
		resource.WithAttributes(
			attribute.String("service.name", m.config.ServiceName),
		),
	)
	if err != nil {
		return fmt.Errorf("telemetry: build resource: %w", err)
	}

	m.provider = sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.TraceIDRatioBased(m.config.SampleRate)),
	)

	otel.SetTracerProvider(m.provider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	m.logger.Info("tracing enabled",
		"endpoint", endpoint,
		"sample_rate", m.config.SampleRate,
	)

	return nil
}

// Validate implements core.Validator.
func (m *Module) Validate() error {
	return m.config.validate()
}

// Stop implements core.Stopper. It flushes pending spans before the
// process exits.
func (m *Module) Stop(ctx context.Context) error {
	if m.provider == nil {
		return nil
	}
	if err := m.provider.Shutdown(ctx); err != nil {
		return fmt.Errorf("telemetry: shutdown: %w", err)
	}
	return nil
}
