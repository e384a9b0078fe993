package observability

import (
	"context"
	stderrors "errors"
	"sync"
	"time"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/kbukum/gostream/component"
	"github.com/kbukum/gostream/validation"
)

// TelemetryConfig selects the OTLP collector for traces and metrics.
type TelemetryConfig struct {
	Enabled  bool   `yaml:"enabled" mapstructure:"enabled"`
	Endpoint string `yaml:"endpoint" mapstructure:"endpoint" validate:"required_if=Enabled true"`
	Insecure bool   `yaml:"insecure" mapstructure:"insecure"`
	// SampleRate is the trace sampling ratio. 0 selects 1.0.
	SampleRate     float64       `yaml:"sample_rate" mapstructure:"sample_rate" validate:"gte=0,lte=1"`
	MetricInterval time.Duration `yaml:"metric_interval" mapstructure:"metric_interval" validate:"gte=0"`
}

// ApplyDefaults fills unset fields.
func (c *TelemetryConfig) ApplyDefaults() {
	if c.Endpoint == "" {
		c.Endpoint = "localhost:4318"
	}
	if c.SampleRate == 0 {
		c.SampleRate = 1.0
	}
	if c.MetricInterval == 0 {
		c.MetricInterval = 15 * time.Second
	}
}

// Validate checks the configuration.
func (c *TelemetryConfig) Validate() error {
	return validation.Validate(c)
}

// Telemetry owns the tracer and meter providers as a component.
// When disabled it installs nothing and StreamMetrics records to the
// global no-op meter.
type Telemetry struct {
	cfg         TelemetryConfig
	service     string
	version     string
	environment string

	// test hooks replacing the OTLP exporters
	spanExporter sdktrace.SpanExporter
	metricReader sdkmetric.Reader

	mu      sync.Mutex
	started bool
	tp      *sdktrace.TracerProvider
	mp      *sdkmetric.MeterProvider
	metrics *StreamMetrics
}

var _ component.Component = (*Telemetry)(nil)

// NewTelemetry creates the telemetry component for a service.
func NewTelemetry(cfg TelemetryConfig, service, version, environment string) *Telemetry {
	cfg.ApplyDefaults()
	return &Telemetry{cfg: cfg, service: service, version: version, environment: environment}
}

// Name returns the component name.
func (t *Telemetry) Name() string { return "telemetry" }

// Start installs the providers and creates the stream instruments.
func (t *Telemetry) Start(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.started {
		return nil
	}

	if t.cfg.Enabled {
		tp, err := InitTracer(ctx, TracerConfig{
			ServiceName:    t.service,
			ServiceVersion: t.version,
			Environment:    t.environment,
			Endpoint:       t.cfg.Endpoint,
			Insecure:       t.cfg.Insecure,
			SampleRate:     t.cfg.SampleRate,
			Exporter:       t.spanExporter,
		})
		if err != nil {
			return err
		}
		mp, err := InitMeter(ctx, &MeterConfig{
			ServiceName:    t.service,
			ServiceVersion: t.version,
			Environment:    t.environment,
			Endpoint:       t.cfg.Endpoint,
			Insecure:       t.cfg.Insecure,
			Interval:       t.cfg.MetricInterval,
			Reader:         t.metricReader,
		})
		if err != nil {
			_ = tp.Shutdown(ctx)
			return err
		}
		t.tp, t.mp = tp, mp
	}

	metrics, err := NewStreamMetrics(Meter(""))
	if err != nil {
		return err
	}
	t.metrics = metrics
	t.started = true
	return nil
}

// Stop flushes and shuts down both providers.
func (t *Telemetry) Stop(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.started {
		return nil
	}
	t.started = false

	var errs []error
	if t.tp != nil {
		errs = append(errs, t.tp.Shutdown(ctx))
	}
	if t.mp != nil {
		errs = append(errs, t.mp.Shutdown(ctx))
	}
	t.tp, t.mp = nil, nil
	return stderrors.Join(errs...)
}

// Health reports whether telemetry is exporting.
func (t *Telemetry) Health(context.Context) component.Health {
	t.mu.Lock()
	defer t.mu.Unlock()

	h := component.Health{Name: t.Name(), Status: component.StatusHealthy}
	switch {
	case !t.started:
		h.Status = component.StatusDegraded
		h.Message = "not started"
	case !t.cfg.Enabled:
		h.Status = component.StatusDegraded
		h.Message = "disabled"
	default:
		h.Message = "exporting to " + t.cfg.Endpoint
	}
	return h
}

// Metrics returns the stream observer, or nil before Start.
func (t *Telemetry) Metrics() *StreamMetrics {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.metrics
}
