package telemetry

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
)

// Config is the full telemetry configuration: identity, logging, tracing,
// metrics and event publishing.
type Config struct {
	// ServiceName identifies this process in traces and metrics.
	ServiceName string `validate:"required"`

	// ServiceVersion is the running version, "dev" for local builds.
	ServiceVersion string `validate:"required"`

	// Environment names the deployment environment (development, production).
	Environment string `validate:"required"`

	Logging LoggingConfig
	Tracing TracingConfig
	Metrics MetricsConfig
	Events  EventsConfig

	// ResourceAttributes are merged into the otel resource.
	ResourceAttributes map[string]string
}

// LoggingConfig configures the zerolog logger.
type LoggingConfig struct {
	// Level is the minimum level emitted.
	Level string `validate:"oneof=trace debug info warn error fatal"`

	// Format selects human-readable console output or raw JSON.
	Format string `validate:"oneof=console json"`

	// Output is stdout, stderr or a file path.
	Output string `validate:"required"`

	// EnableCaller adds file:line to every event.
	EnableCaller bool

	// EnableSampling turns on burst sampling for high-frequency logging.
	EnableSampling bool

	// SamplingInitial messages pass per second before sampling kicks in;
	// after that every SamplingThereafter-th message is kept.
	SamplingInitial    int `validate:"min=0"`
	SamplingThereafter int `validate:"min=0"`

	// TimeFormat is rfc3339 (default), unix, unixms or unixmicro.
	TimeFormat string
}

// TracingConfig configures the otel tracer.
type TracingConfig struct {
	Enabled bool

	// Exporter selects the span exporter backend.
	Exporter string `validate:"oneof=otlp stdout none"`

	// Endpoint is the otlp collector address, host:port.
	Endpoint string

	// SamplingRate is the head sampling ratio.
	SamplingRate float64 `validate:"min=0,max=1"`

	MaxExportBatchSize int           `validate:"min=0"`
	ExportTimeout      time.Duration `validate:"min=0"`

	// Headers are sent with every otlp export request.
	Headers map[string]string

	// Insecure disables TLS on the otlp connection.
	Insecure bool
}

// MetricsConfig configures the Prometheus registry and its HTTP endpoint.
type MetricsConfig struct {
	Enabled bool

	// ListenAddress serves the scrape endpoint when metrics are enabled.
	ListenAddress string

	// Path is the scrape path, /metrics by default.
	Path string

	// Namespace prefixes every metric name.
	Namespace string `validate:"required"`

	// DefaultHistogramBuckets are the latency buckets in seconds.
	DefaultHistogramBuckets []float64
}

// EventsConfig configures the async event publisher.
type EventsConfig struct {
	Enabled bool

	// BufferSize bounds the in-flight event queue.
	BufferSize int `validate:"min=1"`

	// FlushInterval is how often buffered events drain.
	FlushInterval time.Duration `validate:"min=0"`

	// MaxBatchSize caps a single delivery batch.
	MaxBatchSize int `validate:"min=1"`

	// EnableAsync delivers events off the caller's goroutine.
	EnableAsync bool
}

// DefaultConfig returns the baseline configuration: console logging, stdout
// tracing, metrics on :9090.
func DefaultConfig() *Config {
	return &Config{
		ServiceName:    "loom",
		ServiceVersion: "dev",
		Environment:    "development",
		Logging: LoggingConfig{
			Level:              "info",
			Format:             "console",
			Output:             "stdout",
			EnableCaller:       true,
			SamplingInitial:    100,
			SamplingThereafter: 100,
			TimeFormat:         "rfc3339",
		},
		Tracing: TracingConfig{
			Enabled:            true,
			Exporter:           "stdout",
			SamplingRate:       1.0,
			MaxExportBatchSize: 512,
			ExportTimeout:      30 * time.Second,
			Headers:            map[string]string{},
			Insecure:           true,
		},
		Metrics: MetricsConfig{
			Enabled:       true,
			ListenAddress: ":9090",
			Path:          "/metrics",
			Namespace:     "loom",
			DefaultHistogramBuckets: []float64{
				0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0,
			},
		},
		Events: EventsConfig{
			Enabled:       true,
			BufferSize:    1000,
			FlushInterval: 5 * time.Second,
			MaxBatchSize:  100,
			EnableAsync:   true,
		},
		ResourceAttributes: map[string]string{},
	}
}

// ProductionConfig tunes the defaults for production: JSON logs with
// sampling, otlp export at 10% head sampling.
func ProductionConfig() *Config {
	cfg := DefaultConfig()
	cfg.Environment = "production"
	cfg.Logging.Format = "json"
	cfg.Logging.EnableSampling = true
	cfg.Logging.TimeFormat = "unix"
	cfg.Tracing.Exporter = "otlp"
	cfg.Tracing.SamplingRate = 0.1
	cfg.Tracing.Insecure = false
	return cfg
}

// DevelopmentConfig tunes the defaults for local work: debug logging, full
// trace sampling to stdout.
func DevelopmentConfig() *Config {
	cfg := DefaultConfig()
	cfg.Logging.Level = "debug"
	cfg.Tracing.SamplingRate = 1.0
	return cfg
}

var configValidator = validator.New()

// Validate checks the configuration before any subsystem starts.
func (c *Config) Validate() error {
	if err := configValidator.Struct(c); err != nil {
		return fmt.Errorf("invalid telemetry config: %w", err)
	}
	if c.Metrics.Enabled && c.Metrics.ListenAddress == "" {
		return fmt.Errorf("metrics listen address is required when metrics are enabled")
	}
	return nil
}
