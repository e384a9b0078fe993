package config

import (
	"fmt"
	"slices"

	"github.com/kbukum/gostream/logger"
	"github.com/kbukum/gostream/observability"
	"github.com/kbukum/gostream/stream"
	"github.com/kbukum/gostream/version"
)

var environments = []string{"development", "staging", "production"}

// ServiceConfig is the configuration of a process running pipelines.
// Embed it to add application sections:
//
//	type AppConfig struct {
//	    config.ServiceConfig `yaml:",inline" mapstructure:",squash"`
//	    ChunkSize int `yaml:"chunk_size" mapstructure:"chunk_size"`
//	}
type ServiceConfig struct {
	Name        string        `yaml:"name" mapstructure:"name"`
	Environment string        `yaml:"environment" mapstructure:"environment"`
	Version     string        `yaml:"version" mapstructure:"version"`
	Debug       bool          `yaml:"debug" mapstructure:"debug"`
	Logging     logger.Config `yaml:"logging" mapstructure:"logging"`
	// Stream holds the default buffer thresholds for every stage.
	Stream    stream.Config                 `yaml:"stream" mapstructure:"stream"`
	Telemetry observability.TelemetryConfig `yaml:"telemetry" mapstructure:"telemetry"`
}

// GetServiceConfig returns the base ServiceConfig. The method is promoted
// to embedding structs.
func (c *ServiceConfig) GetServiceConfig() *ServiceConfig {
	return c
}

// ApplyDefaults fills unset fields of every section. An unset Version
// takes the build version.
func (c *ServiceConfig) ApplyDefaults() {
	if c.Environment == "" {
		c.Environment = "development"
	}
	if c.Environment == "development" {
		c.Debug = true
	}
	if c.Version == "" {
		c.Version = version.Short()
	}
	if c.Logging.ServiceName == "" && c.Name != "" {
		c.Logging.ServiceName = c.Name
	}
	c.Logging.ApplyDefaults()
	c.Stream.ApplyDefaults()
	c.Telemetry.ApplyDefaults()
}

// Validate checks every section. Call after ApplyDefaults.
func (c *ServiceConfig) Validate() error {
	if c.Name == "" {
		return fmt.Errorf("config.name is required")
	}
	if !slices.Contains(environments, c.Environment) {
		return fmt.Errorf("config.environment must be one of %v (got: %s)", environments, c.Environment)
	}
	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("config.logging: %w", err)
	}
	if err := c.Stream.Validate(); err != nil {
		return fmt.Errorf("config.stream: %w", err)
	}
	if err := c.Telemetry.Validate(); err != nil {
		return fmt.Errorf("config.telemetry: %w", err)
	}
	return nil
}

// StageOptions returns the stage options applying the configured
// buffer thresholds.
func (c *ServiceConfig) StageOptions() []stream.StageOption {
	return []stream.StageOption{stream.WithBufferConfig(c.Stream)}
}

// NewTelemetry creates the telemetry component for this service.
func (c *ServiceConfig) NewTelemetry() *observability.Telemetry {
	return observability.NewTelemetry(c.Telemetry, c.Name, c.Version, c.Environment)
}
