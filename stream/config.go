package stream

import (
	"github.com/kbukum/gostream/validation"
)

const (
	// DefaultHighWaterMark is the byte-mode high-water mark (16 KiB).
	DefaultHighWaterMark = 16 * 1024
	// DefaultObjectHighWaterMark is the object-mode high-water mark.
	DefaultObjectHighWaterMark = 16
	// hardCapFactor sizes the default hard cap relative to the high-water mark.
	hardCapFactor = 4
	// ResumeWhenEmpty is a LowWaterMark that resumes the producer only
	// once the buffer is empty.
	ResumeWhenEmpty = -1
)

// Config holds the buffer thresholds of a stage.
type Config struct {
	// HighWaterMark pauses the producer once reached. 0 selects the mode default.
	HighWaterMark int `yaml:"high_water_mark" mapstructure:"high_water_mark" validate:"gte=1"`
	// LowWaterMark resumes the producer once the buffer falls to it. 0 selects
	// HighWaterMark/2; ResumeWhenEmpty waits for an empty buffer.
	LowWaterMark int `yaml:"low_water_mark" mapstructure:"low_water_mark" validate:"gte=-1"`
	// HardCap rejects pushes from producers that ignore backpressure. 0 selects 4×HighWaterMark.
	HardCap int `yaml:"hard_cap" mapstructure:"hard_cap" validate:"gte=1"`
	// ObjectMode weighs every chunk as 1 instead of its byte length.
	ObjectMode bool `yaml:"object_mode" mapstructure:"object_mode"`
}

// DefaultConfig returns the byte-mode defaults.
func DefaultConfig() Config {
	cfg := Config{}
	cfg.ApplyDefaults()
	return cfg
}

// ObjectConfig returns the object-mode defaults.
func ObjectConfig() Config {
	cfg := Config{ObjectMode: true}
	cfg.ApplyDefaults()
	return cfg
}

// ApplyDefaults fills unset thresholds.
func (c *Config) ApplyDefaults() {
	if c.HighWaterMark <= 0 {
		if c.ObjectMode {
			c.HighWaterMark = DefaultObjectHighWaterMark
		} else {
			c.HighWaterMark = DefaultHighWaterMark
		}
	}
	if c.LowWaterMark == 0 {
		c.LowWaterMark = c.HighWaterMark / 2
	}
	if c.HardCap <= 0 {
		c.HardCap = c.HighWaterMark * hardCapFactor
	}
}

// Validate checks the thresholds are usable. Call after ApplyDefaults.
func (c *Config) Validate() error {
	if err := validation.Validate(c); err != nil {
		return err
	}
	v := validation.New()
	v.Check(c.LowWaterMark < c.HighWaterMark, "low_water_mark", "must be below high_water_mark")
	v.Check(c.HardCap >= c.HighWaterMark, "hard_cap", "must be at least high_water_mark")
	return v.Error()
}
