// Package validation provides configuration validation for gostream.
//
// It supports struct tag validation (using the validator library) and
// programmatic validation with error collection for cross-field rules.
// Both report *errors.AppError with code INVALID_INPUT and the offending
// fields listed under Details["fields"].
//
// # Struct Tag Validation
//
//	type Config struct {
//	    HighWaterMark int `mapstructure:"high_water_mark" validate:"gte=1"`
//	}
//	err := validation.Validate(cfg)
//
// # Programmatic Validation
//
//	v := validation.New()
//	v.Check(cfg.LowWaterMark < cfg.HighWaterMark, "low_water_mark", "must be below high_water_mark")
//	err := v.Error()
package validation
