// Package config loads the configuration of a gostream service.
//
// Viper reads config.yml from the standard locations, a .env file is
// loaded with godotenv, and every environment variable is bound to the
// nested keys it can name, so STREAM_HIGH_WATER_MARK overrides
// stream.high_water_mark.
//
// # Usage
//
//	var cfg config.ServiceConfig
//	if err := config.Load("packer", &cfg); err != nil {
//	    return err
//	}
//	stage := stream.NewTransform("gzip", comp, cfg.StageOptions()...)
package config
