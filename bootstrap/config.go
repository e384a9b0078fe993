package bootstrap

import (
	"github.com/kbukum/gostream/config"
)

// Config is the constraint for application configuration types. Any
// struct embedding config.ServiceConfig satisfies it through the
// promoted methods.
//
//	type PackerConfig struct {
//	    config.ServiceConfig `yaml:",inline" mapstructure:",squash"`
//	    ChunkSize int `yaml:"chunk_size" mapstructure:"chunk_size"`
//	}
//
//	app, err := bootstrap.NewApp[*PackerConfig](&cfg)
type Config = config.Loadable
