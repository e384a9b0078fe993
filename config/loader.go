package config

import (
	"fmt"
	"os"
	"path"
	"slices"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/kbukum/gostream/logger"
)

// Loadable is a configuration that fills its own defaults and validates
// itself. ServiceConfig and structs embedding it satisfy it.
type Loadable interface {
	GetServiceConfig() *ServiceConfig
	ApplyDefaults()
	Validate() error
}

// FileSystem abstracts the file operations of the loader for tests.
type FileSystem interface {
	Exists(path string) bool
	LoadEnv(path string) error
	Getwd() (string, error)
}

// RealFileSystem implements FileSystem on the OS.
type RealFileSystem struct{}

func (RealFileSystem) Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// LoadEnv loads a .env file. Variables already set keep their value.
func (RealFileSystem) LoadEnv(path string) error { return godotenv.Load(path) }

func (RealFileSystem) Getwd() (string, error) { return os.Getwd() }

// ResolvedFiles are the config and env files chosen for a service.
// Either may be empty.
type ResolvedFiles struct {
	ConfigFile string
	EnvFile    string
}

// Resolver finds the config and env files of a service.
type Resolver struct {
	FileSystem FileSystem
}

// ResolveFiles returns the explicit paths from opts, searching the
// standard locations for those left empty.
func (r *Resolver) ResolveFiles(serviceName string, opts LoaderConfig) ResolvedFiles {
	files := ResolvedFiles{ConfigFile: opts.ConfigFile, EnvFile: opts.EnvFile}
	if files.ConfigFile == "" {
		files.ConfigFile = r.first(configCandidates(serviceName))
	}
	if files.EnvFile == "" {
		files.EnvFile = r.first(envCandidates(serviceName))
	}
	return files
}

func (r *Resolver) first(candidates []string) string {
	for _, c := range candidates {
		if r.FileSystem.Exists(c) {
			return c
		}
	}
	return ""
}

// serviceNames returns the service name and, for dashed names, its last
// segment: "gostream-packer" also answers to "packer".
func serviceNames(serviceName string) []string {
	names := []string{serviceName}
	if i := strings.LastIndex(serviceName, "-"); i != -1 {
		names = append(names, serviceName[i+1:])
	}
	return names
}

// configCandidates lists config.yml locations in search order: the
// service's cmd directory up to two levels up, then the shared config
// directory, then the working directory.
func configCandidates(serviceName string) []string {
	var out []string
	for _, up := range []string{".", "..", "../.."} {
		for _, name := range serviceNames(serviceName) {
			out = append(out, up+"/"+path.Join("cmd", name, "config.yml"))
		}
	}
	return append(out, "./config/config.yml", "../config/config.yml", "./config.yml")
}

// envCandidates lists .env.<service> then .env, each searched in
// cmd/<name>, config/<name>, config and the working directory up to two
// levels up.
func envCandidates(serviceName string) []string {
	var dirs []string
	for _, name := range serviceNames(serviceName) {
		for _, base := range []string{"cmd/" + name, "config/" + name, "config", ""} {
			for _, up := range []string{".", "..", "../.."} {
				dirs = append(dirs, strings.TrimSuffix(up+"/"+base, "/"))
			}
			if base == "" {
				dirs = append(dirs, "")
			}
		}
	}

	var out []string
	for _, file := range []string{".env." + serviceName, ".env"} {
		for _, dir := range dirs {
			c := file
			if dir != "" {
				c = dir + "/" + file
			}
			if !slices.Contains(out, c) {
				out = append(out, c)
			}
		}
	}
	return out
}

// LoaderConfig holds the loader's file system and optional explicit files.
type LoaderConfig struct {
	FileSystem FileSystem
	ConfigFile string
	EnvFile    string
}

// LoaderOption configures LoadConfig.
type LoaderOption func(*LoaderConfig)

// WithFileSystem sets the file system used to find and read files.
func WithFileSystem(fs FileSystem) LoaderOption {
	return func(lc *LoaderConfig) { lc.FileSystem = fs }
}

// WithConfigFile sets an explicit config file path.
func WithConfigFile(path string) LoaderOption {
	return func(lc *LoaderConfig) { lc.ConfigFile = path }
}

// WithEnvFile sets an explicit .env file path.
func WithEnvFile(path string) LoaderOption {
	return func(lc *LoaderConfig) { lc.EnvFile = path }
}

// Load reads the configuration of serviceName into cfg, applies defaults
// and validates it.
func Load(serviceName string, cfg Loadable, opts ...LoaderOption) error {
	if err := LoadConfig(serviceName, cfg, opts...); err != nil {
		return err
	}
	if sc := cfg.GetServiceConfig(); sc.Name == "" {
		sc.Name = serviceName
	}
	cfg.ApplyDefaults()
	return cfg.Validate()
}

// LoadConfig unmarshals the configuration of serviceName into cfg. The
// YAML file is the base; environment variables, including those from the
// .env file, override it: STREAM_HIGH_WATER_MARK sets
// stream.high_water_mark. Missing files are not an error.
func LoadConfig(serviceName string, cfg any, opts ...LoaderOption) error {
	lc := LoaderConfig{FileSystem: RealFileSystem{}}
	for _, opt := range opts {
		opt(&lc)
	}

	files := (&Resolver{FileSystem: lc.FileSystem}).ResolveFiles(serviceName, lc)
	v := viper.New()
	log := logger.Get("config")

	if files.ConfigFile != "" && lc.FileSystem.Exists(files.ConfigFile) {
		v.SetConfigFile(files.ConfigFile)
		if err := v.ReadInConfig(); err != nil {
			log.Warn("failed to load config file", logger.MergeWithError(logger.Fields("file", files.ConfigFile), err))
		}
	}
	if files.EnvFile != "" && lc.FileSystem.Exists(files.EnvFile) {
		if err := lc.FileSystem.LoadEnv(files.EnvFile); err != nil {
			log.Warn("failed to load env file", logger.MergeWithError(logger.Fields("file", files.EnvFile), err))
		}
	}
	v.AutomaticEnv()
	bindEnv(v, os.Environ())

	if err := v.Unmarshal(cfg); err != nil {
		return fmt.Errorf("failed to unmarshal config for service %s: %w", serviceName, err)
	}
	return nil
}

// bindEnv sets every KEY=value pair under each nested key it can name.
func bindEnv(v *viper.Viper, environ []string) {
	for _, kv := range environ {
		key, value, ok := strings.Cut(kv, "=")
		if !ok {
			continue
		}
		for _, k := range envKeyVariants(key) {
			v.Set(k, value)
		}
	}
}

// envKeyVariants returns the config keys an environment variable may
// address, since underscores separate both nesting levels and words:
//
//	LOGGING_LEVEL -> [logging_level, logging.level]
//	STREAM_HIGH_WATER_MARK -> [stream_high_water_mark, stream.high.water.mark,
//	    stream.high_water_mark, stream.high.water_mark]
func envKeyVariants(envKey string) []string {
	lower := strings.ToLower(envKey)
	parts := strings.Split(lower, "_")
	if len(parts) == 1 {
		return []string{lower}
	}

	out := []string{lower, strings.Join(parts, ".")}
	for i := 1; i < len(parts); i++ {
		k := strings.Join(parts[:i], ".") + "." + strings.Join(parts[i:], "_")
		if !slices.Contains(out, k) {
			out = append(out, k)
		}
	}
	return out
}
