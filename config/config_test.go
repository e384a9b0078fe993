package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/kbukum/gostream/errors"
	"github.com/kbukum/gostream/stream"
)

func TestServiceConfigApplyDefaults(t *testing.T) {
	t.Run("empty environment defaults to development", func(t *testing.T) {
		cfg := ServiceConfig{Name: "svc"}
		cfg.ApplyDefaults()
		if cfg.Environment != "development" {
			t.Errorf("expected 'development', got %q", cfg.Environment)
		}
		if !cfg.Debug {
			t.Error("expected debug=true for development")
		}
	})

	t.Run("production environment keeps debug false", func(t *testing.T) {
		cfg := ServiceConfig{Name: "svc", Environment: "production"}
		cfg.ApplyDefaults()
		if cfg.Debug {
			t.Error("expected debug=false for production")
		}
	})

	t.Run("sections get their defaults", func(t *testing.T) {
		cfg := ServiceConfig{Name: "svc"}
		cfg.ApplyDefaults()
		if cfg.Logging.ServiceName != "svc" {
			t.Errorf("expected logging service name 'svc', got %q", cfg.Logging.ServiceName)
		}
		if cfg.Stream != stream.DefaultConfig() {
			t.Errorf("expected default stream config, got %+v", cfg.Stream)
		}
		if cfg.Telemetry.Endpoint == "" {
			t.Error("expected telemetry endpoint default")
		}
	})
}

func TestServiceConfigValidate(t *testing.T) {
	valid := func(mod func(*ServiceConfig)) ServiceConfig {
		cfg := ServiceConfig{Name: "svc"}
		cfg.ApplyDefaults()
		mod(&cfg)
		return cfg
	}

	tests := []struct {
		name    string
		cfg     ServiceConfig
		wantErr bool
		errMsg  string
	}{
		{"valid development", valid(func(*ServiceConfig) {}), false, ""},
		{"valid production", valid(func(c *ServiceConfig) { c.Environment = "production" }), false, ""},
		{"missing name", valid(func(c *ServiceConfig) { c.Name = "" }), true, "config.name is required"},
		{"invalid environment", valid(func(c *ServiceConfig) { c.Environment = "invalid" }), true, "config.environment must be one of"},
		{"invalid log level", valid(func(c *ServiceConfig) { c.Logging.Level = "loud" }), true, "config.logging"},
		{"low water above high", valid(func(c *ServiceConfig) { c.Stream.LowWaterMark = c.Stream.HighWaterMark }), true, "config.stream"},
		{"sample rate out of range", valid(func(c *ServiceConfig) { c.Telemetry.SampleRate = 3 }), true, "config.telemetry"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.cfg.Validate()
			if tc.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				if !strings.Contains(err.Error(), tc.errMsg) {
					t.Errorf("expected error containing %q, got %q", tc.errMsg, err.Error())
				}
			} else if err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

func TestServiceConfigStreamErrorKeepsCode(t *testing.T) {
	cfg := ServiceConfig{Name: "svc"}
	cfg.ApplyDefaults()
	cfg.Stream.HardCap = 1
	if err := cfg.Validate(); !errors.HasCode(err, errors.ErrCodeInvalidInput) {
		t.Errorf("expected INVALID_INPUT, got %v", err)
	}
}

func TestServiceConfigStageOptions(t *testing.T) {
	cfg := ServiceConfig{Name: "svc", Stream: stream.Config{HighWaterMark: 8}}
	cfg.ApplyDefaults()

	s := stream.NewSink("out", stream.Discard(), cfg.StageOptions()...)
	if got := s.Config(); got.HighWaterMark != 8 || got.LowWaterMark != 4 || got.HardCap != 32 {
		t.Errorf("unexpected stage config %+v", got)
	}
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write %s: %v", name, err)
	}
	return path
}

func TestLoadConfigWithYAML(t *testing.T) {
	configPath := writeFile(t, t.TempDir(), "config.yml", `
name: test-service
environment: staging
version: "1.0.0"
stream:
  high_water_mark: 64
  object_mode: true
telemetry:
  enabled: true
  metric_interval: 5s
`)

	var cfg ServiceConfig
	if err := LoadConfig("test-service", &cfg, WithConfigFile(configPath)); err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if cfg.Name != "test-service" {
		t.Errorf("expected name 'test-service', got %q", cfg.Name)
	}
	if cfg.Environment != "staging" {
		t.Errorf("expected environment 'staging', got %q", cfg.Environment)
	}
	if cfg.Stream.HighWaterMark != 64 || !cfg.Stream.ObjectMode {
		t.Errorf("unexpected stream section %+v", cfg.Stream)
	}
	if !cfg.Telemetry.Enabled || cfg.Telemetry.MetricInterval.Seconds() != 5 {
		t.Errorf("unexpected telemetry section %+v", cfg.Telemetry)
	}
}

func TestLoadConfigEnvOverride(t *testing.T) {
	configPath := writeFile(t, t.TempDir(), "config.yml", `
name: test-service
stream:
  high_water_mark: 64
`)
	t.Setenv("STREAM_HIGH_WATER_MARK", "128")
	t.Setenv("LOGGING_LEVEL", "debug")

	var cfg ServiceConfig
	if err := LoadConfig("test-service", &cfg, WithConfigFile(configPath)); err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.Stream.HighWaterMark != 128 {
		t.Errorf("expected env override 128, got %d", cfg.Stream.HighWaterMark)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("expected logging level 'debug', got %q", cfg.Logging.Level)
	}
}

func TestLoadConfigEnvFile(t *testing.T) {
	dir := t.TempDir()
	envPath := writeFile(t, dir, ".env", "PACKER_CHUNK_SIZE=4096\n")
	t.Cleanup(func() { os.Unsetenv("PACKER_CHUNK_SIZE") })

	type packerConfig struct {
		ServiceConfig `yaml:",inline" mapstructure:",squash"`
		Packer        struct {
			ChunkSize int `mapstructure:"chunk_size"`
		} `mapstructure:"packer"`
	}

	var cfg packerConfig
	if err := LoadConfig("packer", &cfg, WithEnvFile(envPath), WithConfigFile(filepath.Join(dir, "missing.yml"))); err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.Packer.ChunkSize != 4096 {
		t.Errorf("expected chunk size from .env, got %d", cfg.Packer.ChunkSize)
	}
}

func TestLoad(t *testing.T) {
	configPath := writeFile(t, t.TempDir(), "config.yml", `
environment: production
stream:
  high_water_mark: 10
`)

	var cfg ServiceConfig
	if err := Load("packer", &cfg, WithConfigFile(configPath)); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Name != "packer" {
		t.Errorf("expected name from service name, got %q", cfg.Name)
	}
	if cfg.Stream.LowWaterMark != 5 || cfg.Stream.HardCap != 40 {
		t.Errorf("expected derived thresholds, got %+v", cfg.Stream)
	}
}

func TestLoadRejectsInvalid(t *testing.T) {
	configPath := writeFile(t, t.TempDir(), "config.yml", `
name: packer
stream:
  high_water_mark: 10
  low_water_mark: 20
`)

	var cfg ServiceConfig
	err := Load("packer", &cfg, WithConfigFile(configPath))
	if err == nil || !strings.Contains(err.Error(), "config.stream") {
		t.Fatalf("expected stream validation error, got %v", err)
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	var cfg ServiceConfig
	// With no config file found, LoadConfig should still succeed (just empty config)
	err := LoadConfig("nonexistent-service", &cfg, WithConfigFile("/nonexistent/path.yml"))
	if err != nil {
		t.Fatalf("expected LoadConfig to succeed with missing file, got %v", err)
	}
}

func TestResolverWithMockFS(t *testing.T) {
	fs := &mockFS{files: map[string]bool{
		"./cmd/my-svc/config.yml": true,
		"./config/.env":           true,
	}}
	resolver := &Resolver{FileSystem: fs}
	files := resolver.ResolveFiles("my-svc", LoaderConfig{})
	if files.ConfigFile != "./cmd/my-svc/config.yml" {
		t.Errorf("expected config file at ./cmd/my-svc/config.yml, got %q", files.ConfigFile)
	}
	if files.EnvFile != "./config/.env" {
		t.Errorf("expected env file at ./config/.env, got %q", files.EnvFile)
	}
}

func TestResolverPrefersExplicitFiles(t *testing.T) {
	resolver := &Resolver{FileSystem: &mockFS{files: map[string]bool{"./config.yml": true}}}
	files := resolver.ResolveFiles("svc", LoaderConfig{ConfigFile: "/etc/svc.yml", EnvFile: "/etc/svc.env"})
	if files.ConfigFile != "/etc/svc.yml" || files.EnvFile != "/etc/svc.env" {
		t.Errorf("explicit files should win, got %+v", files)
	}
}

type mockFS struct {
	files map[string]bool
}

func (m *mockFS) Exists(path string) bool   { return m.files[path] }
func (m *mockFS) LoadEnv(path string) error { return nil }
func (m *mockFS) Getwd() (string, error)    { return "/mock", nil }

func TestGenerateEnvKeyVariants(t *testing.T) {
	variants := envKeyVariants("STREAM_HIGH_WATER_MARK")
	for _, want := range []string{"stream_high_water_mark", "stream.high_water_mark"} {
		found := false
		for _, v := range variants {
			if v == want {
				found = true
			}
		}
		if !found {
			t.Errorf("expected variant %q in %v", want, variants)
		}
	}

	if got := envKeyVariants("DEBUG"); len(got) != 1 || got[0] != "debug" {
		t.Errorf("expected single variant, got %v", got)
	}
}

func TestLoaderOptions(t *testing.T) {
	var lc LoaderConfig
	fs := &mockFS{}
	WithFileSystem(fs)(&lc)
	WithConfigFile("/path/to/config.yml")(&lc)
	WithEnvFile("/path/to/.env")(&lc)
	if lc.FileSystem == nil {
		t.Error("expected FileSystem to be set")
	}
	if lc.ConfigFile != "/path/to/config.yml" {
		t.Errorf("expected config file path, got %q", lc.ConfigFile)
	}
	if lc.EnvFile != "/path/to/.env" {
		t.Errorf("expected env file path, got %q", lc.EnvFile)
	}
}
