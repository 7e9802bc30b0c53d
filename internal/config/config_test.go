package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/Sternrassler/dealer-answer/pkg/client"
	"github.com/Sternrassler/dealer-answer/pkg/logging"
)

// emptyDir returns a search path that holds no config file.
func emptyDir(t *testing.T) string {
	t.Helper()
	return t.TempDir()
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, FileName+".yaml"), []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return dir
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(emptyDir(t))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.BaseURL != client.DefaultBaseURL {
		t.Errorf("BaseURL = %q, want %q", cfg.BaseURL, client.DefaultBaseURL)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("LogLevel = %q, want info", cfg.LogLevel)
	}
	if cfg.VehicleConcurrency != 3 {
		t.Errorf("VehicleConcurrency = %d, want 3", cfg.VehicleConcurrency)
	}
	if cfg.RedisURL != "" || cfg.MetricsAddr != "" {
		t.Errorf("cache and metrics should be off by default: %+v", cfg)
	}
	if cfg.RunTimeout != 0 {
		t.Errorf("RunTimeout = %s, want 0", cfg.RunTimeout)
	}
	if cfg.File != "" {
		t.Errorf("File = %q, want empty", cfg.File)
	}
}

func TestLoad_Environment(t *testing.T) {
	t.Setenv("DEALER_ANSWER_BASE_URL", "http://localhost:9999/api")
	t.Setenv("DEALER_ANSWER_LOG_LEVEL", "debug")
	t.Setenv("DEALER_ANSWER_LOG_PRETTY", "true")
	t.Setenv("DEALER_ANSWER_RUN_TIMEOUT", "90s")
	t.Setenv("DEALER_ANSWER_VEHICLE_CONCURRENCY", "2")
	t.Setenv("DEALER_ANSWER_REDIS_URL", "redis://localhost:6379/3")

	cfg, err := Load(emptyDir(t))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.BaseURL != "http://localhost:9999/api" {
		t.Errorf("BaseURL = %q", cfg.BaseURL)
	}
	if cfg.LogLevel != "debug" || !cfg.LogPretty {
		t.Errorf("logging = %q/%v, want debug/true", cfg.LogLevel, cfg.LogPretty)
	}
	if cfg.RunTimeout != 90*time.Second {
		t.Errorf("RunTimeout = %s, want 90s", cfg.RunTimeout)
	}
	if cfg.VehicleConcurrency != 2 {
		t.Errorf("VehicleConcurrency = %d, want 2", cfg.VehicleConcurrency)
	}

	opts, err := cfg.RedisOptions()
	if err != nil {
		t.Fatalf("RedisOptions() error = %v", err)
	}
	if opts == nil || opts.DB != 3 {
		t.Errorf("RedisOptions() = %+v, want DB 3", opts)
	}
}

func TestLoad_File(t *testing.T) {
	dir := writeConfig(t, `
base_url: http://file.example/api
metrics_addr: ":9102"
cache_ttl: 1h
rate_limit_rps: 5
`)

	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.BaseURL != "http://file.example/api" {
		t.Errorf("BaseURL = %q", cfg.BaseURL)
	}
	if cfg.MetricsAddr != ":9102" {
		t.Errorf("MetricsAddr = %q", cfg.MetricsAddr)
	}
	if cfg.CacheTTL != time.Hour {
		t.Errorf("CacheTTL = %s, want 1h", cfg.CacheTTL)
	}
	if cfg.RateLimitRPS != 5 {
		t.Errorf("RateLimitRPS = %v, want 5", cfg.RateLimitRPS)
	}
	if cfg.File == "" {
		t.Error("File should name the config file read")
	}
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	dir := writeConfig(t, "log_level: warn\n")
	t.Setenv("DEALER_ANSWER_LOG_LEVEL", "error")

	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.LogLevel != "error" {
		t.Errorf("LogLevel = %q, want error", cfg.LogLevel)
	}
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		file string
	}{
		{"concurrency above cap", map[string]string{"DEALER_ANSWER_VEHICLE_CONCURRENCY": "4"}, ""},
		{"zero concurrency", map[string]string{"DEALER_ANSWER_VEHICLE_CONCURRENCY": "0"}, ""},
		{"bad redis url", map[string]string{"DEALER_ANSWER_REDIS_URL": "ftp://nope"}, ""},
		{"zero request timeout", map[string]string{"DEALER_ANSWER_REQUEST_TIMEOUT": "0s"}, ""},
		{"malformed file", nil, "base_url: [unterminated\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			dir := emptyDir(t)
			if tt.file != "" {
				dir = writeConfig(t, tt.file)
			}

			if _, err := Load(dir); err == nil {
				t.Error("Load() should fail")
			}
		})
	}
}

func TestConfig_Derived(t *testing.T) {
	cfg, err := Load(emptyDir(t))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	cfg.LogLevel = "warn"
	cfg.RunTimeout = time.Minute

	if lc := cfg.Logging(); lc.Level != logging.LevelWarn || lc.Output == nil {
		t.Errorf("Logging() = %+v", lc)
	}

	cc := cfg.Client(nil)
	if cc.BaseURL != cfg.BaseURL || cc.Redis != nil || cc.Timeout != cfg.RequestTimeout {
		t.Errorf("Client() = %+v", cc)
	}
	if _, err := client.New(cc); err != nil {
		t.Errorf("client.New(Client()) error = %v", err)
	}

	pc := cfg.Pipeline()
	if pc.VehicleConcurrency != 3 || pc.RunTimeout != time.Minute {
		t.Errorf("Pipeline() = %+v", pc)
	}

	opts, err := cfg.RedisOptions()
	if err != nil || opts != nil {
		t.Errorf("RedisOptions() = %v, %v, want nil, nil", opts, err)
	}
}
