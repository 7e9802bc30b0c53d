// Package config loads dealer-answer settings from the environment and an
// optional dealer-answer.yaml file using viper.
//
// Every setting has a default that reproduces the fixed behaviour of the
// tool, so running with no configuration at all is the normal case.
// Environment variables use the DEALER_ANSWER_ prefix followed by the
// upper-cased key, e.g. DEALER_ANSWER_LOG_LEVEL=debug.
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/Sternrassler/dealer-answer/pkg/client"
	"github.com/Sternrassler/dealer-answer/pkg/logging"
	"github.com/Sternrassler/dealer-answer/pkg/pipeline"
	"github.com/Sternrassler/dealer-answer/pkg/ratelimit"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment variable.
const EnvPrefix = "DEALER_ANSWER"

// FileName is the config file looked up in each search path, without extension.
const FileName = "dealer-answer"

// Keys understood in the config file and, prefixed, in the environment.
const (
	KeyBaseURL            = "base_url"
	KeyUserAgent          = "user_agent"
	KeyLogLevel           = "log_level"
	KeyLogPretty          = "log_pretty"
	KeyRedisURL           = "redis_url"
	KeyCacheTTL           = "cache_ttl"
	KeyMetricsAddr        = "metrics_addr"
	KeyRunTimeout         = "run_timeout"
	KeyRequestTimeout     = "request_timeout"
	KeyFetchTimeout       = "fetch_timeout"
	KeyRateLimitRPS       = "rate_limit_rps"
	KeyRateLimitBurst     = "rate_limit_burst"
	KeyVehicleConcurrency = "vehicle_concurrency"
	KeyDealerConcurrency  = "dealer_concurrency"
)

// DefaultSearchPaths are the directories searched for dealer-answer.yaml.
var DefaultSearchPaths = []string{".", "./conf"}

// Config is the resolved application configuration.
type Config struct {
	BaseURL   string
	UserAgent string

	LogLevel  string
	LogPretty bool

	// RedisURL enables the response cache when set, e.g. redis://localhost:6379/0.
	RedisURL string
	CacheTTL time.Duration

	// MetricsAddr serves /metrics for the duration of the run when set.
	MetricsAddr string

	RunTimeout     time.Duration
	RequestTimeout time.Duration
	FetchTimeout   time.Duration

	RateLimitRPS   float64
	RateLimitBurst int

	VehicleConcurrency int
	DealerConcurrency  int

	// File is the config file that was read, empty if none was found.
	File string
}

// Load resolves configuration from defaults, the first dealer-answer.yaml
// found in paths (DefaultSearchPaths when empty), and the environment, in
// increasing order of precedence.
func Load(paths ...string) (Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()

	v.SetConfigName(FileName)
	v.SetConfigType("yaml")
	if len(paths) == 0 {
		paths = DefaultSearchPaths
	}
	for _, p := range paths {
		v.AddConfigPath(p)
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	cfg := Config{
		BaseURL:            v.GetString(KeyBaseURL),
		UserAgent:          v.GetString(KeyUserAgent),
		LogLevel:           v.GetString(KeyLogLevel),
		LogPretty:          v.GetBool(KeyLogPretty),
		RedisURL:           v.GetString(KeyRedisURL),
		CacheTTL:           v.GetDuration(KeyCacheTTL),
		MetricsAddr:        v.GetString(KeyMetricsAddr),
		RunTimeout:         v.GetDuration(KeyRunTimeout),
		RequestTimeout:     v.GetDuration(KeyRequestTimeout),
		FetchTimeout:       v.GetDuration(KeyFetchTimeout),
		RateLimitRPS:       v.GetFloat64(KeyRateLimitRPS),
		RateLimitBurst:     v.GetInt(KeyRateLimitBurst),
		VehicleConcurrency: v.GetInt(KeyVehicleConcurrency),
		DealerConcurrency:  v.GetInt(KeyDealerConcurrency),
		File:               v.ConfigFileUsed(),
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	clientDefaults := client.DefaultConfig("")
	pipelineDefaults := pipeline.DefaultConfig()

	v.SetDefault(KeyBaseURL, client.DefaultBaseURL)
	v.SetDefault(KeyUserAgent, clientDefaults.UserAgent)
	v.SetDefault(KeyLogLevel, string(logging.LevelInfo))
	v.SetDefault(KeyLogPretty, false)
	v.SetDefault(KeyRedisURL, "")
	v.SetDefault(KeyCacheTTL, clientDefaults.CacheTTL)
	v.SetDefault(KeyMetricsAddr, "")
	v.SetDefault(KeyRunTimeout, time.Duration(0))
	v.SetDefault(KeyRequestTimeout, clientDefaults.Timeout)
	v.SetDefault(KeyFetchTimeout, pipelineDefaults.FetchTimeout)
	v.SetDefault(KeyRateLimitRPS, clientDefaults.RateLimit.RequestsPerSecond)
	v.SetDefault(KeyRateLimitBurst, clientDefaults.RateLimit.Burst)
	v.SetDefault(KeyVehicleConcurrency, pipelineDefaults.VehicleConcurrency)
	v.SetDefault(KeyDealerConcurrency, pipelineDefaults.DealerConcurrency)
}

// Validate checks values that would otherwise fail later in the run.
func (c Config) Validate() error {
	if c.BaseURL == "" {
		return fmt.Errorf("%s must not be empty", KeyBaseURL)
	}
	if c.VehicleConcurrency < 1 || c.VehicleConcurrency > pipeline.MaxVehicleConcurrency {
		return fmt.Errorf("%s must be between 1 and %d (got %d)", KeyVehicleConcurrency, pipeline.MaxVehicleConcurrency, c.VehicleConcurrency)
	}
	if c.DealerConcurrency < 1 {
		return fmt.Errorf("%s must be >= 1 (got %d)", KeyDealerConcurrency, c.DealerConcurrency)
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("%s must be > 0 (got %s)", KeyRequestTimeout, c.RequestTimeout)
	}
	if c.RunTimeout < 0 || c.FetchTimeout < 0 {
		return fmt.Errorf("timeouts must not be negative")
	}
	if c.RedisURL != "" {
		if _, err := redis.ParseURL(c.RedisURL); err != nil {
			return fmt.Errorf("%s: %w", KeyRedisURL, err)
		}
	}
	return nil
}

// Logging returns the logger configuration.
func (c Config) Logging() logging.Config {
	cfg := logging.DefaultConfig()
	cfg.Level = logging.LogLevel(c.LogLevel)
	cfg.Pretty = c.LogPretty
	return cfg
}

// Client returns the service client configuration. rdb may be nil to
// disable caching.
func (c Config) Client(rdb *redis.Client) client.Config {
	cfg := client.DefaultConfig(c.BaseURL)
	cfg.UserAgent = c.UserAgent
	cfg.Timeout = c.RequestTimeout
	cfg.RateLimit = ratelimit.Config{
		RequestsPerSecond: c.RateLimitRPS,
		Burst:             c.RateLimitBurst,
	}
	cfg.Redis = rdb
	cfg.CacheTTL = c.CacheTTL
	return cfg
}

// Pipeline returns the pipeline configuration.
func (c Config) Pipeline() pipeline.Config {
	return pipeline.Config{
		VehicleConcurrency: c.VehicleConcurrency,
		DealerConcurrency:  c.DealerConcurrency,
		FetchTimeout:       c.FetchTimeout,
		RunTimeout:         c.RunTimeout,
	}
}

// RedisOptions parses RedisURL. It returns nil when the cache is disabled.
func (c Config) RedisOptions() (*redis.Options, error) {
	if c.RedisURL == "" {
		return nil, nil
	}
	return redis.ParseURL(c.RedisURL)
}
