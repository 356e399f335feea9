package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server" mapstructure:"server"`
	Log      LogConfig      `yaml:"log" mapstructure:"log"`
	Overpass OverpassConfig `yaml:"overpass" mapstructure:"overpass"`
	Analysis AnalysisConfig `yaml:"analysis" mapstructure:"analysis"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Port           int      `yaml:"port" mapstructure:"port"`
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
	MaxUploadMB    int      `yaml:"max_upload_mb" mapstructure:"max_upload_mb"`
}

// MaxUploadBytes returns the upload cap in bytes.
func (s ServerConfig) MaxUploadBytes() int64 {
	return int64(s.MaxUploadMB) << 20
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// OverpassConfig configures the road attribute service.
type OverpassConfig struct {
	BaseURL      string        `yaml:"base_url" mapstructure:"base_url"`
	UserAgent    string        `yaml:"user_agent" mapstructure:"user_agent"`
	RadiusMeters float64       `yaml:"radius_meters" mapstructure:"radius_meters"`
	TimeoutSecs  int           `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	RateLimitRPS float64       `yaml:"rate_limit_rps" mapstructure:"rate_limit_rps"`
	CacheEntries int           `yaml:"cache_entries" mapstructure:"cache_entries"` // per run; 0 disables
	CacheTTLMins int           `yaml:"cache_ttl_minutes" mapstructure:"cache_ttl_minutes"`
	Retry        RetryConfig   `yaml:"retry" mapstructure:"retry"`
	Circuit      CircuitConfig `yaml:"circuit" mapstructure:"circuit"`
}

// Timeout returns the HTTP timeout for one Overpass request.
func (o OverpassConfig) Timeout() time.Duration {
	return time.Duration(o.TimeoutSecs) * time.Second
}

// CacheTTL returns how long a looked-up TagSet stays cached within a run.
func (o OverpassConfig) CacheTTL() time.Duration {
	return time.Duration(o.CacheTTLMins) * time.Minute
}

// RetryConfig configures retries of transient Overpass failures.
type RetryConfig struct {
	MaxAttempts      int `yaml:"max_attempts" mapstructure:"max_attempts"`
	InitialBackoffMs int `yaml:"initial_backoff_ms" mapstructure:"initial_backoff_ms"`
}

// CircuitConfig configures the Overpass circuit breaker.
type CircuitConfig struct {
	FailureThreshold int `yaml:"failure_threshold" mapstructure:"failure_threshold"`
	ResetTimeoutSecs int `yaml:"reset_timeout_secs" mapstructure:"reset_timeout_secs"`
}

// AnalysisConfig tunes the suitability analysis.
type AnalysisConfig struct {
	SlopeThresholdPercent  float64 `yaml:"slope_threshold_percent" mapstructure:"slope_threshold_percent"`
	MaxSamplesPerSegment   int     `yaml:"max_samples_per_segment" mapstructure:"max_samples_per_segment"`
	MinSlopeDistanceMeters float64 `yaml:"min_slope_distance_meters" mapstructure:"min_slope_distance_meters"`
	LookupIntervalMs       int     `yaml:"lookup_interval_ms" mapstructure:"lookup_interval_ms"`
}

// LookupInterval returns the pause between lookups within one run.
func (a AnalysisConfig) LookupInterval() time.Duration {
	return time.Duration(a.LookupIntervalMs) * time.Millisecond
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("ROADCHECK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("server.port", 8000)
	v.SetDefault("server.allowed_origins", []string{"http://localhost:3000"})
	v.SetDefault("server.max_upload_mb", 20)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("overpass.base_url", "https://overpass-api.de")
	v.SetDefault("overpass.user_agent", "roadcheck/1.0")
	v.SetDefault("overpass.radius_meters", 50.0)
	v.SetDefault("overpass.timeout_secs", 30)
	v.SetDefault("overpass.rate_limit_rps", 2.0)
	v.SetDefault("overpass.cache_entries", 10000)
	v.SetDefault("overpass.cache_ttl_minutes", 60)
	v.SetDefault("overpass.retry.max_attempts", 3)
	v.SetDefault("overpass.retry.initial_backoff_ms", 500)
	v.SetDefault("overpass.circuit.failure_threshold", 5)
	v.SetDefault("overpass.circuit.reset_timeout_secs", 30)
	v.SetDefault("analysis.slope_threshold_percent", 10.0)
	v.SetDefault("analysis.max_samples_per_segment", 20)
	v.SetDefault("analysis.min_slope_distance_meters", 2.0)
	v.SetDefault("analysis.lookup_interval_ms", 100)

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks the settings needed by the given mode ("serve" or
// "analyze"). All problems are reported together.
func (c *Config) Validate(mode string) error {
	var problems []string

	switch mode {
	case "serve":
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			problems = append(problems, "server.port must be > 0 and <= 65535")
		}
		if c.Server.MaxUploadMB <= 0 {
			problems = append(problems, "server.max_upload_mb must be > 0")
		}
	case "analyze":
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if c.Overpass.BaseURL == "" {
		problems = append(problems, "overpass.base_url is required")
	}
	if c.Overpass.RadiusMeters <= 0 {
		problems = append(problems, "overpass.radius_meters must be > 0")
	}
	if c.Overpass.RateLimitRPS < 0 {
		problems = append(problems, "overpass.rate_limit_rps must be >= 0")
	}
	if c.Overpass.CacheEntries < 0 {
		problems = append(problems, "overpass.cache_entries must be >= 0")
	}
	if c.Analysis.SlopeThresholdPercent < 0 {
		problems = append(problems, "analysis.slope_threshold_percent must be >= 0")
	}
	if c.Analysis.MaxSamplesPerSegment < 1 {
		problems = append(problems, fmt.Sprintf("analysis.max_samples_per_segment must be >= 1, got %d", c.Analysis.MaxSamplesPerSegment))
	}
	if c.Analysis.LookupIntervalMs < 0 {
		problems = append(problems, "analysis.lookup_interval_ms must be >= 0")
	}

	if len(problems) > 0 {
		return eris.Errorf("config: %s", strings.Join(problems, "; "))
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
