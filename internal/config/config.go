package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Registry modes.
const (
	RegistryModeLive = "live"
	RegistryModeDemo = "demo"
)

// Config holds the full application configuration.
type Config struct {
	Anthropic AnthropicConfig `yaml:"anthropic" mapstructure:"anthropic"`
	Regrid    RegridConfig    `yaml:"regrid" mapstructure:"regrid"`
	Registry  RegistryConfig  `yaml:"registry" mapstructure:"registry"`
	Pipeline  PipelineConfig  `yaml:"pipeline" mapstructure:"pipeline"`
	Output    OutputConfig    `yaml:"output" mapstructure:"output"`
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
}

// AnthropicConfig holds settings for the vision inference service.
type AnthropicConfig struct {
	Key         string  `yaml:"key" mapstructure:"key"`
	Model       string  `yaml:"model" mapstructure:"model"`
	MaxTokens   int64   `yaml:"max_tokens" mapstructure:"max_tokens"`
	Temperature float64 `yaml:"temperature" mapstructure:"temperature"`
}

// RegridConfig holds parcel registry API settings.
type RegridConfig struct {
	Token       string      `yaml:"token" mapstructure:"token"`
	BaseURL     string      `yaml:"base_url" mapstructure:"base_url"`
	RateLimit   float64     `yaml:"rate_limit" mapstructure:"rate_limit"`
	TimeoutSecs int         `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	Retry       RetryConfig `yaml:"retry" mapstructure:"retry"`
}

// RetryConfig configures transport-level retries against the registry.
type RetryConfig struct {
	MaxAttempts      int `yaml:"max_attempts" mapstructure:"max_attempts"`
	InitialBackoffMs int `yaml:"initial_backoff_ms" mapstructure:"initial_backoff_ms"`
	MaxBackoffMs     int `yaml:"max_backoff_ms" mapstructure:"max_backoff_ms"`
}

// RegistryConfig selects the registry backend.
type RegistryConfig struct {
	Mode        string `yaml:"mode" mapstructure:"mode"`
	FixturePath string `yaml:"fixture_path" mapstructure:"fixture_path"`
}

// PipelineConfig configures batch processing.
type PipelineConfig struct {
	Concurrency int `yaml:"concurrency" mapstructure:"concurrency"`
}

// OutputConfig configures artifact persistence.
type OutputConfig struct {
	Dir       string `yaml:"dir" mapstructure:"dir"`
	Shapefile bool   `yaml:"shapefile" mapstructure:"shapefile"`
}

// ServerConfig configures the web front-end.
type ServerConfig struct {
	Port           int      `yaml:"port" mapstructure:"port"`
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Demo reports whether the fixture-backed registry is selected.
func (c *Config) Demo() bool {
	return strings.EqualFold(c.Registry.Mode, RegistryModeDemo)
}

// Validate checks that the credentials required by the selected mode are present.
// needVision is false for entry points that never call the inference service.
func (c *Config) Validate(needVision bool) error {
	switch strings.ToLower(c.Registry.Mode) {
	case RegistryModeLive, RegistryModeDemo:
	default:
		return eris.Errorf("config: unknown registry mode %q", c.Registry.Mode)
	}
	if needVision && c.Anthropic.Key == "" {
		return eris.New("config: anthropic.key is required")
	}
	if !c.Demo() && c.Regrid.Token == "" {
		return eris.New("config: regrid.token is required in live mode")
	}
	if c.Pipeline.Concurrency <= 0 {
		return eris.New("config: pipeline.concurrency must be positive")
	}
	return nil
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("PARCELIZER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("anthropic.key", "")
	v.SetDefault("anthropic.model", "claude-sonnet-4-5-20250929")
	v.SetDefault("anthropic.max_tokens", 1000)
	v.SetDefault("anthropic.temperature", 0.1)
	v.SetDefault("regrid.token", "")
	v.SetDefault("regrid.base_url", "https://app.regrid.com/api/v2")
	v.SetDefault("regrid.rate_limit", 5.0)
	v.SetDefault("regrid.timeout_secs", 30)
	v.SetDefault("regrid.retry.max_attempts", 3)
	v.SetDefault("regrid.retry.initial_backoff_ms", 500)
	v.SetDefault("regrid.retry.max_backoff_ms", 10000)
	v.SetDefault("registry.mode", RegistryModeLive)
	v.SetDefault("registry.fixture_path", "")
	v.SetDefault("pipeline.concurrency", 4)
	v.SetDefault("output.dir", "output")
	v.SetDefault("output.shapefile", false)
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.allowed_origins", []string{"http://localhost:8080", "http://127.0.0.1:8080"})
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

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
