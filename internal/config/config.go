// Package config loads application configuration from config.yaml and the
// environment and initializes the global logger.
package config

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/CoReason-AI/coreason-etl-epar/internal/fetcher"
	"github.com/CoReason-AI/coreason-etl-epar/internal/pipeline"
	"github.com/CoReason-AI/coreason-etl-epar/internal/store"
)

// Config holds the full application configuration.
type Config struct {
	Store    store.Config    `yaml:"store" mapstructure:"store"`
	Pipeline pipeline.Config `yaml:"pipeline" mapstructure:"pipeline"`
	Fetch    FetchConfig     `yaml:"fetch" mapstructure:"fetch"`
	Log      LogConfig       `yaml:"log" mapstructure:"log"`
}

// FetchConfig configures the HTTP download behavior.
type FetchConfig struct {
	UserAgent         string  `yaml:"user_agent" mapstructure:"user_agent"`
	TimeoutSecs       int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	MaxRetries        int     `yaml:"max_retries" mapstructure:"max_retries"`
	RequestsPerSecond float64 `yaml:"requests_per_second" mapstructure:"requests_per_second"`
}

// HTTPOptions converts the fetch section into fetcher options.
func (f FetchConfig) HTTPOptions() fetcher.HTTPOptions {
	return fetcher.HTTPOptions{
		UserAgent:         f.UserAgent,
		Timeout:           time.Duration(f.TimeoutSecs) * time.Second,
		MaxRetries:        f.MaxRetries,
		RequestsPerSecond: f.RequestsPerSecond,
	}
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("COREASON")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.path", "coreason_etl.db")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("pipeline.work_dir", ".coreason_data")
	v.SetDefault("fetch.user_agent", "coreason-etl-epar/1.0")
	v.SetDefault("fetch.timeout_secs", 60)
	v.SetDefault("fetch.max_retries", 3)

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

// Validate checks the configuration for values that would fail at runtime.
func (c *Config) Validate() error {
	var problems []string

	switch c.Store.Driver {
	case "", "sqlite":
		if c.Store.Path == "" {
			problems = append(problems, "store.path is required for the sqlite driver")
		}
	case "postgres":
		if c.Store.DatabaseURL == "" {
			problems = append(problems, "store.database_url is required for the postgres driver")
		}
	default:
		problems = append(problems, "store.driver must be sqlite or postgres")
	}

	if c.Fetch.TimeoutSecs <= 0 {
		problems = append(problems, "fetch.timeout_secs must be > 0")
	}
	if c.Fetch.MaxRetries < 0 || c.Fetch.MaxRetries > 10 {
		problems = append(problems, "fetch.max_retries must be between 0 and 10")
	}
	if c.Fetch.RequestsPerSecond < 0 {
		problems = append(problems, "fetch.requests_per_second must be >= 0")
	}
	if c.Pipeline.HeaderRow < 0 {
		problems = append(problems, "pipeline.header_row must be >= 0")
	}

	if len(problems) > 0 {
		return eris.New("config: " + strings.Join(problems, "; "))
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
