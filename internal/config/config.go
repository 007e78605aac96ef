package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store    StoreConfig    `yaml:"store" mapstructure:"store"`
	Analysis AnalysisConfig `yaml:"analysis" mapstructure:"analysis"`
	Rules    RulesConfig    `yaml:"rules" mapstructure:"rules"`
	Batch    BatchConfig    `yaml:"batch" mapstructure:"batch"`
	Server   ServerConfig   `yaml:"server" mapstructure:"server"`
	Log      LogConfig      `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend. For sqlite DatabaseURL is a
// file path; for postgres it is a connection string.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// AnalysisConfig configures segmentation and extraction.
type AnalysisConfig struct {
	MinSegmentLength int    `yaml:"min_segment_length" mapstructure:"min_segment_length"`
	DefaultBureau    string `yaml:"default_bureau" mapstructure:"default_bureau"`
}

// RulesConfig selects and tunes the rule registry.
type RulesConfig struct {
	Disabled      []string `yaml:"disabled" mapstructure:"disabled"`
	OverridesFile string   `yaml:"overrides_file" mapstructure:"overrides_file"`
}

// BatchConfig configures multi-file analysis.
type BatchConfig struct {
	MaxConcurrentFiles int `yaml:"max_concurrent_files" mapstructure:"max_concurrent_files"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Port       int     `yaml:"port" mapstructure:"port"`
	RatePerSec float64 `yaml:"rate_per_sec" mapstructure:"rate_per_sec"`
	Burst      int     `yaml:"burst" mapstructure:"burst"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Bureau hints accepted by analysis.
var Bureaus = []string{"unspecified", "experian", "equifax", "transunion"}

// ValidBureau reports whether b is an accepted bureau hint.
func ValidBureau(b string) bool {
	for _, v := range Bureaus {
		if v == b {
			return true
		}
	}
	return false
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("REAGE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "reage.db")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.rate_per_sec", 10.0)
	v.SetDefault("server.burst", 20)
	v.SetDefault("batch.max_concurrent_files", 4)
	v.SetDefault("analysis.min_segment_length", 50)
	v.SetDefault("analysis.default_bureau", "unspecified")
	v.SetDefault("rules.disabled", []string{})
	v.SetDefault("rules.overrides_file", "")

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

// Validate checks the configuration for a run mode and reports every
// problem found. Modes: "analyze", "store" (history/export/import) and
// "serve".
func (c *Config) Validate(mode string) error {
	var errs []string

	checkStore := func() {
		switch c.Store.Driver {
		case "sqlite", "postgres":
		default:
			errs = append(errs, "store.driver must be sqlite or postgres, got "+quote(c.Store.Driver))
		}
		if c.Store.DatabaseURL == "" {
			errs = append(errs, "store.database_url is required")
		}
	}
	checkAnalysis := func() {
		if c.Batch.MaxConcurrentFiles < 1 || c.Batch.MaxConcurrentFiles > 64 {
			errs = append(errs, "batch.max_concurrent_files must be between 1 and 64")
		}
		if c.Analysis.MinSegmentLength < 0 {
			errs = append(errs, "analysis.min_segment_length must be >= 0")
		}
		if !ValidBureau(c.Analysis.DefaultBureau) {
			errs = append(errs, "analysis.default_bureau must be one of "+strings.Join(Bureaus, ", "))
		}
	}

	switch mode {
	case "analyze":
		checkAnalysis()
	case "store":
		checkStore()
	case "serve":
		checkStore()
		checkAnalysis()
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			errs = append(errs, "server.port must be > 0 and <= 65535")
		}
		if c.Server.RatePerSec <= 0 || c.Server.Burst <= 0 {
			errs = append(errs, "server.rate_per_sec and server.burst must be > 0")
		}
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}
	if _, err := zapcore.ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, "log.level is invalid: "+quote(c.Log.Level))
	}

	if len(errs) > 0 {
		return eris.Errorf("config: validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

func quote(s string) string { return `"` + s + `"` }

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
