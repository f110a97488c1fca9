// Package config loads enricher settings from an optional YAML file,
// ENRICHER_-prefixed environment variables and command-line flags.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Gemini   GeminiConfig   `mapstructure:"gemini"`
	Pipeline PipelineConfig `mapstructure:"pipeline"`
	Store    StoreConfig    `mapstructure:"store"`
	Server   ServerConfig   `mapstructure:"server"`
	Log      LogConfig      `mapstructure:"log"`
}

type GeminiConfig struct {
	APIKey          string `mapstructure:"api_key"`
	BaseURL         string `mapstructure:"base_url"`
	SearchModel     string `mapstructure:"search_model"`
	ExtractionModel string `mapstructure:"extraction_model"`
	CaptureAudit    bool   `mapstructure:"capture_audit"`
}

type PipelineConfig struct {
	Workers          int           `mapstructure:"workers"`
	MaxRetries       int           `mapstructure:"max_retries"`
	RequestTimeout   time.Duration `mapstructure:"request_timeout"`
	ProductTimeout   time.Duration `mapstructure:"product_timeout"`
	RateLimitRPS     float64       `mapstructure:"rate_limit_rps"`
	ImageConcurrency int           `mapstructure:"image_concurrency"`
	ImageTimeout     time.Duration `mapstructure:"image_timeout"`
	MaxImageBytes    int64         `mapstructure:"max_image_bytes"`
}

type StoreConfig struct {
	Path string `mapstructure:"path"`
}

type ServerConfig struct {
	Addr           string   `mapstructure:"addr"`
	Environment    string   `mapstructure:"environment"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// New returns a viper instance with defaults, config file search paths and
// environment bindings installed. Callers may bind flags before calling Load.
func New(cfgFile string) *viper.Viper {
	v := viper.New()

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("enricher")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("/etc/enricher/")
	}

	v.SetEnvPrefix("ENRICHER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	// The plain Gemini variable is honoured as well.
	_ = v.BindEnv("gemini.api_key", "ENRICHER_GEMINI_API_KEY", "GEMINI_API_KEY")

	setDefaults(v)
	return v
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("gemini.api_key", "")
	v.SetDefault("gemini.base_url", "")
	v.SetDefault("gemini.search_model", "gemini-2.5-flash")
	v.SetDefault("gemini.extraction_model", "gemini-2.5-pro")
	v.SetDefault("gemini.capture_audit", false)

	v.SetDefault("pipeline.workers", 4)
	v.SetDefault("pipeline.max_retries", 0)
	v.SetDefault("pipeline.request_timeout", "60s")
	v.SetDefault("pipeline.product_timeout", "5m")
	v.SetDefault("pipeline.rate_limit_rps", 0)
	v.SetDefault("pipeline.image_concurrency", 4)
	v.SetDefault("pipeline.image_timeout", "20s")
	v.SetDefault("pipeline.max_image_bytes", 20<<20)

	v.SetDefault("store.path", "enricher.db")

	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.environment", "development")
	v.SetDefault("server.allowed_origins", []string{"http://localhost:8080", "http://localhost:5173"})

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
}

// Load reads the config file (if any) and decodes v into a Config.
func Load(v *viper.Viper) (*Config, error) {
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}
	cfg.Gemini.APIKey = strings.TrimSpace(cfg.Gemini.APIKey)

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.Pipeline.Workers <= 0 {
		return fmt.Errorf("pipeline.workers must be positive, got %d", c.Pipeline.Workers)
	}
	if c.Pipeline.MaxRetries < 0 {
		return fmt.Errorf("pipeline.max_retries must not be negative, got %d", c.Pipeline.MaxRetries)
	}
	if c.Pipeline.RequestTimeout <= 0 {
		return errors.New("pipeline.request_timeout must be positive")
	}
	if c.Pipeline.RateLimitRPS < 0 {
		return fmt.Errorf("pipeline.rate_limit_rps must not be negative, got %g", c.Pipeline.RateLimitRPS)
	}
	if c.Store.Path == "" {
		return errors.New("store.path is required")
	}
	switch c.Log.Format {
	case "json", "console":
	default:
		return fmt.Errorf("log.format must be 'json' or 'console', got: %s", c.Log.Format)
	}
	return nil
}

// RequireGemini reports a configuration error when no Gemini API key is set.
// Commands that never call the model skip this check.
func (c *Config) RequireGemini() error {
	if c.Gemini.APIKey == "" {
		return errors.New("Gemini API key is required (set ENRICHER_GEMINI_API_KEY or GEMINI_API_KEY)")
	}
	return nil
}
