// Package config resolves server configuration from defaults, an optional
// config file, environment variables and CLI overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	// EnvPrefix is prepended to every environment key, e.g. OPENROUTER_API_KEY.
	EnvPrefix = "OPENROUTER"

	DefaultBaseURL      = "https://openrouter.ai/api/v1"
	DefaultTimeout      = 60 * time.Second
	DefaultImageTimeout = 180 * time.Second
	DefaultCatalogTTL   = time.Hour
	DefaultImageModel   = "google/gemini-2.5-flash-image-preview"
)

// ErrMissingAPIKey is returned by Load when no API key was found.
var ErrMissingAPIKey = errors.New("OPENROUTER_API_KEY is not set")

// Config is the resolved server configuration.
type Config struct {
	APIKey       string        `mapstructure:"api_key"`
	BaseURL      string        `mapstructure:"base_url"`
	DefaultModel string        `mapstructure:"default_model"`
	ImageModel   string        `mapstructure:"image_model"`
	Timeout      time.Duration `mapstructure:"timeout"`
	ImageTimeout time.Duration `mapstructure:"image_timeout"`
	CatalogTTL   time.Duration `mapstructure:"catalog_ttl"`
	LogLevel     string        `mapstructure:"log_level"`
	LogFile      string        `mapstructure:"log_file"`
}

// Loader handles loading configuration from multiple sources
type Loader struct {
	v *viper.Viper
}

// NewLoader creates a new configuration loader. A .env file in the working
// directory is loaded into the process environment if present.
func NewLoader() *Loader {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("base_url", DefaultBaseURL)
	v.SetDefault("image_model", DefaultImageModel)
	v.SetDefault("timeout", DefaultTimeout)
	v.SetDefault("image_timeout", DefaultImageTimeout)
	v.SetDefault("catalog_ttl", DefaultCatalogTTL)
	v.SetDefault("log_level", "info")

	// AutomaticEnv only consults keys viper already knows about.
	for _, key := range []string{"api_key", "default_model", "log_file"} {
		_ = v.BindEnv(key)
	}

	return &Loader{v: v}
}

// Load resolves the configuration.
// Precedence: CLI overrides > environment > config file > defaults.
//
// configFile may be empty, in which case ~/.openrouter-mcp.yaml is used if it
// exists.
func (l *Loader) Load(configFile string, overrides map[string]any) (*Config, error) {
	if err := l.readConfigFile(configFile); err != nil {
		return nil, err
	}

	for key, value := range overrides {
		if value == nil {
			continue
		}
		if s, ok := value.(string); ok && s == "" {
			continue
		}
		l.v.Set(key, value)
	}

	var cfg Config
	if err := l.v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (l *Loader) readConfigFile(path string) error {
	explicit := path != ""
	if !explicit {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil
		}
		path = filepath.Join(home, ".openrouter-mcp.yaml")
	}

	if _, err := os.Stat(path); err != nil {
		if explicit {
			return fmt.Errorf("config file %s: %w", path, err)
		}
		return nil
	}

	l.v.SetConfigFile(path)
	if err := l.v.ReadInConfig(); err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	return nil
}

// Validate checks that required values are present and sane.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.APIKey) == "" {
		return ErrMissingAPIKey
	}
	if c.BaseURL == "" {
		return fmt.Errorf("base_url must not be empty")
	}
	if c.Timeout <= 0 || c.ImageTimeout <= 0 {
		return fmt.Errorf("timeouts must be positive (timeout=%s, image_timeout=%s)", c.Timeout, c.ImageTimeout)
	}
	if c.CatalogTTL <= 0 {
		return fmt.Errorf("catalog_ttl must be positive, got %s", c.CatalogTTL)
	}
	return nil
}
