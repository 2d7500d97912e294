package main

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the full application configuration. Values come from defaults, an
// optional YAML file, STOCKS_* environment variables and command line flags, in
// increasing order of precedence.
type Config struct {
	HTTP     HTTPConfig     `mapstructure:"http"`
	Database DatabaseConfig `mapstructure:"database"`
	Auth     AuthConfig     `mapstructure:"auth"`
	Pictures PicturesConfig `mapstructure:"pictures"`
	Quotes   QuotesConfig   `mapstructure:"quotes"`
	Log      LogConfig      `mapstructure:"log"`
}

type HTTPConfig struct {
	Port string `mapstructure:"port"`
}

type DatabaseConfig struct {
	Path        string        `mapstructure:"path"`
	LogSQL      bool          `mapstructure:"log_sql"`
	BusyTimeout time.Duration `mapstructure:"busy_timeout"`
}

type AuthConfig struct {
	Secret     string        `mapstructure:"secret"`
	TokenTTL   time.Duration `mapstructure:"token_ttl"`
	BcryptCost int           `mapstructure:"bcrypt_cost"`
}

type PicturesConfig struct {
	Dir string `mapstructure:"dir"`
}

type QuotesConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// LogConfig selects console output, a rotating file, or both.
type LogConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	Output     string `mapstructure:"output"`
	FilePath   string `mapstructure:"file_path"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
	Compress   bool   `mapstructure:"compress"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("http.port", "8080")

	v.SetDefault("database.path", "site.db")
	v.SetDefault("database.log_sql", false)
	v.SetDefault("database.busy_timeout", 5*time.Second)

	v.SetDefault("auth.secret", "")
	v.SetDefault("auth.token_ttl", 24*time.Hour)
	v.SetDefault("auth.bcrypt_cost", 10)

	v.SetDefault("pictures.dir", "static/profile_pics")

	v.SetDefault("quotes.base_url", "https://query1.finance.yahoo.com")
	v.SetDefault("quotes.timeout", 30*time.Second)

	v.SetDefault("log.level", "debug")
	v.SetDefault("log.format", "text")
	v.SetDefault("log.output", "both")
	v.SetDefault("log.file_path", "messages.log")
	v.SetDefault("log.max_size_mb", 5)
	v.SetDefault("log.max_backups", 10)
	v.SetDefault("log.max_age_days", 0)
	v.SetDefault("log.compress", false)
}

// NewViper returns a viper instance with defaults and environment binding in place.
func NewViper() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix("STOCKS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// LoadConfig reads configFile when given and decodes everything into a Config.
func LoadConfig(v *viper.Viper, configFile string) (*Config, error) {
	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", configFile, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	return &cfg, nil
}

// ValidateForServer checks the settings the web server cannot run without.
func (c *Config) ValidateForServer() error {
	if c.Auth.Secret == "" {
		return errors.New("auth.secret must be set (STOCKS_AUTH_SECRET)")
	}
	if c.Auth.TokenTTL <= 0 {
		return errors.New("auth.token_ttl must be positive")
	}
	if c.HTTP.Port == "" {
		return errors.New("http.port must be set")
	}
	return nil
}
