package config

import (
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all configuration for the inspector.
type Config struct {
	APIKey     string        `mapstructure:"api_key"`
	BaseURL    string        `mapstructure:"base_url"`
	WebBaseURL string        `mapstructure:"web_base_url"`
	CacheTTL   time.Duration `mapstructure:"cache_ttl"`
	Timeout    time.Duration `mapstructure:"timeout"`
	WebTimeout time.Duration `mapstructure:"web_timeout"`
	NoCache    bool          `mapstructure:"no_cache"`
	LogLevel   string        `mapstructure:"log_level"`
}

// Load reads configuration from file, environment, and defaults.
// A local .env file, when present, is folded into the environment
// before viper resolves anything.
func Load(cfgFile string) (*Config, error) {
	// Missing .env is the normal case.
	_ = godotenv.Load()

	v := viper.New()

	v.SetDefault("base_url", "https://openrouter.ai/api/v1")
	v.SetDefault("web_base_url", "https://openrouter.ai/models")
	v.SetDefault("cache_ttl", "1h")
	v.SetDefault("timeout", "30s")
	v.SetDefault("web_timeout", "10s")
	v.SetDefault("no_cache", false)
	v.SetDefault("log_level", "info")

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.config/orin")
	}

	v.SetEnvPrefix("ORIN")
	v.AutomaticEnv()

	_ = v.BindEnv("api_key", "OPENROUTER_API_KEY")
	_ = v.BindEnv("base_url", "OPENROUTER_BASE_URL")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if cfg.APIKey == "" {
		return nil, fmt.Errorf("no API key configured: set OPENROUTER_API_KEY or api_key in the config file")
	}

	return &cfg, nil
}
