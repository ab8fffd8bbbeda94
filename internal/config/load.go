package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Defaults mirrored into viper before any file or env value is read.
const (
	DefaultRetryIntervalSeconds = 2
	DefaultMaxRetries           = 3
	DefaultHTTPTimeoutSeconds   = 10
	DefaultMaxIterations        = 10
	DefaultHTTPPort             = 8000
)

// Load reads configuration from the given file path (optional) plus OMNI_*
// environment overrides and returns the validated Config.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("OMNI")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	} else {
		v.SetConfigName("omni-secretary")
		v.SetConfigType("yaml")
		v.AddConfigPath("$HOME/.omni-secretary")
		v.AddConfigPath(".")
		// A missing default config file is fine; env and defaults still apply.
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("auto_start", true)
	v.SetDefault("retry_interval_seconds", DefaultRetryIntervalSeconds)
	v.SetDefault("max_retries", DefaultMaxRetries)
	v.SetDefault("http_timeout_seconds", DefaultHTTPTimeoutSeconds)
	v.SetDefault("max_iterations", DefaultMaxIterations)
	v.SetDefault("log_level", "info")
	v.SetDefault("http.host", "localhost")
	v.SetDefault("http.port", DefaultHTTPPort)
	v.SetDefault("http.allowed_origins", []string{"*"})
	v.SetDefault("llm.base_url", "https://api.openai.com/v1")
	v.SetDefault("llm.model", "gpt-4o-mini")
	v.SetDefault("llm.temperature", 0.2)
	v.SetDefault("llm.max_tokens", 2048)
	v.SetDefault("llm.timeout_seconds", 120)
}
