package config

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// Transport identifies how a tool server is reached.
const (
	TransportStdio = "stdio"
	TransportHTTP  = "http"
)

// ServerConfig describes one configured tool server. Immutable once loaded.
type ServerConfig struct {
	Command   string            `mapstructure:"command" json:"command"`
	Args      []string          `mapstructure:"args" json:"args"`
	Env       map[string]string `mapstructure:"env" json:"env"`
	Enabled   bool              `mapstructure:"enabled" json:"enabled"`
	Transport string            `mapstructure:"transport" json:"transport"`
	URL       string            `mapstructure:"url" json:"url"`
}

// LLMConfig configures the language-model provider call contract.
type LLMConfig struct {
	BaseURL        string  `mapstructure:"base_url" json:"base_url"`
	APIKey         string  `mapstructure:"api_key" json:"-"`
	Model          string  `mapstructure:"model" json:"model"`
	Temperature    float64 `mapstructure:"temperature" json:"temperature"`
	MaxTokens      int     `mapstructure:"max_tokens" json:"max_tokens"`
	TimeoutSeconds int     `mapstructure:"timeout_seconds" json:"timeout_seconds"`
}

// HTTPConfig configures the caller-facing API server.
type HTTPConfig struct {
	Host           string   `mapstructure:"host" json:"host"`
	Port           int      `mapstructure:"port" json:"port"`
	AllowedOrigins []string `mapstructure:"allowed_origins" json:"allowed_origins"`
}

// Config is the full runtime configuration.
type Config struct {
	AutoStart            bool                    `mapstructure:"auto_start" json:"auto_start"`
	RetryIntervalSeconds int                     `mapstructure:"retry_interval_seconds" json:"retry_interval_seconds"`
	MaxRetries           int                     `mapstructure:"max_retries" json:"max_retries"`
	HTTPTimeoutSeconds   int                     `mapstructure:"http_timeout_seconds" json:"http_timeout_seconds"`
	MaxIterations        int                     `mapstructure:"max_iterations" json:"max_iterations"`
	LogLevel             string                  `mapstructure:"log_level" json:"log_level"`
	Servers              map[string]ServerConfig `mapstructure:"servers" json:"servers"`
	LLM                  LLMConfig               `mapstructure:"llm" json:"llm"`
	HTTP                 HTTPConfig              `mapstructure:"http" json:"http"`
}

// RetryInterval is the fixed delay between remote connection attempts.
func (c *Config) RetryInterval() time.Duration {
	return time.Duration(c.RetryIntervalSeconds) * time.Second
}

// HTTPTimeout bounds each remote tool-server HTTP call.
func (c *Config) HTTPTimeout() time.Duration {
	return time.Duration(c.HTTPTimeoutSeconds) * time.Second
}

// Server returns the named server config.
func (c *Config) Server(name string) (ServerConfig, bool) {
	sc, ok := c.Servers[name]
	return sc, ok
}

// ServerNames returns all configured server names in stable order.
func (c *Config) ServerNames() []string {
	names := make([]string, 0, len(c.Servers))
	for name := range c.Servers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Validate checks the loaded configuration for contradictions.
func (c *Config) Validate() error {
	if c.MaxIterations <= 0 {
		return fmt.Errorf("max_iterations must be positive, got %d", c.MaxIterations)
	}
	if c.MaxRetries <= 0 {
		return fmt.Errorf("max_retries must be positive, got %d", c.MaxRetries)
	}

	for name, sc := range c.Servers {
		if strings.TrimSpace(name) == "" {
			return fmt.Errorf("server with empty name")
		}
		switch sc.Transport {
		case "", TransportStdio:
			if strings.TrimSpace(sc.Command) == "" {
				return fmt.Errorf("server %q: stdio transport requires command", name)
			}
		case TransportHTTP:
			if strings.TrimSpace(sc.URL) == "" {
				return fmt.Errorf("server %q: http transport requires url", name)
			}
		default:
			return fmt.Errorf("server %q: unsupported transport %q", name, sc.Transport)
		}
	}

	return nil
}
