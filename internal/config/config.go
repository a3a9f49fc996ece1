package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for folio
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Upstream  UpstreamConfig  `mapstructure:"upstream"`
	Assistant AssistantConfig `mapstructure:"assistant"`
	Content   ContentConfig   `mapstructure:"content"`
	Database  DatabaseConfig  `mapstructure:"database"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	CORS      CORSConfig      `mapstructure:"cors"`
	Widget    WidgetConfig    `mapstructure:"widget"`
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Host    string `mapstructure:"host"`
	Port    int    `mapstructure:"port"`
	BaseURL string `mapstructure:"base_url"`
}

// UpstreamConfig holds the chat-completion provider configuration.
// APIKey is read on every proxy request; an empty key fails that request.
type UpstreamConfig struct {
	BaseURL      string        `mapstructure:"base_url"`
	APIKey       string        `mapstructure:"api_key"`
	Model        string        `mapstructure:"model"`
	Timeout      time.Duration `mapstructure:"timeout"`
	MaxErrorBody int64         `mapstructure:"max_error_body"`
}

// AssistantConfig holds the system instruction sent ahead of every conversation
type AssistantConfig struct {
	Owner        string `mapstructure:"owner"`
	Instructions string `mapstructure:"instructions"`
}

// ContentConfig holds the knowledge-base resource configuration
type ContentConfig struct {
	Path  string `mapstructure:"path"`
	Route string `mapstructure:"route"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	Enabled           bool `mapstructure:"enabled"`
	RequestsPerMinute int  `mapstructure:"requests_per_minute"`
	Burst             int  `mapstructure:"burst"`
}

// CORSConfig holds allowed origins for the public endpoints
type CORSConfig struct {
	AllowOrigins []string `mapstructure:"allow_origins"`
}

// WidgetConfig holds chat client configuration
type WidgetConfig struct {
	Mode           string        `mapstructure:"mode"`
	ProxyURL       string        `mapstructure:"proxy_url"`
	ContextURL     string        `mapstructure:"context_url"`
	IdleTimeout    time.Duration `mapstructure:"idle_timeout"`
	ReopenAfter    time.Duration `mapstructure:"reopen_after"`
	HistoryLimit   int           `mapstructure:"history_limit"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	WelcomeMessage string        `mapstructure:"welcome_message"`
	Placeholder    string        `mapstructure:"placeholder"`
}

// Load loads configuration from file and environment
func Load(configPath string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	v.SetEnvPrefix("FOLIO")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// The hosted function read DEEPSEEK_API_KEY, keep accepting it.
	if err := v.BindEnv("upstream.api_key", "FOLIO_UPSTREAM_API_KEY", "DEEPSEEK_API_KEY"); err != nil {
		return nil, fmt.Errorf("failed to bind upstream key: %w", err)
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.base_url", "http://localhost:8080")

	v.SetDefault("upstream.base_url", "https://api.deepseek.com/v1")
	v.SetDefault("upstream.api_key", "")
	v.SetDefault("upstream.model", "deepseek-chat")
	v.SetDefault("upstream.timeout", 30*time.Second)
	v.SetDefault("upstream.max_error_body", 64*1024)

	v.SetDefault("assistant.owner", "the site owner")
	v.SetDefault("assistant.instructions", DefaultInstructions)

	v.SetDefault("content.path", "./data/portfolio_data.json")
	v.SetDefault("content.route", "/portfolio_data.json")

	v.SetDefault("database.path", "./data/folio.db")

	v.SetDefault("rate_limit.enabled", true)
	v.SetDefault("rate_limit.requests_per_minute", 20)
	v.SetDefault("rate_limit.burst", 5)

	v.SetDefault("cors.allow_origins", []string{"*"})

	v.SetDefault("widget.mode", "backend")
	v.SetDefault("widget.proxy_url", "http://localhost:8080")
	v.SetDefault("widget.context_url", "")
	v.SetDefault("widget.idle_timeout", 5*time.Minute)
	v.SetDefault("widget.reopen_after", time.Duration(0))
	v.SetDefault("widget.history_limit", 20)
	v.SetDefault("widget.request_timeout", 60*time.Second)
	v.SetDefault("widget.welcome_message", "Hello! How can I help you learn more about my work today?")
	v.SetDefault("widget.placeholder", "Ask me anything...")
}

// DefaultInstructions is the system instruction template. %s is replaced by the owner name.
const DefaultInstructions = `You are %s's personal AI assistant. Your voice should be casual, friendly, and approachable. ` +
	`Answer questions based ONLY on the provided portfolio information. Avoid sounding like a generic AI. ` +
	`Encourage users to reach out for professional collaborations. If you don't know the answer from the context, ` +
	`say that you don't have the details on that and suggest getting in touch directly.`

// Validate checks values that would otherwise fail at request time
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.Upstream.Timeout <= 0 {
		return fmt.Errorf("upstream timeout must be positive, got %s", c.Upstream.Timeout)
	}
	if c.Widget.IdleTimeout <= 0 {
		return fmt.Errorf("widget idle timeout must be positive, got %s", c.Widget.IdleTimeout)
	}
	if c.Widget.ReopenAfter < 0 {
		return fmt.Errorf("widget reopen delay must not be negative, got %s", c.Widget.ReopenAfter)
	}
	if c.RateLimit.Enabled && c.RateLimit.RequestsPerMinute <= 0 {
		return fmt.Errorf("rate limit requests_per_minute must be positive when enabled")
	}
	return nil
}

// Address returns the server address
func (c *Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// SystemInstruction renders the instruction header for the configured owner
func (c *Config) SystemInstruction() string {
	if strings.Contains(c.Assistant.Instructions, "%s") {
		return fmt.Sprintf(c.Assistant.Instructions, c.Assistant.Owner)
	}
	return c.Assistant.Instructions
}
