// Package config defines configuration structures for tg-flow.
// Files are YAML or JSON; both are decoded through mapstructure so durations like "30s"
// work in either format.
package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"
)

// Environment variables that override file settings.
const (
	EnvBotToken    = "TGFLOW_BOT_TOKEN"
	EnvAllowFrom   = "TGFLOW_ALLOW_FROM"
	EnvRedisAddr   = "TGFLOW_REDIS_ADDR"
	EnvMetricsAddr = "TGFLOW_METRICS_ADDR"
)

// Config is the complete configuration of a tg-flow bot.
type Config struct {
	// Bot contains the Telegram settings.
	Bot *BotConfig `json:"bot" yaml:"bot" mapstructure:"bot"`

	// Engine contains defaults applied to every flow.
	Engine EngineConfig `json:"engine" yaml:"engine" mapstructure:"engine"`

	// Logging configures the slog logger.
	Logging LoggingConfig `json:"logging" yaml:"logging" mapstructure:"logging"`

	// Redis configures the distributed run lock. Empty Addr keeps locks in memory.
	Redis RedisConfig `json:"redis" yaml:"redis" mapstructure:"redis"`

	// Metrics configures the Prometheus endpoint.
	Metrics MetricsConfig `json:"metrics" yaml:"metrics" mapstructure:"metrics"`

	// Flows are declarative flows keyed by name.
	Flows map[string]*FlowConfig `json:"flows" yaml:"flows" mapstructure:"flows"`

	// Environment holds free-form values handlers may decode with Decode.
	Environment map[string]any `json:"environment" yaml:"environment" mapstructure:"environment"`
}

// EngineConfig holds engine defaults.
type EngineConfig struct {
	// InputCleanup is how long accepted user replies stay before being deleted. 0 keeps them.
	InputCleanup time.Duration `json:"input_cleanup" yaml:"input_cleanup" mapstructure:"input_cleanup"`

	// FailureMessage is sent when a handler fails. Empty uses the engine default.
	FailureMessage string `json:"failure_message" yaml:"failure_message" mapstructure:"failure_message"`

	// CleanupInterval is how often expired conversations are cancelled.
	CleanupInterval time.Duration `json:"cleanup_interval" yaml:"cleanup_interval" mapstructure:"cleanup_interval"`
}

// LoggingConfig configures logging.
type LoggingConfig struct {
	// Level is debug, info, warn or error.
	Level string `json:"level" yaml:"level" mapstructure:"level"`

	// Format is text or json.
	Format string `json:"format" yaml:"format" mapstructure:"format"`

	// AddSource reports the caller in each record.
	AddSource bool `json:"add_source" yaml:"add_source" mapstructure:"add_source"`
}

// RedisConfig configures the Redis locker.
type RedisConfig struct {
	Addr     string        `json:"addr" yaml:"addr" mapstructure:"addr"`
	Password string        `json:"password" yaml:"password" mapstructure:"password"`
	DB       int           `json:"db" yaml:"db" mapstructure:"db"`
	Prefix   string        `json:"prefix" yaml:"prefix" mapstructure:"prefix"`
	LockTTL  time.Duration `json:"lock_ttl" yaml:"lock_ttl" mapstructure:"lock_ttl"`
}

// MetricsConfig configures the metrics HTTP server.
type MetricsConfig struct {
	Enabled bool   `json:"enabled" yaml:"enabled" mapstructure:"enabled"`
	Addr    string `json:"addr" yaml:"addr" mapstructure:"addr"`
}

// NewConfig creates a configuration with defaults.
func NewConfig() *Config {
	return &Config{
		Bot: NewDefaultBotConfig(),
		Engine: EngineConfig{
			InputCleanup:    2 * time.Second,
			CleanupInterval: 5 * time.Minute,
		},
		Logging: LoggingConfig{Level: "info", Format: "text"},
		Redis:   RedisConfig{Prefix: "tgflow:", LockTTL: 30 * time.Minute},
		Metrics: MetricsConfig{Addr: ":9090"},
		Flows:   make(map[string]*FlowConfig),
	}
}

// LoadFromFile loads a .env file next to the working directory if present, then the
// configuration at path, then applies environment overrides.
func LoadFromFile(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg, err := LoadFromBytes(data, path)
	if err != nil {
		return nil, err
	}
	cfg.ApplyEnv()
	return cfg, nil
}

// LoadFromBytes parses configuration data. The path extension selects JSON or YAML.
func LoadFromBytes(data []byte, path string) (*Config, error) {
	raw := make(map[string]any)
	if strings.HasSuffix(path, ".json") {
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.UseNumber()
		if err := dec.Decode(&raw); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	} else if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	cfg := NewConfig()
	if err := Decode(raw, cfg); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	for name, f := range cfg.Flows {
		if f != nil && f.Name == "" {
			f.Name = name
		}
	}
	return cfg, nil
}

// Decode copies a generic value (usually a map from YAML, JSON or flow data) into out
// using mapstructure tags. Strings are converted to durations and numbers as needed.
func Decode(input, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		WeaklyTypedInput: true,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		),
	})
	if err != nil {
		return err
	}
	return dec.Decode(input)
}

// ApplyEnv overrides settings from environment variables.
func (c *Config) ApplyEnv() {
	if c.Bot == nil {
		c.Bot = NewDefaultBotConfig()
	}
	if v := os.Getenv(EnvBotToken); v != "" {
		c.Bot.Token = v
	}
	if v := os.Getenv(EnvAllowFrom); v != "" {
		c.Bot.AllowFrom = nil
		for _, part := range strings.Split(v, ",") {
			if id, err := strconv.ParseInt(strings.TrimSpace(part), 10, 64); err == nil {
				c.Bot.AllowFrom = append(c.Bot.AllowFrom, id)
			}
		}
	}
	if v := os.Getenv(EnvRedisAddr); v != "" {
		c.Redis.Addr = v
	}
	if v := os.Getenv(EnvMetricsAddr); v != "" {
		c.Metrics.Addr = v
		c.Metrics.Enabled = true
	}
}

// Validate checks the bot settings and every declared flow.
func (c *Config) Validate() error {
	if c.Bot == nil {
		return ErrEmptyToken
	}
	if err := c.Bot.Validate(); err != nil {
		return err
	}
	for name, f := range c.Flows {
		if err := f.Validate(); err != nil {
			return fmt.Errorf("flow %q: %w", name, err)
		}
	}
	return nil
}

// GetFlow returns a declared flow, or nil.
func (c *Config) GetFlow(name string) *FlowConfig {
	return c.Flows[name]
}
