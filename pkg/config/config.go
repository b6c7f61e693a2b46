// Package config loads connector settings from an optional YAML file and
// ONEBOT_* environment variables. Environment wins over the file.
package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"

	"github.com/sipeed/onebot-go/pkg/logger"
)

// EnvPrefix is prepended to every environment variable name.
const EnvPrefix = "ONEBOT_"

type Config struct {
	OneBot    OneBotConfig     `yaml:"onebot"`
	Log       LogConfig        `yaml:"log" envPrefix:"LOG_"`
	Status    StatusConfig     `yaml:"status" envPrefix:"STATUS_"`
	Schedules []ScheduleConfig `yaml:"schedules"`
}

// OneBotConfig describes the websocket endpoint and connection tuning.
type OneBotConfig struct {
	URL              string            `yaml:"url" env:"URL"`
	Headers          map[string]string `yaml:"headers" env:"HEADERS"`
	HandshakeTimeout time.Duration     `yaml:"handshake_timeout" env:"HANDSHAKE_TIMEOUT"`
	PingInterval     time.Duration     `yaml:"ping_interval" env:"PING_INTERVAL"`
	ReadTimeout      time.Duration     `yaml:"read_timeout" env:"READ_TIMEOUT"`
	WriteTimeout     time.Duration     `yaml:"write_timeout" env:"WRITE_TIMEOUT"`
	ReadLimit        int64             `yaml:"read_limit" env:"READ_LIMIT"`
	MaxPending       int               `yaml:"max_pending" env:"MAX_PENDING"`
	EventQueueSize   int               `yaml:"event_queue_size" env:"EVENT_QUEUE_SIZE"` // 0 = unbounded
	InlineDispatch   bool              `yaml:"inline_dispatch" env:"INLINE_DISPATCH"`
}

type LogConfig struct {
	Level  string `yaml:"level" env:"LEVEL"`
	Format string `yaml:"format" env:"FORMAT"`
}

// StatusConfig controls the local HTTP status server. Empty Addr disables it.
type StatusConfig struct {
	Addr string `yaml:"addr" env:"ADDR"`
}

// ScheduleConfig is one cron-driven action.
type ScheduleConfig struct {
	Name     string         `yaml:"name"`
	Cron     string         `yaml:"cron"`
	Action   string         `yaml:"action"`
	Params   map[string]any `yaml:"params"`
	Disabled bool           `yaml:"disabled"`
}

// Default returns the built-in settings.
func Default() Config {
	return Config{
		OneBot: OneBotConfig{
			URL:              "ws://127.0.0.1:6700",
			HandshakeTimeout: 10 * time.Second,
			PingInterval:     30 * time.Second,
			ReadTimeout:      60 * time.Second,
			WriteTimeout:     10 * time.Second,
			ReadLimit:        16 << 20,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load reads path (if non-empty) over the defaults, applies environment
// overrides and validates the result.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
		logger.DebugCF("config", "Loaded config file", map[string]interface{}{
			"path": path,
		})
	}

	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the settings for obvious mistakes.
func (c *Config) Validate() error {
	var errs []error

	u, err := url.Parse(c.OneBot.URL)
	switch {
	case c.OneBot.URL == "":
		errs = append(errs, errors.New("onebot.url is required"))
	case err != nil:
		errs = append(errs, fmt.Errorf("onebot.url: %w", err))
	case u.Scheme != "ws" && u.Scheme != "wss":
		errs = append(errs, fmt.Errorf("onebot.url: scheme must be ws or wss, got %q", u.Scheme))
	}

	for name, d := range map[string]time.Duration{
		"handshake_timeout": c.OneBot.HandshakeTimeout,
		"ping_interval":     c.OneBot.PingInterval,
		"read_timeout":      c.OneBot.ReadTimeout,
		"write_timeout":     c.OneBot.WriteTimeout,
	} {
		if d < 0 {
			errs = append(errs, fmt.Errorf("onebot.%s must not be negative", name))
		}
	}
	if c.OneBot.PingInterval > 0 && c.OneBot.ReadTimeout > 0 && c.OneBot.PingInterval >= c.OneBot.ReadTimeout {
		errs = append(errs, errors.New("onebot.ping_interval must be shorter than onebot.read_timeout"))
	}
	if c.OneBot.MaxPending < 0 {
		errs = append(errs, errors.New("onebot.max_pending must not be negative"))
	}
	if c.OneBot.EventQueueSize < 0 {
		errs = append(errs, errors.New("onebot.event_queue_size must not be negative"))
	}

	if _, err := logger.ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, fmt.Errorf("log.level: %w", err))
	}
	if c.Log.Format != "" && c.Log.Format != "text" && c.Log.Format != "json" {
		errs = append(errs, fmt.Errorf("log.format: must be text or json, got %q", c.Log.Format))
	}

	if c.Status.Addr != "" {
		if _, _, err := net.SplitHostPort(c.Status.Addr); err != nil {
			errs = append(errs, fmt.Errorf("status.addr: %w", err))
		}
	}

	for i, s := range c.Schedules {
		if s.Cron == "" || s.Action == "" {
			errs = append(errs, fmt.Errorf("schedules[%d]: cron and action are required", i))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}
