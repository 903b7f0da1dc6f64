// Package config provides YAML and environment configuration for the rtsock
// command line tool.
package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/viper"
	"golang.org/x/time/rate"

	rtws "github.com/luciancaetano/rtsock/internal/websocket"
)

// Config is the root configuration of the rtsock tool.
type Config struct {
	// Server is the realtime endpoint sockets connect to.
	Server ServerConfig `mapstructure:"server"`

	// Session holds the credentials used on connect.
	Session SessionConfig `mapstructure:"session"`

	// RateLimit throttles outbound envelopes.
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`

	// Serve configures the local mock server started by `rtsock serve`.
	Serve ServeConfig `mapstructure:"serve"`

	// Log holds logging configuration
	Log LogConfig `mapstructure:"log"`
}

// ServerConfig locates the realtime endpoint.
type ServerConfig struct {
	Scheme         string        `mapstructure:"scheme"`
	Host           string        `mapstructure:"host"`
	Port           int           `mapstructure:"port"`
	Lang           string        `mapstructure:"lang"`
	ConnectTimeout time.Duration `mapstructure:"connect_timeout"`
	CallTimeout    time.Duration `mapstructure:"call_timeout"`
}

type SessionConfig struct {
	Token        string `mapstructure:"token"`
	RefreshToken string `mapstructure:"refresh_token"`
	// AppearOnline is sent as the status query parameter.
	AppearOnline bool `mapstructure:"appear_online"`
}

type RateLimitConfig struct {
	Enabled           bool    `mapstructure:"enabled"`
	MessagesPerSecond float64 `mapstructure:"messages_per_second"`
	Burst             int     `mapstructure:"burst"`
}

type ServeConfig struct {
	Addr string `mapstructure:"addr"`
	// RPCs lists the ids served by the built-in echo function.
	RPCs []string `mapstructure:"rpcs"`
}

// LogConfig defines logger settings.
type LogConfig struct {
	// Level: debug, info, warn, error
	Level string `mapstructure:"level"`
	// Format: console or json
	Format string `mapstructure:"format"`
	// Outputs: list of outputs: stdout, stderr, or file paths
	Outputs []string `mapstructure:"outputs"`

	// Rotation controls file rotation when writing to files
	Rotation RotationConfig `mapstructure:"rotation"`
	// Development toggles development-friendly logging options
	Development bool `mapstructure:"development"`
}

// RotationConfig controls log file rotation for file outputs.
type RotationConfig struct {
	Enable     bool   `mapstructure:"enable"`
	Filename   string `mapstructure:"filename"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
	Compress   bool   `mapstructure:"compress"`
}

// Default returns a Config pointing at a local server on the default port.
func Default() *Config {
	rl := rtws.DefaultRateLimitConfig()
	return &Config{
		Server: ServerConfig{
			Scheme:         rtws.DefaultScheme,
			Host:           "127.0.0.1",
			Port:           rtws.DefaultPort,
			Lang:           rtws.DefaultLang,
			ConnectTimeout: rtws.DefaultConnectTimeout,
			CallTimeout:    10 * time.Second,
		},
		Session: SessionConfig{AppearOnline: true},
		RateLimit: RateLimitConfig{
			Enabled:           rl.Enabled,
			MessagesPerSecond: float64(rl.MessagesPerSecond),
			Burst:             rl.Burst,
		},
		Serve: ServeConfig{
			Addr: ":7350",
			RPCs: []string{"echo"},
		},
		Log: LogConfig{
			Level:       "info",
			Format:      "console",
			Outputs:     []string{"stderr"},
			Development: false,
			Rotation: RotationConfig{
				Enable:     false,
				Filename:   "logs/rtsock.log",
				MaxSizeMB:  50,
				MaxBackups: 3,
				MaxAgeDays: 28,
				Compress:   true,
			},
		},
	}
}

// Load reads configuration from path (if non-empty), otherwise it searches
// common locations. Environment variables use the prefix RTSOCK and `.`/`-`
// are replaced with `_`, e.g. RTSOCK_SESSION_TOKEN=abc.
func Load(path string) (*Config, error) {
	cfg := Default()

	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix("RTSOCK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	// seed defaults for viper so env-only configs work
	v.SetDefault("server.scheme", cfg.Server.Scheme)
	v.SetDefault("server.host", cfg.Server.Host)
	v.SetDefault("server.port", cfg.Server.Port)
	v.SetDefault("server.lang", cfg.Server.Lang)
	v.SetDefault("server.connect_timeout", cfg.Server.ConnectTimeout)
	v.SetDefault("server.call_timeout", cfg.Server.CallTimeout)
	v.SetDefault("session.token", cfg.Session.Token)
	v.SetDefault("session.refresh_token", cfg.Session.RefreshToken)
	v.SetDefault("session.appear_online", cfg.Session.AppearOnline)
	v.SetDefault("rate_limit.enabled", cfg.RateLimit.Enabled)
	v.SetDefault("rate_limit.messages_per_second", cfg.RateLimit.MessagesPerSecond)
	v.SetDefault("rate_limit.burst", cfg.RateLimit.Burst)
	v.SetDefault("serve.addr", cfg.Serve.Addr)
	v.SetDefault("serve.rpcs", cfg.Serve.RPCs)
	v.SetDefault("log.level", cfg.Log.Level)
	v.SetDefault("log.format", cfg.Log.Format)
	v.SetDefault("log.outputs", cfg.Log.Outputs)
	v.SetDefault("log.development", cfg.Log.Development)
	v.SetDefault("log.rotation.enable", cfg.Log.Rotation.Enable)
	v.SetDefault("log.rotation.filename", cfg.Log.Rotation.Filename)
	v.SetDefault("log.rotation.max_size_mb", cfg.Log.Rotation.MaxSizeMB)
	v.SetDefault("log.rotation.max_backups", cfg.Log.Rotation.MaxBackups)
	v.SetDefault("log.rotation.max_age_days", cfg.Log.Rotation.MaxAgeDays)
	v.SetDefault("log.rotation.compress", cfg.Log.Rotation.Compress)

	if path == "" {
		path = os.Getenv("RTSOCK_CONFIG")
	}
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("rtsock")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".rtsock"))
		}
	}

	// A missing config file is fine; defaults and env still apply.
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, errors.Wrap(err, "read config")
		}
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, errors.Wrap(err, "decode config")
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch strings.ToLower(strings.TrimSpace(c.Log.Level)) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return errors.Errorf("invalid log.level: %q", c.Log.Level)
	}
	switch c.Server.Scheme {
	case "ws", "wss":
	default:
		return errors.Errorf("invalid server.scheme: %q", c.Server.Scheme)
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return errors.Errorf("invalid server.port: %d", c.Server.Port)
	}
	if c.RateLimit.Enabled && (c.RateLimit.MessagesPerSecond <= 0 || c.RateLimit.Burst <= 0) {
		return errors.New("rate_limit requires positive messages_per_second and burst when enabled")
	}

	if c.Log.Format == "" {
		c.Log.Format = "console"
	}
	if len(c.Log.Outputs) == 0 {
		c.Log.Outputs = []string{"stderr"}
	}
	return nil
}

// RateLimiter converts the rate limit section for the socket and mock server.
func (c *Config) RateLimiter() *rtws.RateLimitConfig {
	if !c.RateLimit.Enabled {
		return rtws.NoRateLimit()
	}
	return &rtws.RateLimitConfig{
		MessagesPerSecond: rate.Limit(c.RateLimit.MessagesPerSecond),
		Burst:             c.RateLimit.Burst,
		Enabled:           true,
	}
}

// Socket builds the socket configuration described by the server and rate
// limit sections. Logger, metrics and tracer are left for the caller.
func (c *Config) Socket() *rtws.Config {
	return &rtws.Config{
		Scheme:         c.Server.Scheme,
		Host:           c.Server.Host,
		Port:           c.Server.Port,
		Lang:           c.Server.Lang,
		ConnectTimeout: c.Server.ConnectTimeout,
		CallTimeout:    c.Server.CallTimeout,
		RateLimit:      c.RateLimiter(),
	}
}
