package websocket

import (
	"net"
	"net/url"
	"strconv"
	"time"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/luciancaetano/rtsock"
	"github.com/luciancaetano/rtsock/internal/metrics"
)

// Defaults
const (
	DefaultScheme         = "ws"
	DefaultPort           = 7350
	DefaultLang           = "en"
	DefaultConnectTimeout = 10 * time.Second
	DefaultTickInterval   = 16 * time.Millisecond
)

// Config configures a Socket.
type Config struct {
	// Scheme is "ws" or "wss".
	Scheme string
	Host   string
	Port   int
	// Lang is sent as the lang query parameter on connect.
	Lang string

	// ConnectTimeout bounds the dial and the wait for the connected signal.
	ConnectTimeout time.Duration
	// CallTimeout bounds every call/response operation. Zero waits until the
	// reply arrives, the context is done, or the socket closes.
	CallTimeout time.Duration
	// TickInterval is the cadence Run uses when given a zero interval.
	TickInterval time.Duration

	// RateLimit throttles outbound envelopes. Nil uses DefaultRateLimitConfig.
	RateLimit *RateLimitConfig

	// Logger receives socket logs. Nil disables logging.
	Logger *zap.Logger
	// Metrics records socket activity. Nil disables metrics.
	Metrics *metrics.Collector
	// Tracer starts a span per call. Nil uses the global "rtsock" tracer.
	Tracer trace.Tracer
}

// RateLimitConfig defines client-side rate limiting of outbound envelopes.
type RateLimitConfig struct {
	// MessagesPerSecond defines how many envelopes the socket sends per second
	MessagesPerSecond rate.Limit
	// Burst defines the maximum burst size (token bucket capacity)
	Burst int
	// Enabled determines if rate limiting is active
	Enabled bool
}

// DefaultRateLimitConfig returns the default rate limit configuration
// Allows 100 messages per second with burst of 200
func DefaultRateLimitConfig() *RateLimitConfig {
	return &RateLimitConfig{
		MessagesPerSecond: 100,
		Burst:             200,
		Enabled:           true,
	}
}

// NoRateLimit returns a configuration with rate limiting disabled
func NoRateLimit() *RateLimitConfig {
	return &RateLimitConfig{
		Enabled: false,
	}
}

// NewLimiter builds the limiter described by c, or nil when disabled.
func (c *RateLimitConfig) NewLimiter() *rate.Limiter {
	if c == nil || !c.Enabled {
		return nil
	}
	return rate.NewLimiter(c.MessagesPerSecond, c.Burst)
}

// DefaultConfig returns a configuration for a server on localhost.
func DefaultConfig() *Config {
	return &Config{
		Scheme:         DefaultScheme,
		Host:           "127.0.0.1",
		Port:           DefaultPort,
		Lang:           DefaultLang,
		ConnectTimeout: DefaultConnectTimeout,
		TickInterval:   DefaultTickInterval,
		RateLimit:      DefaultRateLimitConfig(),
	}
}

// withDefaults returns a copy of c with zero fields filled in.
func (c *Config) withDefaults() *Config {
	out := DefaultConfig()
	if c == nil {
		out.Logger = zap.NewNop()
		return out
	}
	cp := *c
	if cp.Scheme == "" {
		cp.Scheme = out.Scheme
	}
	if cp.Host == "" {
		cp.Host = out.Host
	}
	if cp.Port == 0 {
		cp.Port = out.Port
	}
	if cp.Lang == "" {
		cp.Lang = out.Lang
	}
	if cp.ConnectTimeout == 0 {
		cp.ConnectTimeout = out.ConnectTimeout
	}
	if cp.TickInterval <= 0 {
		cp.TickInterval = out.TickInterval
	}
	if cp.RateLimit == nil {
		cp.RateLimit = out.RateLimit
	}
	if cp.Logger == nil {
		cp.Logger = zap.NewNop()
	}
	return &cp
}

// Address builds the connect URL for session:
// <scheme>://<host>:<port>/ws?lang=<lang>&status=<appearOnline>&token=<token>
func (c *Config) Address(session *rtsock.Session, appearOnline bool) string {
	q := url.Values{}
	q.Set("lang", c.Lang)
	q.Set("status", strconv.FormatBool(appearOnline))
	if session != nil {
		q.Set("token", session.AuthToken)
	}
	u := url.URL{
		Scheme:   c.Scheme,
		Host:     net.JoinHostPort(c.Host, strconv.Itoa(c.Port)),
		Path:     "/ws",
		RawQuery: q.Encode(),
	}
	return u.String()
}
