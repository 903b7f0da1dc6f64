// Package ws constructs realtime sockets backed by a gorilla WebSocket
// transport.
package ws

import (
	"github.com/luciancaetano/rtsock"
	"github.com/luciancaetano/rtsock/internal/metrics"
	"github.com/luciancaetano/rtsock/internal/websocket"
)

type Config = websocket.Config
type RateLimitConfig = websocket.RateLimitConfig
type Metrics = metrics.Collector
type MetricsOption = metrics.Option

// New creates a socket that connects with the gorilla WebSocket adapter.
//
// Example:
//
//	socket := ws.New(ws.NewConfig("127.0.0.1", 7350))
//	go socket.Run(ctx, 0)
//
//	if err := socket.Connect(ctx, rtsock.NewSession(token, ""), true); err != nil {
//	    return err
//	}
func New(cfg *Config) rtsock.Socket {
	var adapter *websocket.Adapter
	if cfg != nil {
		adapter = websocket.NewAdapter(cfg.Logger)
	} else {
		adapter = websocket.NewAdapter(nil)
	}
	return websocket.NewSocket(adapter, cfg)
}

// NewWithAdapter creates a socket on a caller-provided transport. The adapter
// must not be shared with another socket.
func NewWithAdapter(adapter rtsock.Adapter, cfg *Config) rtsock.Socket {
	return websocket.NewSocket(adapter, cfg)
}

// NewConfig returns the default configuration for a server at host:port.
func NewConfig(host string, port int) *Config {
	cfg := websocket.DefaultConfig()
	cfg.Host = host
	cfg.Port = port
	return cfg
}

// NewMetrics creates a Prometheus collector to set as Config.Metrics.
//
// Example:
//
//	cfg.Metrics = ws.NewMetrics(ws.WithRegistry(registry))
func NewMetrics(opts ...MetricsOption) *Metrics {
	return metrics.New(opts...)
}

// WithRegistry registers the socket metrics with registry instead of the
// default registerer.
var WithRegistry = metrics.WithRegistry

// WithNamespace prefixes every socket metric name.
var WithNamespace = metrics.WithNamespace

// DefaultRateLimitConfig returns the default rate limit configuration
func DefaultRateLimitConfig() *RateLimitConfig {
	return websocket.DefaultRateLimitConfig()
}

// NoRateLimit returns a configuration with rate limiting disabled
func NoRateLimit() *RateLimitConfig {
	return websocket.NoRateLimit()
}
