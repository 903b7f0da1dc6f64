// Package metrics exposes Prometheus collectors for a realtime socket.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Config configures the collectors.
type Config struct {
	// Namespace is the metrics namespace (default: "rtsock").
	Namespace string

	// Subsystem is the metrics subsystem (default: "").
	Subsystem string

	// ConstLabels are constant labels added to all metrics.
	ConstLabels prometheus.Labels

	// Buckets are the histogram buckets for call duration.
	// Default: prometheus.DefBuckets
	Buckets []float64

	// Registry is the Prometheus registry to use.
	// Default: prometheus.DefaultRegisterer
	Registry prometheus.Registerer
}

// Option configures the collectors.
type Option func(*Config)

// WithNamespace sets the metrics namespace.
func WithNamespace(namespace string) Option {
	return func(c *Config) {
		c.Namespace = namespace
	}
}

// WithSubsystem sets the metrics subsystem.
func WithSubsystem(subsystem string) Option {
	return func(c *Config) {
		c.Subsystem = subsystem
	}
}

// WithConstLabels sets constant labels for all metrics.
func WithConstLabels(labels prometheus.Labels) Option {
	return func(c *Config) {
		c.ConstLabels = labels
	}
}

// WithBuckets sets the histogram buckets.
func WithBuckets(buckets []float64) Option {
	return func(c *Config) {
		c.Buckets = buckets
	}
}

// WithRegistry sets the Prometheus registry.
func WithRegistry(registry prometheus.Registerer) Option {
	return func(c *Config) {
		c.Registry = registry
	}
}

func defaultConfig() Config {
	return Config{
		Namespace: "rtsock",
		Buckets:   prometheus.DefBuckets,
		Registry:  prometheus.DefaultRegisterer,
	}
}

// Collector records socket activity. A nil *Collector is valid and records
// nothing.
type Collector struct {
	callsTotal     *prometheus.CounterVec
	callDuration   *prometheus.HistogramVec
	pendingCalls   prometheus.Gauge
	framesSent     prometheus.Counter
	framesReceived prometheus.Counter
	framesDropped  *prometheus.CounterVec
	pushEvents     *prometheus.CounterVec
}

// New registers the collectors with the configured registry. Registering
// twice with the same registry panics, as promauto does.
func New(opts ...Option) *Collector {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	factory := promauto.With(cfg.Registry)

	return &Collector{
		callsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   cfg.Namespace,
			Subsystem:   cfg.Subsystem,
			Name:        "calls_total",
			Help:        "Total number of call/response operations by outcome",
			ConstLabels: cfg.ConstLabels,
		}, []string{"op", "status"}),

		callDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace:   cfg.Namespace,
			Subsystem:   cfg.Subsystem,
			Name:        "call_duration_seconds",
			Help:        "Time from sending a call to receiving its reply",
			ConstLabels: cfg.ConstLabels,
			Buckets:     cfg.Buckets,
		}, []string{"op"}),

		pendingCalls: factory.NewGauge(prometheus.GaugeOpts{
			Namespace:   cfg.Namespace,
			Subsystem:   cfg.Subsystem,
			Name:        "pending_calls",
			Help:        "Number of calls waiting for a reply",
			ConstLabels: cfg.ConstLabels,
		}),

		framesSent: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   cfg.Namespace,
			Subsystem:   cfg.Subsystem,
			Name:        "frames_sent_total",
			Help:        "Total number of envelopes handed to the transport",
			ConstLabels: cfg.ConstLabels,
		}),

		framesReceived: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   cfg.Namespace,
			Subsystem:   cfg.Subsystem,
			Name:        "frames_received_total",
			Help:        "Total number of frames delivered by the transport",
			ConstLabels: cfg.ConstLabels,
		}),

		framesDropped: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   cfg.Namespace,
			Subsystem:   cfg.Subsystem,
			Name:        "frames_dropped_total",
			Help:        "Total number of inbound frames dropped by the dispatcher",
			ConstLabels: cfg.ConstLabels,
		}, []string{"reason"}),

		pushEvents: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   cfg.Namespace,
			Subsystem:   cfg.Subsystem,
			Name:        "push_events_total",
			Help:        "Total number of push events delivered to a handler",
			ConstLabels: cfg.ConstLabels,
		}, []string{"kind"}),
	}
}

// Drop reasons.
const (
	DropTransport = "transport"
	DropMalformed = "malformed"
	DropUnhandled = "unhandled"
	DropNoHandler = "no_handler"
)

// ObserveCall records one finished call.
func (c *Collector) ObserveCall(op string, err error, d time.Duration) {
	if c == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	c.callsTotal.WithLabelValues(op, status).Inc()
	c.callDuration.WithLabelValues(op).Observe(d.Seconds())
}

// SetPending sets the pending-calls gauge.
func (c *Collector) SetPending(n int) {
	if c == nil {
		return
	}
	c.pendingCalls.Set(float64(n))
}

func (c *Collector) FrameSent() {
	if c == nil {
		return
	}
	c.framesSent.Inc()
}

func (c *Collector) FrameReceived() {
	if c == nil {
		return
	}
	c.framesReceived.Inc()
}

func (c *Collector) FrameDropped(reason string) {
	if c == nil {
		return
	}
	c.framesDropped.WithLabelValues(reason).Inc()
}

func (c *Collector) PushEvent(kind string) {
	if c == nil {
		return
	}
	c.pushEvents.WithLabelValues(kind).Inc()
}
