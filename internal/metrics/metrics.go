package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Send outcomes.
const (
	SendSent    = "sent"
	SendRetried = "retried"
	SendQueued  = "queued"
	SendFailed  = "failed"
)

// Collector holds the realtime client metrics. A nil *Collector is valid and
// records nothing.
type Collector struct {
	registry *prometheus.Registry

	state            *prometheus.GaugeVec
	connects         prometheus.Counter
	reconnects       prometheus.Counter
	transportErrors  prometheus.Counter
	sends            *prometheus.CounterVec
	pings            prometheus.Counter
	queueDepth       prometheus.Gauge
	flushed          prometheus.Counter
	framesReceived   prometheus.Counter
	parseErrors      prometheus.Counter
	subscriberPanics prometheus.Counter
}

// NewCollector creates a collector registered on its own registry.
func NewCollector(namespace string) *Collector {
	if namespace == "" {
		namespace = "athlete_live"
	}

	c := &Collector{registry: prometheus.NewRegistry()}

	c.state = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "connection",
			Name:      "state",
			Help:      "1 for the current connection state, 0 otherwise",
		},
		[]string{"state"},
	)
	c.connects = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "connection",
		Name:      "connects_total",
		Help:      "Successful transitions into the connected state",
	})
	c.reconnects = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "connection",
		Name:      "reconnects_scheduled_total",
		Help:      "Reconnect attempts scheduled after a transport failure",
	})
	c.transportErrors = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "connection",
		Name:      "transport_errors_total",
		Help:      "Transport failures (dial, read, write, stale)",
	})
	c.sends = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "send",
			Name:      "total",
			Help:      "Outbound send attempts by outcome",
		},
		[]string{"result"},
	)
	c.pings = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "keepalive",
		Name:      "pings_total",
		Help:      "Keepalive pings issued",
	})
	c.queueDepth = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "queue",
		Name:      "depth",
		Help:      "Messages waiting for a usable connection",
	})
	c.flushed = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "queue",
		Name:      "flushed_total",
		Help:      "Pending messages flushed after connecting",
	})
	c.framesReceived = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "dispatch",
		Name:      "frames_total",
		Help:      "Inbound frames received",
	})
	c.parseErrors = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "dispatch",
		Name:      "parse_errors_total",
		Help:      "Inbound frames dropped as malformed",
	})
	c.subscriberPanics = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "dispatch",
		Name:      "subscriber_panics_total",
		Help:      "Subscriber callbacks that panicked",
	})

	c.registry.MustRegister(
		c.state,
		c.connects,
		c.reconnects,
		c.transportErrors,
		c.sends,
		c.pings,
		c.queueDepth,
		c.flushed,
		c.framesReceived,
		c.parseErrors,
		c.subscriberPanics,
	)

	return c
}

// Registry returns the underlying registry.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler returns an HTTP handler exposing the collector's metrics.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// SetState marks state as current and every other known state as not.
func (c *Collector) SetState(state string, all []string) {
	if c == nil {
		return
	}
	for _, s := range all {
		v := 0.0
		if s == state {
			v = 1
		}
		c.state.WithLabelValues(s).Set(v)
	}
}

func (c *Collector) IncConnects() {
	if c == nil {
		return
	}
	c.connects.Inc()
}

func (c *Collector) IncReconnects() {
	if c == nil {
		return
	}
	c.reconnects.Inc()
}

func (c *Collector) IncTransportErrors() {
	if c == nil {
		return
	}
	c.transportErrors.Inc()
}

// ObserveSend counts one send outcome.
func (c *Collector) ObserveSend(result string) {
	if c == nil {
		return
	}
	c.sends.WithLabelValues(result).Inc()
}

func (c *Collector) IncPings() {
	if c == nil {
		return
	}
	c.pings.Inc()
}

func (c *Collector) SetQueueDepth(n int) {
	if c == nil {
		return
	}
	c.queueDepth.Set(float64(n))
}

func (c *Collector) AddFlushed(n int) {
	if c == nil {
		return
	}
	c.flushed.Add(float64(n))
}

func (c *Collector) IncFrames() {
	if c == nil {
		return
	}
	c.framesReceived.Inc()
}

func (c *Collector) IncParseErrors() {
	if c == nil {
		return
	}
	c.parseErrors.Inc()
}

func (c *Collector) IncSubscriberPanics() {
	if c == nil {
		return
	}
	c.subscriberPanics.Inc()
}
