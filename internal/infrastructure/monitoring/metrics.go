package monitoring

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// HTTP metrics
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec

	// Host call metrics
	HostCalls    *prometheus.CounterVec
	HostDuration *prometheus.HistogramVec

	// Session metrics
	SessionsActive  prometheus.Gauge
	SessionsCreated prometheus.Counter
	SessionsKilled  prometheus.Counter
	CreateRetries   prometheus.Counter

	// Write coalescer metrics
	WritesBuffered prometheus.Counter
	FlushesTotal   prometheus.Counter
	FlushBytes     prometheus.Histogram

	// Resize debouncer metrics
	ResizeRequests prometheus.Counter
	ResizeFlushes  prometheus.Counter

	// Event fan-out metrics
	EventsDispatched *prometheus.CounterVec
	SubscriberPanics prometheus.Counter

	// WebSocket metrics
	WSConnections prometheus.Gauge
	WSMessages    *prometheus.CounterVec

	// System metrics
	Uptime    prometheus.Gauge
	startTime time.Time
}

// NewMetrics creates a new metrics collector
func NewMetrics() *Metrics {
	m := &Metrics{
		startTime: time.Now(),

		RequestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "termmux_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		RequestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "termmux_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
			},
			[]string{"method", "path"},
		),

		HostCalls: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "termmux_host_calls_total",
				Help: "Total number of process host calls",
			},
			[]string{"method", "status"},
		),
		HostDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "termmux_host_call_duration_seconds",
				Help:    "Process host call duration in seconds",
				Buckets: []float64{.0005, .001, .005, .01, .025, .05, .1, .25, .5, 1},
			},
			[]string{"method"},
		),

		SessionsActive: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "termmux_sessions_active",
				Help: "Number of sessions tracked in the registry",
			},
		),
		SessionsCreated: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "termmux_sessions_created_total",
				Help: "Total number of sessions created",
			},
		),
		SessionsKilled: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "termmux_sessions_killed_total",
				Help: "Total number of sessions killed by callers",
			},
		),
		CreateRetries: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "termmux_create_retries_total",
				Help: "Total number of create attempts retried after host failure",
			},
		),

		WritesBuffered: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "termmux_writes_buffered_total",
				Help: "Total number of write calls absorbed by the coalescer",
			},
		),
		FlushesTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "termmux_flushes_total",
				Help: "Total number of coalesced write flushes sent to the host",
			},
		),
		FlushBytes: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "termmux_flush_bytes",
				Help:    "Payload size of coalesced write flushes",
				Buckets: []float64{1, 4, 16, 64, 256, 1024, 4096, 16384, 65536},
			},
		),

		ResizeRequests: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "termmux_resize_requests_total",
				Help: "Total number of resize requests received",
			},
		),
		ResizeFlushes: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "termmux_resize_flushes_total",
				Help: "Total number of debounced resize calls sent to the host",
			},
		),

		EventsDispatched: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "termmux_events_dispatched_total",
				Help: "Total number of host events dispatched to subscribers",
			},
			[]string{"channel"},
		),
		SubscriberPanics: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "termmux_subscriber_panics_total",
				Help: "Total number of subscriber callbacks that panicked during dispatch",
			},
		),

		WSConnections: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "termmux_ws_connections",
				Help: "Number of active WebSocket stream connections",
			},
		),
		WSMessages: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "termmux_ws_messages_total",
				Help: "Total number of WebSocket messages",
			},
			[]string{"direction", "type"},
		),

		Uptime: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "termmux_uptime_seconds",
				Help: "Service uptime in seconds",
			},
		),
	}

	go m.updateUptime()

	return m
}

// updateUptime continuously updates the uptime metric
func (m *Metrics) updateUptime() {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for range ticker.C {
		m.Uptime.Set(time.Since(m.startTime).Seconds())
	}
}

// RecordHTTPRequest records an HTTP request
func (m *Metrics) RecordHTTPRequest(method, path, status string, duration time.Duration) {
	m.RequestsTotal.WithLabelValues(method, path, status).Inc()
	m.RequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// RecordHostCall records a process host call
func (m *Metrics) RecordHostCall(method, status string, duration time.Duration) {
	m.HostCalls.WithLabelValues(method, status).Inc()
	m.HostDuration.WithLabelValues(method).Observe(duration.Seconds())
}

// RecordFlush records a coalesced write flush
func (m *Metrics) RecordFlush(bytes int) {
	m.FlushesTotal.Inc()
	m.FlushBytes.Observe(float64(bytes))
}

// RecordEvent records a dispatched host event
func (m *Metrics) RecordEvent(channel string) {
	m.EventsDispatched.WithLabelValues(channel).Inc()
}

// RecordWSMessage records a WebSocket message
func (m *Metrics) RecordWSMessage(direction, msgType string) {
	m.WSMessages.WithLabelValues(direction, msgType).Inc()
}
