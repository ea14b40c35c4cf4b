// Package metrics exposes the Prometheus counters, gauges, and histograms
// the async core and the transport providers report through. It mirrors the
// teacher's observability package shape — one global registry, one Metrics
// struct, promauto-registered collectors — retargeted from server/EventBus
// metrics to the pool/queue/provider metrics this module actually has.
package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// DefaultRegistry is the default Prometheus registry.
	DefaultRegistry = prometheus.NewRegistry()

	// DefaultRegisterer wraps DefaultRegistry with a constant service label.
	DefaultRegisterer = prometheus.WrapRegistererWith(prometheus.Labels{"service": "asyncnet"}, DefaultRegistry)

	metricsOnce sync.Once
	metrics     *Metrics
)

// Metrics holds every collector this module registers.
type Metrics struct {
	// ThreadPool metrics
	PoolActiveCalls prometheus.Gauge
	PoolTasksTotal  *prometheus.CounterVec // result: completed, panicked

	// AsyncQueue metrics
	QueueDepth          *prometheus.GaugeVec // side: work, completion
	QueueDispatchedTotal *prometheus.CounterVec

	// Provider/HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	HTTPRequestSize     *prometheus.HistogramVec
	HTTPResponseSize    *prometheus.HistogramVec

	// WebSocket metrics
	WSMessagesTotal   *prometheus.CounterVec // direction; wsclient records received frames as reply or push
	WSMessageDuration prometheus.Histogram

	// Journal metrics
	JournalWritesTotal   *prometheus.CounterVec // backend: fs, sql; result: ok, error
	JournalWriteDuration *prometheus.HistogramVec

	// Cluster relay metrics
	ClusterPublishedTotal *prometheus.CounterVec
	ClusterReceivedTotal  *prometheus.CounterVec

	customMu         sync.RWMutex
	CustomCounters   map[string]*prometheus.CounterVec
	CustomGauges     map[string]*prometheus.GaugeVec
	CustomHistograms map[string]*prometheus.HistogramVec
}

// GetMetrics returns the process-wide Metrics instance, building it on first
// use against DefaultRegisterer.
func GetMetrics() *Metrics {
	metricsOnce.Do(func() {
		metrics = NewMetrics(DefaultRegisterer)
	})
	return metrics
}

// NewMetrics builds a fresh collector set against registerer. A nil
// registerer uses DefaultRegisterer; tests that want an isolated registry
// should pass their own.
func NewMetrics(registerer prometheus.Registerer) *Metrics {
	if registerer == nil {
		registerer = DefaultRegisterer
	}

	return &Metrics{
		PoolActiveCalls: promauto.With(registerer).NewGauge(prometheus.GaugeOpts{
			Name: "asyncnet_pool_active_calls",
			Help: "Number of ThreadPool tasks currently running.",
		}),
		PoolTasksTotal: promauto.With(registerer).NewCounterVec(prometheus.CounterOpts{
			Name: "asyncnet_pool_tasks_total",
			Help: "Total ThreadPool tasks run, by outcome.",
		}, []string{"result"}),

		QueueDepth: promauto.With(registerer).NewGaugeVec(prometheus.GaugeOpts{
			Name: "asyncnet_queue_depth",
			Help: "Number of callbacks currently queued and not yet dispatched.",
		}, []string{"side"}),
		QueueDispatchedTotal: promauto.With(registerer).NewCounterVec(prometheus.CounterOpts{
			Name: "asyncnet_queue_dispatched_total",
			Help: "Total callbacks dispatched, by side.",
		}, []string{"side"}),

		HTTPRequestsTotal: promauto.With(registerer).NewCounterVec(prometheus.CounterOpts{
			Name: "asyncnet_http_requests_total",
			Help: "Total HTTP requests issued by httpclient providers.",
		}, []string{"method", "status"}),
		HTTPRequestDuration: promauto.With(registerer).NewHistogramVec(prometheus.HistogramOpts{
			Name:    "asyncnet_http_request_duration_seconds",
			Help:    "HTTP request duration, from DoWork to Complete.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "status"}),
		HTTPRequestSize: promauto.With(registerer).NewHistogramVec(prometheus.HistogramOpts{
			Name:    "asyncnet_http_request_size_bytes",
			Help:    "HTTP request body size in bytes.",
			Buckets: prometheus.ExponentialBuckets(100, 10, 7),
		}, []string{"method"}),
		HTTPResponseSize: promauto.With(registerer).NewHistogramVec(prometheus.HistogramOpts{
			Name:    "asyncnet_http_response_size_bytes",
			Help:    "HTTP response body size in bytes.",
			Buckets: prometheus.ExponentialBuckets(100, 10, 7),
		}, []string{"method", "status"}),

		WSMessagesTotal: promauto.With(registerer).NewCounterVec(prometheus.CounterOpts{
			Name: "asyncnet_ws_messages_total",
			Help: "Total WebSocket frames, by direction.",
		}, []string{"direction"}),
		WSMessageDuration: promauto.With(registerer).NewHistogram(prometheus.HistogramOpts{
			Name:    "asyncnet_ws_reply_duration_seconds",
			Help:    "Time from a correlated request frame to its matching reply.",
			Buckets: prometheus.DefBuckets,
		}),

		JournalWritesTotal: promauto.With(registerer).NewCounterVec(prometheus.CounterOpts{
			Name: "asyncnet_journal_writes_total",
			Help: "Total journal record writes, by backend and outcome.",
		}, []string{"backend", "result"}),
		JournalWriteDuration: promauto.With(registerer).NewHistogramVec(prometheus.HistogramOpts{
			Name:    "asyncnet_journal_write_duration_seconds",
			Help:    "Journal write latency, by backend.",
			Buckets: []float64{.0005, .001, .005, .01, .025, .05, .1, .25, .5, 1},
		}, []string{"backend"}),

		ClusterPublishedTotal: promauto.With(registerer).NewCounterVec(prometheus.CounterOpts{
			Name: "asyncnet_cluster_published_total",
			Help: "Total completion records published to the cluster relay subject.",
		}, []string{"subject"}),
		ClusterReceivedTotal: promauto.With(registerer).NewCounterVec(prometheus.CounterOpts{
			Name: "asyncnet_cluster_received_total",
			Help: "Total completion records received from the cluster relay subject.",
		}, []string{"subject"}),

		CustomCounters:   make(map[string]*prometheus.CounterVec),
		CustomGauges:     make(map[string]*prometheus.GaugeVec),
		CustomHistograms: make(map[string]*prometheus.HistogramVec),
	}
}

// RecordHTTPRequest records one completed HTTP call.
func (m *Metrics) RecordHTTPRequest(method, status string, duration time.Duration, requestSize, responseSize int) {
	m.HTTPRequestsTotal.WithLabelValues(method, status).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, status).Observe(duration.Seconds())
	m.HTTPRequestSize.WithLabelValues(method).Observe(float64(requestSize))
	m.HTTPResponseSize.WithLabelValues(method, status).Observe(float64(responseSize))
}

// RecordWSMessage records one WebSocket frame and, for a reply frame that
// closes out a correlated request, how long the round trip took.
func (m *Metrics) RecordWSMessage(direction string, replyLatency time.Duration) {
	m.WSMessagesTotal.WithLabelValues(direction).Inc()
	if replyLatency > 0 {
		m.WSMessageDuration.Observe(replyLatency.Seconds())
	}
}

// RecordJournalWrite records one journal append, successful or not.
func (m *Metrics) RecordJournalWrite(backend string, duration time.Duration, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.JournalWritesTotal.WithLabelValues(backend, result).Inc()
	m.JournalWriteDuration.WithLabelValues(backend).Observe(duration.Seconds())
}

// RecordClusterPublish records one completion record published to subject.
func (m *Metrics) RecordClusterPublish(subject string) {
	m.ClusterPublishedTotal.WithLabelValues(subject).Inc()
}

// RecordClusterReceive records one completion record received from subject.
func (m *Metrics) RecordClusterReceive(subject string) {
	m.ClusterReceivedTotal.WithLabelValues(subject).Inc()
}

// UpdatePoolStats snapshots a ThreadPool's active-call count.
func (m *Metrics) UpdatePoolStats(activeCalls int) {
	m.PoolActiveCalls.Set(float64(activeCalls))
}

// RecordPoolTask records one worker task reaching an outcome.
func (m *Metrics) RecordPoolTask(result string) {
	m.PoolTasksTotal.WithLabelValues(result).Inc()
}

// UpdateQueueDepth snapshots one SubQueue side's backlog length.
func (m *Metrics) UpdateQueueDepth(side string, depth int) {
	m.QueueDepth.WithLabelValues(side).Set(float64(depth))
}

// RecordQueueDispatch records one callback leaving a SubQueue side.
func (m *Metrics) RecordQueueDispatch(side string) {
	m.QueueDispatchedTotal.WithLabelValues(side).Inc()
}

// Counter returns a lazily-registered custom counter.
func (m *Metrics) Counter(name, help string, labels ...string) *prometheus.CounterVec {
	m.customMu.RLock()
	if c, ok := m.CustomCounters[name]; ok {
		m.customMu.RUnlock()
		return c
	}
	m.customMu.RUnlock()

	m.customMu.Lock()
	defer m.customMu.Unlock()
	if c, ok := m.CustomCounters[name]; ok {
		return c
	}
	c := promauto.With(DefaultRegisterer).NewCounterVec(prometheus.CounterOpts{Name: name, Help: help}, labels)
	m.CustomCounters[name] = c
	return c
}

// Gauge returns a lazily-registered custom gauge.
func (m *Metrics) Gauge(name, help string, labels ...string) *prometheus.GaugeVec {
	m.customMu.RLock()
	if g, ok := m.CustomGauges[name]; ok {
		m.customMu.RUnlock()
		return g
	}
	m.customMu.RUnlock()

	m.customMu.Lock()
	defer m.customMu.Unlock()
	if g, ok := m.CustomGauges[name]; ok {
		return g
	}
	g := promauto.With(DefaultRegisterer).NewGaugeVec(prometheus.GaugeOpts{Name: name, Help: help}, labels)
	m.CustomGauges[name] = g
	return g
}
