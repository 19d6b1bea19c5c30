package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

// Collector collects Prometheus metrics for SDK calls and agent tool usage.
// All methods are safe to call on a nil *Collector.
type Collector struct {
	logger *logrus.Logger

	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	autoFilled      *prometheus.CounterVec
	toolCalls       *prometheus.CounterVec
	clientInfo      *prometheus.GaugeVec

	registry *prometheus.Registry
}

// NewCollector creates a collector backed by its own registry.
func NewCollector(logger *logrus.Logger, sdkVersion string) *Collector {
	registry := prometheus.NewRegistry()

	c := &Collector{
		logger:   logger,
		registry: registry,

		requestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "lynkr_requests_total",
			Help: "Total number of Lynkr API requests",
		}, []string{"endpoint", "outcome"}),

		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "lynkr_request_duration_seconds",
			Help:    "Lynkr API request latency",
			Buckets: prometheus.DefBuckets,
		}, []string{"endpoint"}),

		autoFilled: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "lynkr_autofilled_fields_total",
			Help: "Schema fields filled from stored keys",
		}, []string{"service"}),

		toolCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "lynkr_tool_calls_total",
			Help: "Agent tool invocations by outcome",
		}, []string{"tool", "outcome"}),

		clientInfo: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "lynkr_client_info",
			Help: "SDK build information",
		}, []string{"version"}),
	}

	registry.MustRegister(
		c.requestsTotal,
		c.requestDuration,
		c.autoFilled,
		c.toolCalls,
		c.clientInfo,
	)

	c.clientInfo.WithLabelValues(sdkVersion).Set(1)

	if logger != nil {
		logger.Debug("Metrics collector initialized")
	}
	return c
}

// ObserveRequest records one API call and how it ended ("ok", "http_401",
// "transport_error", ...).
func (c *Collector) ObserveRequest(endpoint, outcome string, d time.Duration) {
	if c == nil {
		return
	}
	c.requestsTotal.WithLabelValues(endpoint, outcome).Inc()
	c.requestDuration.WithLabelValues(endpoint).Observe(d.Seconds())
}

// AddAutoFilled counts fields filled from the key registry.
func (c *Collector) AddAutoFilled(service string, n int) {
	if c == nil || n <= 0 {
		return
	}
	if service == "" {
		service = "unknown"
	}
	c.autoFilled.WithLabelValues(service).Add(float64(n))
}

// ObserveToolCall records an agent tool invocation.
func (c *Collector) ObserveToolCall(tool string, failed bool) {
	if c == nil {
		return
	}
	outcome := "ok"
	if failed {
		outcome = "error"
	}
	c.toolCalls.WithLabelValues(tool, outcome).Inc()
}

// GetRegistry returns the Prometheus registry.
func (c *Collector) GetRegistry() *prometheus.Registry {
	if c == nil {
		return nil
	}
	return c.registry
}

// Handler serves the registry in the Prometheus text format.
func (c *Collector) Handler() http.Handler {
	if c == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}
