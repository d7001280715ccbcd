// Package metrics provides Prometheus metrics for the chat pipeline.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics collects chat pipeline and LLM metrics.
type Metrics struct {
	registry *prometheus.Registry

	chatRequests  *prometheus.CounterVec
	phaseLatency  *prometheus.HistogramVec
	llmRequests   *prometheus.CounterVec
	llmLatency    *prometheus.HistogramVec
	llmTokensUsed *prometheus.CounterVec
	sessionsLive  prometheus.Gauge
}

// Config configures the metrics collector.
type Config struct {
	// Registry to use. When nil a fresh one is created.
	Registry *prometheus.Registry

	// LatencyBuckets for histograms, in seconds.
	LatencyBuckets []float64
}

// DefaultConfig returns default metrics configuration.
func DefaultConfig() Config {
	return Config{
		LatencyBuckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10, 30, 60},
	}
}

// New creates a metrics collector and registers its collectors.
func New(cfg Config) *Metrics {
	if len(cfg.LatencyBuckets) == 0 {
		cfg.LatencyBuckets = DefaultConfig().LatencyBuckets
	}

	registry := cfg.Registry
	if registry == nil {
		registry = prometheus.NewRegistry()
	}

	m := &Metrics{registry: registry}

	m.chatRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ragchat",
			Subsystem: "chat",
			Name:      "requests_total",
			Help:      "Total number of chat turns",
		},
		[]string{"intent", "status"},
	)

	m.phaseLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "ragchat",
			Subsystem: "chat",
			Name:      "phase_latency_seconds",
			Help:      "Pipeline phase latency in seconds",
			Buckets:   cfg.LatencyBuckets,
		},
		[]string{"phase"},
	)

	m.llmRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ragchat",
			Subsystem: "llm",
			Name:      "requests_total",
			Help:      "Total number of LLM requests",
		},
		[]string{"provider", "status"},
	)

	m.llmLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "ragchat",
			Subsystem: "llm",
			Name:      "latency_seconds",
			Help:      "LLM request latency in seconds",
			Buckets:   cfg.LatencyBuckets,
		},
		[]string{"provider", "model"},
	)

	m.llmTokensUsed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ragchat",
			Subsystem: "llm",
			Name:      "tokens_total",
			Help:      "Total LLM tokens consumed",
		},
		[]string{"model", "token_type"},
	)

	m.sessionsLive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "ragchat",
			Subsystem: "chat",
			Name:      "sessions_live",
			Help:      "Number of live chat sessions",
		},
	)

	registry.MustRegister(
		m.chatRequests,
		m.phaseLatency,
		m.llmRequests,
		m.llmLatency,
		m.llmTokensUsed,
		m.sessionsLive,
	)

	return m
}

// IncChat counts a completed chat turn.
func (m *Metrics) IncChat(intent, status string) {
	m.chatRequests.WithLabelValues(intent, status).Inc()
}

// ObservePhase records a pipeline phase duration.
func (m *Metrics) ObservePhase(phase string, d time.Duration) {
	m.phaseLatency.WithLabelValues(phase).Observe(d.Seconds())
}

// RecordLLMRequest counts an LLM request and its latency.
func (m *Metrics) RecordLLMRequest(provider, model string, d time.Duration, success bool) {
	status := "success"
	if !success {
		status = "error"
	}
	m.llmRequests.WithLabelValues(provider, status).Inc()
	m.llmLatency.WithLabelValues(provider, model).Observe(d.Seconds())
}

// RecordLLMTokens counts token usage by type.
func (m *Metrics) RecordLLMTokens(model, tokenType string, count int) {
	if count > 0 {
		m.llmTokensUsed.WithLabelValues(model, tokenType).Add(float64(count))
	}
}

// SetLiveSessions sets the live session gauge.
func (m *Metrics) SetLiveSessions(count int) {
	m.sessionsLive.Set(float64(count))
}

// Handler returns the HTTP handler for the metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
