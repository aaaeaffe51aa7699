// Package metrics exposes the engine's Prometheus collectors.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Turn outcomes.
const (
	OutcomeReplied  = "replied"
	OutcomeFailed   = "failed"
	OutcomeBanned   = "banned"
	OutcomeBusy     = "busy"
	OutcomeSpam     = "spam"
	OutcomeBlocked  = "blocked"
	OutcomeCommand  = "command"
	OutcomeSentinel = "sentinel_dropped"
)

// Metrics owns a registry so tests can create independent instances.
type Metrics struct {
	registry *prometheus.Registry

	turns        *prometheus.CounterVec
	generation   prometheus.Histogram
	reengagement *prometheus.CounterVec
	chunks       *prometheus.CounterVec
	sessions     prometheus.GaugeFunc
}

// New registers every collector. activeSessions is sampled on scrape;
// nil reports zero.
func New(activeSessions func() int) *Metrics {
	if activeSessions == nil {
		activeSessions = func() int { return 0 }
	}
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		turns: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "confidant_turns_total",
				Help: "Conversation turns by outcome",
			},
			[]string{"outcome"},
		),
		generation: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "confidant_generation_seconds",
				Help:    "Generation call latency in seconds",
				Buckets: prometheus.ExponentialBuckets(0.25, 2, 8),
			},
		),
		reengagement: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "confidant_reengagement_total",
				Help: "Reengagement scheduler events",
			},
			[]string{"event"},
		),
		chunks: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "confidant_delivery_chunks_total",
				Help: "Delivered reply chunks by result",
			},
			[]string{"result"},
		),
	}
	m.sessions = prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "confidant_sessions_active",
			Help: "Users with in-memory session state",
		},
		func() float64 { return float64(activeSessions()) },
	)
	m.registry.MustRegister(
		m.turns,
		m.generation,
		m.reengagement,
		m.chunks,
		m.sessions,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

func (m *Metrics) Turn(outcome string) {
	m.turns.WithLabelValues(outcome).Inc()
}

func (m *Metrics) Generation(d time.Duration) {
	m.generation.Observe(d.Seconds())
}

// Reengagement matches the scheduler's observe hook.
func (m *Metrics) Reengagement(event string) {
	m.reengagement.WithLabelValues(event).Inc()
}

// Chunk matches the pacer's observe hook.
func (m *Metrics) Chunk(result string) {
	m.chunks.WithLabelValues(result).Inc()
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry is exposed for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
