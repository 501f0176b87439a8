// Package metrics groups the Prometheus instruments exposed by the engine.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Namespace is the default metric namespace.
const Namespace = "mnemo"

// Metrics holds every instrument used by the memory engine.
type Metrics struct {
	ContextBuilds  prometheus.Counter
	Truncations    prometheus.Counter
	ContextTokens  prometheus.Histogram
	CacheHits      *prometheus.CounterVec
	CacheMisses    *prometheus.CounterVec
	Summaries      *prometheus.CounterVec
	PinsCreated    prometheus.Counter
	SummarizeQueue prometheus.Gauge
}

// New registers the engine's instruments with the given registerer. Pass
// prometheus.DefaultRegisterer in production and a fresh registry in tests.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		ContextBuilds: factory.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "context_builds_total",
			Help:      "Context assemblies performed.",
		}),
		Truncations: factory.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "context_truncations_total",
			Help:      "Context assemblies that exceeded the budget and dropped content.",
		}),
		ContextTokens: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "context_tokens",
			Help:      "Estimated token size of assembled contexts.",
			Buckets:   []float64{250, 500, 1000, 2000, 3000, 4000, 6000, 8000},
		}),
		CacheHits: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "cache_hits_total",
			Help:      "Read-through cache hits by cache.",
		}, []string{"cache"}),
		CacheMisses: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "cache_misses_total",
			Help:      "Read-through cache misses by cache.",
		}, []string{"cache"}),
		Summaries: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "summaries_total",
			Help:      "Summarization runs by outcome.",
		}, []string{"outcome"}),
		PinsCreated: factory.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "pins_created_total",
			Help:      "Pins created.",
		}),
		SummarizeQueue: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "summarize_queue_depth",
			Help:      "Conversations waiting in the async summarization queue.",
		}),
	}
}

// ObserveBuild records one context assembly.
func (m *Metrics) ObserveBuild(tokens int, truncated bool) {
	m.ContextBuilds.Inc()
	m.ContextTokens.Observe(float64(tokens))
	if truncated {
		m.Truncations.Inc()
	}
}

// Handler serves the default registry over HTTP.
func Handler() http.Handler {
	return promhttp.Handler()
}
