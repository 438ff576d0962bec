// Package metrics exposes prims counters to Prometheus.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/noface-00/prims/internal/concurrent"
)

const (
	OutcomeSuccess = "success"
	OutcomeError   = "error"
	OutcomeTimeout = "timeout"
)

// Registry holds the prims metrics on a dedicated Prometheus registry.
type Registry struct {
	reg *prometheus.Registry

	CacheHits     *prometheus.CounterVec
	CacheMisses   *prometheus.CounterVec
	Fetches       *prometheus.CounterVec
	FetchDuration *prometheus.HistogramVec
	Analyses      *prometheus.CounterVec
}

func NewRegistry() *Registry {
	r := &Registry{
		reg: prometheus.NewRegistry(),

		CacheHits: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "prims_cache_hits_total",
				Help: "Total number of cache hits by cache",
			},
			[]string{"cache"},
		),

		CacheMisses: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "prims_cache_misses_total",
				Help: "Total number of cache misses by cache",
			},
			[]string{"cache"},
		),

		Fetches: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "prims_fetch_total",
				Help: "Analysis fetches by fetch name and outcome",
			},
			[]string{"fetch", "outcome"},
		),

		FetchDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "prims_fetch_duration_seconds",
				Help:    "Duration of each analysis fetch in seconds",
				Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
			},
			[]string{"fetch"},
		),

		Analyses: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "prims_analyses_total",
				Help: "Completed analyses by status",
			},
			[]string{"status"},
		),
	}

	r.reg.MustRegister(
		r.CacheHits,
		r.CacheMisses,
		r.Fetches,
		r.FetchDuration,
		r.Analyses,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return r
}

// FetchObserved records one finished pool task.
func (r *Registry) FetchObserved(res concurrent.Result) {
	outcome := OutcomeSuccess
	switch {
	case res.TimedOut:
		outcome = OutcomeTimeout
	case res.Error != nil:
		outcome = OutcomeError
	}
	r.Fetches.WithLabelValues(res.Name, outcome).Inc()
	r.FetchDuration.WithLabelValues(res.Name).Observe(res.Latency.Seconds())
}

func (r *Registry) AnalysisCompleted(status string) {
	r.Analyses.WithLabelValues(status).Inc()
}

// CacheObserver matches cache.WithObserver.
func (r *Registry) CacheObserver(name string, hit bool) {
	if hit {
		r.CacheHits.WithLabelValues(name).Inc()
		return
	}
	r.CacheMisses.WithLabelValues(name).Inc()
}

// Handler serves the registry in the Prometheus text format.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{Registry: r.reg})
}

// Gatherer exposes the underlying registry.
func (r *Registry) Gatherer() prometheus.Gatherer {
	return r.reg
}
