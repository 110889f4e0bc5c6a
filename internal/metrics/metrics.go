// Package metrics exposes Prometheus instrumentation for recommendation
// queries and catalog reloads.
package metrics

import (
	"errors"
	"time"

	"github.com/hyperjump/osusume/internal/models"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Query kinds.
const (
	KindSimilar = "similar"
	KindGenre   = "genre"
	KindSearch  = "search"
)

// Metrics holds the collectors. A nil *Metrics records nothing, so components
// can take one unconditionally.
type Metrics struct {
	Recommendations *prometheus.CounterVec
	Duration        *prometheus.HistogramVec
	Reloads         *prometheus.CounterVec
	CatalogMovies   prometheus.Gauge
	CacheLookups    *prometheus.CounterVec
}

// New creates the collectors and registers them on reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Recommendations: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "osusume_recommendations_total",
				Help: "Total number of recommendation queries",
			},
			[]string{"kind", "strategy", "outcome"},
		),
		Duration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name: "osusume_recommendation_duration_seconds",
				Help: "Duration of recommendation queries in seconds",
				// In-memory lookups: microseconds to tens of milliseconds.
				Buckets: []float64{0.00001, 0.00005, 0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1},
			},
			[]string{"kind"},
		),
		Reloads: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "osusume_catalog_reloads_total",
				Help: "Total number of catalog reloads",
			},
			[]string{"outcome"},
		),
		CatalogMovies: f.NewGauge(
			prometheus.GaugeOpts{
				Name: "osusume_catalog_movies",
				Help: "Number of movies in the published catalog snapshot",
			},
		),
		CacheLookups: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "osusume_cache_lookups_total",
				Help: "Result cache lookups by result (hit or miss)",
			},
			[]string{"result"},
		),
	}
}

// Outcome classifies err into a low-cardinality label.
func Outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, models.ErrNotFound):
		return "not_found"
	case errors.Is(err, models.ErrInvalidInput):
		return "invalid"
	default:
		return "error"
	}
}

// ObserveQuery records one recommendation query.
func (m *Metrics) ObserveQuery(kind, strategy string, d time.Duration, err error) {
	if m == nil {
		return
	}
	m.Recommendations.WithLabelValues(kind, strategy, Outcome(err)).Inc()
	m.Duration.WithLabelValues(kind).Observe(d.Seconds())
}

// ObserveReload records a reload attempt and, on success, the new catalog size.
func (m *Metrics) ObserveReload(movies int, err error) {
	if m == nil {
		return
	}
	m.Reloads.WithLabelValues(Outcome(err)).Inc()
	if err == nil {
		m.CatalogMovies.Set(float64(movies))
	}
}

// ObserveCache records a result cache lookup.
func (m *Metrics) ObserveCache(hit bool) {
	if m == nil {
		return
	}
	if hit {
		m.CacheLookups.WithLabelValues("hit").Inc()
		return
	}
	m.CacheLookups.WithLabelValues("miss").Inc()
}
