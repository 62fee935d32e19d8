package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "minesite_climate"

// Metrics holds the Prometheus counters, histograms, and gauges for the dashboard service.
type Metrics struct {
	// Catalog loading.
	CatalogLoads        *prometheus.CounterVec // labels: outcome={success,error}
	CatalogLoadDuration prometheus.Histogram
	CatalogObservations *prometheus.GaugeVec // labels: dataset
	CatalogSkippedFiles prometheus.Gauge
	CatalogLoadedAt     prometheus.Gauge

	// Query path.
	QueryRequests *prometheus.CounterVec   // labels: dataset, outcome={success,error}
	QueryCache    *prometheus.CounterVec   // labels: result={hit,miss}
	QueryDuration *prometheus.HistogramVec // labels: dataset
	SeriesPoints  prometheus.Histogram

	// Publishing.
	ObservationsPublished prometheus.Counter

	// Geocoding metrics.
	GeocodeRequests    *prometheus.CounterVec   // labels: method={forward,reverse}, outcome={success,error,empty}
	GeocodeCache       *prometheus.CounterVec   // labels: method={forward,reverse}, result={hit,miss}
	GeocodeAPIDuration *prometheus.HistogramVec // labels: method={forward,reverse}
	GeocodeEnabled     prometheus.Gauge
}

// NewMetrics creates and registers all service metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(m.collectors()...)
	return m
}

// NewMetricsForTesting creates Metrics without registering them, to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		CatalogLoads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "catalog_loads_total",
			Help:      "Catalog loads by outcome.",
		}, []string{"outcome"}),
		CatalogLoadDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "catalog_load_duration_seconds",
			Help:      "Duration of a complete read-melt-validate load.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}),
		CatalogObservations: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "catalog_observations",
			Help:      "Observations held per dataset in the current catalog.",
		}, []string{"dataset"}),
		CatalogSkippedFiles: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "catalog_skipped_files",
			Help:      "Source files skipped by the last successful load.",
		}),
		CatalogLoadedAt: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "catalog_loaded_timestamp_seconds",
			Help:      "Unix time of the last successful load.",
		}),
		QueryRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "query_requests_total",
			Help:      "Series queries by dataset and outcome.",
		}, []string{"dataset", "outcome"}),
		QueryCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "query_cache_total",
			Help:      "Series memo lookups by result.",
		}, []string{"result"}),
		QueryDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "query_duration_seconds",
			Help:      "Filter-group-color duration for uncached series queries.",
			Buckets:   []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5},
		}, []string{"dataset"}),
		SeriesPoints: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "series_points",
			Help:      "Points per returned series.",
			Buckets:   []float64{0, 1, 5, 10, 25, 50, 100, 250},
		}),
		ObservationsPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "observations_published_total",
			Help:      "Observations written to Kafka.",
		}),
		GeocodeRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "geocode_requests_total",
			Help:      "Geocoding API requests by method and outcome.",
		}, []string{"method", "outcome"}),
		GeocodeCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "geocode_cache_total",
			Help:      "Geocoding cache lookups by method and result.",
		}, []string{"method", "result"}),
		GeocodeAPIDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "geocode_api_duration_seconds",
			Help:      "Mapbox API request duration in seconds.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}, []string{"method"}),
		GeocodeEnabled: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "geocode_enabled",
			Help:      "1 when site geocoding is enabled, 0 otherwise.",
		}),
	}
}

func (m *Metrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.CatalogLoads,
		m.CatalogLoadDuration,
		m.CatalogObservations,
		m.CatalogSkippedFiles,
		m.CatalogLoadedAt,
		m.QueryRequests,
		m.QueryCache,
		m.QueryDuration,
		m.SeriesPoints,
		m.ObservationsPublished,
		m.GeocodeRequests,
		m.GeocodeCache,
		m.GeocodeAPIDuration,
		m.GeocodeEnabled,
	}
}
