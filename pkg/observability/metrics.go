package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "solarwatch"

// Metrics holds the Prometheus collectors for the service.
type Metrics struct {
	// Store reloads.
	Reloads              *prometheus.CounterVec // labels: outcome={success,failure}
	StoreRows            prometheus.Gauge
	StoreDays            prometheus.Gauge
	StoreLoadedTimestamp prometheus.Gauge

	// Anomaly alerting.
	AnomalousDays      prometheus.Gauge
	AlertsPublished    prometheus.Counter
	AlertPublishErrors prometheus.Counter

	// HTTP API.
	HTTPRequests        *prometheus.CounterVec   // labels: route, code
	HTTPRequestDuration *prometheus.HistogramVec // labels: route
}

func newMetrics() *Metrics {
	return &Metrics{
		Reloads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "store_reloads_total",
			Help:      "Time series reload attempts by outcome.",
		}, []string{"outcome"}),
		StoreRows: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "store_rows",
			Help:      "Hourly records in the current snapshot.",
		}),
		StoreDays: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "store_days",
			Help:      "Distinct calendar days in the current snapshot.",
		}),
		StoreLoadedTimestamp: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "store_loaded_timestamp_seconds",
			Help:      "Unix time the current snapshot was loaded.",
		}),
		AnomalousDays: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "anomalous_days",
			Help:      "Anomalous days in the current snapshot at the configured threshold.",
		}),
		AlertsPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "alerts_published_total",
			Help:      "Anomaly alerts published.",
		}),
		AlertPublishErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "alert_publish_errors_total",
			Help:      "Failed anomaly alert publish attempts.",
		}),
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "API requests by route and status code.",
		}, []string{"route", "code"}),
		HTTPRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "API request duration in seconds.",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1},
		}, []string{"route"}),
	}
}

// NewMetrics creates and registers all metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(
		m.Reloads,
		m.StoreRows,
		m.StoreDays,
		m.StoreLoadedTimestamp,
		m.AnomalousDays,
		m.AlertsPublished,
		m.AlertPublishErrors,
		m.HTTPRequests,
		m.HTTPRequestDuration,
	)
	return m
}

// NewMetricsForTesting creates unregistered Metrics to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}
