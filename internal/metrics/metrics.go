package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"feedcal/internal/model"
)

// Metrics implements agenda.Recorder on a private Prometheus registry.
type Metrics struct {
	registry *prometheus.Registry

	runsTotal      prometheus.Counter
	fetchTotal     *prometheus.CounterVec
	fetchDuration  *prometheus.HistogramVec
	eventsFetched  prometheus.Gauge
	eventsReturned prometheus.Gauge
	sourcesFailed  prometheus.Gauge
	lastRun        prometheus.Gauge
}

// New creates the collectors and registers them, together with the Go
// runtime and process collectors.
func New() *Metrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return &Metrics{
		registry: registry,

		runsTotal: promauto.With(registry).NewCounter(
			prometheus.CounterOpts{
				Name: "feedcal_runs_total",
				Help: "Total number of aggregation runs",
			},
		),

		fetchTotal: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "feedcal_source_fetches_total",
				Help: "Source fetches by source and result (ok or error kind)",
			},
			[]string{"source", "result"},
		),

		fetchDuration: promauto.With(registry).NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "feedcal_source_fetch_duration_seconds",
				Help:    "Source fetch duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"source"},
		),

		eventsFetched: promauto.With(registry).NewGauge(
			prometheus.GaugeOpts{
				Name: "feedcal_events_fetched",
				Help: "Normalized events of the last run before filtering",
			},
		),

		eventsReturned: promauto.With(registry).NewGauge(
			prometheus.GaugeOpts{
				Name: "feedcal_events_returned",
				Help: "Events returned by the last run after filtering and truncation",
			},
		),

		sourcesFailed: promauto.With(registry).NewGauge(
			prometheus.GaugeOpts{
				Name: "feedcal_sources_failed",
				Help: "Sources that failed in the last run",
			},
		),

		lastRun: promauto.With(registry).NewGauge(
			prometheus.GaugeOpts{
				Name: "feedcal_last_run_timestamp_seconds",
				Help: "Unix time of the last completed run",
			},
		),
	}
}

func (m *Metrics) ObserveFetch(source, result string, elapsed time.Duration) {
	m.fetchTotal.WithLabelValues(source, result).Inc()
	m.fetchDuration.WithLabelValues(source).Observe(elapsed.Seconds())
}

func (m *Metrics) ObserveRun(res *model.AggregationResult) {
	m.runsTotal.Inc()
	m.eventsFetched.Set(float64(res.TotalFetched))
	m.eventsReturned.Set(float64(len(res.Events)))
	m.sourcesFailed.Set(float64(len(res.Outcomes) - res.SucceededSources()))
	m.lastRun.Set(float64(res.GeneratedAt.Unix()))
}

// Registry exposes the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
