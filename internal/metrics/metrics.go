package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics tracks per-indicator ingestion counts for one collector process.
// Collectors are registered on a private registry.
type Metrics struct {
	Registry *prometheus.Registry

	RecordsFetched    *prometheus.CounterVec
	RecordsSkipped    *prometheus.CounterVec
	RowsUpserted      *prometheus.CounterVec
	IndicatorFailures *prometheus.CounterVec
	FetchDuration     *prometheus.HistogramVec
}

func New() *Metrics {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)
	return &Metrics{
		Registry: registry,
		RecordsFetched: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "macro_records_fetched_total",
			Help: "Raw records returned by source adapters",
		}, []string{"indicator"}),
		RecordsSkipped: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "macro_records_skipped_total",
			Help: "Raw records dropped during cleaning, by reason",
		}, []string{"indicator", "reason"}),
		RowsUpserted: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "macro_rows_upserted_total",
			Help: "Rows inserted or changed in the store",
		}, []string{"indicator"}),
		IndicatorFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "macro_indicator_failures_total",
			Help: "Indicators abandoned, by pipeline stage",
		}, []string{"indicator", "stage"}),
		FetchDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "macro_fetch_duration_seconds",
			Help:    "Duration of source adapter fetches",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		}, []string{"indicator"}),
	}
}

func (m *Metrics) AddFetched(indicator string, n int) {
	m.RecordsFetched.WithLabelValues(indicator).Add(float64(n))
}

// AddSkipped records n dropped records; reason is "invalid_period",
// "invalid_value" or "duplicate".
func (m *Metrics) AddSkipped(indicator, reason string, n int) {
	if n <= 0 {
		return
	}
	m.RecordsSkipped.WithLabelValues(indicator, reason).Add(float64(n))
}

func (m *Metrics) AddUpserted(indicator string, n int64) {
	m.RowsUpserted.WithLabelValues(indicator).Add(float64(n))
}

func (m *Metrics) IncrementFailure(indicator, stage string) {
	m.IndicatorFailures.WithLabelValues(indicator, stage).Inc()
}

// ObserveFetch records the duration of a fetch that began at start.
func (m *Metrics) ObserveFetch(indicator string, start time.Time) {
	m.FetchDuration.WithLabelValues(indicator).Observe(time.Since(start).Seconds())
}

// WriteTextfile dumps every metric in the text exposition format, for the
// node_exporter textfile collector.
func (m *Metrics) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, m.Registry)
}
