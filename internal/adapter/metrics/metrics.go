package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// PipelineMetrics holds all Prometheus metrics for the ingestion pipeline.
type PipelineMetrics struct {
	EventsAdmitted  *prometheus.CounterVec
	DuplicatesTotal prometheus.Counter
	GapsDetected    prometheus.Counter
	PagesFetched    prometheus.Counter
	FetchErrors     prometheus.Counter
	StorageErrors   prometheus.Counter
	QuotaRemaining  prometheus.Gauge
	EventsStored    prometheus.Gauge
	EvictedTotal    prometheus.Counter
	CycleDuration   prometheus.Histogram
	SnapshotsTotal  prometheus.Counter
}

// NewPipelineMetrics initializes and registers the Prometheus metrics.
func NewPipelineMetrics() *PipelineMetrics {
	return &PipelineMetrics{
		EventsAdmitted: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "eventwatch",
			Subsystem: "ingest",
			Name:      "events_admitted_total",
			Help:      "Total number of admitted events by type.",
		}, []string{"type"}),
		DuplicatesTotal: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: "eventwatch",
			Subsystem: "ingest",
			Name:      "duplicates_total",
			Help:      "Total number of records rejected by the dedup window.",
		}),
		GapsDetected: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: "eventwatch",
			Subsystem: "ingest",
			Name:      "coverage_gaps_total",
			Help:      "Total number of detected coverage gaps.",
		}),
		PagesFetched: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: "eventwatch",
			Subsystem: "feed",
			Name:      "pages_fetched_total",
			Help:      "Total number of feed pages fetched.",
		}),
		FetchErrors: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: "eventwatch",
			Subsystem: "feed",
			Name:      "fetch_errors_total",
			Help:      "Total number of cycles aborted by a page fetch failure.",
		}),
		StorageErrors: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: "eventwatch",
			Subsystem: "store",
			Name:      "storage_errors_total",
			Help:      "Total number of events skipped due to a storage failure.",
		}),
		QuotaRemaining: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: "eventwatch",
			Subsystem: "feed",
			Name:      "quota_remaining",
			Help:      "Upstream-reported remaining rate limit quota.",
		}),
		EventsStored: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: "eventwatch",
			Subsystem: "store",
			Name:      "events_stored",
			Help:      "Number of events currently retained in the store.",
		}),
		EvictedTotal: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: "eventwatch",
			Subsystem: "store",
			Name:      "events_evicted_total",
			Help:      "Total number of events evicted past the retention horizon.",
		}),
		CycleDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: "eventwatch",
			Subsystem: "ingest",
			Name:      "cycle_duration_seconds",
			Help:      "Duration of fetch-and-admit cycles.",
			Buckets:   prometheus.DefBuckets,
		}),
		SnapshotsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: "eventwatch",
			Subsystem: "snapshots",
			Name:      "recorded_total",
			Help:      "Total number of metric snapshots recorded.",
		}),
	}
}
