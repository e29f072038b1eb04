package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics groups the Prometheus collectors exported by the engine.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	SyncTotal     *prometheus.CounterVec
	SyncDuration  *prometheus.HistogramVec
	PoolsSynced   prometheus.Gauge
	PreviewTotal  *prometheus.CounterVec
	FallbackTotal *prometheus.CounterVec
}

// New registers all collectors on reg under the given subsystem.
func New(reg prometheus.Registerer, subsystem string) *Metrics {
	return &Metrics{
		SyncTotal: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Subsystem: subsystem,
			Name:      "pool_sync_total",
			Help:      "Pool synchronizations, labeled by result.",
		}, []string{"result"}),

		SyncDuration: promauto.With(reg).NewHistogramVec(prometheus.HistogramOpts{
			Subsystem: subsystem,
			Name:      "pool_sync_duration_seconds",
			Help:      "Time to fetch and persist one pool's state.",
			Buckets:   prometheus.DefBuckets,
		}, []string{}),

		PoolsSynced: promauto.With(reg).NewGauge(prometheus.GaugeOpts{
			Subsystem: subsystem,
			Name:      "pools_synced_last_run",
			Help:      "Pools synchronized successfully in the last full run.",
		}),

		PreviewTotal: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Subsystem: subsystem,
			Name:      "liquidity_preview_total",
			Help:      "Liquidity previews computed, labeled by kind and validity.",
		}, []string{"kind", "valid"}),

		FallbackTotal: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Subsystem: subsystem,
			Name:      "quote_fallback_total",
			Help:      "Quote steps that fell back to a local estimate, labeled by step.",
		}, []string{"step"}),
	}
}

func (m *Metrics) ObserveSync(err error, took time.Duration) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.SyncTotal.WithLabelValues(result).Inc()
	m.SyncDuration.WithLabelValues().Observe(took.Seconds())
}

func (m *Metrics) SetPoolsSynced(n int) {
	if m == nil {
		return
	}
	m.PoolsSynced.Set(float64(n))
}

func (m *Metrics) ObservePreview(kind string, valid bool) {
	if m == nil {
		return
	}
	v := "false"
	if valid {
		v = "true"
	}
	m.PreviewTotal.WithLabelValues(kind, v).Inc()
}

func (m *Metrics) ObserveFallback(step string) {
	if m == nil {
		return
	}
	m.FallbackTotal.WithLabelValues(step).Inc()
}
