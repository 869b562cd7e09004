package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/SirClappington/pdagent/internal/queue"
)

var (
	flushDurationSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "pdagent_flush_duration_seconds",
			Help:    "Duration of lock-held flush passes.",
			Buckets: prometheus.DefBuckets,
		},
	)
	consumeOutcomesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pdagent_consume_outcomes_total",
			Help: "Consume results by outcome.",
		},
		[]string{"outcome"},
	)
	pendingEvents = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "pdagent_pending_events",
			Help: "Pending events observed at the end of the last flush pass.",
		},
	)
	permissionFixesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "pdagent_event_file_permission_fixes_total",
			Help: "Event files whose mode was narrowed by the umask and corrected.",
		},
	)
	cleanedEventsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "pdagent_cleaned_events_total",
			Help: "Terminal event files removed by cleanup.",
		},
	)
)

func init() {
	prometheus.MustRegister(
		flushDurationSeconds,
		consumeOutcomesTotal,
		pendingEvents,
		permissionFixesTotal,
		cleanedEventsTotal,
	)
}

// QueueMetrics records queue telemetry into the default prometheus registry.
type QueueMetrics struct{}

var _ queue.Metrics = QueueMetrics{}

func (QueueMetrics) ObserveFlushDuration(d time.Duration) {
	flushDurationSeconds.Observe(d.Seconds())
}

func (QueueMetrics) AddOutcome(o queue.Outcome) {
	consumeOutcomesTotal.WithLabelValues(o.String()).Inc()
}

func (QueueMetrics) SetPending(n int) {
	pendingEvents.Set(float64(n))
}

func (QueueMetrics) AddPermissionFix() {
	permissionFixesTotal.Inc()
}

func (QueueMetrics) AddCleaned(n int) {
	cleanedEventsTotal.Add(float64(n))
}
