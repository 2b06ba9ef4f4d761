// Package prometheus provides Prometheus-backed implementations of the
// metrics interfaces declared next to the instrumented packages.
//
// Constructors return nil when metrics are disabled (InitRegistry not
// called), which the instrumented packages treat as zero-overhead no-op.
package prometheus

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/cachewarm/cachewarm/pkg/metrics"
	"github.com/cachewarm/cachewarm/pkg/prefetch"
)

// notifierMetrics is the Prometheus implementation of prefetch.NotifierMetrics.
type notifierMetrics struct {
	notifications *prometheus.CounterVec
	notifyLatency prometheus.Histogram
	notifyIndices prometheus.Counter
	drops         *prometheus.CounterVec
	queueDepth    prometheus.Gauge
}

// NewNotifierMetrics creates a Prometheus-backed prefetch.NotifierMetrics.
//
// Returns nil if metrics are not enabled.
func NewNotifierMetrics() prefetch.NotifierMetrics {
	if !metrics.IsEnabled() {
		return nil
	}
	reg := metrics.GetRegistry()

	return &notifierMetrics{
		notifications: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "cachewarm_prefetch_notifications_total",
				Help: "Prefetch notification attempts by outcome",
			},
			[]string{"outcome"}, // "ok", "dropped"
		),
		notifyLatency: promauto.With(reg).NewHistogram(
			prometheus.HistogramOpts{
				Name:    "cachewarm_prefetch_notify_duration_seconds",
				Help:    "Duration of notification POSTs",
				Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1},
			},
		),
		notifyIndices: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Name: "cachewarm_prefetch_notified_indices_total",
				Help: "Total dataset indices announced to the storage tier",
			},
		),
		drops: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "cachewarm_prefetch_dropped_batches_total",
				Help: "Index batches dropped before dispatch by reason",
			},
			[]string{"reason"}, // "queue_full", "dispatch_panic"
		),
		queueDepth: promauto.With(reg).NewGauge(
			prometheus.GaugeOpts{
				Name: "cachewarm_prefetch_queue_depth",
				Help: "Pending index batches in the prefetch queue",
			},
		),
	}
}

func (m *notifierMetrics) ObserveNotify(indices int, duration time.Duration, success bool) {
	outcome := "ok"
	if !success {
		outcome = "dropped"
	}
	m.notifications.WithLabelValues(outcome).Inc()
	m.notifyLatency.Observe(duration.Seconds())
	m.notifyIndices.Add(float64(indices))
}

func (m *notifierMetrics) RecordDrop(reason string) {
	m.drops.WithLabelValues(reason).Inc()
}

func (m *notifierMetrics) RecordQueueDepth(depth int) {
	m.queueDepth.Set(float64(depth))
}
