package prometheus

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/cachewarm/cachewarm/pkg/metrics"
	"github.com/cachewarm/cachewarm/pkg/readpath"
)

// readMetrics is the Prometheus implementation of readpath.ReadMetrics.
type readMetrics struct {
	reads *prometheus.CounterVec
}

// NewReadMetrics creates a Prometheus-backed readpath.ReadMetrics.
//
// Returns nil if metrics are not enabled.
func NewReadMetrics() readpath.ReadMetrics {
	if !metrics.IsEnabled() {
		return nil
	}
	reg := metrics.GetRegistry()

	return &readMetrics{
		reads: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "cachewarm_read_requests_total",
				Help: "Reads under the managed cache root by cache outcome",
			},
			[]string{"outcome"}, // "hit", "miss"
		),
	}
}

func (m *readMetrics) RecordRead(hit bool) {
	outcome := "miss"
	if hit {
		outcome = "hit"
	}
	m.reads.WithLabelValues(outcome).Inc()
}
