package readpath

// ReadMetrics provides observability for cache-aware reads.
//
// Optional - pass nil to disable collection. The Prometheus implementation
// lives in pkg/metrics/prometheus.
type ReadMetrics interface {
	// RecordRead records one read under the managed root and whether the
	// local payload cache served it.
	RecordRead(hit bool)
}
