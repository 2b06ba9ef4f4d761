package prefetch

import "time"

// NotifierMetrics provides observability for the notification pipeline.
//
// This interface is optional - pass nil to disable metrics collection with
// zero overhead. The Prometheus implementation lives in
// pkg/metrics/prometheus.
type NotifierMetrics interface {
	// ObserveNotify records one notification attempt: how many indices it
	// carried, how long the POST took, and whether the endpoint accepted it.
	ObserveNotify(indices int, duration time.Duration, success bool)

	// RecordDrop records a discarded batch. Reason is "queue_full" for
	// enqueue overflow or "dispatch_panic" for a recovered dispatch failure.
	RecordDrop(reason string)

	// RecordQueueDepth records the pending batch count after an enqueue.
	RecordQueueDepth(depth int)
}
