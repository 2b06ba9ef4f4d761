// Package worker implements the per-worker fetch loop of the data-loading
// pipeline: a state machine that serves fetch requests from the parent,
// publishes prefetch hints for the storage tier, and cooperates with the
// shared shutdown and worker-reuse protocol.
package worker

// Info identifies one worker. It is constructed once at worker startup and
// never mutated; every capability that needs worker identity receives it
// explicitly instead of reading ambient state.
type Info struct {
	// ID is the worker's index in [0, NumWorkers).
	ID int

	// NumWorkers is the total worker count of the pipeline.
	NumWorkers int

	// Seed is the per-worker random seed, derived as base seed + ID.
	Seed int64

	// Dataset is this worker's handle to the dataset definition. Opaque to
	// this layer; the fetcher factory knows what to do with it.
	Dataset any
}

// NewInfo derives a worker's Info from the pipeline parameters.
func NewInfo(workerID, numWorkers int, baseSeed int64, dataset any) Info {
	return Info{
		ID:         workerID,
		NumWorkers: numWorkers,
		Seed:       baseSeed + int64(workerID),
		Dataset:    dataset,
	}
}
