package worker

import (
	"fmt"

	"github.com/cachewarm/cachewarm/pkg/prefetch"
)

// Message is an inbound control or fetch request. The request channel
// carries exactly three variants: Fetch, Resume, and Stop. A closed request
// channel is equivalent to Stop.
type Message interface{ isMessage() }

// Fetch asks the worker to fetch the items at Indices. Seq is the parent's
// request id and is echoed back on the corresponding Result.
type Fetch struct {
	Seq     uint64
	Indices prefetch.IndexBatch
}

// Resume is the worker-reuse continuation signal. It carries no data; the
// worker acknowledges it, clears its exhaustion state, and recreates its
// fetcher.
type Resume struct{}

// Stop is the terminal marker. It is only authorized once the shared
// shutdown flag is set or the worker has reported its own IterationEnd.
type Stop struct{}

func (Fetch) isMessage()  {}
func (Resume) isMessage() {}
func (Stop) isMessage()   {}

// Result is an outbound response. The response channel carries a Payload,
// Failure, or IterationEnd per fetch request, plus ResumeAck echoes.
type Result interface{ isResult() }

// Payload is a successful fetch: the collated batch for request Seq.
type Payload struct {
	Seq  uint64
	Data any
}

// Failure reports a fetch-path or initialization error for request Seq.
// The worker stays alive; only the request fails.
type Failure struct {
	Seq uint64
	Err *ErrorEnvelope
}

// IterationEnd reports that this worker's iterable source is exhausted.
// The parent must stop dispatching indices to this worker, but the worker
// still waits for Stop (or Resume) rather than exiting.
type IterationEnd struct {
	Seq      uint64
	WorkerID int
}

// ResumeAck echoes a received Resume back to the parent.
type ResumeAck struct{}

func (Payload) isResult()      {}
func (Failure) isResult()      {}
func (IterationEnd) isResult() {}
func (ResumeAck) isResult()    {}

// ErrorEnvelope wraps a failure with the worker identity where it occurred,
// so the parent can report a structured error instead of observing a
// crashed process.
type ErrorEnvelope struct {
	// Where describes the failing process, e.g. "in worker process 3".
	Where string

	// Cause is the underlying failure.
	Cause error
}

// Error implements the error interface.
func (e *ErrorEnvelope) Error() string {
	return fmt.Sprintf("%s: %v", e.Where, e.Cause)
}

// Unwrap returns the underlying failure.
func (e *ErrorEnvelope) Unwrap() error {
	return e.Cause
}

// envelope wraps err with this worker's identity.
func envelope(workerID int, err error) *ErrorEnvelope {
	return &ErrorEnvelope{
		Where: fmt.Sprintf("in worker process %d", workerID),
		Cause: err,
	}
}
