package worker

import "sync"

// Event is a write-once shutdown signal shared by all workers of a
// pipeline. Workers treat a set event as "stop accepting new fetch work"
// but still consume the authoritative Stop marker before exiting.
type Event struct {
	once sync.Once
	ch   chan struct{}
}

// NewEvent creates an unset Event.
func NewEvent() *Event {
	return &Event{ch: make(chan struct{})}
}

// Set marks the event. Setting an already-set event is a no-op.
func (e *Event) Set() {
	e.once.Do(func() { close(e.ch) })
}

// IsSet reports whether the event has been set.
func (e *Event) IsSet() bool {
	select {
	case <-e.ch:
		return true
	default:
		return false
	}
}

// Done returns a channel closed when the event is set.
func (e *Event) Done() <-chan struct{} {
	return e.ch
}
