package worker

import (
	"errors"
	"testing"
	"time"
)

var errTestCause = errors.New("boom")

func TestEvent_SetOnce(t *testing.T) {
	e := NewEvent()
	if e.IsSet() {
		t.Fatal("new event must not be set")
	}

	e.Set()
	if !e.IsSet() {
		t.Fatal("event not set after Set")
	}

	// Set is idempotent.
	e.Set()
	if !e.IsSet() {
		t.Fatal("event lost its state after second Set")
	}
}

func TestEvent_DoneChannel(t *testing.T) {
	e := NewEvent()

	select {
	case <-e.Done():
		t.Fatal("done channel closed before Set")
	default:
	}

	e.Set()
	select {
	case <-e.Done():
	case <-time.After(time.Second):
		t.Fatal("done channel not closed after Set")
	}
}

func TestErrorEnvelope(t *testing.T) {
	cause := errTestCause
	env := envelope(3, cause)

	if env.Unwrap() != cause {
		t.Error("envelope does not unwrap to the cause")
	}
	if env.Where != "in worker process 3" {
		t.Errorf("unexpected location: %q", env.Where)
	}
	if env.Error() == "" {
		t.Error("envelope error string is empty")
	}
}
