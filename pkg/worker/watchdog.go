package worker

import "os"

// Watchdog lets a worker detect that its parent is gone and self-terminate
// instead of waiting forever on a request channel nobody feeds.
type Watchdog interface {
	// Alive reports whether the parent is still alive.
	Alive() bool
}

// WatchdogFunc adapts a func to the Watchdog interface.
type WatchdogFunc func() bool

// Alive calls the wrapped func.
func (f WatchdogFunc) Alive() bool { return f() }

// ParentWatchdog reports the parent process dead once this process has been
// reparented (the recorded parent pid no longer matches).
type ParentWatchdog struct {
	parent int
}

// NewParentWatchdog records the current parent pid.
func NewParentWatchdog() *ParentWatchdog {
	return &ParentWatchdog{parent: os.Getppid()}
}

// Alive reports whether the recorded parent pid is unchanged.
func (w *ParentWatchdog) Alive() bool {
	return os.Getppid() == w.parent
}

// alwaysAlive is the default watchdog for in-process pipelines, where the
// parent cannot disappear without the whole process going with it.
type alwaysAlive struct{}

func (alwaysAlive) Alive() bool { return true }
