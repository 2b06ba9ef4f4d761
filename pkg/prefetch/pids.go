package prefetch

import "context"

// PidRegistry announces worker process ids to the remote lifecycle tracker.
//
// Registration is fire-and-forget: no acknowledgment is awaited, and the
// remote side is responsible for eventual consistency (a missing unregister
// is treated as a dead worker after a timeout).
type PidRegistry struct {
	notifier           *Notifier
	registerEndpoint   string
	unregisterEndpoint string
}

// NewPidRegistry creates a PidRegistry delegating to the given notifier.
// Blank endpoints disable the corresponding call.
func NewPidRegistry(n *Notifier, registerEndpoint, unregisterEndpoint string) *PidRegistry {
	return &PidRegistry{
		notifier:           n,
		registerEndpoint:   registerEndpoint,
		unregisterEndpoint: unregisterEndpoint,
	}
}

// Register announces pids as live. Called at worker startup.
func (r *PidRegistry) Register(ctx context.Context, pids ...int) {
	r.notifier.RegisterPIDs(ctx, pids, r.registerEndpoint)
}

// Unregister removes pids. Called at worker shutdown.
func (r *PidRegistry) Unregister(ctx context.Context, pids ...int) {
	r.notifier.UnregisterPIDs(ctx, pids, r.unregisterEndpoint)
}
