package draft

import "sync"

// Status is the observable reconciliation state between the local draft and
// its remote copy.
type Status string

const (
	// StatusOffline: not authenticated, no sync possible.
	StatusOffline Status = "offline"
	// StatusSyncing: a check, push, or pull is in flight.
	StatusSyncing Status = "syncing"
	// StatusSynced: remote state confirmed consistent with the last known
	// local intent.
	StatusSynced Status = "synced"
	// StatusError: the last remote operation failed; the message is kept
	// for display and manual retry.
	StatusError Status = "error"
)

// StatusController is the small state machine the UI reads. Remote failures
// become state here; nothing propagates as a panic into the rendering layer.
type StatusController struct {
	mu       sync.Mutex
	status   Status
	message  string
	onChange func(Status, string)
}

// NewStatusController starts in offline.
func NewStatusController() *StatusController {
	return &StatusController{status: StatusOffline}
}

// OnChange registers an observer invoked after every transition.
func (c *StatusController) OnChange(fn func(Status, string)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onChange = fn
}

func (c *StatusController) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

// Message returns the retained failure message, empty unless in error.
func (c *StatusController) Message() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.message
}

// Resume leaves offline when authentication becomes available, entering
// syncing for the initial existence check. No-op unless currently offline.
func (c *StatusController) Resume() {
	c.mu.Lock()
	if c.status != StatusOffline {
		c.mu.Unlock()
		return
	}
	c.status = StatusSyncing
	c.message = ""
	fn := c.onChange
	c.mu.Unlock()
	if fn != nil {
		fn(StatusSyncing, "")
	}
}

// Begin marks an operation in flight. No-op while offline: an unauthenticated
// engine never reports syncing.
func (c *StatusController) Begin() {
	c.set(StatusSyncing, "")
}

// Succeed marks the last operation consistent and clears any error message.
func (c *StatusController) Succeed() {
	c.set(StatusSynced, "")
}

// Fail records the failure message and moves to error.
func (c *StatusController) Fail(message string) {
	if message == "" {
		message = "sync failed"
	}
	c.set(StatusError, message)
}

// Offline forces the offline state, e.g. on loss of authentication. Any
// retained error message is dropped with it.
func (c *StatusController) Offline() {
	c.mu.Lock()
	c.status = StatusOffline
	c.message = ""
	fn, st, msg := c.onChange, c.status, c.message
	c.mu.Unlock()
	if fn != nil {
		fn(st, msg)
	}
}

func (c *StatusController) set(status Status, message string) {
	c.mu.Lock()
	if c.status == StatusOffline {
		// offline is only left via Resume; an operation completing
		// after loss of authentication must not resurrect sync state
		c.mu.Unlock()
		return
	}
	c.status = status
	c.message = message
	fn := c.onChange
	c.mu.Unlock()
	if fn != nil {
		fn(status, message)
	}
}
