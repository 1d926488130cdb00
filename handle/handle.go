package handle

import "context"

// State represents the observable state of a connection handle.
type State int

const (
	// StateCreated indicates the handle exists but has not carried traffic.
	StateCreated State = iota

	// StateOpened indicates the handle is usable for operations.
	StateOpened

	// StateFaulted indicates the handle can no longer be used and must be
	// aborted rather than closed gracefully.
	StateFaulted

	// StateClosed indicates the handle has been torn down.
	StateClosed
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateOpened:
		return "opened"
	case StateFaulted:
		return "faulted"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Handle is a live connection to a remote service. A handle is owned by
// exactly one in-flight call at a time and is always disposed before the
// call returns.
type Handle interface {
	// State returns the current state of the handle.
	State() State

	// Close tears the handle down gracefully.
	Close() error

	// Abort tears the handle down forcefully and never fails.
	Abort()
}

// Factory constructs a fresh connection handle. A factory failure is not a
// retryable condition; it propagates unwrapped to the caller of the
// top-level invocation.
type Factory func(ctx context.Context) (Handle, error)
