package handle

import "fmt"

// TerminatedError reports that the remote side tore the handle down while
// it was in use. Terminated handles are one of the canonical transient
// failure kinds and are retried by default.
type TerminatedError struct {
	// Cause is the underlying transport error, if any.
	Cause error
}

// Error implements error.
func (e *TerminatedError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("handle terminated: %v", e.Cause)
	}
	return "handle terminated"
}

// Unwrap returns the underlying cause.
func (e *TerminatedError) Unwrap() error {
	return e.Cause
}

// EndpointUnavailableError reports that the remote endpoint could not be
// reached. Retried by default.
type EndpointUnavailableError struct {
	// Target is the endpoint that was unreachable, if known.
	Target string

	// Cause is the underlying transport error, if any.
	Cause error
}

// Error implements error.
func (e *EndpointUnavailableError) Error() string {
	msg := "endpoint unavailable"
	if e.Target != "" {
		msg = fmt.Sprintf("endpoint %s unavailable", e.Target)
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", msg, e.Cause)
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *EndpointUnavailableError) Unwrap() error {
	return e.Cause
}

// ServerBusyError reports that the remote service shed the request because
// it was overloaded. Retried by default.
type ServerBusyError struct {
	// Cause is the underlying transport error, if any.
	Cause error
}

// Error implements error.
func (e *ServerBusyError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("server too busy: %v", e.Cause)
	}
	return "server too busy"
}

// Unwrap returns the underlying cause.
func (e *ServerBusyError) Unwrap() error {
	return e.Cause
}
