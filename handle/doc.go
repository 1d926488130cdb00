// Package handle models the lifecycle of a remote connection handle.
//
// A Handle moves through the states Created, Opened, Faulted, and Closed.
// The Manager owns the lifecycle decisions: Refresh replaces a handle that
// is nil or no longer Opened with a fresh one from the Factory, and Dispose
// tears a handle down without ever failing; a faulted handle or a failed
// graceful close is escalated to a forced abort.
//
// The package also defines the three canonical transient failure kinds that
// the invoker retries by default: TerminatedError, EndpointUnavailableError,
// and ServerBusyError.
package handle
