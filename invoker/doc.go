// Package invoker executes operations against a remote service with
// automatic retries, transparent connection-handle refresh, and lifecycle
// events.
//
// An Invoker is built from a handle.Factory and executes caller-supplied
// operation closures. Each failed attempt is classified against registered
// error kinds; each successful attempt is classified against registered
// response kinds, so application-level "try again" signals embedded in an
// otherwise-successful response can also trigger a retry. Between attempts
// the invoker waits per its backoff policy and replaces the handle if it is
// no longer usable.
//
// # Retry semantics
//
// The retry ceiling counts retries, not attempts: a ceiling of N performs
// at most N+1 attempts. When every attempt fails with a retryable error the
// call returns an *ExhaustedError wrapping the final error, except with a
// ceiling of zero, where the raw error is returned unwrapped. When every
// attempt instead returns a retryable response and no attempt ever failed,
// the final response is returned verbatim with no error.
//
// # Usage
//
//	inv, err := invoker.New(factory,
//	    invoker.WithName("billing"),
//	    invoker.WithMaxRetries(3),
//	)
//	if err != nil {
//	    ...
//	}
//
//	_ = invoker.AddResponseToRetryOn(inv, func(r *StatusReply) bool {
//	    return r.Code == CodeTryAgain
//	})
//
//	reply, err := invoker.Invoke(ctx, inv, func(ctx context.Context, h handle.Handle) (*StatusReply, error) {
//	    return callService(ctx, h)
//	})
//
// # Events
//
// Five observation points are available: OnCallBegin, OnBeforeInvoke,
// OnAfterInvoke, OnException, and OnCallSuccess. Subscribers run
// synchronously on the calling goroutine and are not isolated from the
// call: a panicking subscriber aborts the call.
package invoker
