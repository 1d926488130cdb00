package invoker

import (
	"context"

	"github.com/randydotnet/retryproxy/handle"
)

// Result carries the outcome of an asynchronous invocation.
type Result[T any] struct {
	Response T
	Err      error
}

// InvokeAsync runs the same retry loop as Invoke on its own goroutine and
// delivers exactly one Result on the returned channel. Attempts within the
// call remain sequential; only the caller is decoupled.
//
// The channel is buffered, so the result is delivered even if the caller
// never receives it.
func InvokeAsync[T any](ctx context.Context, inv *Invoker, op Operation[T], opts ...CallOption) <-chan Result[T] {
	ch := make(chan Result[T], 1)
	go func() {
		resp, err := Invoke(ctx, inv, op, opts...)
		ch <- Result[T]{Response: resp, Err: err}
	}()
	return ch
}

// DoAsync is the asynchronous counterpart of Do. It delivers exactly one
// error value (possibly nil) on the returned channel.
func DoAsync(ctx context.Context, inv *Invoker, op func(ctx context.Context, h handle.Handle) error, opts ...CallOption) <-chan error {
	ch := make(chan error, 1)
	go func() {
		ch <- Do(ctx, inv, op, opts...)
	}()
	return ch
}
