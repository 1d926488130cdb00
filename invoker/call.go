package invoker

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/randydotnet/retryproxy/backoff"
	"github.com/randydotnet/retryproxy/handle"
)

// Operation is a unit of work executed against a connection handle. It is
// invoked once per attempt, always with a handle the lifecycle manager
// considers usable.
type Operation[T any] func(ctx context.Context, h handle.Handle) (T, error)

// InvokeInfo captures, for cross-cutting observers, whether the call
// produced a return value and what it was. The invoker mutates it as
// attempts complete; it reflects the raw response of the latest completed
// attempt, before response handlers run.
type InvokeInfo struct {
	MethodHasReturnValue bool
	ReturnValue          any
}

// CallOption is a functional option for a single call.
type CallOption func(*callOptions)

type callOptions struct {
	operation string
	info      *InvokeInfo
}

// WithOperation names the operation for logs, metrics, and call metadata.
func WithOperation(name string) CallOption {
	return func(co *callOptions) {
		if name != "" {
			co.operation = name
		}
	}
}

// WithInvokeInfo attaches an InvokeInfo record that the invoker mutates as
// attempts complete.
func WithInvokeInfo(info *InvokeInfo) CallOption {
	return func(co *callOptions) {
		co.info = info
	}
}

// Invoke executes op with retry, handle refresh, and response handling. It
// is the generic entry point for operations with a meaningful return value.
//
// The context is consulted between attempts, during backoff waits; an
// in-flight attempt is never interrupted.
func Invoke[T any](ctx context.Context, inv *Invoker, op Operation[T], opts ...CallOption) (T, error) {
	return run(ctx, inv, op, true, opts)
}

// Do executes an operation without a meaningful return value, with the same
// retry semantics as Invoke.
func Do(ctx context.Context, inv *Invoker, op func(ctx context.Context, h handle.Handle) error, opts ...CallOption) error {
	if op == nil {
		return ErrNilOperation
	}
	wrapped := func(ctx context.Context, h handle.Handle) (struct{}, error) {
		return struct{}{}, op(ctx, h)
	}
	_, err := run(ctx, inv, wrapped, false, opts)
	return err
}

// run is the retry loop shared by every entry point.
func run[T any](ctx context.Context, inv *Invoker, op Operation[T], hasReturn bool, opts []CallOption) (T, error) {
	var zero T

	if inv == nil {
		return zero, ErrNilInvoker
	}
	if op == nil {
		return zero, ErrNilOperation
	}
	if ctx == nil {
		ctx = context.Background()
	}

	co := callOptions{operation: "call"}
	for _, opt := range opts {
		opt(&co)
	}

	meta := CallMetadata{
		CallID:    uuid.NewString(),
		Invoker:   inv.name,
		Operation: co.operation,
		Start:     time.Now(),
	}

	// A handle factory failure propagates as-is, before any event fires.
	h, err := inv.manager.Refresh(ctx, nil)
	if err != nil {
		return zero, err
	}
	defer func() {
		inv.manager.Dispose(h)
	}()

	span := trace.SpanFromContext(ctx)
	span.AddEvent("rpc call begin", trace.WithAttributes(
		attribute.String("rpc.call_id", meta.CallID),
		attribute.String("rpc.operation", meta.Operation),
	))
	inv.events.emitCallBegin(meta)

	maxRetries := inv.MaxRetries()
	delays := inv.newBackoff()

	var (
		lastErr  error
		lastResp T
	)

	for attempt := 0; attempt <= maxRetries; attempt++ {
		inv.events.emitBeforeInvoke(attempt, meta)
		recordAttempt(inv.name, co.operation)

		resp, err := executeAttempt(ctx, inv, h, op)
		if err == nil {
			inv.events.emitAfterInvoke(attempt, resp, meta)

			if co.info != nil {
				co.info.MethodHasReturnValue = hasReturn
				if hasReturn {
					co.info.ReturnValue = resp
				}
			}

			if !inv.responseRetry.shouldRetry(resp) {
				// The single success exit.
				final, err := transformResponse(inv, resp)
				if err != nil {
					return zero, err
				}
				elapsed := time.Since(meta.Start)
				inv.events.emitCallSuccess(elapsed, final, attempt+1, meta)
				recordCall(inv.name, co.operation, resultSuccess, elapsed.Seconds())
				return final, nil
			}

			lastResp = resp
			inv.logger.Debug("retrying on response",
				zap.String("call_id", meta.CallID),
				zap.Int("attempt", attempt),
				zap.Int("max_retries", maxRetries),
			)
		} else {
			inv.events.emitException(err, attempt, meta)
			span.RecordError(err)

			if !inv.errorRetry.shouldRetry(err) {
				elapsed := time.Since(meta.Start)
				recordCall(inv.name, co.operation, resultUnrecoverable, elapsed.Seconds())
				return zero, err
			}

			lastErr = err
			inv.logger.Debug("retrying on error",
				zap.String("call_id", meta.CallID),
				zap.Int("attempt", attempt),
				zap.Int("max_retries", maxRetries),
				zap.Error(err),
			)
		}

		// The delay policy is never consulted for the final attempt.
		if attempt < maxRetries {
			if err := inv.wait(ctx, delays, attempt, meta); err != nil {
				recordCall(inv.name, co.operation, resultAborted, time.Since(meta.Start).Seconds())
				return zero, err
			}
			if h, err = inv.manager.Refresh(ctx, h); err != nil {
				return zero, err
			}
		}
	}

	elapsed := time.Since(meta.Start)

	if lastErr != nil {
		recordCall(inv.name, co.operation, resultExhausted, elapsed.Seconds())
		inv.logger.Warn("retries exhausted",
			zap.String("call_id", meta.CallID),
			zap.Int("attempts", maxRetries+1),
			zap.Error(lastErr),
		)
		if maxRetries == 0 {
			// A single attempt re-raises the raw error, unwrapped.
			return zero, lastErr
		}
		return zero, &ExhaustedError{Attempts: maxRetries + 1, Err: lastErr}
	}

	// Every attempt returned a retryable response and none failed: the last
	// response is returned verbatim, with no handlers applied and no error.
	recordCall(inv.name, co.operation, resultSuccess, elapsed.Seconds())
	return lastResp, nil
}

// executeAttempt runs one attempt, through the circuit breaker when one is
// configured.
func executeAttempt[T any](ctx context.Context, inv *Invoker, h handle.Handle, op Operation[T]) (T, error) {
	if inv.breaker == nil {
		return op(ctx, h)
	}

	out, err := inv.breaker.Execute(func() (interface{}, error) {
		return op(ctx, h)
	})
	if err != nil {
		var zero T
		return zero, err
	}
	if out == nil {
		var zero T
		return zero, nil
	}
	return out.(T), nil
}

// transformResponse chains the registered response handlers over resp.
func transformResponse[T any](inv *Invoker, resp T) (T, error) {
	out := inv.handlers.transform(resp)
	if out == nil {
		var zero T
		return zero, nil
	}
	final, ok := out.(T)
	if !ok {
		var zero T
		return zero, fmt.Errorf("response handler produced %T, want %T", out, resp)
	}
	return final, nil
}

// wait blocks for the policy's delay before the next attempt, honoring the
// retry rate limiter and context cancellation.
func (inv *Invoker) wait(ctx context.Context, delays backoff.Backoff, attempt int, meta CallMetadata) error {
	if inv.limiter != nil {
		if err := inv.limiter.Wait(ctx); err != nil {
			return err
		}
	}

	d := delays.Next(attempt)
	recordBackoff(inv.name, meta.Operation, d.Seconds())

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}
