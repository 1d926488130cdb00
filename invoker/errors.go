package invoker

import (
	"errors"
	"fmt"
)

var (
	// ErrNilInvoker is returned when an entry point is called on a nil invoker.
	ErrNilInvoker = errors.New("invoker is nil")

	// ErrNilOperation is returned when the operation closure is nil.
	ErrNilOperation = errors.New("operation is nil")

	// ErrDuplicateRegistration is returned when a retry predicate or response
	// handler is registered twice for the same type.
	ErrDuplicateRegistration = errors.New("duplicate registration")

	// ErrNilPredicate is returned when a response retry predicate is nil.
	// Unlike error classification, a response can only be classified
	// retryable through an explicit predicate.
	ErrNilPredicate = errors.New("response retry predicate is nil")

	// ErrNilTransform is returned when a response handler transform is nil.
	ErrNilTransform = errors.New("response handler transform is nil")
)

// ExhaustedError reports that all permitted attempts were consumed while
// retryable errors kept occurring. It wraps the error seen on the final
// attempt. When the invoker is configured with zero retries the underlying
// error is returned as-is instead.
type ExhaustedError struct {
	// Attempts is the total number of attempts performed.
	Attempts int

	// Err is the error observed on the last attempt.
	Err error
}

// Error implements error.
func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("retries exhausted after %d attempts: %v", e.Attempts, e.Err)
}

// Unwrap returns the error observed on the last attempt.
func (e *ExhaustedError) Unwrap() error {
	return e.Err
}
