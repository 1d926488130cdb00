package grpcconn

import (
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/randydotnet/retryproxy/handle"
	"github.com/randydotnet/retryproxy/invoker"
)

// statusError is the interface gRPC status errors satisfy.
type statusError interface {
	error
	GRPCStatus() *status.Status
}

// WrapError maps transport-level gRPC status codes to the handle error
// kinds the invoker retries by default. Errors without a status, and
// statuses that carry application semantics, pass through unchanged.
func WrapError(target string, err error) error {
	if err == nil {
		return nil
	}
	st, ok := status.FromError(err)
	if !ok {
		return err
	}

	switch st.Code() {
	case codes.Unavailable:
		return &handle.EndpointUnavailableError{Target: target, Cause: err}
	case codes.ResourceExhausted:
		return &handle.ServerBusyError{Cause: err}
	default:
		return err
	}
}

// DefaultRetryableCodes are the status codes treated as transient by
// RegisterRetryableCodes when none are given.
var DefaultRetryableCodes = []codes.Code{
	codes.Unavailable,
	codes.ResourceExhausted,
	codes.Aborted,
	codes.DeadlineExceeded,
}

// RegisterRetryableCodes registers a retry classification for gRPC status
// errors carrying one of the given codes. With no codes it registers
// DefaultRetryableCodes. It claims the status-error kind in the invoker's
// registry, so it can be called at most once per invoker.
func RegisterRetryableCodes(inv *invoker.Invoker, retryable ...codes.Code) error {
	if len(retryable) == 0 {
		retryable = DefaultRetryableCodes
	}
	set := make(map[codes.Code]struct{}, len(retryable))
	for _, c := range retryable {
		set[c] = struct{}{}
	}

	return invoker.AddErrorToRetryOn(inv, func(e statusError) bool {
		_, ok := set[e.GRPCStatus().Code()]
		return ok
	})
}
