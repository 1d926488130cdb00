// Package grpcconn adapts gRPC client connections to the handle lifecycle
// used by the invoker.
//
// NewFactory builds a handle.Factory for a dial target, WrapError lifts
// transport status codes into the error kinds retried by default, and
// RegisterRetryableCodes classifies raw status errors by code for callers
// that skip the wrapping step.
package grpcconn
