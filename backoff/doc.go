// Package backoff provides pluggable delay strategies for the retrying
// invoker.
//
// A Backoff maps a retry attempt index to the duration to wait before the
// next attempt. Strategies may be stateless (constant, linear, exponential)
// or stateful (decorrelated jitter); the invoker obtains a fresh instance
// per call through a Factory so stateful strategies never leak state across
// calls.
//
// # Usage
//
// Build a strategy directly:
//
//	b := backoff.NewExponentialBackoff(100*time.Millisecond, 30*time.Second, 2.0, 0.2)
//	wait := b.Next(attempt)
//
// Or declaratively from configuration:
//
//	cfg := &backoff.Config{Type: backoff.TypeConstant, InitialInterval: time.Second}
//	factory := backoff.FactoryFromConfig(cfg)
package backoff
