package backoff

import (
	"fmt"
	"time"
)

// Type identifies a backoff strategy.
type Type string

const (
	// TypeConstant waits a fixed interval between attempts.
	TypeConstant Type = "constant"

	// TypeLinear grows the wait linearly.
	TypeLinear Type = "linear"

	// TypeExponential grows the wait exponentially with optional jitter.
	TypeExponential Type = "exponential"

	// TypeDecorrelatedJitter uses AWS-style decorrelated jitter.
	TypeDecorrelatedJitter Type = "decorrelated_jitter"
)

// Config describes a backoff strategy declaratively.
type Config struct {
	// Type is the backoff strategy type.
	Type Type

	// InitialInterval is the initial wait interval.
	InitialInterval time.Duration

	// MaxInterval is the maximum wait interval.
	MaxInterval time.Duration

	// Multiplier is the factor by which the wait grows (exponential only).
	Multiplier float64

	// Jitter is the random jitter factor, 0.0 to 1.0 (exponential only).
	Jitter float64

	// Increment is the per-attempt increment (linear only).
	Increment time.Duration
}

// DefaultConfig returns the default backoff configuration: exponential
// growth from 100ms capped at 30s with 20% jitter.
func DefaultConfig() *Config {
	return &Config{
		Type:            TypeExponential,
		InitialInterval: 100 * time.Millisecond,
		MaxInterval:     30 * time.Second,
		Multiplier:      2.0,
		Jitter:          0.2,
		Increment:       100 * time.Millisecond,
	}
}

// Validate checks the configuration and normalizes missing values to
// defaults.
func (c *Config) Validate() error {
	if c.Type == "" {
		c.Type = TypeExponential
	}
	switch c.Type {
	case TypeConstant, TypeLinear, TypeExponential, TypeDecorrelatedJitter:
	default:
		return fmt.Errorf("unknown backoff type %q", c.Type)
	}

	if c.InitialInterval <= 0 {
		c.InitialInterval = 100 * time.Millisecond
	}
	if c.MaxInterval <= 0 {
		c.MaxInterval = 30 * time.Second
	}
	if c.MaxInterval < c.InitialInterval {
		return fmt.Errorf("maxInterval %s is below initialInterval %s", c.MaxInterval, c.InitialInterval)
	}
	if c.Multiplier <= 0 {
		c.Multiplier = 2.0
	}
	if c.Jitter < 0 || c.Jitter > 1 {
		return fmt.Errorf("jitter %v out of range [0, 1]", c.Jitter)
	}
	if c.Increment <= 0 {
		c.Increment = c.InitialInterval
	}
	return nil
}

// FromConfig builds a Backoff from the given configuration. A nil config
// yields the default strategy.
func FromConfig(config *Config) Backoff {
	if config == nil {
		config = DefaultConfig()
	}

	switch config.Type {
	case TypeConstant:
		return NewConstantBackoff(config.InitialInterval)
	case TypeLinear:
		return NewLinearBackoff(config.InitialInterval, config.Increment, config.MaxInterval)
	case TypeDecorrelatedJitter:
		return NewDecorrelatedJitterBackoff(config.InitialInterval, config.MaxInterval)
	default:
		return NewExponentialBackoff(config.InitialInterval, config.MaxInterval, config.Multiplier, config.Jitter)
	}
}

// FactoryFromConfig returns a Factory producing a fresh Backoff per call
// from the given configuration.
func FactoryFromConfig(config *Config) Factory {
	return func() Backoff {
		return FromConfig(config)
	}
}

// DefaultFactory returns the default backoff factory.
func DefaultFactory() Factory {
	return FactoryFromConfig(DefaultConfig())
}
