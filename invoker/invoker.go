package invoker

import (
	"sync"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/randydotnet/retryproxy/backoff"
	"github.com/randydotnet/retryproxy/handle"
)

// DefaultMaxRetries is the default retry ceiling. The total number of
// attempts is always the ceiling plus one.
const DefaultMaxRetries = 4

// Invoker executes operations against a remote service through a connection
// handle, retrying classified transient failures with configurable backoff
// and refreshing the handle between attempts.
//
// An Invoker is safe for concurrent use across independent calls: each call
// owns its own handle and backoff instance. Registration calls
// (AddErrorToRetryOn, AddResponseToRetryOn, AddResponseHandler) are guarded
// against concurrent registration races but are expected to happen during
// setup, before calls begin.
type Invoker struct {
	name        string
	manager     *handle.Manager
	logger      *zap.Logger
	breaker     *gobreaker.CircuitBreaker
	limiter     *rate.Limiter
	defaultsOff bool

	mu             sync.RWMutex
	maxRetries     int
	backoffFactory backoff.Factory

	errorRetry    errorRegistry
	responseRetry responseRegistry
	handlers      handlerRegistry
	events        events
}

// Option is a functional option for configuring an Invoker.
type Option func(*Invoker)

// WithName sets the invoker name used in logs, metrics, and call metadata.
func WithName(name string) Option {
	return func(inv *Invoker) {
		inv.name = name
	}
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(inv *Invoker) {
		if logger != nil {
			inv.logger = logger
		}
	}
}

// WithMaxRetries sets the retry ceiling. Negative values are clamped to
// zero; zero means a single attempt with no retries.
func WithMaxRetries(n int) Option {
	return func(inv *Invoker) {
		if n < 0 {
			n = 0
		}
		inv.maxRetries = n
	}
}

// WithBackoffFactory sets the factory producing a fresh delay policy per
// call.
func WithBackoffFactory(f backoff.Factory) Option {
	return func(inv *Invoker) {
		if f != nil {
			inv.backoffFactory = f
		}
	}
}

// WithBreaker routes every attempt through the given circuit breaker. An
// open breaker fails the attempt with gobreaker.ErrOpenState, which is
// unrecoverable unless classified retryable by the caller.
func WithBreaker(cb *gobreaker.CircuitBreaker) Option {
	return func(inv *Invoker) {
		inv.breaker = cb
	}
}

// WithRetryLimiter applies a shared rate limit to retries. Before each
// backoff wait the invoker reserves a token from the limiter, bounding the
// aggregate retry rate across concurrent calls.
func WithRetryLimiter(l *rate.Limiter) Option {
	return func(inv *Invoker) {
		inv.limiter = l
	}
}

// WithoutDefaultClassifiers disables the built-in classification of the
// three canonical transient failure kinds (handle terminated, endpoint
// unavailable, server busy).
func WithoutDefaultClassifiers() Option {
	return func(inv *Invoker) {
		inv.defaultsOff = true
	}
}

// New creates an Invoker backed by the given handle factory.
//
// Unless WithoutDefaultClassifiers is given, the three canonical transient
// failure kinds are pre-registered as always retryable.
func New(factory handle.Factory, opts ...Option) (*Invoker, error) {
	inv := &Invoker{
		name:           "default",
		logger:         zap.NewNop(),
		maxRetries:     DefaultMaxRetries,
		backoffFactory: backoff.DefaultFactory(),
	}
	for _, opt := range opts {
		opt(inv)
	}

	manager, err := handle.NewManager(factory, handle.WithLogger(inv.logger))
	if err != nil {
		return nil, err
	}
	inv.manager = manager

	if !inv.defaultsOff {
		// The three canonical transient failure kinds, always retryable.
		if err := AddErrorToRetryOn[*handle.TerminatedError](inv, nil); err != nil {
			return nil, err
		}
		if err := AddErrorToRetryOn[*handle.EndpointUnavailableError](inv, nil); err != nil {
			return nil, err
		}
		if err := AddErrorToRetryOn[*handle.ServerBusyError](inv, nil); err != nil {
			return nil, err
		}
	}

	return inv, nil
}

// Name returns the invoker name.
func (inv *Invoker) Name() string {
	return inv.name
}

// MaxRetries returns the current retry ceiling.
func (inv *Invoker) MaxRetries() int {
	inv.mu.RLock()
	defer inv.mu.RUnlock()
	return inv.maxRetries
}

// SetMaxRetries changes the retry ceiling for subsequent calls. Negative
// values are clamped to zero. In-flight calls keep the ceiling they started
// with.
func (inv *Invoker) SetMaxRetries(n int) {
	if n < 0 {
		n = 0
	}
	inv.mu.Lock()
	inv.maxRetries = n
	inv.mu.Unlock()
}

// SetBackoffFactory changes the delay policy factory for subsequent calls.
// A nil factory is ignored.
func (inv *Invoker) SetBackoffFactory(f backoff.Factory) {
	if f == nil {
		return
	}
	inv.mu.Lock()
	inv.backoffFactory = f
	inv.mu.Unlock()
}

// newBackoff returns a fresh delay policy for one call.
func (inv *Invoker) newBackoff() backoff.Backoff {
	inv.mu.RLock()
	f := inv.backoffFactory
	inv.mu.RUnlock()
	return f()
}
