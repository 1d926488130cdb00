package handle

import (
	"context"
	"errors"

	"go.uber.org/zap"
)

// ErrNilFactory is returned when a Manager is constructed without a factory.
var ErrNilFactory = errors.New("handle factory is nil")

// Manager creates, validates, and disposes connection handles on behalf of
// the invoker.
type Manager struct {
	factory Factory
	logger  *zap.Logger
}

// ManagerOption is a functional option for configuring the manager.
type ManagerOption func(*Manager)

// WithLogger sets the logger for the manager.
func WithLogger(logger *zap.Logger) ManagerOption {
	return func(m *Manager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// NewManager creates a new handle manager backed by the given factory.
func NewManager(factory Factory, opts ...ManagerOption) (*Manager, error) {
	if factory == nil {
		return nil, ErrNilFactory
	}

	m := &Manager{
		factory: factory,
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// Refresh returns a usable handle. If current is nil or no longer in the
// Opened state it is disposed and a fresh handle is constructed through the
// factory; an Opened handle is returned unchanged. A factory failure
// propagates to the caller as-is.
func (m *Manager) Refresh(ctx context.Context, current Handle) (Handle, error) {
	if current != nil {
		state := current.State()
		if state == StateOpened {
			return current, nil
		}

		m.logger.Debug("disposing stale handle",
			zap.String("state", state.String()),
		)
		m.Dispose(current)
	}

	h, err := m.factory(ctx)
	if err != nil {
		return nil, err
	}

	m.logger.Debug("created handle",
		zap.String("state", h.State().String()),
	)
	return h, nil
}

// Dispose tears a handle down and never fails past this boundary. A faulted
// handle is aborted outright; otherwise a graceful close is attempted and
// escalated to an abort when it fails. Disposing a nil or already-closed
// handle is a no-op.
func (m *Manager) Dispose(h Handle) {
	if h == nil {
		return
	}

	defer func() {
		if r := recover(); r != nil {
			m.logger.Warn("handle teardown panicked",
				zap.Any("panic", r),
			)
		}
	}()

	switch h.State() {
	case StateClosed:
		return

	case StateFaulted:
		m.logger.Debug("aborting faulted handle")
		h.Abort()
		return
	}

	if err := h.Close(); err != nil {
		m.logger.Debug("graceful close failed, aborting handle",
			zap.Error(err),
		)
		h.Abort()
	}
}
