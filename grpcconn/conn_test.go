package grpcconn

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/connectivity"
	"google.golang.org/grpc/status"

	"github.com/randydotnet/retryproxy/handle"
	"github.com/randydotnet/retryproxy/invoker"
)

func TestMapState(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   connectivity.State
		want handle.State
	}{
		{connectivity.Idle, handle.StateCreated},
		{connectivity.Connecting, handle.StateCreated},
		{connectivity.Ready, handle.StateOpened},
		{connectivity.TransientFailure, handle.StateFaulted},
		{connectivity.Shutdown, handle.StateClosed},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.in.String(), func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, mapState(tt.in))
		})
	}
}

func TestNewFactory_CreatesAndCloses(t *testing.T) {
	t.Parallel()

	// Client creation is lazy, so no listener is needed.
	factory := NewFactory("localhost:65535", WithoutEagerConnect())

	h, err := factory(context.Background())
	require.NoError(t, err)

	conn, ok := h.(*Conn)
	require.True(t, ok)
	assert.Equal(t, "localhost:65535", conn.Target())
	assert.NotNil(t, conn.ClientConn())
	assert.Equal(t, handle.StateCreated, conn.State())

	require.NoError(t, conn.Close())
	assert.Equal(t, handle.StateClosed, conn.State())
}

func TestConn_AbortCloses(t *testing.T) {
	t.Parallel()

	factory := NewFactory("localhost:65535", WithoutEagerConnect())
	h, err := factory(context.Background())
	require.NoError(t, err)

	h.Abort()
	assert.Equal(t, handle.StateClosed, h.State())
}

func TestWrapError(t *testing.T) {
	t.Parallel()

	t.Run("nil", func(t *testing.T) {
		t.Parallel()
		assert.NoError(t, WrapError("svc:443", nil))
	})

	t.Run("unavailable", func(t *testing.T) {
		t.Parallel()
		orig := status.Error(codes.Unavailable, "connection refused")
		err := WrapError("svc:443", orig)

		var unavailable *handle.EndpointUnavailableError
		require.ErrorAs(t, err, &unavailable)
		assert.Equal(t, "svc:443", unavailable.Target)
		assert.ErrorIs(t, err, orig)
	})

	t.Run("resource exhausted", func(t *testing.T) {
		t.Parallel()
		err := WrapError("svc:443", status.Error(codes.ResourceExhausted, "quota"))

		var busy *handle.ServerBusyError
		assert.ErrorAs(t, err, &busy)
	})

	t.Run("application code passes through", func(t *testing.T) {
		t.Parallel()
		orig := status.Error(codes.InvalidArgument, "bad request")
		assert.Same(t, orig, WrapError("svc:443", orig))
	})

	t.Run("non-status error passes through", func(t *testing.T) {
		t.Parallel()
		orig := errors.New("plain failure")
		assert.Same(t, orig, WrapError("svc:443", orig))
	})
}

func TestRegisterRetryableCodes(t *testing.T) {
	t.Parallel()

	factory := NewFactory("localhost:65535", WithoutEagerConnect())
	inv, err := invoker.New(factory)
	require.NoError(t, err)
	require.NoError(t, RegisterRetryableCodes(inv, codes.Unavailable))

	attempts := 0
	_, err = invoker.Invoke(context.Background(), inv, func(ctx context.Context, h handle.Handle) (int, error) {
		attempts++
		if attempts == 1 {
			return 0, status.Error(codes.Unavailable, "down")
		}
		return attempts, nil
	})

	require.NoError(t, err)
	assert.Equal(t, 2, attempts)
}

func TestRegisterRetryableCodes_NonRetryableCode(t *testing.T) {
	t.Parallel()

	factory := NewFactory("localhost:65535", WithoutEagerConnect())
	inv, err := invoker.New(factory)
	require.NoError(t, err)
	require.NoError(t, RegisterRetryableCodes(inv))

	orig := status.Error(codes.InvalidArgument, "bad request")
	attempts := 0
	_, err = invoker.Invoke(context.Background(), inv, func(ctx context.Context, h handle.Handle) (int, error) {
		attempts++
		return 0, orig
	})

	require.Error(t, err)
	assert.Equal(t, 1, attempts)
}

func TestRegisterRetryableCodes_ClaimsKindOnce(t *testing.T) {
	t.Parallel()

	factory := NewFactory("localhost:65535", WithoutEagerConnect())
	inv, err := invoker.New(factory)
	require.NoError(t, err)

	require.NoError(t, RegisterRetryableCodes(inv))
	err = RegisterRetryableCodes(inv, codes.Aborted)
	assert.ErrorIs(t, err, invoker.ErrDuplicateRegistration)
}

func TestRegisterRetryableCodes_WrappedStatus(t *testing.T) {
	t.Parallel()

	factory := NewFactory("localhost:65535", WithoutEagerConnect())
	inv, err := invoker.New(factory)
	require.NoError(t, err)
	require.NoError(t, RegisterRetryableCodes(inv))

	attempts := 0
	_, err = invoker.Invoke(context.Background(), inv, func(ctx context.Context, h handle.Handle) (int, error) {
		attempts++
		if attempts == 1 {
			return 0, fmt.Errorf("call failed: %w", status.Error(codes.Unavailable, "down"))
		}
		return attempts, nil
	})

	require.NoError(t, err)
	assert.Equal(t, 2, attempts)
}
