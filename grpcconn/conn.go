package grpcconn

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/connectivity"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/keepalive"

	"github.com/randydotnet/retryproxy/handle"
)

// Conn adapts a gRPC client connection to the handle.Handle lifecycle.
type Conn struct {
	cc     *grpc.ClientConn
	target string
}

// ClientConn exposes the underlying connection for stub construction inside
// an operation.
func (c *Conn) ClientConn() *grpc.ClientConn { return c.cc }

// Target returns the dial target the connection was created for.
func (c *Conn) Target() string { return c.target }

// State implements handle.Handle.
func (c *Conn) State() handle.State { return mapState(c.cc.GetState()) }

// Close implements handle.Handle.
func (c *Conn) Close() error { return c.cc.Close() }

// Abort implements handle.Handle. gRPC has no separate hard-teardown path,
// so Abort closes the connection and discards the result.
func (c *Conn) Abort() { _ = c.cc.Close() }

// mapState translates gRPC connectivity states to handle states. Idle and
// Connecting map to StateCreated: the connection exists but has not proven
// usable yet.
func mapState(s connectivity.State) handle.State {
	switch s {
	case connectivity.Ready:
		return handle.StateOpened
	case connectivity.TransientFailure:
		return handle.StateFaulted
	case connectivity.Shutdown:
		return handle.StateClosed
	default:
		return handle.StateCreated
	}
}

type factoryConfig struct {
	dialOpts []grpc.DialOption
	logger   *zap.Logger
	connect  bool
}

// FactoryOption configures NewFactory.
type FactoryOption func(*factoryConfig)

// WithDialOptions replaces the default dial options.
func WithDialOptions(opts ...grpc.DialOption) FactoryOption {
	return func(c *factoryConfig) {
		c.dialOpts = opts
	}
}

// WithExtraDialOptions appends to the default dial options.
func WithExtraDialOptions(opts ...grpc.DialOption) FactoryOption {
	return func(c *factoryConfig) {
		c.dialOpts = append(c.dialOpts, opts...)
	}
}

// WithLogger sets the logger used when connections are created.
func WithLogger(logger *zap.Logger) FactoryOption {
	return func(c *factoryConfig) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithoutEagerConnect leaves new connections idle instead of kicking off the
// connect handshake at creation time.
func WithoutEagerConnect() FactoryOption {
	return func(c *factoryConfig) {
		c.connect = false
	}
}

func defaultDialOptions() []grpc.DialOption {
	return []grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithKeepaliveParams(keepalive.ClientParameters{
			Time:                30 * time.Second,
			Timeout:             10 * time.Second,
			PermitWithoutStream: true,
		}),
	}
}

// NewFactory returns a handle.Factory producing connections to target. Each
// factory call creates a fresh client connection; connection creation is
// non-blocking, so a factory error here means a malformed target rather
// than an unreachable endpoint.
func NewFactory(target string, opts ...FactoryOption) handle.Factory {
	cfg := factoryConfig{
		logger:  zap.NewNop(),
		connect: true,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if len(cfg.dialOpts) == 0 {
		cfg.dialOpts = defaultDialOptions()
	}

	return func(ctx context.Context) (handle.Handle, error) {
		cc, err := grpc.NewClient(target, cfg.dialOpts...)
		if err != nil {
			return nil, fmt.Errorf("failed to create client for %s: %w", target, err)
		}
		if cfg.connect {
			cc.Connect()
		}

		cfg.logger.Debug("created gRPC connection",
			zap.String("target", target),
		)
		return &Conn{cc: cc, target: target}, nil
	}
}
