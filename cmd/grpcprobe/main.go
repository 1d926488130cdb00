// Package main is the entry point for grpcprobe, a resilient gRPC health
// prober built on the retrying invoker.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"google.golang.org/grpc/health/grpc_health_v1"

	"github.com/randydotnet/retryproxy/config"
	"github.com/randydotnet/retryproxy/grpcconn"
	"github.com/randydotnet/retryproxy/handle"
	"github.com/randydotnet/retryproxy/invoker"
)

// Version information (set at build time).
var (
	version   = "dev"
	buildTime = "unknown"
	gitCommit = "unknown"
)

// cliFlags holds command line flags.
type cliFlags struct {
	target      string
	configPath  string
	logLevel    string
	logFormat   string
	metricsAddr string
	interval    time.Duration
	showVersion bool
}

func main() {
	flags := parseFlags()

	if flags.showVersion {
		printVersion()
		return
	}

	logger := initLogger(flags)
	defer func() { _ = logger.Sync() }()

	if flags.target == "" {
		logger.Fatal("no target given, use -target host:port")
	}

	inv := initInvoker(flags, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if flags.configPath != "" {
		watcher := startConfigWatcher(ctx, flags.configPath, inv, logger)
		defer func() { _ = watcher.Stop() }()
	}

	if flags.metricsAddr != "" {
		startMetricsServer(flags.metricsAddr, logger)
	}

	runProbeLoop(ctx, inv, flags, logger)
}

// parseFlags parses command line flags.
func parseFlags() cliFlags {
	target := flag.String("target", getEnvOrDefault("GRPCPROBE_TARGET", ""),
		"gRPC target to probe (host:port)")
	configPath := flag.String("config", getEnvOrDefault("GRPCPROBE_CONFIG_PATH", ""),
		"Path to retry configuration file (optional, watched for changes)")
	logLevel := flag.String("log-level", getEnvOrDefault("GRPCPROBE_LOG_LEVEL", "info"),
		"Log level (debug, info, warn, error)")
	logFormat := flag.String("log-format", getEnvOrDefault("GRPCPROBE_LOG_FORMAT", "json"),
		"Log format (json, console)")
	metricsAddr := flag.String("metrics-addr", getEnvOrDefault("GRPCPROBE_METRICS_ADDR", ""),
		"Address to serve Prometheus metrics on (empty disables)")
	interval := flag.Duration("interval", 10*time.Second, "Probe interval")
	showVersion := flag.Bool("version", false, "Show version information")
	flag.Parse()

	return cliFlags{
		target:      *target,
		configPath:  *configPath,
		logLevel:    *logLevel,
		logFormat:   *logFormat,
		metricsAddr: *metricsAddr,
		interval:    *interval,
		showVersion: *showVersion,
	}
}

// printVersion prints version information and exits.
func printVersion() {
	fmt.Printf("grpcprobe version %s\n", version)
	fmt.Printf("  Build time: %s\n", buildTime)
	fmt.Printf("  Git commit: %s\n", gitCommit)
}

// initLogger initializes the logger.
func initLogger(flags cliFlags) *zap.Logger {
	level, err := zapcore.ParseLevel(flags.logLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid log level %q: %v\n", flags.logLevel, err)
		os.Exit(1)
	}

	cfg := zap.NewProductionConfig()
	if flags.logFormat == "console" {
		cfg = zap.NewDevelopmentConfig()
	}
	cfg.Level = zap.NewAtomicLevelAt(level)

	logger, err := cfg.Build()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	return logger
}

// initInvoker builds the invoker over a gRPC connection factory.
func initInvoker(flags cliFlags, logger *zap.Logger) *invoker.Invoker {
	factory := grpcconn.NewFactory(flags.target, grpcconn.WithLogger(logger))

	inv, err := invoker.New(factory,
		invoker.WithName("grpcprobe"),
		invoker.WithLogger(logger),
	)
	if err != nil {
		logger.Fatal("failed to create invoker", zap.Error(err))
	}

	if err := grpcconn.RegisterRetryableCodes(inv); err != nil {
		logger.Fatal("failed to register retryable codes", zap.Error(err))
	}

	inv.OnCallSuccess(func(elapsed time.Duration, response any, attempts int, meta invoker.CallMetadata) {
		logger.Debug("call succeeded",
			zap.String("call_id", meta.CallID),
			zap.Int("attempts", attempts),
			zap.Duration("elapsed", elapsed),
		)
	})

	return inv
}

// startConfigWatcher loads the retry configuration, applies it, and keeps
// applying it as the file changes.
func startConfigWatcher(ctx context.Context, path string, inv *invoker.Invoker, logger *zap.Logger) *config.Watcher {
	watcher, err := config.NewWatcher(path, func(cfg *config.Config) {
		if err := config.Apply(cfg, inv); err != nil {
			logger.Error("failed to apply configuration", zap.Error(err))
			return
		}
		logger.Info("retry configuration applied",
			zap.Int("max_retries", inv.MaxRetries()),
		)
	}, config.WithWatcherLogger(logger))
	if err != nil {
		logger.Fatal("failed to create config watcher", zap.Error(err))
	}

	if err := watcher.Start(ctx); err != nil {
		logger.Fatal("failed to start config watcher", zap.Error(err))
	}
	if err := config.Apply(watcher.LastConfig(), inv); err != nil {
		logger.Fatal("failed to apply configuration", zap.Error(err))
	}
	return watcher
}

// startMetricsServer serves Prometheus metrics in the background.
func startMetricsServer(addr string, logger *zap.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		logger.Info("metrics server listening", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("metrics server failed", zap.Error(err))
		}
	}()
}

// runProbeLoop probes the target on every tick until the context ends.
func runProbeLoop(ctx context.Context, inv *invoker.Invoker, flags cliFlags, logger *zap.Logger) {
	logger.Info("starting probe loop",
		zap.String("target", flags.target),
		zap.Duration("interval", flags.interval),
	)

	ticker := time.NewTicker(flags.interval)
	defer ticker.Stop()

	probe(ctx, inv, flags.target, logger)
	for {
		select {
		case <-ctx.Done():
			logger.Info("shutting down")
			return
		case <-ticker.C:
			probe(ctx, inv, flags.target, logger)
		}
	}
}

// probe performs one health check through the invoker.
func probe(ctx context.Context, inv *invoker.Invoker, target string, logger *zap.Logger) {
	callCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	status, err := invoker.Invoke(callCtx, inv,
		func(ctx context.Context, h handle.Handle) (grpc_health_v1.HealthCheckResponse_ServingStatus, error) {
			conn, ok := h.(*grpcconn.Conn)
			if !ok {
				return 0, fmt.Errorf("unexpected handle type %T", h)
			}
			resp, err := grpc_health_v1.NewHealthClient(conn.ClientConn()).Check(ctx,
				&grpc_health_v1.HealthCheckRequest{})
			if err != nil {
				return 0, grpcconn.WrapError(target, err)
			}
			return resp.GetStatus(), nil
		},
		invoker.WithOperation("health.check"),
	)
	if err != nil {
		logger.Warn("probe failed", zap.String("target", target), zap.Error(err))
		return
	}

	logger.Info("probe ok",
		zap.String("target", target),
		zap.String("status", status.String()),
	)
}

// getEnvOrDefault returns the environment variable value or a default.
func getEnvOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
