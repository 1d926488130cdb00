package config

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, path, body string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
}

func TestWatcher_StartLoadsInitialConfig(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "retry.yaml")
	writeConfig(t, path, "maxRetries: 3\n")

	w, err := NewWatcher(path, nil)
	require.NoError(t, err)

	require.NoError(t, w.Start(context.Background()))
	defer func() { _ = w.Stop() }()

	cfg := w.LastConfig()
	require.NotNil(t, cfg)
	require.NotNil(t, cfg.MaxRetries)
	assert.Equal(t, 3, *cfg.MaxRetries)
}

func TestWatcher_StartFailsOnInvalidConfig(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "retry.yaml")
	writeConfig(t, path, "maxRetries: -2\n")

	w, err := NewWatcher(path, nil)
	require.NoError(t, err)

	assert.Error(t, w.Start(context.Background()))
}

func TestWatcher_ReloadOnWrite(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "retry.yaml")
	writeConfig(t, path, "maxRetries: 1\n")

	var latest atomic.Int64
	w, err := NewWatcher(path, func(cfg *Config) {
		if cfg.MaxRetries != nil {
			latest.Store(int64(*cfg.MaxRetries))
		}
	}, WithDebounceDelay(10*time.Millisecond))
	require.NoError(t, err)

	require.NoError(t, w.Start(context.Background()))
	defer func() { _ = w.Stop() }()

	writeConfig(t, path, "maxRetries: 5\n")

	require.Eventually(t, func() bool {
		return latest.Load() == 5
	}, 3*time.Second, 20*time.Millisecond)

	cfg := w.LastConfig()
	require.NotNil(t, cfg.MaxRetries)
	assert.Equal(t, 5, *cfg.MaxRetries)
}

func TestWatcher_BadReloadKeepsLastConfig(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "retry.yaml")
	writeConfig(t, path, "maxRetries: 1\n")

	var failures atomic.Int64
	w, err := NewWatcher(path, nil,
		WithDebounceDelay(10*time.Millisecond),
		WithErrorCallback(func(error) { failures.Add(1) }),
	)
	require.NoError(t, err)

	require.NoError(t, w.Start(context.Background()))
	defer func() { _ = w.Stop() }()

	writeConfig(t, path, "maxRetries: [\n")

	require.Eventually(t, func() bool {
		return failures.Load() >= 1
	}, 3*time.Second, 20*time.Millisecond)

	cfg := w.LastConfig()
	require.NotNil(t, cfg.MaxRetries)
	assert.Equal(t, 1, *cfg.MaxRetries)
}

func TestWatcher_ForceReload(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "retry.yaml")
	writeConfig(t, path, "maxRetries: 1\n")

	applied := 0
	// A long debounce keeps the write event from racing the forced reload.
	w, err := NewWatcher(path, func(cfg *Config) { applied++ }, WithDebounceDelay(time.Hour))
	require.NoError(t, err)

	require.NoError(t, w.Start(context.Background()))
	defer func() { _ = w.Stop() }()

	writeConfig(t, path, "maxRetries: 4\n")
	require.NoError(t, w.ForceReload())

	assert.Equal(t, 1, applied)
	require.NotNil(t, w.LastConfig().MaxRetries)
	assert.Equal(t, 4, *w.LastConfig().MaxRetries)
}

func TestWatcher_StopIdempotent(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "retry.yaml")
	writeConfig(t, path, "maxRetries: 1\n")

	w, err := NewWatcher(path, nil)
	require.NoError(t, err)
	require.NoError(t, w.Start(context.Background()))

	require.NoError(t, w.Stop())
	assert.NoError(t, w.Stop())
}
