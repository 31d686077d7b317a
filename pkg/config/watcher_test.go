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

func TestWatcher_TriggersReloadOnWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "quell.yaml")
	require.NoError(t, os.WriteFile(path, []byte("policy:\n  mode: escalate\n"), 0o600))

	var reloads atomic.Int64
	w, err := NewWatcher(path, func(p string) error {
		assert.Equal(t, path, p)
		reloads.Add(1)
		return nil
	}, nil)
	require.NoError(t, err)
	w.SetDebounce(20 * time.Millisecond)

	require.NoError(t, w.Start(context.Background()))
	defer w.Stop() //nolint:errcheck

	require.NoError(t, os.WriteFile(path, []byte("policy:\n  mode: swallow-all\n"), 0o600))

	require.Eventually(t, func() bool {
		return reloads.Load() >= 1
	}, 5*time.Second, 10*time.Millisecond)
}

func TestWatcher_IgnoresOtherFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "quell.yaml")
	require.NoError(t, os.WriteFile(path, []byte("policy: {}\n"), 0o600))

	var reloads atomic.Int64
	w, err := NewWatcher(path, func(string) error {
		reloads.Add(1)
		return nil
	}, nil)
	require.NoError(t, err)
	w.SetDebounce(20 * time.Millisecond)

	require.NoError(t, w.Start(context.Background()))
	defer w.Stop() //nolint:errcheck

	require.NoError(t, os.WriteFile(filepath.Join(dir, "other.yaml"), []byte("x: 1\n"), 0o600))

	time.Sleep(200 * time.Millisecond)
	assert.Zero(t, reloads.Load())
}

func TestWatcher_StartStop(t *testing.T) {
	path := filepath.Join(t.TempDir(), "quell.yaml")
	require.NoError(t, os.WriteFile(path, []byte("policy: {}\n"), 0o600))

	w, err := NewWatcher(path, func(string) error { return nil }, nil)
	require.NoError(t, err)

	assert.False(t, w.IsRunning())
	require.NoError(t, w.Start(context.Background()))
	assert.True(t, w.IsRunning())

	// Starting twice is a no-op.
	require.NoError(t, w.Start(context.Background()))

	require.NoError(t, w.Stop())
	assert.False(t, w.IsRunning())

	// Stopping twice is a no-op.
	require.NoError(t, w.Stop())
}
