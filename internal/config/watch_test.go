package config

import (
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWatcher_FiresOnChangeAfterWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("interfaces: {}"), 0o644))

	var calls int32
	w := NewWatcher(path, func() { atomic.AddInt32(&calls, 1) })
	w.debounce = 20 * time.Millisecond
	require.NoError(t, w.Start())
	defer w.Stop()

	require.NoError(t, os.WriteFile(path, []byte("interfaces: {eth0: {}}"), 0o644))

	require.Eventually(t, func() bool { return atomic.LoadInt32(&calls) == 1 }, 2*time.Second, 10*time.Millisecond)
}

func TestWatcher_DebouncesBurstOfWritesIntoOneCall(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("interfaces: {}"), 0o644))

	var calls int32
	w := NewWatcher(path, func() { atomic.AddInt32(&calls, 1) })
	w.debounce = 100 * time.Millisecond
	require.NoError(t, w.Start())
	defer w.Stop()

	for i := 0; i < 5; i++ {
		require.NoError(t, os.WriteFile(path, []byte("interfaces: {}"), 0o644))
		time.Sleep(10 * time.Millisecond)
	}

	require.Eventually(t, func() bool { return atomic.LoadInt32(&calls) == 1 }, 2*time.Second, 10*time.Millisecond)
	time.Sleep(150 * time.Millisecond)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestWatcher_IgnoresUnrelatedFilesInSameDirectory(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	other := filepath.Join(dir, "unrelated.txt")
	require.NoError(t, os.WriteFile(path, []byte("interfaces: {}"), 0o644))

	var calls int32
	w := NewWatcher(path, func() { atomic.AddInt32(&calls, 1) })
	w.debounce = 20 * time.Millisecond
	require.NoError(t, w.Start())
	defer w.Stop()

	require.NoError(t, os.WriteFile(other, []byte("noise"), 0o644))
	time.Sleep(150 * time.Millisecond)

	assert.Equal(t, int32(0), atomic.LoadInt32(&calls))
}

func TestWatcher_StopBeforeStartIsSafe(t *testing.T) {
	w := NewWatcher(filepath.Join(t.TempDir(), "config.yaml"), func() {})
	assert.NotPanics(t, func() { w.Stop() })
}

func TestWatcher_StartIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("interfaces: {}"), 0o644))

	w := NewWatcher(path, func() {})
	require.NoError(t, w.Start())
	defer w.Stop()

	assert.NoError(t, w.Start())
}
