package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"qcache/config"
	"qcache/pkg/cluster/raft"
	"qcache/pkg/layout"
	"qcache/storage"
)

// runUntilStarted starts run and cancels it once the pid file is in place.
func runUntilStarted(t *testing.T, base string) {
	t.Helper()
	paths := config.DerivePaths(base, config.DefaultCacheRdbPath)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- run(ctx, base, hclog.NewNullLogger()) }()

	require.Eventually(t, func() bool {
		pid, err := layout.ReadPidFile(afero.NewOsFs(), paths.PidFile)
		return err == nil && pid == os.Getpid()
	}, 10*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("run did not stop")
	}
}

func writeConfig(t *testing.T, base, contents string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Join(base, "conf"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(base, "conf", "q.cfg"), []byte(contents), 0o644))
}

func setBootstrap(t *testing.T, v bool) {
	t.Helper()
	orig := *bootstrap
	*bootstrap = v
	t.Cleanup(func() { *bootstrap = orig })
}

func TestRunLifecycle(t *testing.T) {
	base := t.TempDir()
	writeConfig(t, base, "myid=0\nserver0=127.0.0.1:3000\n")
	paths := config.DerivePaths(base, config.DefaultCacheRdbPath)

	runUntilStarted(t, base)

	assert.NoFileExists(t, paths.PidFile)
	assert.FileExists(t, paths.Checkpoint)
	assert.FileExists(t, filepath.Join(paths.RaftLog, "raft-log.bolt"))
}

func TestRunMalformedConfig(t *testing.T) {
	base := t.TempDir()
	writeConfig(t, base, "myid=0\nserver0=127.0.0.1:abc\n")

	err := run(context.Background(), base, hclog.NewNullLogger())
	assert.ErrorIs(t, err, config.ErrMalformedEntry)
	assert.NoFileExists(t, filepath.Join(base, "pid"))
}

func TestRunWithoutConfig(t *testing.T) {
	setBootstrap(t, true)
	base := t.TempDir()
	paths := config.DerivePaths(base, config.DefaultCacheRdbPath)

	runUntilStarted(t, base)

	assert.NoFileExists(t, paths.PidFile)
	assert.FileExists(t, paths.Checkpoint)

	stores, err := raft.OpenStores(paths, nil)
	require.NoError(t, err)
	defer stores.Close()
	existing, err := stores.HasExistingState()
	require.NoError(t, err)
	assert.False(t, existing)
}

func TestRunBootstrap(t *testing.T) {
	setBootstrap(t, true)
	base := t.TempDir()
	writeConfig(t, base, "myid=0\nserver0=127.0.0.1:3000\nserver1=127.0.0.1:3001\n")
	paths := config.DerivePaths(base, config.DefaultCacheRdbPath)

	runUntilStarted(t, base)

	stores, err := raft.OpenStores(paths, nil)
	require.NoError(t, err)
	existing, err := stores.HasExistingState()
	require.NoError(t, err)
	assert.True(t, existing)
	require.NoError(t, stores.Close())

	// A second start finds the state and skips bootstrapping.
	runUntilStarted(t, base)
}

func TestRunBootstrapSkippedOnVoter(t *testing.T) {
	setBootstrap(t, true)
	base := t.TempDir()
	writeConfig(t, base, "myid=1\nserver0=127.0.0.1:3000\nserver1=127.0.0.1:3001\n")
	paths := config.DerivePaths(base, config.DefaultCacheRdbPath)

	runUntilStarted(t, base)

	stores, err := raft.OpenStores(paths, nil)
	require.NoError(t, err)
	defer stores.Close()
	existing, err := stores.HasExistingState()
	require.NoError(t, err)
	assert.False(t, existing)
}

func TestRunRestoresCheckpointIntoEmptyCache(t *testing.T) {
	ctx := context.Background()
	base := t.TempDir()
	writeConfig(t, base, "myid=0\nserver0=127.0.0.1:3000\n")
	paths := config.DerivePaths(base, config.DefaultCacheRdbPath)

	seed, err := storage.NewBadgerStorage(paths, nil)
	require.NoError(t, err)
	require.NoError(t, seed.Set(ctx, "user:1", []byte("ada"), 0))
	require.NoError(t, seed.Checkpoint(ctx, paths.Checkpoint))
	require.NoError(t, seed.Close())

	require.NoError(t, os.RemoveAll(paths.CacheFiles))
	require.NoError(t, os.RemoveAll(paths.CacheAof))

	runUntilStarted(t, base)

	restored, err := storage.NewBadgerStorage(paths, nil)
	require.NoError(t, err)
	defer restored.Close()
	v, ok, err := restored.Get(ctx, "user:1")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []byte("ada"), v)
}
