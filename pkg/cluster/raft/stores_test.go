package raft

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/hashicorp/go-hclog"
	hraft "github.com/hashicorp/raft"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"qcache/config"
)

func testTopology(t *testing.T) config.Topology {
	t.Helper()
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/q"+config.ConfigFileSuffix,
		[]byte("myid=0\nserver1=127.0.0.1:3001\nserver0=127.0.0.1:3000\n"), 0o644))
	topo, err := config.New("/q", config.WithFs(fs)).Topology()
	require.NoError(t, err)
	return topo
}

func TestConfiguration(t *testing.T) {
	conf := Configuration(testTopology(t))

	assert.Equal(t, []hraft.Server{
		{Suffrage: hraft.Voter, ID: "0", Address: "127.0.0.1:3000"},
		{Suffrage: hraft.Voter, ID: "1", Address: "127.0.0.1:3001"},
	}, conf.Servers)
}

func TestOpenStoresAndBootstrap(t *testing.T) {
	paths := config.DerivePaths(t.TempDir(), config.DefaultCacheRdbPath)
	logger := hclog.NewNullLogger()

	stores, err := OpenStores(paths, logger)
	require.NoError(t, err)

	assert.FileExists(t, filepath.Join(paths.RaftLog, logStoreFile))
	assert.FileExists(t, filepath.Join(paths.RaftLog, stableStoreFile))
	info, err := os.Stat(paths.RaftSnapshot)
	require.NoError(t, err)
	assert.True(t, info.IsDir())

	existing, err := stores.HasExistingState()
	require.NoError(t, err)
	assert.False(t, existing)

	topo := testTopology(t)
	local, ok := topo.Lookup(0)
	require.True(t, ok)
	require.NoError(t, stores.Bootstrap(local, Configuration(topo)))

	existing, err = stores.HasExistingState()
	require.NoError(t, err)
	assert.True(t, existing)

	assert.ErrorIs(t, stores.Bootstrap(local, Configuration(topo)), ErrExistingState)
	require.NoError(t, stores.Close())

	reopened, err := OpenStores(paths, nil)
	require.NoError(t, err)
	defer reopened.Close()
	existing, err = reopened.HasExistingState()
	require.NoError(t, err)
	assert.True(t, existing)
}
