package config

import (
	"fmt"
	"os"
	"path/filepath"
)

// DefaultCacheRdbPath is the point-in-time cache dump location. It is a fixed
// literal rather than a base-relative path until the dump format is settled.
const DefaultCacheRdbPath = "test"

// ConfigFileSuffix locates the configuration file under the base directory.
const ConfigFileSuffix = "/conf/q.cfg"

const (
	raftLogSuffix      = "/raft/0"
	raftSnapshotSuffix = "/raft/1"
	pidFileSuffix      = "/pid"
	cacheAofSuffix     = "/CacheAof/0"
	cacheFilesSuffix   = "/CacheFiles/"
	checkpointSuffix   = "/checkpoint/0"
)

// Paths holds the on-disk locations used by the persistence subsystems.
type Paths struct {
	Base         string `json:"base"`
	ConfigFile   string `json:"config_file"`
	RaftLog      string `json:"raft_log"`
	RaftSnapshot string `json:"raft_snapshot"`
	PidFile      string `json:"pid_file"`
	CacheAof     string `json:"cache_aof"`
	CacheFiles   string `json:"cache_files"`
	Checkpoint   string `json:"checkpoint"`
	CacheRdb     string `json:"cache_rdb"`
}

// DerivePaths builds the path family for a base installation directory.
func DerivePaths(base, cacheRdb string) Paths {
	return Paths{
		Base:         base,
		ConfigFile:   base + ConfigFileSuffix,
		RaftLog:      base + raftLogSuffix,
		RaftSnapshot: base + raftSnapshotSuffix,
		PidFile:      base + pidFileSuffix,
		CacheAof:     base + cacheAofSuffix,
		CacheFiles:   base + cacheFilesSuffix,
		Checkpoint:   base + checkpointSuffix,
		CacheRdb:     cacheRdb,
	}
}

// BasePathFromExecutable returns the installation root for a binary laid out
// as <install>/bin/<binary>.
func BasePathFromExecutable() (string, error) {
	exe, err := os.Executable()
	if err != nil {
		return "", fmt.Errorf("locate executable: %w", err)
	}
	if resolved, err := filepath.EvalSymlinks(exe); err == nil {
		exe = resolved
	}
	return basePathOf(exe), nil
}

func basePathOf(exe string) string {
	return filepath.Dir(filepath.Dir(exe))
}
