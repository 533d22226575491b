package raft

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/hashicorp/go-hclog"
	hraft "github.com/hashicorp/raft"
	raftboltdb "github.com/hashicorp/raft-boltdb"

	"qcache/config"
)

const (
	logStoreFile    = "raft-log.bolt"
	stableStoreFile = "raft-stable.bolt"
	retainSnapshots = 2
)

// ErrExistingState is returned by Bootstrap when the stores already hold
// raft state.
var ErrExistingState = errors.New("raft state already exists")

// ServerID returns the raft server id of a node.
func ServerID(n config.Node) hraft.ServerID {
	return hraft.ServerID(strconv.FormatUint(uint64(n.ID), 10))
}

// Configuration returns a raft configuration with every declared node as a
// voter, addressed by its client endpoint.
func Configuration(topo config.Topology) hraft.Configuration {
	nodes := topo.Nodes()
	servers := make([]hraft.Server, 0, len(nodes))
	for _, n := range nodes {
		servers = append(servers, hraft.Server{
			Suffrage: hraft.Voter,
			ID:       ServerID(n),
			Address:  hraft.ServerAddress(n.ClientAddr()),
		})
	}
	return hraft.Configuration{Servers: servers}
}

// Stores bundles the on-disk raft stores opened at the resolved raft paths.
type Stores struct {
	logs   *raftboltdb.BoltStore
	stable *raftboltdb.BoltStore
	snap   *hraft.FileSnapshotStore
	logger hclog.Logger
}

// OpenStores opens the bolt log and stable stores under paths.RaftLog and the
// file snapshot store under paths.RaftSnapshot, creating the directories.
func OpenStores(paths config.Paths, logger hclog.Logger) (*Stores, error) {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	logger = logger.Named("raft")

	if err := os.MkdirAll(paths.RaftLog, 0o755); err != nil {
		return nil, fmt.Errorf("raft log dir: %w", err)
	}
	logs, err := raftboltdb.NewBoltStore(filepath.Join(paths.RaftLog, logStoreFile))
	if err != nil {
		return nil, fmt.Errorf("bolt log store: %w", err)
	}
	stable, err := raftboltdb.NewBoltStore(filepath.Join(paths.RaftLog, stableStoreFile))
	if err != nil {
		_ = logs.Close()
		return nil, fmt.Errorf("bolt stable store: %w", err)
	}
	snap, err := hraft.NewFileSnapshotStoreWithLogger(paths.RaftSnapshot, retainSnapshots, logger)
	if err != nil {
		_ = logs.Close()
		_ = stable.Close()
		return nil, fmt.Errorf("snapshot store: %w", err)
	}

	logger.Debug("opened raft stores", "log", paths.RaftLog, "snapshot", paths.RaftSnapshot)
	return &Stores{logs: logs, stable: stable, snap: snap, logger: logger}, nil
}

// LogStore returns the raft log store.
func (s *Stores) LogStore() hraft.LogStore { return s.logs }

// StableStore returns the raft stable store.
func (s *Stores) StableStore() hraft.StableStore { return s.stable }

// SnapshotStore returns the raft snapshot store.
func (s *Stores) SnapshotStore() hraft.SnapshotStore { return s.snap }

// HasExistingState reports whether any raft state has been persisted.
func (s *Stores) HasExistingState() (bool, error) {
	return hraft.HasExistingState(s.logs, s.stable, s.snap)
}

// Bootstrap seeds the stores with the initial configuration on behalf of
// local. Only the bootstrap member of a fresh cluster should call it.
func (s *Stores) Bootstrap(local config.Node, configuration hraft.Configuration) error {
	rcfg := hraft.DefaultConfig()
	rcfg.LocalID = ServerID(local)
	rcfg.Logger = s.logger

	// No messages are sent while bootstrapping; the transport only satisfies
	// the signature.
	_, trans := hraft.NewInmemTransport(hraft.ServerAddress(local.ClientAddr()))
	defer trans.Close()

	err := hraft.BootstrapCluster(rcfg, s.logs, s.stable, s.snap, trans, configuration)
	if errors.Is(err, hraft.ErrCantBootstrap) {
		return ErrExistingState
	}
	if err != nil {
		return fmt.Errorf("bootstrap: %w", err)
	}
	s.logger.Info("bootstrapped raft configuration", "local", rcfg.LocalID, "servers", len(configuration.Servers))
	return nil
}

// Close closes the bolt stores.
func (s *Stores) Close() error {
	if s == nil {
		return nil
	}
	return errors.Join(s.logs.Close(), s.stable.Close())
}
