package config

import (
	"errors"
	"sync"

	"github.com/hashicorp/go-hclog"
	"github.com/spf13/afero"
)

// Resolver resolves the cluster topology, the local node and the subsystem
// paths of one installation. The configuration file is read at most once per
// Resolver; the outcome, including a failure, is kept for its lifetime.
type Resolver struct {
	fs              afero.Fs
	logger          hclog.Logger
	heartbeatOffset int
	paths           Paths

	once   sync.Once
	result parsed
}

// Option configures a Resolver.
type Option func(*resolverOptions)

type resolverOptions struct {
	fs              afero.Fs
	logger          hclog.Logger
	configFile      string
	heartbeatOffset int
	cacheRdb        string
}

// WithFs reads the configuration file through fs instead of the OS filesystem.
func WithFs(fs afero.Fs) Option {
	return func(o *resolverOptions) { o.fs = fs }
}

// WithLogger sets the logger.
func WithLogger(l hclog.Logger) Option {
	return func(o *resolverOptions) { o.logger = l }
}

// WithConfigFile overrides the <base>/conf/q.cfg location.
func WithConfigFile(path string) Option {
	return func(o *resolverOptions) { o.configFile = path }
}

// WithHeartbeatPortOffset overrides DefaultHeartbeatPortOffset.
func WithHeartbeatPortOffset(offset int) Option {
	return func(o *resolverOptions) { o.heartbeatOffset = offset }
}

// WithCacheRdbPath overrides DefaultCacheRdbPath.
func WithCacheRdbPath(path string) Option {
	return func(o *resolverOptions) { o.cacheRdb = path }
}

// New creates a Resolver for the installation rooted at basePath. Paths are
// derived immediately; the configuration file is not touched until the
// topology or the local node is first requested.
func New(basePath string, opts ...Option) *Resolver {
	o := resolverOptions{
		fs:              afero.NewOsFs(),
		logger:          hclog.NewNullLogger(),
		heartbeatOffset: DefaultHeartbeatPortOffset,
		cacheRdb:        DefaultCacheRdbPath,
	}
	for _, opt := range opts {
		opt(&o)
	}

	paths := DerivePaths(basePath, o.cacheRdb)
	if o.configFile != "" {
		paths.ConfigFile = o.configFile
	}

	return &Resolver{
		fs:              o.fs,
		logger:          o.logger.Named("config"),
		heartbeatOffset: o.heartbeatOffset,
		paths:           paths,
	}
}

// NewFromExecutable creates a Resolver whose base directory is inferred from
// the running binary (see BasePathFromExecutable).
func NewFromExecutable(opts ...Option) (*Resolver, error) {
	base, err := BasePathFromExecutable()
	if err != nil {
		return nil, err
	}
	return New(base, opts...), nil
}

func (r *Resolver) resolve() parsed {
	r.once.Do(func() {
		path := r.paths.ConfigFile
		entries, err := readEntries(r.fs, path)
		if err != nil {
			if errors.Is(err, ErrSourceUnavailable) {
				r.logger.Debug("config file not readable", "path", path, "error", err)
			} else {
				r.logger.Error("config file malformed", "path", path, "error", err)
			}
			r.result = parsed{topoErr: err}
			return
		}

		r.result = parseEntries(entries, r.heartbeatOffset)
		if r.result.topoErr != nil {
			r.logger.Error("invalid server entry", "path", path, "error", r.result.topoErr)
		}
		if r.result.myIDErr != nil {
			r.logger.Error("invalid myid entry", "path", path, "error", r.result.myIDErr)
		}
		r.logger.Debug("resolved topology", "path", path, "nodes", r.result.topology.Len())
	})
	return r.result
}

// Topology returns the nodes declared in the configuration file. If the file
// cannot be read or holds a malformed server entry, the topology is empty and
// the error matches ErrSourceUnavailable or ErrMalformedEntry.
func (r *Resolver) Topology() (Topology, error) {
	res := r.resolve()
	return res.topology, res.topoErr
}

// LocalNode returns the node whose id equals myid. ok is false when myid is
// not set, names no declared node, or an error is returned.
func (r *Resolver) LocalNode() (node Node, ok bool, err error) {
	res := r.resolve()
	if res.myIDErr != nil {
		return Node{}, false, res.myIDErr
	}
	if res.topoErr != nil {
		return Node{}, false, res.topoErr
	}
	if !res.hasMyID {
		return Node{}, false, nil
	}
	node, ok = res.topology.Lookup(res.myID)
	return node, ok, nil
}

// Peers returns every declared node except the local one.
func (r *Resolver) Peers() ([]Node, error) {
	topo, err := r.Topology()
	if err != nil {
		return nil, err
	}
	self, ok, err := r.LocalNode()
	if err != nil {
		return nil, err
	}
	peers := make([]Node, 0, topo.Len())
	for _, n := range topo.nodes {
		if ok && n.ID == self.ID {
			continue
		}
		peers = append(peers, n)
	}
	return peers, nil
}

// Paths returns every derived path.
func (r *Resolver) Paths() Paths { return r.paths }

// BasePath returns the installation root.
func (r *Resolver) BasePath() string { return r.paths.Base }

// ConfigPath returns the configuration file location.
func (r *Resolver) ConfigPath() string { return r.paths.ConfigFile }

// RaftLogPath returns the raft log directory.
func (r *Resolver) RaftLogPath() string { return r.paths.RaftLog }

// RaftSnapshotPath returns the raft snapshot directory.
func (r *Resolver) RaftSnapshotPath() string { return r.paths.RaftSnapshot }

// PidFilePath returns the process id file.
func (r *Resolver) PidFilePath() string { return r.paths.PidFile }

// CacheAofPath returns the cache write-ahead log location.
func (r *Resolver) CacheAofPath() string { return r.paths.CacheAof }

// CacheFilesPath returns the cache files directory, trailing slash included.
func (r *Resolver) CacheFilesPath() string { return r.paths.CacheFiles }

// CheckpointPath returns the cache checkpoint file.
func (r *Resolver) CheckpointPath() string { return r.paths.Checkpoint }

// CacheRdbPath is not base-relative; see DefaultCacheRdbPath.
func (r *Resolver) CacheRdbPath() string { return r.paths.CacheRdb }
