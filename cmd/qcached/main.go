package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/hashicorp/go-hclog"
	"github.com/spf13/afero"
	"github.com/spf13/viper"

	"qcache/config"
	"qcache/pkg/cluster"
	"qcache/pkg/cluster/raft"
	"qcache/pkg/layout"
	"qcache/storage"
)

var (
	basePath   = flag.String("base", "", "Installation root (default: two levels above the executable)")
	configPath = flag.String("config", "", "Configuration file (default: <base>/conf/q.cfg)")
	logLevel   = flag.String("log-level", "", "Log level (default: info)")
	bootstrap  = flag.Bool("bootstrap", false, "Seed the raft configuration when this is the bootstrap node")
)

func main() {
	flag.Parse()

	env := viper.New()
	env.SetEnvPrefix("QCACHE")
	env.AutomaticEnv()
	env.SetDefault("log_level", "info")

	level := *logLevel
	if level == "" {
		level = env.GetString("log_level")
	}
	logger := hclog.New(&hclog.LoggerOptions{
		Name:  "qcached",
		Level: hclog.LevelFromString(level),
	}).With("instance", uuid.NewString())

	base := *basePath
	if base == "" {
		base = env.GetString("base")
	}

	// Setup signal handling for graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, base, logger); err != nil {
		logger.Error("qcached failed", "error", err)
		stop()
		os.Exit(1)
	}
}

func run(ctx context.Context, base string, logger hclog.Logger) error {
	opts := []config.Option{config.WithLogger(logger)}
	if *configPath != "" {
		opts = append(opts, config.WithConfigFile(*configPath))
	}

	var r *config.Resolver
	if base != "" {
		r = config.New(base, opts...)
	} else {
		var err error
		if r, err = config.NewFromExecutable(opts...); err != nil {
			return err
		}
	}
	paths := r.Paths()

	// A missing configuration leaves the process as an unconfigured single
	// node; a malformed one is fatal.
	m, err := cluster.FromResolver(r)
	switch {
	case err == nil:
		logger.Info("resolved cluster", "local", m.Self().ID, "nodes", m.Size(), "quorum", m.Quorum())
	case errors.Is(err, config.ErrSourceUnavailable), errors.Is(err, cluster.ErrNoLocalNode):
		logger.Warn("running without cluster configuration", "config", r.ConfigPath(), "reason", err)
		m = nil
	default:
		return err
	}

	fsys := afero.NewOsFs()
	if err := layout.Prepare(fsys, paths); err != nil {
		return err
	}
	pid := os.Getpid()
	if err := layout.WritePidFile(fsys, paths.PidFile, pid); err != nil {
		return err
	}
	defer func() {
		if err := layout.RemovePidFile(fsys, paths.PidFile, pid); err != nil {
			logger.Warn("failed to remove pid file", "path", paths.PidFile, "error", err)
		}
	}()

	stores, err := raft.OpenStores(paths, logger)
	if err != nil {
		return err
	}
	defer stores.Close()

	if *bootstrap && m != nil && m.IsBootstrap() {
		err := stores.Bootstrap(m.Self(), raft.Configuration(m.Topology()))
		switch {
		case errors.Is(err, raft.ErrExistingState):
			logger.Info("raft state already present, skipping bootstrap")
		case err != nil:
			return err
		}
	}

	cache, err := storage.NewBadgerStorage(paths, logger)
	if err != nil {
		return err
	}
	defer cache.Close()

	// Only an empty cache is seeded from the last checkpoint.
	keys, err := cache.Keys(ctx, "", 1)
	if err != nil {
		return err
	}
	if _, statErr := os.Stat(paths.Checkpoint); statErr == nil && len(keys) == 0 {
		if err := cache.Restore(ctx, paths.Checkpoint); err != nil {
			return fmt.Errorf("restore %s: %w", paths.Checkpoint, err)
		}
	}

	logger.Info("qcached started", "base", paths.Base, "pid", pid)
	<-ctx.Done()
	logger.Info("shutting down")

	if err := cache.Checkpoint(context.Background(), paths.Checkpoint); err != nil {
		return err
	}
	logger.Info("qcached stopped")
	return nil
}
