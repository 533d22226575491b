package main

import (
	"errors"
	"fmt"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"qcache/config"
	"qcache/pkg/cluster"
	"qcache/pkg/cluster/raft"
	"qcache/pkg/layout"
)

func topologyCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "topology",
		Short: "List all cluster nodes",
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := a.resolver(cmd)
			if err != nil {
				return err
			}
			topo, err := r.Topology()
			if err != nil && !errors.Is(err, config.ErrSourceUnavailable) {
				return err
			}

			out := cmd.OutOrStdout()
			if a.jsonOutput() {
				return printJSON(out, topo.Nodes())
			}
			if topo.Empty() {
				fmt.Fprintf(out, "No nodes configured in %s\n", r.ConfigPath())
				return nil
			}
			for i, n := range topo.Nodes() {
				fmt.Fprintf(out, "%d) server%d - %s - client %d - heartbeat %d\n",
					i+1, n.ID, n.IP, n.ClientPort, n.HeartbeatPort)
			}
			return nil
		},
	}
}

func localCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "local",
		Short: "Show the node this installation runs as",
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := a.resolver(cmd)
			if err != nil {
				return err
			}
			node, ok, err := r.LocalNode()
			if err != nil && !errors.Is(err, config.ErrSourceUnavailable) {
				return err
			}

			out := cmd.OutOrStdout()
			if a.jsonOutput() {
				if !ok {
					return printJSON(out, nil)
				}
				return printJSON(out, node)
			}
			if !ok {
				fmt.Fprintf(out, "Local node not configured in %s\n", r.ConfigPath())
				return nil
			}
			fmt.Fprintf(out, "ID: %d\n", node.ID)
			fmt.Fprintf(out, "Client: %s\n", node.ClientAddr())
			fmt.Fprintf(out, "Heartbeat: %s\n", node.HeartbeatAddr())
			return nil
		},
	}
}

func pathsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "paths",
		Short: "Show the derived subsystem paths",
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := a.resolver(cmd)
			if err != nil {
				return err
			}
			p := r.Paths()

			out := cmd.OutOrStdout()
			if a.jsonOutput() {
				return printJSON(out, p)
			}
			fmt.Fprintf(out, "Base: %s\n", p.Base)
			fmt.Fprintf(out, "Config: %s\n", p.ConfigFile)
			fmt.Fprintf(out, "Raft Log: %s\n", p.RaftLog)
			fmt.Fprintf(out, "Raft Snapshot: %s\n", p.RaftSnapshot)
			fmt.Fprintf(out, "Pid File: %s\n", p.PidFile)
			fmt.Fprintf(out, "Cache AOF: %s\n", p.CacheAof)
			fmt.Fprintf(out, "Cache Files: %s\n", p.CacheFiles)
			fmt.Fprintf(out, "Checkpoint: %s\n", p.Checkpoint)
			fmt.Fprintf(out, "Cache RDB: %s\n", p.CacheRdb)
			return nil
		},
	}
}

func checkCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Validate the configuration file",
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := a.resolver(cmd)
			if err != nil {
				return err
			}
			m, err := cluster.FromResolver(r)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "OK: %d nodes, local node %d (%s), quorum %d\n",
				m.Size(), m.Self().ID, m.Role(m.Self().ID), m.Quorum())
			return nil
		},
	}
}

func initCmd(a *app) *cobra.Command {
	var bootstrap bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create the on-disk layout",
		Long:  "Create the directories used by the raft and cache subsystems and optionally seed the raft configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := a.resolver(cmd)
			if err != nil {
				return err
			}
			paths := r.Paths()
			if err := layout.Prepare(afero.NewOsFs(), paths); err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, dir := range layout.Dirs(paths) {
				fmt.Fprintf(out, "Created %s\n", dir)
			}
			if !bootstrap {
				return nil
			}

			m, err := cluster.FromResolver(r)
			if err != nil {
				return err
			}
			if !m.IsBootstrap() {
				fmt.Fprintf(out, "Node %d is not the bootstrap node; skipping raft bootstrap\n", m.Self().ID)
				return nil
			}
			stores, err := raft.OpenStores(paths, a.logger(cmd.ErrOrStderr()))
			if err != nil {
				return err
			}
			defer stores.Close()

			err = stores.Bootstrap(m.Self(), raft.Configuration(m.Topology()))
			if errors.Is(err, raft.ErrExistingState) {
				fmt.Fprintln(out, "Raft state already exists; skipping raft bootstrap")
				return nil
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "Bootstrapped raft configuration with %d voters\n", m.Size())
			return nil
		},
	}

	cmd.Flags().BoolVar(&bootstrap, "bootstrap", false, "Seed the raft configuration when this is the bootstrap node")
	return cmd
}
