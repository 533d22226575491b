package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/hashicorp/go-hclog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"qcache/config"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// app carries the settings shared by every subcommand.
type app struct {
	v *viper.Viper
}

func newRootCmd() *cobra.Command {
	v := viper.New()
	a := &app{v: v}

	rootCmd := &cobra.Command{
		Use:           "qcache",
		Short:         "qcache - cluster configuration tool",
		Long:          `qcache resolves the cluster topology, the local node and the on-disk layout of a qcache installation`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Global flags
	flags := rootCmd.PersistentFlags()
	flags.String("base", "", "Installation root (default: two levels above the executable)")
	flags.String("config", "", "Configuration file (default: <base>/conf/q.cfg)")
	flags.String("log-level", "warn", "Log level (trace, debug, info, warn, error)")
	flags.Bool("json", false, "Print JSON output")
	_ = v.BindPFlags(flags)

	v.SetEnvPrefix("QCACHE")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	// Add subcommands
	rootCmd.AddCommand(topologyCmd(a))
	rootCmd.AddCommand(localCmd(a))
	rootCmd.AddCommand(pathsCmd(a))
	rootCmd.AddCommand(checkCmd(a))
	rootCmd.AddCommand(initCmd(a))

	return rootCmd
}

func (a *app) logger(w io.Writer) hclog.Logger {
	return hclog.New(&hclog.LoggerOptions{
		Name:   "qcache",
		Level:  hclog.LevelFromString(a.v.GetString("log-level")),
		Output: w,
	})
}

func (a *app) resolver(cmd *cobra.Command) (*config.Resolver, error) {
	opts := []config.Option{config.WithLogger(a.logger(cmd.ErrOrStderr()))}
	if file := a.v.GetString("config"); file != "" {
		opts = append(opts, config.WithConfigFile(file))
	}
	if base := a.v.GetString("base"); base != "" {
		return config.New(base, opts...), nil
	}
	return config.NewFromExecutable(opts...)
}

func (a *app) jsonOutput() bool { return a.v.GetBool("json") }

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
