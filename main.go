// Command sagraph builds, merges and queries property graphs of Go code.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"sagraph/config"
	"sagraph/logging"
)

// version is stamped at release time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// run is the real entry point. Using a separate function ensures all defers
// execute even on error paths, unlike os.Exit which skips deferred calls.
func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	c := &cli{}
	defer c.sync()
	return newRootCmd(c).ExecuteContext(ctx)
}

// cli carries the state shared by every subcommand once the root command
// has loaded the configuration.
type cli struct {
	configPath string
	logLevel   string
	jsonLog    bool

	cfg *config.Config
	log *zap.Logger
}

func (c *cli) setup(*cobra.Command, []string) error {
	cfg, err := config.Load(c.configPath)
	if err != nil {
		return err
	}
	level := cfg.Log.Level
	if c.logLevel != "" {
		level = c.logLevel
	}
	log, err := logging.New(level, cfg.Log.JSON || c.jsonLog)
	if err != nil {
		return fmt.Errorf("logger: %w", err)
	}
	c.cfg, c.log = cfg, log
	return nil
}

func (c *cli) sync() {
	if c.log != nil {
		_ = c.log.Sync()
	}
}

func newRootCmd(c *cli) *cobra.Command {
	root := &cobra.Command{
		Use:   "sagraph",
		Short: "Property graphs of Go source code",
		Long: `sagraph loads a Go module into a property graph of packages, files, types and
functions, attaches compiler diagnostics and metrics to it, and saves it in a
compact binary format that can be merged, queried and exported.`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: c.setup,
	}
	root.PersistentFlags().StringVarP(&c.configPath, "config", "c", "", "Path to configuration file (default ./sagraph.yaml if present)")
	root.PersistentFlags().StringVar(&c.logLevel, "log-level", "", "Override log level (debug, info, warn, error)")
	root.PersistentFlags().BoolVar(&c.jsonLog, "json", false, "Log as JSON")

	root.AddCommand(
		newBuildCmd(c),
		newDumpCmd(c),
		newMergeCmd(c),
		newQueryCmd(c),
		newServeCmd(c),
		&cobra.Command{
			Use:   "version",
			Short: "Print version information",
			Args:  cobra.NoArgs,
			Run: func(cmd *cobra.Command, args []string) {
				fmt.Fprintf(cmd.OutOrStdout(), "sagraph %s\n", version)
			},
		},
	)
	return root
}
