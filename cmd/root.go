// Package cmd defines and implements the CLI commands for the favcrawl
// executable.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/okabe/favcrawl/internal/config"
	"github.com/okabe/favcrawl/internal/logging"
	"github.com/okabe/favcrawl/internal/metrics"
)

var cfgFile string

// runtimeKeyType is the key for storing the runtime bundle in the context.
type runtimeKeyType string

const runtimeKey runtimeKeyType = "runtime"

// Runtime carries the config and logger every subcommand needs.
type Runtime struct {
	Config config.Config
	Logger *zap.Logger
}

// newRootCmd creates and configures the root command.
func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "favcrawl",
		Short: "Crawls a saved-collection catalog into Postgres.",
		Long: `favcrawl walks the saved collections of a session-gated catalog
site in three resumable stages: subject discovery, per-subject work listings,
and per-work magnet capture. Results land in Postgres; block pages abort the
run so a human can clear the challenge and resume.`,

		SilenceUsage: true,

		// Runs AFTER flags are parsed but BEFORE the subcommand's RunE:
		// load config, build the logger, and stash both in the context.
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(cfgFile)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			logger, err := logging.New(cfg.Logging.Development, cfg.Logging.Level)
			if err != nil {
				return fmt.Errorf("init logger: %w", err)
			}
			metrics.Init()

			ctx := context.WithValue(cmd.Context(), runtimeKey, &Runtime{
				Config: cfg,
				Logger: logger,
			})
			cmd.SetContext(ctx)
			return nil
		},

		PersistentPostRun: func(cmd *cobra.Command, _ []string) {
			if rt, ok := cmd.Context().Value(runtimeKey).(*Runtime); ok && rt != nil {
				_ = rt.Logger.Sync()
			}
		},
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default searches ./config.yaml)")

	cmd.AddCommand(newCrawlCmd())
	cmd.AddCommand(newHistoryCmd())
	cmd.AddCommand(newWorksCmd())

	return cmd
}

// Execute is the main entry point. SIGINT/SIGTERM cancel the run context so
// stages unwind through their checkpoints instead of dying mid-write.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := newRootCmd()
	if err := root.ExecuteContext(ctx); err != nil {
		if errors.Is(err, context.Canceled) {
			fmt.Fprintln(os.Stderr, "interrupted")
			os.Exit(130)
		}
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func resolveRuntime(ctx context.Context) (*Runtime, error) {
	rt, ok := ctx.Value(runtimeKey).(*Runtime)
	if !ok || rt == nil {
		return nil, errors.New("runtime not initialized")
	}
	return rt, nil
}
