package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// Holds what is shared by all commands.
type app struct {
	config *dashvizConfig
	logger *zap.Logger
}

// Creates the logger used by all commands.
func makeLogger(verbose bool) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	if verbose {
		cfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	}
	return cfg.Build()
}

// Returns the root command, with all subcommands registered.
func newRootCommand() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:          "dashviz",
		Short:        "Compiles dashboard filters into API queries and fetches visualisation data",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			verbose, _ := cmd.Flags().GetBool("verbose")

			logger, err := makeLogger(verbose)
			if err != nil {
				return err
			}
			a.logger = logger

			config, err := loadConfig(cmd.Flags())
			if err != nil {
				return err
			}
			a.config = config

			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if a.logger != nil {
				_ = a.logger.Sync()
			}
		},
	}

	root.PersistentFlags().BoolP("verbose", "v", false, "Enables debug logging.")
	addConfigFlags(root.PersistentFlags())

	root.AddCommand(
		newCompileCommand(a),
		newValidityCommand(a),
		newFetchCommand(a),
		newWatchCommand(a),
	)

	return root
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCommand().ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}
