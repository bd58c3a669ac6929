package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/unibvs/bvs-backend/internal/config"
	"github.com/unibvs/bvs-backend/internal/database"
	"github.com/unibvs/bvs-backend/internal/logging"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		slog.Error("command failed", "error", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var cfg *config.Config
	rootCmd := &cobra.Command{
		Use:           "bvs",
		Short:         "University biometric voting backend",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg = config.Load()
			logging.Setup(cfg.AppEnv)
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if err := database.Close(); err != nil {
				slog.Error("database close error", "error", err)
			}
		},
	}

	// Subcommands read the config lazily; it is loaded in PersistentPreRunE.
	current := func() *config.Config { return cfg }
	serve := newServeCmd(current)
	rootCmd.AddCommand(serve, newMigrateCmd(current), newSeedCmd(current))
	rootCmd.RunE = serve.RunE
	return rootCmd
}
