package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/datallboy/gopatch/internal/app"
	"github.com/datallboy/gopatch/internal/core"
	"github.com/datallboy/gopatch/internal/events"
	"github.com/datallboy/gopatch/internal/infra/config"
	"github.com/datallboy/gopatch/internal/infra/logger"
	"github.com/datallboy/gopatch/internal/store"
)

var cfgPath string

var rootCmd = &cobra.Command{
	Use:           "gopatch",
	Short:         "Manifest-driven file synchronization",
	Long:          "gopatch keeps local directories in step with remote file stores using versioned manifests, downloading only what changed.",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "path to config.yaml")
	rootCmd.AddCommand(syncCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(versionCmd)
}

// initApp builds the shared environment: config, logger, event bus, run
// journal, and the orchestrator with its config-backed handler.
func initApp() (*app.Context, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, err
	}

	log, err := logger.New(cfg.Log.Path, logger.ParseLevel(cfg.Log.Level), cfg.Log.IncludeStdout)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}

	bus := events.NewBus()
	ctx := app.NewContext(cfg, log, bus)

	st, err := store.NewPersistentStore(cfg.Store.SQLitePath)
	if err != nil {
		return nil, fmt.Errorf("open run journal: %w", err)
	}
	ctx.Store = st

	handler := core.NewConfigHandler(cfg, bus, log)
	ctx.Core = core.New(handler, bus, log)
	ctx.Core.SetJournal(st)

	return ctx, nil
}
