package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Run one synchronization cycle and exit",
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := initApp()
		if err != nil {
			return err
		}
		defer app.Store.Close()

		attachCLIProgress(app.Events)

		// Cancel the run when the user hits Ctrl+C
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		if err := app.Core.Run(ctx); err != nil {
			app.Logger.Error("sync failed: %v", err)
			return err
		}

		app.Logger.Info("sync finished")
		return nil
	},
}
