package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v5"
	"github.com/spf13/cobra"

	"github.com/datallboy/gopatch/internal/api"
)

var serveEvery time.Duration

func init() {
	serveCmd.Flags().DurationVar(&serveEvery, "every", 0, "re-run synchronization at this interval (0 = run once)")
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run synchronization and expose the status API",
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := initApp()
		if err != nil {
			return err
		}
		defer app.Store.Close()

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		e := echo.New()
		api.RegisterRoutes(e, app)

		serverDone := make(chan struct{})
		go func() {
			defer close(serverDone)
			app.Logger.Info("status API listening on :%s", app.Config.Port)
			sc := echo.StartConfig{Address: ":" + app.Config.Port}
			if err := sc.Start(ctx, e); err != nil && err != http.ErrServerClosed {
				app.Logger.Error("api server: %v", err)
			}
		}()

		runOnce := func() {
			if err := app.Core.Run(ctx); err != nil {
				app.Logger.Error("sync failed: %v", err)
			}
		}

		runOnce()
		if serveEvery > 0 {
			ticker := time.NewTicker(serveEvery)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					<-serverDone
					return nil
				case <-ticker.C:
					runOnce()
				}
			}
		}

		<-ctx.Done()
		<-serverDone
		return nil
	},
}
