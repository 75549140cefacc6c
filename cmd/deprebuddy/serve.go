package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/aretw0/deprebuddy/internal/cli"
	httpAdapter "github.com/aretw0/deprebuddy/pkg/adapters/http"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	Long:  `Starts the screening service, exposing the chat and session API over HTTP.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, svc, cleanup, err := bootstrap(cmd, cli.BuildOptions{})
		if err != nil {
			return err
		}
		defer cleanup()

		if cmd.Flags().Changed("port") {
			cfg.Server.Port, _ = cmd.Flags().GetInt("port")
		}

		handler := httpAdapter.NewHandler(svc.Engine,
			httpAdapter.WithLogger(svc.Logger),
			httpAdapter.WithMetricsHandler(svc.Metrics.Handler()),
			httpAdapter.WithTracing(cfg.Telemetry.Tracing),
		)

		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
		}

		sigCtx := cli.NewSignalContext(cmd.Context())
		defer sigCtx.Cancel()

		serverErrors := make(chan error, 1)
		go func() {
			svc.Logger.Info("Starting Depre Buddy server", "addr", srv.Addr, "store", cfg.Store.Type)
			serverErrors <- srv.ListenAndServe()
		}()

		select {
		case err := <-serverErrors:
			if errors.Is(err, http.ErrServerClosed) {
				return nil
			}
			return fmt.Errorf("server error: %w", err)

		case <-sigCtx.Done():
			svc.Logger.Info("Start shutdown", "signal", fmt.Sprint(sigCtx.Signal()))

			ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
			defer cancel()

			if err := srv.Shutdown(ctx); err != nil {
				svc.Logger.Error("Graceful shutdown did not complete", "timeout", cfg.Server.ShutdownTimeout, "err", err)
				if err := srv.Close(); err != nil {
					svc.Logger.Error("Error killing server", "err", err)
				}
			}
			slog.Info("Depre Buddy server stopped gracefully")
			return nil
		}
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().IntP("port", "p", 8000, "Port to listen on (overrides server.port)")
}
