package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/aretw0/deprebuddy"
	"github.com/aretw0/deprebuddy/internal/cli"
	"github.com/aretw0/deprebuddy/internal/config"
	"github.com/aretw0/deprebuddy/internal/logging"
	"github.com/aretw0/deprebuddy/internal/telemetry"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "deprebuddy",
	Short: "Depre Buddy is a conversational depression screening service",
	Long: `Depre Buddy walks a user through an 8-item PHQ screening in free text,
watches every message for crisis language and points to support resources.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringP("config", "c", "", "Path to a YAML config file (default: ./deprebuddy.yaml when present)")
	rootCmd.PersistentFlags().Bool("debug", false, "Enable debug logging")
	rootCmd.PersistentFlags().Bool("offline", false, "Use scripted replies instead of the model")
}

// loadConfig reads the config file and environment, then applies CLI overrides.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if debug, _ := cmd.Flags().GetBool("debug"); debug {
		cfg.Log.Level = "debug"
	}
	if offline, _ := cmd.Flags().GetBool("offline"); offline {
		cfg.Agent.Offline = true
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// bootstrap loads config, sets up logging and tracing and wires the services.
// The returned func tears everything down.
func bootstrap(cmd *cobra.Command, opts cli.BuildOptions) (*config.Config, *cli.Services, func(), error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, nil, nil, err
	}

	logger := logging.New(logging.ParseLevel(cfg.Log.Level), cfg.Log.Format)
	slog.SetDefault(logger)

	shutdownTracer := func(context.Context) error { return nil }
	if cfg.Telemetry.Tracing {
		shutdownTracer, err = telemetry.InitTracer("deprebuddy", deprebuddy.Version(), os.Stderr, logger)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("failed to init tracing: %w", err)
		}
	}

	svc, err := cli.Build(cmd.Context(), cfg, logger, opts)
	if err != nil {
		shutdownTracer(context.Background())
		return nil, nil, nil, err
	}

	cleanup := func() {
		if err := svc.Close(); err != nil {
			logger.Warn("Failed to close session store", "err", err)
		}
		if err := shutdownTracer(context.Background()); err != nil {
			logger.Warn("Failed to flush traces", "err", err)
		}
	}
	return cfg, svc, cleanup, nil
}
