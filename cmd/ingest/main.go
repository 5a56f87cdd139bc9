package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/timmy/shotlens/internal/app"
	"github.com/timmy/shotlens/internal/config"
	"github.com/timmy/shotlens/internal/logger"
)

var (
	configPath string
	logLevel   string

	services *app.App

	rootCmd = &cobra.Command{
		Use:           "shotlens-ingest",
		Short:         "Process screenshots and query the shotlens store from the command line",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			opts := logger.OptionsFromEnv()
			opts.ServiceName = "shotlens-ingest"
			if logLevel != "" {
				opts.Level = logLevel
			}
			appLogger := logger.New(opts)
			logger.SetDefaultLogger(appLogger)

			if configPath == "" {
				configPath = os.Getenv("CONFIG_PATH")
			}
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid config: %w", err)
			}

			ctx := appLogger.WithContext(cmd.Context())
			cmd.SetContext(ctx)
			services, err = app.New(ctx, cfg)
			if err != nil {
				return err
			}
			ingestCfg = cfg.Ingest
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if services != nil {
				services.Close()
			}
		},
	}
)

func main() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to config file (default ./configs/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "override LOG_LEVEL")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	err := rootCmd.ExecuteContext(ctx)
	_ = logger.Sync()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
