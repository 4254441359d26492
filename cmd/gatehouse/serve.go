package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"gatehouse/internal/app"
	"gatehouse/internal/config"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the session service",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		log := app.NewLogger(cfg.LogLevel, cfg.LogFormat)

		ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer cancel()

		a, err := app.New(ctx, cfg, log)
		if err != nil {
			return err
		}
		return a.Run(ctx)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
