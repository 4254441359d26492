package main

import (
	"github.com/spf13/cobra"

	"gatehouse/internal/config"
	"gatehouse/internal/db"
)

var migrateDirection string

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply database migrations",
	Long: `Apply the embedded SQL migrations against the configured database
(GATEHOUSE_DATABASE_URL). Running against an already-migrated database is
a no-op and succeeds.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		return db.Migrate(cfg.DatabaseURL, migrateDirection)
	},
}

func init() {
	migrateCmd.Flags().StringVar(&migrateDirection, "direction", "up", "migration direction: up or down")
	rootCmd.AddCommand(migrateCmd)
}
