package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"reup-planner-backend/internal/config"
	"reup-planner-backend/internal/db"
)

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create the observation and preferences tables",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if cfg.DBDriver == "memory" {
				return fmt.Errorf("migrate: DB_DRIVER is memory, nothing to migrate")
			}

			database, err := connect(cfg)
			if err != nil {
				return err
			}
			defer database.Close()

			if err := db.Migrate(cmd.Context(), database); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "migrated %s database\n", cfg.DBDriver)
			return nil
		},
	}
}
