package main

import (
	"github.com/mohammad-safakhou/conflictcast/internal/store"
	"github.com/spf13/cobra"
)

func migrateCMD(cfgPath *string) *cobra.Command {
	var migDir string
	var direction string
	var steps int

	migrate := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations for the report archive",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := load(*cfgPath)
			if err != nil {
				return err
			}
			return store.Migrate(migDir, cfg.Storage.Postgres.DSN(), direction, steps)
		},
	}
	migrate.Flags().StringVar(&migDir, "dir", store.DefaultMigrationsDir, "migrations source (file://migrations)")
	migrate.Flags().StringVar(&direction, "direction", "up", "up or down")
	migrate.Flags().IntVar(&steps, "steps", 0, "number of steps (0 = all)")
	return migrate
}
