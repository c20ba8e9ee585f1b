package cmd

import (
	"fmt"

	"mindcare-booking/migrations"
	"mindcare-booking/pkg/database"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending database migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		config, logger, err := bootstrap()
		if err != nil {
			return err
		}
		defer logger.Sync()

		db, err := database.InitDB(ctx, config.Database.DSN(), config.Database.MaxConns)
		if err != nil {
			return err
		}
		defer db.Close()

		if err := database.Migrate(ctx, db, migrations.FS); err != nil {
			return err
		}

		version, err := database.MigrationVersion(ctx, db, migrations.FS)
		if err != nil {
			return err
		}
		logger.Info("Migrations applied", zap.Int64("version", version))
		fmt.Fprintf(cmd.OutOrStdout(), "schema at version %d\n", version)
		return nil
	},
}
