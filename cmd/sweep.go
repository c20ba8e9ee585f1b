package cmd

import (
	"fmt"

	"mindcare-booking/internal/wire"
	"mindcare-booking/pkg/database"

	"github.com/spf13/cobra"
)

// sweepCmd runs a single expiry pass, for deployments that prefer an
// external scheduler over the in-process sweeper.
var sweepCmd = &cobra.Command{
	Use:   "sweep-holds",
	Short: "Release slot holds whose payment never completed",
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

		deps, cleanup, err := buildDeps(ctx, db, config, logger)
		if err != nil {
			return err
		}
		defer cleanup()

		app := wire.Wiring(deps, config, logger)
		released, err := app.Service.Booking.ExpireHolds(ctx)
		fmt.Fprintf(cmd.OutOrStdout(), "released %d expired holds\n", released)
		return err
	},
}
