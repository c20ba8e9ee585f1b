package cmd

import (
	"mindcare-booking/internal/usecase"
	"mindcare-booking/internal/wire"
	"mindcare-booking/migrations"
	"mindcare-booking/pkg/database"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	serveMigrate bool
	serveSweep   bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API and the hold sweeper",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		config, logger, err := bootstrap()
		if err != nil {
			return err
		}
		defer logger.Sync()

		logger.Info("Starting application",
			zap.String("app", config.App.Name),
			zap.String("port", config.App.Port),
			zap.Bool("debug", config.App.Debug),
			zap.String("payment_provider", config.Payment.Provider),
		)

		db, err := database.InitDB(ctx, config.Database.DSN(), config.Database.MaxConns)
		if err != nil {
			logger.Error("Failed to connect to database", zap.Error(err))
			return err
		}
		defer db.Close()
		logger.Info("Database connected successfully")

		if serveMigrate {
			if err := database.Migrate(ctx, db, migrations.FS); err != nil {
				logger.Error("Migration failed", zap.Error(err))
				return err
			}
		}

		deps, cleanup, err := buildDeps(ctx, db, config, logger)
		if err != nil {
			logger.Error("Failed to build dependencies", zap.Error(err))
			return err
		}
		defer cleanup()

		app := wire.Wiring(deps, config, logger)

		if serveSweep {
			sweeper := usecase.NewHoldSweeper(app.Service.Booking, config.Booking.SweepInterval, logger)
			sweeper.Start(ctx)
			defer sweeper.Stop()
		}

		return APIServer(ctx, app.Router, config.App.Port, config.App.ShutdownTimeout, logger)
	},
}

func init() {
	serveCmd.Flags().BoolVar(&serveMigrate, "migrate", false, "apply pending migrations before serving")
	serveCmd.Flags().BoolVar(&serveSweep, "sweep", true, "run the expired hold sweeper in process")
}
