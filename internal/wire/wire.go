package wire

import (
	"context"
	"net/http"
	"time"

	"mindcare-booking/internal/adaptor"
	"mindcare-booking/internal/data/repository"
	"mindcare-booking/internal/directory"
	"mindcare-booking/internal/events"
	"mindcare-booking/internal/payment"
	"mindcare-booking/internal/usecase"
	"mindcare-booking/pkg/middleware"
	"mindcare-booking/pkg/utils"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

// Deps are the collaborators built by the caller, usually cmd serve.
type Deps struct {
	Repo      *repository.Repository
	Directory directory.Directory
	Provider  payment.Provider
	Publisher events.Publisher
	// Health reports whether the store is reachable.
	Health func(ctx context.Context) error
}

// App holds the router and the services behind it.
type App struct {
	Router  *chi.Mux
	Service *usecase.Service
}

func Wiring(deps Deps, config *utils.Config, logger *zap.Logger, opts ...usecase.Option) *App {
	service := usecase.NewService(deps.Repo, deps.Directory, deps.Provider, deps.Publisher, config, logger, opts...)
	handler := adaptor.NewHandler(service, logger)

	return &App{
		Router:  setupRouter(handler, deps, config, logger),
		Service: service,
	}
}

func setupRouter(handler *adaptor.Handler, deps Deps, config *utils.Config, logger *zap.Logger) *chi.Mux {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.Logger(logger))
	r.Use(middleware.Recover(logger))

	auth := middleware.AuthJWT(config.JWT.Secret, config.JWT.Issuer, deps.Directory, logger)

	wireSlot(r, handler.Slot, auth, logger)
	wireAppointment(r, handler.Appointment, auth, logger)
	wirePayment(r, handler.Payment, auth)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		if deps.Health != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := deps.Health(ctx); err != nil {
				logger.Error("Health check failed", zap.Error(err))
				utils.ResponseServiceUnavailable(w, "store unreachable")
				return
			}
		}
		utils.ResponseSuccess(w, "OK", nil)
	})

	return r
}
