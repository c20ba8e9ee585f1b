package wire

import (
	"net/http"

	"mindcare-booking/internal/adaptor"
	"mindcare-booking/internal/data/entity"
	"mindcare-booking/pkg/middleware"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

func wireSlot(r chi.Router, slotHandler *adaptor.SlotHandler, auth func(http.Handler) http.Handler, log *zap.Logger) {
	r.Group(func(r chi.Router) {
		r.Use(auth)

		// Any authenticated caller can browse availability
		r.Get("/api/professionals/{id}/slots", slotHandler.ListAvailableSlots)
		r.Get("/api/slots/{id}", slotHandler.GetSlot)

		// Professionals publish their own slots
		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireKind(entity.KindProfessional, log))
			r.Post("/api/professionals/{id}/slots", slotHandler.CreateSlot)
			r.Post("/api/professionals/{id}/slots/bulk", slotHandler.CreateBulkSlots)
		})
	})
}
