package wire

import (
	"net/http"

	"mindcare-booking/internal/adaptor"
	"mindcare-booking/internal/data/entity"
	"mindcare-booking/pkg/middleware"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

func wireAppointment(r chi.Router, appointmentHandler *adaptor.AppointmentHandler, auth func(http.Handler) http.Handler, log *zap.Logger) {
	r.Group(func(r chi.Router) {
		r.Use(auth)

		// Shared by users and professionals, scoped to the caller
		r.Get("/api/appointments", appointmentHandler.ListAppointments)
		r.Get("/api/appointments/{id}", appointmentHandler.GetAppointment)
		r.Post("/api/appointments/{id}/cancel-paid", appointmentHandler.CancelPaidAppointment)

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireKind(entity.KindUser, log))
			r.Post("/api/appointments", appointmentHandler.BookAppointment)
			r.Post("/api/appointments/{id}/cancel", appointmentHandler.CancelAppointment)
			r.Post("/api/appointments/{id}/rating", appointmentHandler.RateAppointment)
		})

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireKind(entity.KindProfessional, log))
			r.Post("/api/appointments/{id}/start", appointmentHandler.StartSession)
			r.Post("/api/appointments/{id}/complete", appointmentHandler.CompleteSession)
			r.Post("/api/appointments/{id}/no-show", appointmentHandler.MarkNoShow)
		})
	})
}
