package adaptor

import (
	"net/http"

	"mindcare-booking/internal/dto/request"
	"mindcare-booking/internal/usecase"
	"mindcare-booking/pkg/utils"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

type AppointmentHandler struct {
	service usecase.BookingService
	log     *zap.Logger
}

func NewAppointmentHandler(service usecase.BookingService, log *zap.Logger) *AppointmentHandler {
	return &AppointmentHandler{
		service: service,
		log:     log.With(zap.String("handler", "appointment")),
	}
}

// BookAppointment handles POST /api/appointments
func (h *AppointmentHandler) BookAppointment(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}

	var req request.BookAppointmentRequest
	if !decode(w, r, &req) {
		return
	}

	appointment, err := h.service.BookAppointment(r.Context(), actor, &req)
	if err != nil {
		handleServiceError(h.log, w, err, "book appointment")
		return
	}

	utils.ResponseCreated(w, "Appointment booked, awaiting payment", appointment)
}

// ListAppointments handles GET /api/appointments
func (h *AppointmentHandler) ListAppointments(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}

	query := r.URL.Query()
	req := &request.PaginatedRequest{
		Page:    utils.ParseInt(query.Get("page"), 1),
		PerPage: utils.ParseInt(query.Get("per_page"), 10),
	}
	if validationErrors := utils.ValidateStruct(req); len(validationErrors) > 0 {
		utils.ResponseBadRequest(w, "Validation failed", validationErrors)
		return
	}

	appointments, err := h.service.ListAppointments(r.Context(), actor, req)
	if err != nil {
		handleServiceError(h.log, w, err, "list appointments")
		return
	}

	utils.ResponseSuccess(w, "success", appointments)
}

// GetAppointment handles GET /api/appointments/{id}
func (h *AppointmentHandler) GetAppointment(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}

	appointment, err := h.service.GetAppointment(r.Context(), actor, chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(h.log, w, err, "get appointment")
		return
	}

	utils.ResponseSuccess(w, "success", appointment)
}

// CancelAppointment handles POST /api/appointments/{id}/cancel
func (h *AppointmentHandler) CancelAppointment(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}

	appointment, err := h.service.CancelAppointment(r.Context(), actor, chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(h.log, w, err, "cancel appointment")
		return
	}

	utils.ResponseSuccess(w, "Appointment cancelled", appointment)
}

// CancelPaidAppointment handles POST /api/appointments/{id}/cancel-paid
func (h *AppointmentHandler) CancelPaidAppointment(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}

	appointment, err := h.service.CancelPaidAppointment(r.Context(), actor, chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(h.log, w, err, "cancel paid appointment")
		return
	}

	utils.ResponseSuccess(w, "Appointment cancelled", appointment)
}

// StartSession handles POST /api/appointments/{id}/start
func (h *AppointmentHandler) StartSession(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}

	appointment, err := h.service.StartSession(r.Context(), actor, chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(h.log, w, err, "start session")
		return
	}

	utils.ResponseSuccess(w, "Session started", appointment)
}

// CompleteSession handles POST /api/appointments/{id}/complete
func (h *AppointmentHandler) CompleteSession(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}

	var req request.CompleteSessionRequest
	if r.ContentLength != 0 && !decode(w, r, &req) {
		return
	}

	appointment, err := h.service.CompleteSession(r.Context(), actor, chi.URLParam(r, "id"), &req)
	if err != nil {
		handleServiceError(h.log, w, err, "complete session")
		return
	}

	utils.ResponseSuccess(w, "Session completed", appointment)
}

// MarkNoShow handles POST /api/appointments/{id}/no-show
func (h *AppointmentHandler) MarkNoShow(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}

	appointment, err := h.service.MarkNoShow(r.Context(), actor, chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(h.log, w, err, "mark no-show")
		return
	}

	utils.ResponseSuccess(w, "Appointment marked as no-show", appointment)
}

// RateAppointment handles POST /api/appointments/{id}/rating
func (h *AppointmentHandler) RateAppointment(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}

	var req request.RateAppointmentRequest
	if !decode(w, r, &req) {
		return
	}

	appointment, err := h.service.RateAppointment(r.Context(), actor, chi.URLParam(r, "id"), &req)
	if err != nil {
		handleServiceError(h.log, w, err, "rate appointment")
		return
	}

	utils.ResponseSuccess(w, "Thanks for your feedback", appointment)
}
