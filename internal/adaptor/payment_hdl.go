package adaptor

import (
	"net/http"

	"mindcare-booking/internal/data/entity"
	"mindcare-booking/internal/dto/request"
	"mindcare-booking/internal/usecase"
	"mindcare-booking/pkg/utils"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

type PaymentHandler struct {
	service usecase.PaymentService
	log     *zap.Logger
}

func NewPaymentHandler(service usecase.PaymentService, log *zap.Logger) *PaymentHandler {
	return &PaymentHandler{
		service: service,
		log:     log.With(zap.String("handler", "payment")),
	}
}

// CreatePaymentIntent handles POST /api/payments/intents
func (h *PaymentHandler) CreatePaymentIntent(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}

	var req request.CreatePaymentIntentRequest
	if !decode(w, r, &req) {
		return
	}

	intent, err := h.service.CreatePaymentIntent(r.Context(), actor, &req)
	if err != nil {
		handleServiceError(h.log, w, err, "create payment intent")
		return
	}

	utils.ResponseCreated(w, "Payment intent created", intent)
}

// ConfirmPayment handles POST /api/payments/confirm. A declined charge is a
// normal outcome and is answered with 200 and the failure details.
func (h *PaymentHandler) ConfirmPayment(w http.ResponseWriter, r *http.Request) {
	var req request.ConfirmPaymentRequest
	if !decode(w, r, &req) {
		return
	}

	result, err := h.service.ConfirmPayment(r.Context(), &req)
	if err != nil {
		handleServiceError(h.log, w, err, "confirm payment")
		return
	}

	switch {
	case result.Payment.Status == entity.PaymentStatusFailed || result.FailureCode != "":
		utils.ResponseSuccess(w, "Payment declined", result)
	case result.Appointment == nil:
		utils.ResponseAccepted(w, "Payment pending", result)
	default:
		utils.ResponseSuccess(w, "Payment confirmed", result)
	}
}

// GetPayment handles GET /api/payments/{id}
func (h *PaymentHandler) GetPayment(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}

	payment, err := h.service.GetPayment(r.Context(), actor, chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(h.log, w, err, "get payment")
		return
	}

	utils.ResponseSuccess(w, "success", payment)
}

// ListPayments handles GET /api/appointments/{id}/payments
func (h *PaymentHandler) ListPayments(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}

	payments, err := h.service.ListPayments(r.Context(), actor, chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(h.log, w, err, "list payments")
		return
	}

	utils.ResponseSuccess(w, "success", payments)
}

// RefundPayment handles POST /api/payments/{id}/refund
func (h *PaymentHandler) RefundPayment(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}

	payment, err := h.service.RefundPayment(r.Context(), actor, chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(h.log, w, err, "refund payment")
		return
	}

	utils.ResponseSuccess(w, "Payment refunded", payment)
}
