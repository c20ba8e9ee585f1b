package adaptor

import (
	"encoding/json"
	"net/http"

	"mindcare-booking/internal/data/entity"
	"mindcare-booking/internal/usecase"
	"mindcare-booking/pkg/utils"

	"go.uber.org/zap"
)

type Handler struct {
	Slot        *SlotHandler
	Appointment *AppointmentHandler
	Payment     *PaymentHandler
}

func NewHandler(service *usecase.Service, log *zap.Logger) *Handler {
	return &Handler{
		Slot:        NewSlotHandler(service.Slot, log),
		Appointment: NewAppointmentHandler(service.Booking, log),
		Payment:     NewPaymentHandler(service.Payment, log),
	}
}

// actorFrom reads the caller set by the auth middleware and writes a 401 when
// there is none.
func actorFrom(w http.ResponseWriter, r *http.Request) (entity.Actor, bool) {
	actor, ok := utils.GetActorFromContext(r.Context())
	if !ok {
		utils.ResponseUnauthorized(w, "Authentication required")
	}
	return actor, ok
}

// decode parses and validates a JSON body, answering 400 itself on failure.
func decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		utils.ResponseBadRequest(w, "Invalid request body", nil)
		return false
	}
	if validationErrors := utils.ValidateStruct(dst); len(validationErrors) > 0 {
		utils.ResponseBadRequest(w, "Validation failed", validationErrors)
		return false
	}
	return true
}
