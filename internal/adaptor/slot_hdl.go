package adaptor

import (
	"net/http"

	"mindcare-booking/internal/dto/request"
	"mindcare-booking/internal/usecase"
	"mindcare-booking/pkg/utils"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

type SlotHandler struct {
	service usecase.SlotService
	log     *zap.Logger
}

func NewSlotHandler(service usecase.SlotService, log *zap.Logger) *SlotHandler {
	return &SlotHandler{
		service: service,
		log:     log.With(zap.String("handler", "slot")),
	}
}

// CreateSlot handles POST /api/professionals/{id}/slots
func (h *SlotHandler) CreateSlot(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}

	var req request.CreateSlotRequest
	if !decode(w, r, &req) {
		return
	}

	slot, err := h.service.CreateSlot(r.Context(), actor, chi.URLParam(r, "id"), &req)
	if err != nil {
		handleServiceError(h.log, w, err, "create slot")
		return
	}

	utils.ResponseCreated(w, "Slot created", slot)
}

// CreateBulkSlots handles POST /api/professionals/{id}/slots/bulk
func (h *SlotHandler) CreateBulkSlots(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}

	var req request.CreateBulkSlotsRequest
	if !decode(w, r, &req) {
		return
	}

	slots, err := h.service.CreateBulkSlots(r.Context(), actor, chi.URLParam(r, "id"), &req)
	if err != nil {
		handleServiceError(h.log, w, err, "create bulk slots")
		return
	}

	utils.ResponseCreated(w, "Slots created", slots)
}

// ListAvailableSlots handles GET /api/professionals/{id}/slots?from=&to=
func (h *SlotHandler) ListAvailableSlots(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	req := &request.ListSlotsRequest{
		From: query.Get("from"),
		To:   query.Get("to"),
	}

	slots, err := h.service.ListAvailableSlots(r.Context(), chi.URLParam(r, "id"), req)
	if err != nil {
		handleServiceError(h.log, w, err, "list available slots")
		return
	}

	utils.ResponseSuccess(w, "success", slots)
}

// GetSlot handles GET /api/slots/{id}
func (h *SlotHandler) GetSlot(w http.ResponseWriter, r *http.Request) {
	slot, err := h.service.GetSlot(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(h.log, w, err, "get slot")
		return
	}

	utils.ResponseSuccess(w, "success", slot)
}
