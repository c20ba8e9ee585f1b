package request

type BookAppointmentRequest struct {
	ProfessionalID string `json:"professional_id" validate:"required,uuid"`
	SlotID         string `json:"slot_id" validate:"required,uuid"`
}

type CompleteSessionRequest struct {
	SessionNotes *string `json:"session_notes" validate:"omitempty,max=10000"`
}

type RateAppointmentRequest struct {
	Rating   int     `json:"rating" validate:"required,min=1,max=5"`
	Feedback *string `json:"feedback" validate:"omitempty,max=2000"`
}
