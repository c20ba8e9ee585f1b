package response

import (
	"time"

	"mindcare-booking/internal/data/entity"
)

type AppointmentResponse struct {
	ID                 string                   `json:"id"`
	UserID             string                   `json:"user_id"`
	ProfessionalID     string                   `json:"professional_id"`
	SlotID             string                   `json:"slot_id"`
	StartTime          time.Time                `json:"start_time"`
	EndTime            time.Time                `json:"end_time"`
	Status             entity.AppointmentStatus `json:"status"`
	Paid               bool                     `json:"paid"`
	PaymentAmountCents int64                    `json:"payment_amount_cents"`
	PaymentCurrency    string                   `json:"payment_currency"`
	SessionNotes       *string                  `json:"session_notes,omitempty"`
	Rating             *int                     `json:"rating,omitempty"`
	Feedback           *string                  `json:"feedback,omitempty"`
	CancelledAt        *time.Time               `json:"cancelled_at,omitempty"`
	CompletedAt        *time.Time               `json:"completed_at,omitempty"`
	CreatedAt          time.Time                `json:"created_at"`
}

func AppointmentToResponse(a *entity.Appointment) AppointmentResponse {
	return AppointmentResponse{
		ID:                 a.ID.String(),
		UserID:             a.UserID.String(),
		ProfessionalID:     a.ProfessionalID.String(),
		SlotID:             a.SlotID.String(),
		StartTime:          a.StartTime,
		EndTime:            a.EndTime,
		Status:             a.Status,
		Paid:               a.Paid,
		PaymentAmountCents: a.PaymentAmountCents,
		PaymentCurrency:    a.PaymentCurrency,
		SessionNotes:       a.SessionNotes,
		Rating:             a.Rating,
		Feedback:           a.Feedback,
		CancelledAt:        a.CancelledAt,
		CompletedAt:        a.CompletedAt,
		CreatedAt:          a.CreatedAt,
	}
}
