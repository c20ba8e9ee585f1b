package response

import (
	"time"

	"mindcare-booking/internal/data/entity"
)

type PaymentResponse struct {
	ID                string               `json:"id"`
	AppointmentID     string               `json:"appointment_id"`
	UserID            string               `json:"user_id"`
	AmountCents       int64                `json:"amount_cents"`
	Currency          string               `json:"currency"`
	Provider          string               `json:"provider"`
	Status            entity.PaymentStatus `json:"status"`
	ProviderPaymentID *string              `json:"provider_payment_id,omitempty"`
	ProcessedAt       *time.Time           `json:"processed_at,omitempty"`
	FailedAt          *time.Time           `json:"failed_at,omitempty"`
	RefundedAt        *time.Time           `json:"refunded_at,omitempty"`
	CreatedAt         time.Time            `json:"created_at"`
}

// PaymentIntentResponse is the only place the client secret is ever returned.
type PaymentIntentResponse struct {
	Payment       PaymentResponse `json:"payment"`
	IntentID      string          `json:"intent_id"`
	ClientSecret  string          `json:"client_secret"`
	NextActionURL string          `json:"next_action_url,omitempty"`
}

type ConfirmPaymentResponse struct {
	Payment        PaymentResponse      `json:"payment"`
	Appointment    *AppointmentResponse `json:"appointment,omitempty"`
	FailureCode    string               `json:"failure_code,omitempty"`
	FailureMessage string               `json:"failure_message,omitempty"`
}

func PaymentToResponse(p *entity.Payment) PaymentResponse {
	return PaymentResponse{
		ID:                p.ID.String(),
		AppointmentID:     p.AppointmentID.String(),
		UserID:            p.UserID.String(),
		AmountCents:       p.AmountCents,
		Currency:          p.Currency,
		Provider:          p.Provider,
		Status:            p.Status,
		ProviderPaymentID: p.ProviderPaymentID,
		ProcessedAt:       p.ProcessedAt,
		FailedAt:          p.FailedAt,
		RefundedAt:        p.RefundedAt,
		CreatedAt:         p.CreatedAt,
	}
}
