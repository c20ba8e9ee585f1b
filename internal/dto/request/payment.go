package request

type CreatePaymentIntentRequest struct {
	AppointmentID string `json:"appointment_id" validate:"required,uuid"`
	AmountCents   int64  `json:"amount_cents" validate:"gt=0"`
	Currency      string `json:"currency" validate:"required,len=3"`
}

type ConfirmPaymentRequest struct {
	IntentID     string `json:"intent_id" validate:"required,max=128"`
	ClientSecret string `json:"client_secret" validate:"required"`
}
