package entity

import (
	"time"

	"mindcare-booking/pkg/apperror"

	"github.com/google/uuid"
)

type PaymentStatus string

const (
	PaymentStatusPending    PaymentStatus = "PENDING"
	PaymentStatusProcessing PaymentStatus = "PROCESSING"
	PaymentStatusCompleted  PaymentStatus = "COMPLETED"
	PaymentStatusFailed     PaymentStatus = "FAILED"
	PaymentStatusCancelled  PaymentStatus = "CANCELLED"
	PaymentStatusRefunded   PaymentStatus = "REFUNDED"
)

var paymentTransitions = map[PaymentStatus][]PaymentStatus{
	PaymentStatusPending:    {PaymentStatusProcessing, PaymentStatusFailed, PaymentStatusCancelled},
	PaymentStatusProcessing: {PaymentStatusCompleted, PaymentStatusFailed, PaymentStatusPending},
	PaymentStatusCompleted:  {PaymentStatusRefunded},
}

func (s PaymentStatus) CanTransitionTo(next PaymentStatus) bool {
	for _, allowed := range paymentTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

type Payment struct {
	Base
	AppointmentID     uuid.UUID     `db:"appointment_id"`
	UserID            uuid.UUID     `db:"user_id"`
	AmountCents       int64         `db:"amount_cents"`
	Currency          string        `db:"currency"`
	Provider          string        `db:"provider"`
	Status            PaymentStatus `db:"status"`
	ProviderPaymentID *string       `db:"provider_payment_id"`
	ClientSecretHash  *string       `db:"client_secret_hash" json:"-"`
	ProcessedAt       *time.Time    `db:"processed_at"`
	FailedAt          *time.Time    `db:"failed_at"`
	RefundedAt        *time.Time    `db:"refunded_at"`
}

// NewPayment copies amount and currency from the appointment it pays for.
func NewPayment(a *Appointment, provider string, now time.Time) *Payment {
	return &Payment{
		Base:          newBase(now),
		AppointmentID: a.ID,
		UserID:        a.UserID,
		AmountCents:   a.PaymentAmountCents,
		Currency:      a.PaymentCurrency,
		Provider:      provider,
		Status:        PaymentStatusPending,
	}
}

// TransitionTo moves the payment and stamps processed/failed/refunded times.
func (p *Payment) TransitionTo(next PaymentStatus, at time.Time) error {
	if !p.Status.CanTransitionTo(next) {
		return apperror.State("payment transition", "payment %s cannot move from %s to %s", p.ID, p.Status, next)
	}

	p.Status = next
	p.UpdatedAt = at
	switch next {
	case PaymentStatusCompleted:
		p.ProcessedAt = &at
	case PaymentStatusFailed:
		p.FailedAt = &at
	case PaymentStatusRefunded:
		p.RefundedAt = &at
	}
	return nil
}
