package entity

import (
	"time"

	"mindcare-booking/pkg/apperror"

	"github.com/google/uuid"
)

type AppointmentStatus string

const (
	AppointmentStatusPendingPayment AppointmentStatus = "PENDING_PAYMENT"
	AppointmentStatusPaid           AppointmentStatus = "PAID"
	AppointmentStatusConfirmed      AppointmentStatus = "CONFIRMED"
	AppointmentStatusInProgress     AppointmentStatus = "IN_PROGRESS"
	AppointmentStatusCompleted      AppointmentStatus = "COMPLETED"
	AppointmentStatusCancelled      AppointmentStatus = "CANCELLED"
	AppointmentStatusNoShow         AppointmentStatus = "NO_SHOW"
)

var appointmentTransitions = map[AppointmentStatus][]AppointmentStatus{
	AppointmentStatusPendingPayment: {AppointmentStatusPaid, AppointmentStatusCancelled},
	AppointmentStatusPaid:           {AppointmentStatusConfirmed, AppointmentStatusCancelled},
	AppointmentStatusConfirmed:      {AppointmentStatusInProgress, AppointmentStatusNoShow, AppointmentStatusCancelled},
	AppointmentStatusInProgress:     {AppointmentStatusCompleted, AppointmentStatusCancelled},
}

func (s AppointmentStatus) IsTerminal() bool {
	switch s {
	case AppointmentStatusCompleted, AppointmentStatusCancelled, AppointmentStatusNoShow:
		return true
	}
	return false
}

func (s AppointmentStatus) CanTransitionTo(next AppointmentStatus) bool {
	for _, allowed := range appointmentTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

type Appointment struct {
	Base
	UserID             uuid.UUID         `db:"user_id"`
	ProfessionalID     uuid.UUID         `db:"professional_id"`
	SlotID             uuid.UUID         `db:"slot_id"`
	StartTime          time.Time         `db:"start_time"`
	EndTime            time.Time         `db:"end_time"`
	Status             AppointmentStatus `db:"status"`
	Paid               bool              `db:"paid"`
	PaymentAmountCents int64             `db:"payment_amount_cents"`
	PaymentCurrency    string            `db:"payment_currency"`
	SessionNotes       *string           `db:"session_notes"`
	Rating             *int              `db:"rating"`
	Feedback           *string           `db:"feedback"`
	CancelledAt        *time.Time        `db:"cancelled_at"`
	CompletedAt        *time.Time        `db:"completed_at"`
}

// NewAppointment creates a PENDING_PAYMENT appointment priced at the
// professional's current rate.
func NewAppointment(userID uuid.UUID, slot *Slot, amountCents int64, currency string, now time.Time) *Appointment {
	return &Appointment{
		Base:               newBase(now),
		UserID:             userID,
		ProfessionalID:     slot.ProfessionalID,
		SlotID:             slot.ID,
		StartTime:          slot.StartAt,
		EndTime:            slot.EndAt(),
		Status:             AppointmentStatusPendingPayment,
		PaymentAmountCents: amountCents,
		PaymentCurrency:    currency,
	}
}

// TransitionTo applies a single state machine edge and stamps the matching
// timestamp.
func (a *Appointment) TransitionTo(next AppointmentStatus, at time.Time) error {
	if a.Status.IsTerminal() {
		return apperror.State("appointment transition", "appointment %s is %s and cannot change", a.ID, a.Status)
	}
	if !a.Status.CanTransitionTo(next) {
		return apperror.State("appointment transition", "appointment %s cannot move from %s to %s", a.ID, a.Status, next)
	}

	a.Status = next
	a.UpdatedAt = at
	switch next {
	case AppointmentStatusCancelled:
		a.CancelledAt = &at
	case AppointmentStatusCompleted:
		a.CompletedAt = &at
	}
	return nil
}

// MarkPaid walks PENDING_PAYMENT -> PAID -> CONFIRMED. It reports false when
// the appointment was already paid and confirmed (or further along).
func (a *Appointment) MarkPaid(at time.Time) (bool, error) {
	if a.Paid && a.Status != AppointmentStatusCancelled {
		if a.Status == AppointmentStatusPaid {
			return true, a.TransitionTo(AppointmentStatusConfirmed, at)
		}
		return false, nil
	}

	if a.Status == AppointmentStatusPendingPayment {
		if err := a.TransitionTo(AppointmentStatusPaid, at); err != nil {
			return false, err
		}
	}
	if err := a.TransitionTo(AppointmentStatusConfirmed, at); err != nil {
		return false, err
	}
	a.Paid = true
	return true, nil
}

// Rate records the client's rating once the session is completed.
func (a *Appointment) Rate(rating int, feedback *string, at time.Time) error {
	if a.Status != AppointmentStatusCompleted {
		return apperror.State("rate appointment", "appointment %s is %s, only completed sessions can be rated", a.ID, a.Status)
	}
	if a.Rating != nil {
		return apperror.State("rate appointment", "appointment %s is already rated", a.ID)
	}
	if rating < 1 || rating > 5 {
		return apperror.Validation("rate appointment", "rating must be between 1 and 5")
	}

	a.Rating = &rating
	a.Feedback = feedback
	a.UpdatedAt = at
	return nil
}
