package usecase

import (
	"context"
	"testing"
	"time"

	"mindcare-booking/internal/data/entity"
	"mindcare-booking/internal/dto/request"
	"mindcare-booking/internal/events"
	"mindcare-booking/internal/payment"
	"mindcare-booking/pkg/apperror"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPayment_ConfirmBooksSlot(t *testing.T) {
	f := newFixture(t)
	user := f.user(t)
	prof := f.professional(t, 50000, "COP")
	slot := f.slot(t, prof, 48*time.Hour)
	a := f.book(t, user, prof, slot)

	confirmed := f.pay(t, user, a)

	assert.Equal(t, entity.PaymentStatusCompleted, confirmed.Payment.Status)
	assert.NotNil(t, confirmed.Payment.ProcessedAt)
	require.NotNil(t, confirmed.Appointment)
	assert.Equal(t, entity.AppointmentStatusConfirmed, confirmed.Appointment.Status)
	assert.True(t, confirmed.Appointment.Paid)
	assert.Equal(t, entity.SlotStatusBooked, f.slotByID(t, slot.ID).Status)

	payments := f.store.Payments()
	require.Len(t, payments, 1)
	require.NotNil(t, payments[0].ClientSecretHash)
	assert.NotContains(t, *payments[0].ClientSecretHash, "secret")

	assert.Equal(t, []string{
		events.AppointmentBooked,
		events.PaymentCompleted,
		events.AppointmentConfirmed,
	}, f.events.Types())
}

func TestPayment_IntentMustMatchAppointment(t *testing.T) {
	f := newFixture(t)
	user := f.user(t)
	prof := f.professional(t, 50000, "COP")
	a := f.book(t, user, prof, f.slot(t, prof, 48*time.Hour))

	tests := []struct {
		name   string
		amount int64
		curr   string
		want   error
	}{
		{"amount differs", 40000, "COP", apperror.ErrPaymentMismatch},
		{"currency differs", 50000, "USD", apperror.ErrPaymentMismatch},
		{"bad currency", 50000, "CO", apperror.ErrValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.Payment.CreatePaymentIntent(f.ctx, user, &request.CreatePaymentIntentRequest{
				AppointmentID: a.ID, AmountCents: tt.amount, Currency: tt.curr,
			})
			require.ErrorIs(t, err, tt.want)
		})
	}
	assert.Empty(t, f.store.Payments())
	assert.Zero(t, f.provider.Calls("create"))

	_, err := f.svc.Payment.CreatePaymentIntent(f.ctx, f.user(t), &request.CreatePaymentIntentRequest{
		AppointmentID: a.ID, AmountCents: 50000, Currency: "COP",
	})
	require.ErrorIs(t, err, apperror.ErrOwnership)

	intent, err := f.svc.Payment.CreatePaymentIntent(f.ctx, user, &request.CreatePaymentIntentRequest{
		AppointmentID: a.ID, AmountCents: 50000, Currency: "cop",
	})
	require.NoError(t, err)
	assert.Equal(t, "COP", intent.Payment.Currency)
	assert.Equal(t, entity.PaymentStatusPending, intent.Payment.Status)
	assert.NotEmpty(t, intent.ClientSecret)
}

func TestPayment_WrongSecretIsRejected(t *testing.T) {
	f := newFixture(t)
	user := f.user(t)
	prof := f.professional(t, 50000, "COP")
	a := f.book(t, user, prof, f.slot(t, prof, 48*time.Hour))

	intent, err := f.svc.Payment.CreatePaymentIntent(f.ctx, user, &request.CreatePaymentIntentRequest{
		AppointmentID: a.ID, AmountCents: 50000, Currency: "COP",
	})
	require.NoError(t, err)

	_, err = f.svc.Payment.ConfirmPayment(f.ctx, &request.ConfirmPaymentRequest{
		IntentID: intent.IntentID, ClientSecret: "guess",
	})
	require.ErrorIs(t, err, apperror.ErrOwnership)

	_, err = f.svc.Payment.ConfirmPayment(f.ctx, &request.ConfirmPaymentRequest{
		IntentID: "pi_unknown", ClientSecret: "guess",
	})
	require.ErrorIs(t, err, apperror.ErrNotFound)

	assert.Zero(t, f.provider.Calls("confirm"))
	assert.Equal(t, entity.AppointmentStatusPendingPayment, f.appointmentByID(t, a.ID).Status)
}

func TestPayment_ConfirmTwiceIsIdempotent(t *testing.T) {
	f := newFixture(t)
	user := f.user(t)
	prof := f.professional(t, 50000, "COP")
	slot := f.slot(t, prof, 48*time.Hour)
	a := f.book(t, user, prof, slot)

	intent, err := f.svc.Payment.CreatePaymentIntent(f.ctx, user, &request.CreatePaymentIntentRequest{
		AppointmentID: a.ID, AmountCents: 50000, Currency: "COP",
	})
	require.NoError(t, err)
	req := &request.ConfirmPaymentRequest{IntentID: intent.IntentID, ClientSecret: intent.ClientSecret}

	first, err := f.svc.Payment.ConfirmPayment(f.ctx, req)
	require.NoError(t, err)
	second, err := f.svc.Payment.ConfirmPayment(f.ctx, req)
	require.NoError(t, err)

	assert.Equal(t, first.Payment.ID, second.Payment.ID)
	assert.Equal(t, entity.AppointmentStatusConfirmed, second.Appointment.Status)
	assert.Equal(t, 1, f.provider.Calls("confirm"))
	assert.Len(t, f.store.Payments(), 1)
	assert.Equal(t, entity.SlotStatusBooked, f.slotByID(t, slot.ID).Status)

	_, err = f.svc.Payment.CreatePaymentIntent(f.ctx, user, &request.CreatePaymentIntentRequest{
		AppointmentID: a.ID, AmountCents: 50000, Currency: "COP",
	})
	require.ErrorIs(t, err, apperror.ErrState)
}

func TestPayment_DeclinedLeavesHoldInPlace(t *testing.T) {
	f := newFixture(t)
	user := f.user(t)
	prof := f.professional(t, 50000, "COP")
	slot := f.slot(t, prof, 48*time.Hour)
	a := f.book(t, user, prof, slot)

	f.provider.SetOutcome(payment.Result{
		Status:         payment.ResultFailed,
		FailureCode:    "insufficient_fund",
		FailureMessage: "insufficient funds in the account",
	})
	intent, err := f.svc.Payment.CreatePaymentIntent(f.ctx, user, &request.CreatePaymentIntentRequest{
		AppointmentID: a.ID, AmountCents: 50000, Currency: "COP",
	})
	require.NoError(t, err)

	declined, err := f.svc.Payment.ConfirmPayment(f.ctx, &request.ConfirmPaymentRequest{
		IntentID: intent.IntentID, ClientSecret: intent.ClientSecret,
	})
	require.NoError(t, err)
	assert.Equal(t, entity.PaymentStatusFailed, declined.Payment.Status)
	assert.NotNil(t, declined.Payment.FailedAt)
	assert.Equal(t, "insufficient_fund", declined.FailureCode)
	assert.Equal(t, 1, f.provider.Calls("confirm"), "a decline is not retried")

	assert.Equal(t, entity.AppointmentStatusPendingPayment, f.appointmentByID(t, a.ID).Status)
	assert.Equal(t, entity.SlotStatusHeld, f.slotByID(t, slot.ID).Status)
	assert.Contains(t, f.events.Types(), events.PaymentFailed)

	// The client may retry with a fresh intent.
	f.provider.SetOutcome(payment.Result{Status: payment.ResultSucceeded})
	retried := f.pay(t, user, a)
	assert.Equal(t, entity.PaymentStatusCompleted, retried.Payment.Status)
	assert.Len(t, f.store.Payments(), 2)
}

func TestPayment_TransientErrorsAreRetried(t *testing.T) {
	f := newFixture(t)
	user := f.user(t)
	prof := f.professional(t, 50000, "COP")
	a := f.book(t, user, prof, f.slot(t, prof, 48*time.Hour))

	intent, err := f.svc.Payment.CreatePaymentIntent(f.ctx, user, &request.CreatePaymentIntentRequest{
		AppointmentID: a.ID, AmountCents: 50000, Currency: "COP",
	})
	require.NoError(t, err)

	f.provider.FailNext(2)
	confirmed, err := f.svc.Payment.ConfirmPayment(f.ctx, &request.ConfirmPaymentRequest{
		IntentID: intent.IntentID, ClientSecret: intent.ClientSecret,
	})
	require.NoError(t, err)
	assert.Equal(t, entity.PaymentStatusCompleted, confirmed.Payment.Status)
	assert.Equal(t, 3, f.provider.Calls("confirm"))
}

func TestPayment_ExhaustedRetriesSurfaceProviderError(t *testing.T) {
	f := newFixture(t)
	user := f.user(t)
	prof := f.professional(t, 50000, "COP")
	slot := f.slot(t, prof, 48*time.Hour)
	a := f.book(t, user, prof, slot)

	intent, err := f.svc.Payment.CreatePaymentIntent(f.ctx, user, &request.CreatePaymentIntentRequest{
		AppointmentID: a.ID, AmountCents: 50000, Currency: "COP",
	})
	require.NoError(t, err)

	f.provider.FailNext(10)
	_, err = f.svc.Payment.ConfirmPayment(f.ctx, &request.ConfirmPaymentRequest{
		IntentID: intent.IntentID, ClientSecret: intent.ClientSecret,
	})
	require.ErrorIs(t, err, apperror.ErrProvider)
	assert.Equal(t, 3, f.provider.Calls("confirm"))

	payments := f.store.Payments()
	require.Len(t, payments, 1)
	assert.Equal(t, entity.PaymentStatusFailed, payments[0].Status)
	assert.Equal(t, entity.SlotStatusHeld, f.slotByID(t, slot.ID).Status)
}

func TestPayment_IntentCreationFailure(t *testing.T) {
	f := newFixture(t)
	user := f.user(t)
	prof := f.professional(t, 50000, "COP")
	a := f.book(t, user, prof, f.slot(t, prof, 48*time.Hour))

	f.provider.FailNext(10)
	_, err := f.svc.Payment.CreatePaymentIntent(f.ctx, user, &request.CreatePaymentIntentRequest{
		AppointmentID: a.ID, AmountCents: 50000, Currency: "COP",
	})
	require.ErrorIs(t, err, apperror.ErrProvider)

	payments := f.store.Payments()
	require.Len(t, payments, 1)
	assert.Equal(t, entity.PaymentStatusFailed, payments[0].Status)
}

func TestPayment_PendingThenSettled(t *testing.T) {
	f := newFixture(t)
	user := f.user(t)
	prof := f.professional(t, 50000, "COP")
	a := f.book(t, user, prof, f.slot(t, prof, 48*time.Hour))

	intent, err := f.svc.Payment.CreatePaymentIntent(f.ctx, user, &request.CreatePaymentIntentRequest{
		AppointmentID: a.ID, AmountCents: 50000, Currency: "COP",
	})
	require.NoError(t, err)
	req := &request.ConfirmPaymentRequest{IntentID: intent.IntentID, ClientSecret: intent.ClientSecret}

	f.provider.SetOutcome(payment.Result{Status: payment.ResultPending})
	pending, err := f.svc.Payment.ConfirmPayment(f.ctx, req)
	require.NoError(t, err)
	assert.Equal(t, entity.PaymentStatusPending, pending.Payment.Status)
	assert.Nil(t, pending.Appointment)
	assert.Equal(t, entity.AppointmentStatusPendingPayment, f.appointmentByID(t, a.ID).Status)

	f.provider.SetOutcome(payment.Result{Status: payment.ResultSucceeded})
	settled, err := f.svc.Payment.ConfirmPayment(f.ctx, req)
	require.NoError(t, err)
	assert.Equal(t, entity.PaymentStatusCompleted, settled.Payment.Status)
}

func TestPayment_RefundThenCancelPaid(t *testing.T) {
	f := newFixture(t)
	user := f.user(t)
	prof := f.professional(t, 50000, "COP")
	slot := f.slot(t, prof, 48*time.Hour)
	a := f.book(t, user, prof, slot)
	confirmed := f.pay(t, user, a)

	_, err := f.svc.Booking.CancelPaidAppointment(f.ctx, user, a.ID)
	require.ErrorIs(t, err, apperror.ErrState, "refund comes first")

	_, err = f.svc.Payment.RefundPayment(f.ctx, f.user(t), confirmed.Payment.ID)
	require.ErrorIs(t, err, apperror.ErrOwnership)

	refunded, err := f.svc.Payment.RefundPayment(f.ctx, prof, confirmed.Payment.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.PaymentStatusRefunded, refunded.Status)
	assert.NotNil(t, refunded.RefundedAt)

	// A refund alone leaves the booking untouched.
	stored := f.appointmentByID(t, a.ID)
	assert.Equal(t, entity.AppointmentStatusConfirmed, stored.Status)
	assert.True(t, stored.Paid)
	assert.Equal(t, entity.SlotStatusBooked, f.slotByID(t, slot.ID).Status)

	_, err = f.svc.Payment.RefundPayment(f.ctx, prof, confirmed.Payment.ID)
	require.ErrorIs(t, err, apperror.ErrState)

	cancelled, err := f.svc.Booking.CancelPaidAppointment(f.ctx, user, a.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.AppointmentStatusCancelled, cancelled.Status)
	assert.False(t, cancelled.Paid)
	assert.Equal(t, entity.SlotStatusFree, f.slotByID(t, slot.ID).Status)

	assert.Contains(t, f.events.Types(), events.PaymentRefunded)
	assert.Equal(t, 1, f.provider.Calls("refund"))
}

func TestPayment_GetAndList(t *testing.T) {
	f := newFixture(t)
	user := f.user(t)
	prof := f.professional(t, 50000, "COP")
	a := f.book(t, user, prof, f.slot(t, prof, 48*time.Hour))
	confirmed := f.pay(t, user, a)

	got, err := f.svc.Payment.GetPayment(f.ctx, prof, confirmed.Payment.ID)
	require.NoError(t, err)
	assert.Equal(t, confirmed.Payment.ID, got.ID)

	_, err = f.svc.Payment.GetPayment(f.ctx, f.user(t), confirmed.Payment.ID)
	require.ErrorIs(t, err, apperror.ErrOwnership)

	_, err = f.svc.Payment.GetPayment(f.ctx, user, uuid.NewString())
	require.ErrorIs(t, err, apperror.ErrNotFound)

	list, err := f.svc.Payment.ListPayments(f.ctx, user, a.ID)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, entity.PaymentStatusCompleted, list[0].Status)
}

func TestPayment_ConfirmSurvivesCallerCancellation(t *testing.T) {
	f := newFixture(t)
	user := f.user(t)
	prof := f.professional(t, 50000, "COP")
	slot := f.slot(t, prof, 48*time.Hour)
	a := f.book(t, user, prof, slot)

	intent, err := f.svc.Payment.CreatePaymentIntent(f.ctx, user, &request.CreatePaymentIntentRequest{
		AppointmentID: a.ID, AmountCents: 50000, Currency: "COP",
	})
	require.NoError(t, err)

	// The client goes away while the provider is capturing.
	ctx, cancel := context.WithCancel(f.ctx)
	defer cancel()
	f.useProvider(&hookedProvider{Provider: f.provider, afterConfirm: cancel})

	confirmed, err := f.svc.Payment.ConfirmPayment(ctx, &request.ConfirmPaymentRequest{
		IntentID: intent.IntentID, ClientSecret: intent.ClientSecret,
	})
	require.NoError(t, err)
	assert.Equal(t, entity.PaymentStatusCompleted, confirmed.Payment.Status)

	assert.Equal(t, entity.PaymentStatusCompleted, f.paymentByID(t, uuid.MustParse(intent.Payment.ID)).Status)
	assert.Equal(t, entity.AppointmentStatusConfirmed, f.appointmentByID(t, a.ID).Status)
	assert.Equal(t, entity.SlotStatusBooked, f.slotByID(t, slot.ID).Status)
}

func TestPayment_DeclineRecordedAfterCallerCancellation(t *testing.T) {
	f := newFixture(t)
	user := f.user(t)
	prof := f.professional(t, 50000, "COP")
	slot := f.slot(t, prof, 48*time.Hour)
	a := f.book(t, user, prof, slot)

	intent, err := f.svc.Payment.CreatePaymentIntent(f.ctx, user, &request.CreatePaymentIntentRequest{
		AppointmentID: a.ID, AmountCents: 50000, Currency: "COP",
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(f.ctx)
	defer cancel()
	f.provider.FailNext(1)
	f.useProvider(&hookedProvider{Provider: f.provider, afterConfirm: cancel})

	_, err = f.svc.Payment.ConfirmPayment(ctx, &request.ConfirmPaymentRequest{
		IntentID: intent.IntentID, ClientSecret: intent.ClientSecret,
	})
	require.ErrorIs(t, err, apperror.ErrProvider)

	assert.Equal(t, entity.PaymentStatusFailed, f.paymentByID(t, uuid.MustParse(intent.Payment.ID)).Status)

	// The appointment can be paid again with a fresh intent.
	f.useProvider(f.provider)
	paid := f.pay(t, user, a)
	assert.Equal(t, entity.PaymentStatusCompleted, paid.Payment.Status)
}
