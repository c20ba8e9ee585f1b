package usecase

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"mindcare-booking/internal/data/entity"
	"mindcare-booking/internal/data/repository"
	"mindcare-booking/internal/dto/request"
	"mindcare-booking/internal/dto/response"
	"mindcare-booking/internal/events"
	"mindcare-booking/internal/payment"
	"mindcare-booking/pkg/apperror"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

type PaymentService interface {
	CreatePaymentIntent(ctx context.Context, actor entity.Actor, req *request.CreatePaymentIntentRequest) (*response.PaymentIntentResponse, error)
	// ConfirmPayment is authorised by the client secret handed out with the
	// intent, not by the caller's identity.
	ConfirmPayment(ctx context.Context, req *request.ConfirmPaymentRequest) (*response.ConfirmPaymentResponse, error)
	GetPayment(ctx context.Context, actor entity.Actor, paymentID string) (*response.PaymentResponse, error)
	ListPayments(ctx context.Context, actor entity.Actor, appointmentID string) ([]response.PaymentResponse, error)
	RefundPayment(ctx context.Context, actor entity.Actor, paymentID string) (*response.PaymentResponse, error)
}

type paymentService struct {
	repo       *repository.Repository
	booking    BookingService
	provider   payment.Provider
	pub        events.Publisher
	now        func() time.Time
	secretCost int
	log        *zap.Logger
}

func NewPaymentService(
	repo *repository.Repository,
	booking BookingService,
	provider payment.Provider,
	pub events.Publisher,
	now func() time.Time,
	secretCost int,
	log *zap.Logger,
) PaymentService {
	return &paymentService{
		repo:       repo,
		booking:    booking,
		provider:   provider,
		pub:        pub,
		now:        now,
		secretCost: secretCost,
		log:        log.With(zap.String("service", "payment")),
	}
}

func (s *paymentService) CreatePaymentIntent(ctx context.Context, actor entity.Actor, req *request.CreatePaymentIntentRequest) (*response.PaymentIntentResponse, error) {
	const op = "create payment intent"
	if err := validate(op, req); err != nil {
		return nil, err
	}

	appointmentID, err := parseID(op, "appointment id", req.AppointmentID)
	if err != nil {
		return nil, err
	}
	currency := strings.ToUpper(req.Currency)

	var p *entity.Payment
	err = s.repo.Tx.WithinTx(ctx, func(ctx context.Context) error {
		a, err := s.repo.Appointment.FindByID(ctx, appointmentID)
		if err != nil {
			return err
		}
		if a == nil {
			return apperror.NotFound(op, "appointment %s not found", appointmentID)
		}
		if !actor.IsUser() || a.UserID != actor.ID {
			return apperror.Ownership(op, "appointment %s belongs to another user", appointmentID)
		}
		if a.Status != entity.AppointmentStatusPendingPayment {
			return apperror.State(op, "appointment %s is %s, not awaiting payment", appointmentID, a.Status)
		}
		if req.AmountCents != a.PaymentAmountCents || currency != a.PaymentCurrency {
			return apperror.PaymentMismatch(op, "expected %d %s, got %d %s",
				a.PaymentAmountCents, a.PaymentCurrency, req.AmountCents, currency)
		}

		existing, err := s.repo.Payment.ListByAppointmentID(ctx, appointmentID)
		if err != nil {
			return err
		}
		now := s.now()
		for _, prev := range existing {
			switch prev.Status {
			case entity.PaymentStatusCompleted:
				return apperror.State(op, "appointment %s is already paid by %s", appointmentID, prev.ID)
			case entity.PaymentStatusProcessing:
				return apperror.Conflict(op, "payment %s is being confirmed", prev.ID)
			case entity.PaymentStatusPending:
				// A fresh intent supersedes the previous one.
				if err := s.transition(ctx, op, prev, entity.PaymentStatusCancelled, now); err != nil {
					return err
				}
			}
		}

		p = entity.NewPayment(a, s.provider.Name(), now)
		return s.repo.Payment.Create(ctx, p)
	})
	if err != nil {
		return nil, err
	}

	intent, err := s.provider.CreateIntent(ctx, p.AmountCents, p.Currency)
	// The provider has been called. What follows must land even if the
	// caller goes away, or the payment is left without its intent.
	writeCtx := context.WithoutCancel(ctx)
	if err != nil {
		s.fail(writeCtx, op, p, err.Error())
		if apperror.KindOf(err) == apperror.KindInternal {
			err = apperror.Provider(op, err)
		}
		return nil, err
	}

	hash, err := s.hashSecret(intent.ClientSecret)
	if err != nil {
		return nil, fmt.Errorf("%s: hash client secret: %w", op, err)
	}
	if err := s.repo.Payment.SetProviderIntent(writeCtx, p.ID, intent.ID, hash, s.now()); err != nil {
		return nil, err
	}
	p.ProviderPaymentID = &intent.ID

	s.log.Info("Payment intent created",
		zap.String("payment_id", p.ID.String()),
		zap.String("appointment_id", appointmentID.String()),
		zap.String("intent_id", intent.ID),
		zap.Int64("amount_cents", p.AmountCents),
		zap.String("currency", p.Currency),
	)

	return &response.PaymentIntentResponse{
		Payment:       response.PaymentToResponse(p),
		IntentID:      intent.ID,
		ClientSecret:  intent.ClientSecret,
		NextActionURL: intent.NextActionURL,
	}, nil
}

func (s *paymentService) ConfirmPayment(ctx context.Context, req *request.ConfirmPaymentRequest) (*response.ConfirmPaymentResponse, error) {
	const op = "confirm payment"
	if err := validate(op, req); err != nil {
		return nil, err
	}

	p, err := s.repo.Payment.FindByProviderPaymentID(ctx, req.IntentID)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, apperror.NotFound(op, "payment intent %s not found", req.IntentID)
	}
	if !s.verifySecret(p, req.ClientSecret) {
		return nil, apperror.Ownership(op, "client secret does not match intent %s", req.IntentID)
	}

	switch p.Status {
	case entity.PaymentStatusCompleted:
		return s.settled(ctx, op, p)
	case entity.PaymentStatusProcessing:
		return nil, apperror.Conflict(op, "payment %s is already being confirmed", p.ID)
	case entity.PaymentStatusPending:
	default:
		return nil, apperror.State(op, "payment %s is %s", p.ID, p.Status)
	}

	a, err := s.repo.Appointment.FindByID(ctx, p.AppointmentID)
	if err != nil {
		return nil, err
	}
	if a == nil {
		return nil, apperror.NotFound(op, "appointment %s not found", p.AppointmentID)
	}
	if a.Status == entity.AppointmentStatusCancelled {
		if err := s.transition(ctx, op, p, entity.PaymentStatusCancelled, s.now()); err != nil {
			return nil, err
		}
		return nil, apperror.State(op, "appointment %s was cancelled", a.ID)
	}

	// Claim the payment so a concurrent confirm cannot charge twice.
	if err := s.transition(ctx, op, p, entity.PaymentStatusProcessing, s.now()); err != nil {
		if apperror.KindOf(err) == apperror.KindConflict {
			if current, _ := s.repo.Payment.FindByID(ctx, p.ID); current != nil && current.Status == entity.PaymentStatusCompleted {
				return s.settled(ctx, op, current)
			}
		}
		return nil, err
	}

	result, err := s.provider.Confirm(ctx, req.IntentID)
	// From here on the payment is PROCESSING. Every write that moves it out
	// of that state runs detached from the request so a client disconnect
	// cannot strand it.
	ctx = context.WithoutCancel(ctx)
	if err != nil {
		s.fail(ctx, op, p, err.Error())
		if apperror.KindOf(err) == apperror.KindInternal {
			err = apperror.Provider(op, err)
		}
		return nil, err
	}

	switch result.Status {
	case payment.ResultPending:
		if err := s.transition(ctx, op, p, entity.PaymentStatusPending, s.now()); err != nil {
			return nil, err
		}
		s.log.Info("Payment still pending at provider", zap.String("payment_id", p.ID.String()))
		return &response.ConfirmPaymentResponse{Payment: response.PaymentToResponse(p)}, nil

	case payment.ResultFailed:
		s.fail(ctx, op, p, result.FailureCode)
		ar := response.AppointmentToResponse(a)
		return &response.ConfirmPaymentResponse{
			Payment:        response.PaymentToResponse(p),
			Appointment:    &ar,
			FailureCode:    result.FailureCode,
			FailureMessage: result.FailureMessage,
		}, nil
	}

	err = s.repo.Tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.transition(ctx, op, p, entity.PaymentStatusCompleted, s.now()); err != nil {
			return err
		}
		_, err := s.booking.ConfirmPayment(ctx, p.AppointmentID)
		return err
	})
	if err != nil {
		s.recordCapture(ctx, op, p, err)
		return nil, err
	}

	s.log.Info("Payment completed",
		zap.String("payment_id", p.ID.String()),
		zap.String("appointment_id", p.AppointmentID.String()),
	)

	resp, err := s.settled(ctx, op, p)
	if err != nil {
		return nil, err
	}
	publish(ctx, s.pub, s.log, events.PaymentCompleted, resp.Payment)
	if resp.Appointment != nil {
		publish(ctx, s.pub, s.log, events.AppointmentConfirmed, *resp.Appointment)
	}
	return resp, nil
}

// recordCapture keeps the ledger honest when the provider took the money but
// the appointment could not be confirmed. The payment stays COMPLETED so it
// can be refunded.
func (s *paymentService) recordCapture(ctx context.Context, op string, p *entity.Payment, cause error) {
	current, err := s.repo.Payment.FindByID(ctx, p.ID)
	if err != nil || current == nil {
		s.log.Error("Captured payment could not be reloaded", zap.String("payment_id", p.ID.String()), zap.Error(errors.Join(cause, err)))
		return
	}
	if current.Status == entity.PaymentStatusProcessing {
		if err := s.transition(ctx, op, current, entity.PaymentStatusCompleted, s.now()); err != nil {
			s.log.Error("Captured payment could not be recorded",
				zap.String("payment_id", p.ID.String()),
				zap.Error(errors.Join(cause, err)),
			)
			return
		}
	}
	s.log.Error("Payment captured but appointment not confirmed, refund required",
		zap.String("payment_id", p.ID.String()),
		zap.String("appointment_id", p.AppointmentID.String()),
		zap.Error(cause),
	)
}

// settled answers for an already COMPLETED payment. Re-running the booking
// confirmation is a no-op once the appointment is confirmed.
func (s *paymentService) settled(ctx context.Context, op string, p *entity.Payment) (*response.ConfirmPaymentResponse, error) {
	if _, err := s.booking.ConfirmPayment(ctx, p.AppointmentID); err != nil {
		return nil, err
	}

	a, err := s.repo.Appointment.FindByID(ctx, p.AppointmentID)
	if err != nil {
		return nil, err
	}
	if a == nil {
		return nil, apperror.NotFound(op, "appointment %s not found", p.AppointmentID)
	}

	ar := response.AppointmentToResponse(a)
	return &response.ConfirmPaymentResponse{
		Payment:     response.PaymentToResponse(p),
		Appointment: &ar,
	}, nil
}

func (s *paymentService) GetPayment(ctx context.Context, actor entity.Actor, paymentID string) (*response.PaymentResponse, error) {
	const op = "get payment"

	p, _, err := s.visiblePayment(ctx, op, actor, paymentID)
	if err != nil {
		return nil, err
	}

	resp := response.PaymentToResponse(p)
	return &resp, nil
}

func (s *paymentService) ListPayments(ctx context.Context, actor entity.Actor, appointmentID string) ([]response.PaymentResponse, error) {
	const op = "list payments"

	id, err := parseID(op, "appointment id", appointmentID)
	if err != nil {
		return nil, err
	}
	a, err := s.repo.Appointment.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if a == nil {
		return nil, apperror.NotFound(op, "appointment %s not found", id)
	}
	if !canSee(actor, a) {
		return nil, apperror.Ownership(op, "appointment %s is not yours", id)
	}

	payments, err := s.repo.Payment.ListByAppointmentID(ctx, id)
	if err != nil {
		return nil, err
	}

	out := make([]response.PaymentResponse, 0, len(payments))
	for _, p := range payments {
		out = append(out, response.PaymentToResponse(p))
	}
	return out, nil
}

// RefundPayment reverses a completed charge. The appointment is left as is;
// cancelling it afterwards is a separate call.
func (s *paymentService) RefundPayment(ctx context.Context, actor entity.Actor, paymentID string) (*response.PaymentResponse, error) {
	const op = "refund payment"

	p, _, err := s.visiblePayment(ctx, op, actor, paymentID)
	if err != nil {
		return nil, err
	}
	if p.Status != entity.PaymentStatusCompleted {
		return nil, apperror.State(op, "payment %s is %s, only completed payments can be refunded", p.ID, p.Status)
	}
	if p.ProviderPaymentID == nil {
		return nil, apperror.State(op, "payment %s has no provider reference", p.ID)
	}

	if err := s.provider.Refund(ctx, *p.ProviderPaymentID, p.AmountCents); err != nil {
		s.log.Error("Provider refund failed", zap.String("payment_id", p.ID.String()), zap.Error(err))
		if apperror.KindOf(err) == apperror.KindInternal {
			err = apperror.Provider(op, err)
		}
		return nil, err
	}

	ctx = context.WithoutCancel(ctx)
	if err := s.transition(ctx, op, p, entity.PaymentStatusRefunded, s.now()); err != nil {
		s.log.Error("Refund issued but not recorded", zap.String("payment_id", p.ID.String()), zap.Error(err))
		return nil, err
	}

	s.log.Info("Payment refunded",
		zap.String("payment_id", p.ID.String()),
		zap.String("appointment_id", p.AppointmentID.String()),
		zap.Int64("amount_cents", p.AmountCents),
	)

	resp := response.PaymentToResponse(p)
	publish(ctx, s.pub, s.log, events.PaymentRefunded, resp)
	return &resp, nil
}

func (s *paymentService) visiblePayment(ctx context.Context, op string, actor entity.Actor, paymentID string) (*entity.Payment, *entity.Appointment, error) {
	id, err := parseID(op, "payment id", paymentID)
	if err != nil {
		return nil, nil, err
	}
	p, err := s.repo.Payment.FindByID(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	if p == nil {
		return nil, nil, apperror.NotFound(op, "payment %s not found", id)
	}

	a, err := s.repo.Appointment.FindByID(ctx, p.AppointmentID)
	if err != nil {
		return nil, nil, err
	}
	if a == nil || !canSee(actor, a) {
		return nil, nil, apperror.Ownership(op, "payment %s is not yours", id)
	}
	return p, a, nil
}

func (s *paymentService) transition(ctx context.Context, op string, p *entity.Payment, next entity.PaymentStatus, at time.Time) error {
	return transitionPayment(ctx, s.repo, op, p, next, at)
}

// transitionPayment applies next to p and persists it against p's current
// status. On a lost race p keeps its previous status.
func transitionPayment(ctx context.Context, repo *repository.Repository, op string, p *entity.Payment, next entity.PaymentStatus, at time.Time) error {
	expected := p.Status
	if err := p.TransitionTo(next, at); err != nil {
		return err
	}
	ok, err := repo.Payment.UpdateStatus(ctx, p, expected)
	if err != nil {
		return err
	}
	if !ok {
		p.Status = expected
		return apperror.Conflict(op, "payment %s changed concurrently", p.ID)
	}
	return nil
}

// fail settles p as FAILED and announces it. Errors are logged only, the
// caller is already returning the provider outcome.
func (s *paymentService) fail(ctx context.Context, op string, p *entity.Payment, reason string) {
	if err := s.transition(ctx, op, p, entity.PaymentStatusFailed, s.now()); err != nil {
		s.log.Error("Failed to mark payment failed", zap.String("payment_id", p.ID.String()), zap.Error(err))
		return
	}
	s.log.Warn("Payment failed",
		zap.String("payment_id", p.ID.String()),
		zap.String("appointment_id", p.AppointmentID.String()),
		zap.String("reason", reason),
	)
	publish(ctx, s.pub, s.log, events.PaymentFailed, response.PaymentToResponse(p))
}

// Client secrets are pre-hashed with SHA-256 to stay under bcrypt's 72 byte
// input limit.
func (s *paymentService) hashSecret(secret string) (string, error) {
	sum := sha256.Sum256([]byte(secret))
	hash, err := bcrypt.GenerateFromPassword([]byte(hex.EncodeToString(sum[:])), s.secretCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

func (s *paymentService) verifySecret(p *entity.Payment, secret string) bool {
	if p.ClientSecretHash == nil {
		return false
	}
	sum := sha256.Sum256([]byte(secret))
	return bcrypt.CompareHashAndPassword([]byte(*p.ClientSecretHash), []byte(hex.EncodeToString(sum[:]))) == nil
}
