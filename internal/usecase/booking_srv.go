package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"mindcare-booking/internal/data/entity"
	"mindcare-booking/internal/data/repository"
	"mindcare-booking/internal/directory"
	"mindcare-booking/internal/dto/request"
	"mindcare-booking/internal/dto/response"
	"mindcare-booking/internal/events"
	"mindcare-booking/internal/payment"
	"mindcare-booking/pkg/apperror"
	"mindcare-booking/pkg/utils"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const expiredHoldBatch = 100

// errSkipHold rolls back a single expiry without failing the sweep.
var errSkipHold = errors.New("hold no longer expirable")

type BookingService interface {
	BookAppointment(ctx context.Context, actor entity.Actor, req *request.BookAppointmentRequest) (*response.AppointmentResponse, error)
	CancelAppointment(ctx context.Context, actor entity.Actor, appointmentID string) (*response.AppointmentResponse, error)
	CancelPaidAppointment(ctx context.Context, actor entity.Actor, appointmentID string) (*response.AppointmentResponse, error)
	ListAppointments(ctx context.Context, actor entity.Actor, req *request.PaginatedRequest) (*response.PaginatedResponse[response.AppointmentResponse], error)
	GetAppointment(ctx context.Context, actor entity.Actor, appointmentID string) (*response.AppointmentResponse, error)

	StartSession(ctx context.Context, actor entity.Actor, appointmentID string) (*response.AppointmentResponse, error)
	CompleteSession(ctx context.Context, actor entity.Actor, appointmentID string, req *request.CompleteSessionRequest) (*response.AppointmentResponse, error)
	MarkNoShow(ctx context.Context, actor entity.Actor, appointmentID string) (*response.AppointmentResponse, error)
	RateAppointment(ctx context.Context, actor entity.Actor, appointmentID string, req *request.RateAppointmentRequest) (*response.AppointmentResponse, error)

	// ConfirmPayment is called by the payment ledger once the provider has
	// settled. It reports false when the appointment was already confirmed.
	ConfirmPayment(ctx context.Context, appointmentID uuid.UUID) (bool, error)

	// ExpireHolds releases holds older than the configured TTL whose
	// appointment never got paid, and returns how many were released.
	ExpireHolds(ctx context.Context) (int, error)
}

type bookingService struct {
	repo     *repository.Repository
	slots    SlotService
	dir      directory.Directory
	provider payment.Provider
	pub      events.Publisher
	cfg      utils.BookingConfig
	now      func() time.Time
	log      *zap.Logger
}

// NewBookingService wires the coordinator. provider is only consulted by the
// hold sweep, to settle confirmations that were abandoned mid-flight.
func NewBookingService(
	repo *repository.Repository,
	slots SlotService,
	dir directory.Directory,
	provider payment.Provider,
	pub events.Publisher,
	cfg utils.BookingConfig,
	now func() time.Time,
	log *zap.Logger,
) BookingService {
	return &bookingService{
		repo:     repo,
		slots:    slots,
		dir:      dir,
		provider: provider,
		pub:      pub,
		cfg:      cfg,
		now:      now,
		log:      log.With(zap.String("service", "booking")),
	}
}

func (s *bookingService) BookAppointment(ctx context.Context, actor entity.Actor, req *request.BookAppointmentRequest) (*response.AppointmentResponse, error) {
	const op = "book appointment"
	if err := validate(op, req); err != nil {
		return nil, err
	}
	if !actor.IsUser() {
		return nil, apperror.Ownership(op, "only users can book appointments")
	}

	profID, err := parseID(op, "professional id", req.ProfessionalID)
	if err != nil {
		return nil, err
	}
	slotID, err := parseID(op, "slot id", req.SlotID)
	if err != nil {
		return nil, err
	}

	ok, err := s.dir.UserExists(ctx, actor.ID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if !ok {
		return nil, apperror.NotFound(op, "user %s not found", actor.ID)
	}

	slot, err := s.repo.Slot.FindByID(ctx, slotID)
	if err != nil {
		return nil, err
	}
	if slot == nil {
		return nil, apperror.NotFound(op, "slot %s not found", slotID)
	}
	if slot.ProfessionalID != profID {
		return nil, apperror.Ownership(op, "slot %s does not belong to professional %s", slotID, profID)
	}

	ok, err = s.dir.ProfessionalExists(ctx, profID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if !ok {
		return nil, apperror.NotFound(op, "professional %s not found", profID)
	}
	if !slot.StartAt.After(s.now()) {
		return nil, apperror.Validation(op, "slot %s has already started", slotID)
	}

	var appointment *entity.Appointment
	err = s.repo.Tx.WithinTx(ctx, func(ctx context.Context) error {
		held, err := s.slots.ReserveSlot(ctx, slotID, profID, actor.ID)
		if err != nil {
			return err
		}

		rate, err := s.dir.GetProfessionalRate(ctx, profID)
		if err != nil {
			return fmt.Errorf("%s: rate lookup: %w", op, err)
		}

		appointment = entity.NewAppointment(actor.ID, held, rate.AmountCents, rate.Currency, s.now())
		return s.repo.Appointment.Create(ctx, appointment)
	})
	if err != nil {
		s.log.Info("Booking rejected",
			zap.String("slot_id", slotID.String()),
			zap.String("user_id", actor.ID.String()),
			zap.Error(err),
		)
		return nil, err
	}

	s.log.Info("Appointment booked",
		zap.String("appointment_id", appointment.ID.String()),
		zap.String("slot_id", slotID.String()),
		zap.String("user_id", actor.ID.String()),
		zap.Int64("amount_cents", appointment.PaymentAmountCents),
		zap.String("currency", appointment.PaymentCurrency),
	)

	resp := response.AppointmentToResponse(appointment)
	publish(ctx, s.pub, s.log, events.AppointmentBooked, resp)
	return &resp, nil
}

func (s *bookingService) CancelAppointment(ctx context.Context, actor entity.Actor, appointmentID string) (*response.AppointmentResponse, error) {
	const op = "cancel appointment"

	id, err := parseID(op, "appointment id", appointmentID)
	if err != nil {
		return nil, err
	}

	var appointment *entity.Appointment
	err = s.repo.Tx.WithinTx(ctx, func(ctx context.Context) error {
		a, err := s.findAppointment(ctx, op, id)
		if err != nil {
			return err
		}
		if !actor.IsUser() || a.UserID != actor.ID {
			return apperror.Ownership(op, "appointment %s belongs to another user", id)
		}
		if a.Paid {
			return apperror.State(op, "appointment %s is already paid, refund it before cancelling", id)
		}

		payments, err := s.repo.Payment.ListByAppointmentID(ctx, id)
		if err != nil {
			return err
		}
		for _, p := range payments {
			if p.Status == entity.PaymentStatusProcessing {
				return apperror.Conflict(op, "payment %s for appointment %s is being processed", p.ID, id)
			}
		}

		if err := s.cancel(ctx, op, a, payments); err != nil {
			return err
		}
		if _, err := s.slots.ReleaseSlot(ctx, a.SlotID); err != nil {
			return err
		}
		appointment = a
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("Appointment cancelled",
		zap.String("appointment_id", id.String()),
		zap.String("slot_id", appointment.SlotID.String()),
	)

	resp := response.AppointmentToResponse(appointment)
	publish(ctx, s.pub, s.log, events.AppointmentCancelled, resp)
	return &resp, nil
}

// CancelPaidAppointment is the post-payment cancellation. The payment must
// already be refunded through the ledger.
func (s *bookingService) CancelPaidAppointment(ctx context.Context, actor entity.Actor, appointmentID string) (*response.AppointmentResponse, error) {
	const op = "cancel paid appointment"

	id, err := parseID(op, "appointment id", appointmentID)
	if err != nil {
		return nil, err
	}

	var appointment *entity.Appointment
	err = s.repo.Tx.WithinTx(ctx, func(ctx context.Context) error {
		a, err := s.findAppointment(ctx, op, id)
		if err != nil {
			return err
		}
		if !canSee(actor, a) {
			return apperror.Ownership(op, "appointment %s is not yours", id)
		}
		if !a.Paid {
			return apperror.State(op, "appointment %s is not paid, cancel it directly", id)
		}

		payments, err := s.repo.Payment.ListByAppointmentID(ctx, id)
		if err != nil {
			return err
		}
		refunded := false
		for _, p := range payments {
			switch p.Status {
			case entity.PaymentStatusCompleted, entity.PaymentStatusProcessing:
				return apperror.State(op, "payment %s must be refunded first", p.ID)
			case entity.PaymentStatusRefunded:
				refunded = true
			}
		}
		if !refunded {
			return apperror.State(op, "appointment %s has no refunded payment", id)
		}

		expected := a.Status
		if err := a.TransitionTo(entity.AppointmentStatusCancelled, s.now()); err != nil {
			return err
		}
		a.Paid = false
		if err := s.update(ctx, op, a, expected); err != nil {
			return err
		}
		if _, err := s.slots.ReleaseSlot(ctx, a.SlotID); err != nil {
			return err
		}
		appointment = a
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("Paid appointment cancelled after refund",
		zap.String("appointment_id", id.String()),
		zap.String("slot_id", appointment.SlotID.String()),
	)

	resp := response.AppointmentToResponse(appointment)
	publish(ctx, s.pub, s.log, events.AppointmentCancelled, resp)
	return &resp, nil
}

func (s *bookingService) ConfirmPayment(ctx context.Context, appointmentID uuid.UUID) (bool, error) {
	const op = "confirm appointment payment"

	changed := false
	err := s.repo.Tx.WithinTx(ctx, func(ctx context.Context) error {
		a, err := s.findAppointment(ctx, op, appointmentID)
		if err != nil {
			return err
		}
		if a.Status == entity.AppointmentStatusCancelled {
			return apperror.State(op, "appointment %s was cancelled", appointmentID)
		}

		expected := a.Status
		changed, err = a.MarkPaid(s.now())
		if err != nil || !changed {
			return err
		}
		if err := s.update(ctx, op, a, expected); err != nil {
			return err
		}

		slot, err := s.repo.Slot.FindByID(ctx, a.SlotID)
		if err != nil {
			return err
		}
		if slot != nil && slot.Status == entity.SlotStatusBooked {
			return nil
		}
		_, err = s.slots.ConfirmSlot(ctx, a.SlotID)
		return err
	})
	if err != nil {
		return false, err
	}

	if changed {
		s.log.Info("Appointment confirmed", zap.String("appointment_id", appointmentID.String()))
	} else {
		s.log.Debug("Appointment already confirmed", zap.String("appointment_id", appointmentID.String()))
	}
	return changed, nil
}

func (s *bookingService) ListAppointments(ctx context.Context, actor entity.Actor, req *request.PaginatedRequest) (*response.PaginatedResponse[response.AppointmentResponse], error) {
	var (
		list  []*entity.Appointment
		total int64
		err   error
	)

	switch actor.Kind {
	case entity.KindUser:
		if list, err = s.repo.Appointment.ListByUserID(ctx, actor.ID, req.Limit(), req.Offset()); err != nil {
			return nil, err
		}
		total, err = s.repo.Appointment.CountByUserID(ctx, actor.ID)
	case entity.KindProfessional:
		if list, err = s.repo.Appointment.ListByProfessionalID(ctx, actor.ID, req.Limit(), req.Offset()); err != nil {
			return nil, err
		}
		total, err = s.repo.Appointment.CountByProfessionalID(ctx, actor.ID)
	default:
		return nil, apperror.Ownership("list appointments", "unknown actor kind %q", actor.Kind)
	}
	if err != nil {
		return nil, err
	}

	data := make([]response.AppointmentResponse, 0, len(list))
	for _, a := range list {
		data = append(data, response.AppointmentToResponse(a))
	}

	return response.NewPaginatedResponse(data, req.Page, req.Limit(), total), nil
}

func (s *bookingService) GetAppointment(ctx context.Context, actor entity.Actor, appointmentID string) (*response.AppointmentResponse, error) {
	const op = "get appointment"

	id, err := parseID(op, "appointment id", appointmentID)
	if err != nil {
		return nil, err
	}
	a, err := s.findAppointment(ctx, op, id)
	if err != nil {
		return nil, err
	}
	if !canSee(actor, a) {
		return nil, apperror.Ownership(op, "appointment %s is not yours", id)
	}

	resp := response.AppointmentToResponse(a)
	return &resp, nil
}

func (s *bookingService) StartSession(ctx context.Context, actor entity.Actor, appointmentID string) (*response.AppointmentResponse, error) {
	return s.professionalStep(ctx, "start session", actor, appointmentID, events.AppointmentStarted, func(a *entity.Appointment, now time.Time) error {
		return a.TransitionTo(entity.AppointmentStatusInProgress, now)
	})
}

func (s *bookingService) CompleteSession(ctx context.Context, actor entity.Actor, appointmentID string, req *request.CompleteSessionRequest) (*response.AppointmentResponse, error) {
	const op = "complete session"
	if err := validate(op, req); err != nil {
		return nil, err
	}

	return s.professionalStep(ctx, op, actor, appointmentID, events.AppointmentCompleted, func(a *entity.Appointment, now time.Time) error {
		if err := a.TransitionTo(entity.AppointmentStatusCompleted, now); err != nil {
			return err
		}
		a.SessionNotes = req.SessionNotes
		return nil
	})
}

func (s *bookingService) MarkNoShow(ctx context.Context, actor entity.Actor, appointmentID string) (*response.AppointmentResponse, error) {
	const op = "mark no-show"

	return s.professionalStep(ctx, op, actor, appointmentID, events.AppointmentNoShow, func(a *entity.Appointment, now time.Time) error {
		if a.Status == entity.AppointmentStatusConfirmed && now.Before(a.StartTime) {
			return apperror.State(op, "appointment %s has not started yet", a.ID)
		}
		return a.TransitionTo(entity.AppointmentStatusNoShow, now)
	})
}

func (s *bookingService) RateAppointment(ctx context.Context, actor entity.Actor, appointmentID string, req *request.RateAppointmentRequest) (*response.AppointmentResponse, error) {
	const op = "rate appointment"
	if err := validate(op, req); err != nil {
		return nil, err
	}

	id, err := parseID(op, "appointment id", appointmentID)
	if err != nil {
		return nil, err
	}

	var appointment *entity.Appointment
	err = s.repo.Tx.WithinTx(ctx, func(ctx context.Context) error {
		a, err := s.findAppointment(ctx, op, id)
		if err != nil {
			return err
		}
		if !actor.IsUser() || a.UserID != actor.ID {
			return apperror.Ownership(op, "only the client of appointment %s can rate it", id)
		}
		if err := a.Rate(req.Rating, req.Feedback, s.now()); err != nil {
			return err
		}
		appointment = a
		return s.update(ctx, op, a, a.Status)
	})
	if err != nil {
		return nil, err
	}

	resp := response.AppointmentToResponse(appointment)
	return &resp, nil
}

// professionalStep loads an appointment owned by the acting professional,
// applies step and persists the result with an optimistic status check.
func (s *bookingService) professionalStep(
	ctx context.Context,
	op string,
	actor entity.Actor,
	appointmentID string,
	eventType string,
	step func(a *entity.Appointment, now time.Time) error,
) (*response.AppointmentResponse, error) {
	id, err := parseID(op, "appointment id", appointmentID)
	if err != nil {
		return nil, err
	}

	var appointment *entity.Appointment
	err = s.repo.Tx.WithinTx(ctx, func(ctx context.Context) error {
		a, err := s.findAppointment(ctx, op, id)
		if err != nil {
			return err
		}
		if !actor.IsProfessional() || a.ProfessionalID != actor.ID {
			return apperror.Ownership(op, "appointment %s belongs to another professional", id)
		}

		expected := a.Status
		if err := step(a, s.now()); err != nil {
			return err
		}
		appointment = a
		return s.update(ctx, op, a, expected)
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("Appointment updated",
		zap.String("op", op),
		zap.String("appointment_id", id.String()),
		zap.String("status", string(appointment.Status)),
	)

	resp := response.AppointmentToResponse(appointment)
	publish(ctx, s.pub, s.log, eventType, resp)
	return &resp, nil
}

func (s *bookingService) ExpireHolds(ctx context.Context) (int, error) {
	now := s.now()
	cutoff := now.Add(-s.cfg.HoldTTL)

	var (
		released int
		errs     []error
		after    *repository.HoldCursor
	)
	for {
		slots, err := s.repo.Slot.ListExpiredHolds(ctx, cutoff, after, expiredHoldBatch)
		if err != nil {
			errs = append(errs, err)
			break
		}

		for _, slot := range slots {
			ok, err := s.expireOne(ctx, slot, cutoff, now)
			if err != nil {
				s.log.Error("Failed to expire hold", zap.String("slot_id", slot.ID.String()), zap.Error(err))
				errs = append(errs, fmt.Errorf("expire hold on slot %s: %w", slot.ID, err))
				continue
			}
			if ok {
				released++
			}
		}

		// Skipped holds stay HELD, so paging by cursor keeps them from
		// hiding the ones behind them.
		if len(slots) < expiredHoldBatch {
			break
		}
		last := slots[len(slots)-1]
		after = &repository.HoldCursor{HeldAt: *last.HeldAt, ID: last.ID}
	}

	if released > 0 {
		s.log.Info("Expired holds released", zap.Int("count", released))
	}
	return released, errors.Join(errs...)
}

// expireOne releases a single expired hold and reports whether it did.
func (s *bookingService) expireOne(ctx context.Context, slot *entity.Slot, cutoff, now time.Time) (bool, error) {
	captured, err := s.settleStalePayments(ctx, slot, cutoff)
	if err != nil {
		return false, err
	}
	if captured {
		return false, nil
	}

	var expired *entity.Appointment
	err = s.repo.Tx.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		expired, err = s.expireHold(ctx, slot, cutoff, now)
		return err
	})
	if errors.Is(err, errSkipHold) {
		s.log.Debug("Expired hold skipped", zap.String("slot_id", slot.ID.String()))
		return false, nil
	}
	if err != nil {
		return false, err
	}

	if expired != nil {
		publish(ctx, s.pub, s.log, events.AppointmentExpired, response.AppointmentToResponse(expired))
	}
	return true, nil
}

// settleStalePayments resolves PROCESSING payments on the hold that have not
// moved since cutoff. Their confirm call died before it could record the
// outcome. It reports true when the provider had captured the money and the
// appointment is now confirmed.
func (s *bookingService) settleStalePayments(ctx context.Context, slot *entity.Slot, cutoff time.Time) (bool, error) {
	a, err := s.repo.Appointment.FindActiveBySlotID(ctx, slot.ID)
	if err != nil || a == nil || a.Paid {
		return false, err
	}
	payments, err := s.repo.Payment.ListByAppointmentID(ctx, a.ID)
	if err != nil {
		return false, err
	}

	for _, p := range payments {
		if p.Status != entity.PaymentStatusProcessing || p.UpdatedAt.After(cutoff) {
			continue
		}
		captured, err := s.settleStale(ctx, p)
		if err != nil {
			return false, err
		}
		if captured {
			return true, nil
		}
	}
	return false, nil
}

func (s *bookingService) settleStale(ctx context.Context, p *entity.Payment) (bool, error) {
	const op = "settle stale payment"

	captured := false
	if p.ProviderPaymentID != nil {
		result, err := s.provider.Confirm(ctx, *p.ProviderPaymentID)
		switch {
		case err != nil:
			s.log.Error("Stale payment could not be checked with provider, check for a capture",
				zap.String("payment_id", p.ID.String()),
				zap.Error(err),
			)
		case result.Succeeded():
			captured = true
		}
	}

	ctx = context.WithoutCancel(ctx)
	now := s.now()

	if !captured {
		if err := transitionPayment(ctx, s.repo, op, p, entity.PaymentStatusFailed, now); err != nil {
			if apperror.KindOf(err) == apperror.KindConflict {
				return false, nil
			}
			return false, err
		}
		s.log.Warn("Stale payment marked failed",
			zap.String("payment_id", p.ID.String()),
			zap.String("appointment_id", p.AppointmentID.String()),
		)
		publish(ctx, s.pub, s.log, events.PaymentFailed, response.PaymentToResponse(p))
		return false, nil
	}

	err := s.repo.Tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := transitionPayment(ctx, s.repo, op, p, entity.PaymentStatusCompleted, now); err != nil {
			return err
		}
		_, err := s.ConfirmPayment(ctx, p.AppointmentID)
		return err
	})
	if err != nil {
		return false, err
	}

	s.log.Info("Stale payment completed from provider state",
		zap.String("payment_id", p.ID.String()),
		zap.String("appointment_id", p.AppointmentID.String()),
	)
	publish(ctx, s.pub, s.log, events.PaymentCompleted, response.PaymentToResponse(p))
	if a, err := s.repo.Appointment.FindByID(ctx, p.AppointmentID); err == nil && a != nil {
		publish(ctx, s.pub, s.log, events.AppointmentConfirmed, response.AppointmentToResponse(a))
	}
	return true, nil
}

func (s *bookingService) expireHold(ctx context.Context, slot *entity.Slot, cutoff, now time.Time) (*entity.Appointment, error) {
	const op = "expire hold"

	a, err := s.repo.Appointment.FindActiveBySlotID(ctx, slot.ID)
	if err != nil {
		return nil, err
	}

	if a != nil {
		if a.Paid {
			return nil, errSkipHold
		}
		payments, err := s.repo.Payment.ListByAppointmentID(ctx, a.ID)
		if err != nil {
			return nil, err
		}
		for _, p := range payments {
			if p.Status == entity.PaymentStatusCompleted || p.Status == entity.PaymentStatusProcessing {
				return nil, errSkipHold
			}
		}
		if err := s.cancel(ctx, op, a, payments); err != nil {
			if apperror.KindOf(err) == apperror.KindConflict {
				return nil, errSkipHold
			}
			return nil, err
		}
	}

	ok, err := s.repo.Slot.ReleaseExpiredHold(ctx, slot.ID, cutoff, now)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errSkipHold
	}
	return a, nil
}

// cancel moves an unpaid appointment to CANCELLED and voids its open
// payments. The caller releases the slot.
func (s *bookingService) cancel(ctx context.Context, op string, a *entity.Appointment, payments []*entity.Payment) error {
	now := s.now()
	expected := a.Status
	if err := a.TransitionTo(entity.AppointmentStatusCancelled, now); err != nil {
		return err
	}
	if err := s.update(ctx, op, a, expected); err != nil {
		return err
	}

	for _, p := range payments {
		if p.Status != entity.PaymentStatusPending {
			continue
		}
		if err := p.TransitionTo(entity.PaymentStatusCancelled, now); err != nil {
			return err
		}
		ok, err := s.repo.Payment.UpdateStatus(ctx, p, entity.PaymentStatusPending)
		if err != nil {
			return err
		}
		if !ok {
			return apperror.Conflict(op, "payment %s changed concurrently", p.ID)
		}
	}
	return nil
}

func (s *bookingService) update(ctx context.Context, op string, a *entity.Appointment, expected entity.AppointmentStatus) error {
	ok, err := s.repo.Appointment.Update(ctx, a, expected)
	if err != nil {
		return err
	}
	if !ok {
		return apperror.Conflict(op, "appointment %s changed concurrently", a.ID)
	}
	return nil
}

func (s *bookingService) findAppointment(ctx context.Context, op string, id uuid.UUID) (*entity.Appointment, error) {
	a, err := s.repo.Appointment.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if a == nil {
		return nil, apperror.NotFound(op, "appointment %s not found", id)
	}
	return a, nil
}

func canSee(actor entity.Actor, a *entity.Appointment) bool {
	switch actor.Kind {
	case entity.KindUser:
		return a.UserID == actor.ID
	case entity.KindProfessional:
		return a.ProfessionalID == actor.ID
	}
	return false
}
