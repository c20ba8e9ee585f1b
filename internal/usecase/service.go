package usecase

import (
	"context"
	"time"

	"mindcare-booking/internal/data/repository"
	"mindcare-booking/internal/directory"
	"mindcare-booking/internal/events"
	"mindcare-booking/internal/payment"
	"mindcare-booking/pkg/apperror"
	"mindcare-booking/pkg/utils"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

type Service struct {
	Slot    SlotService
	Booking BookingService
	Payment PaymentService
}

type options struct {
	now        func() time.Time
	secretCost int
}

type Option func(*options)

// WithClock replaces time.Now, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// WithSecretCost sets the bcrypt cost used for client secrets.
func WithSecretCost(cost int) Option {
	return func(o *options) { o.secretCost = cost }
}

func NewService(
	repo *repository.Repository,
	dir directory.Directory,
	provider payment.Provider,
	pub events.Publisher,
	config *utils.Config,
	log *zap.Logger,
	opts ...Option,
) *Service {
	o := options{
		now:        time.Now,
		secretCost: bcrypt.DefaultCost,
	}
	for _, opt := range opts {
		opt(&o)
	}
	clock := func() time.Time { return o.now().UTC() }

	slots := NewSlotService(repo, dir, config.Booking, clock, log)
	booking := NewBookingService(repo, slots, dir, provider, pub, config.Booking, clock, log)
	payments := NewPaymentService(repo, booking, provider, pub, clock, o.secretCost, log)

	return &Service{
		Slot:    slots,
		Booking: booking,
		Payment: payments,
	}
}

func parseID(op, field, value string) (uuid.UUID, error) {
	id, err := uuid.Parse(value)
	if err != nil {
		return uuid.Nil, apperror.Validation(op, "invalid %s %q", field, value)
	}
	return id, nil
}

func validate(op string, req any) error {
	if errs := utils.ValidateStruct(req); len(errs) > 0 {
		return apperror.Validation(op, "%s", utils.FormatValidationErrors(errs))
	}
	return nil
}

// publish is fire and forget. It runs after commit so a lost event never
// undoes a state change.
func publish(ctx context.Context, pub events.Publisher, log *zap.Logger, eventType string, data any) {
	if err := pub.Publish(ctx, eventType, data); err != nil {
		log.Warn("Failed to publish event", zap.String("type", eventType), zap.Error(err))
	}
}
