package usecase

import (
	"context"
	"sync"
	"testing"
	"time"

	"mindcare-booking/internal/data/entity"
	"mindcare-booking/internal/data/repository/memory"
	"mindcare-booking/internal/directory"
	"mindcare-booking/internal/dto/request"
	"mindcare-booking/internal/dto/response"
	"mindcare-booking/internal/events"
	"mindcare-booking/internal/payment"
	"mindcare-booking/pkg/utils"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type fixture struct {
	ctx      context.Context
	config   *utils.Config
	store    *memory.Store
	dir      *directory.MemoryDirectory
	provider *payment.MockProvider
	events   *events.Recorder
	clock    *testClock
	svc      *Service
}

var fixtureStart = time.Date(2024, 11, 1, 12, 0, 0, 0, time.UTC)

func newFixture(t *testing.T, tweak ...func(*utils.Config)) *fixture {
	t.Helper()

	config := &utils.Config{
		Booking: utils.BookingConfig{
			HoldTTL:       15 * time.Minute,
			SweepInterval: time.Minute,
			BulkLimit:     500,
		},
	}
	for _, fn := range tweak {
		fn(config)
	}

	f := &fixture{
		ctx:      context.Background(),
		config:   config,
		store:    memory.NewStore(),
		dir:      directory.NewMemoryDirectory(),
		provider: payment.NewMockProvider(),
		events:   events.NewRecorder(),
		clock:    &testClock{now: fixtureStart},
	}

	f.useProvider(payment.NewResilientProvider(f.provider, payment.ResilienceConfig{
		Timeout:         time.Second,
		MaxRetries:      2,
		RetryBase:       time.Millisecond,
		BreakerFailures: 100,
		BreakerTimeout:  time.Second,
	}, zap.NewNop()))
	return f
}

// useProvider rebuilds the services around provider, keeping store, clock
// and recorded events.
func (f *fixture) useProvider(provider payment.Provider) {
	f.svc = NewService(f.store.Repository(), f.dir, provider, f.events, f.config, zap.NewNop(),
		WithClock(f.clock.Now),
		WithSecretCost(bcrypt.MinCost),
	)
}

// hookedProvider runs afterConfirm once the wrapped provider has answered.
type hookedProvider struct {
	payment.Provider
	afterConfirm func()
}

func (h *hookedProvider) Confirm(ctx context.Context, intentID string) (payment.Result, error) {
	res, err := h.Provider.Confirm(ctx, intentID)
	h.afterConfirm()
	return res, err
}

func (f *fixture) user(t *testing.T) entity.Actor {
	t.Helper()
	u := entity.User{Base: entity.Base{ID: uuid.New()}, FullName: "Client", Email: uuid.NewString() + "@example.com"}
	f.dir.AddUser(u)
	return entity.Actor{ID: u.ID, Kind: entity.KindUser}
}

func (f *fixture) professional(t *testing.T, rateCents int64, currency string) entity.Actor {
	t.Helper()
	p := entity.Professional{
		Base:      entity.Base{ID: uuid.New()},
		FullName:  "Therapist",
		Email:     uuid.NewString() + "@example.com",
		RateCents: rateCents,
		Currency:  currency,
		Active:    true,
	}
	f.dir.AddProfessional(p)
	return entity.Actor{ID: p.ID, Kind: entity.KindProfessional}
}

// slot stores a FREE slot starting after the given offset from the clock.
func (f *fixture) slot(t *testing.T, prof entity.Actor, after time.Duration) *entity.Slot {
	t.Helper()
	now := f.clock.Now()
	s := entity.NewSlot(prof.ID, now.Add(after), 60, "America/Bogota", now)
	require.NoError(t, f.store.Repository().Slot.Create(f.ctx, s))
	return s
}

func (f *fixture) book(t *testing.T, user, prof entity.Actor, slot *entity.Slot) *response.AppointmentResponse {
	t.Helper()
	resp, err := f.svc.Booking.BookAppointment(f.ctx, user, &request.BookAppointmentRequest{
		ProfessionalID: prof.ID.String(),
		SlotID:         slot.ID.String(),
	})
	require.NoError(t, err)
	return resp
}

// pay runs the full intent and confirmation flow with the mock provider.
func (f *fixture) pay(t *testing.T, user entity.Actor, a *response.AppointmentResponse) *response.ConfirmPaymentResponse {
	t.Helper()
	intent, err := f.svc.Payment.CreatePaymentIntent(f.ctx, user, &request.CreatePaymentIntentRequest{
		AppointmentID: a.ID,
		AmountCents:   a.PaymentAmountCents,
		Currency:      a.PaymentCurrency,
	})
	require.NoError(t, err)

	confirmed, err := f.svc.Payment.ConfirmPayment(f.ctx, &request.ConfirmPaymentRequest{
		IntentID:     intent.IntentID,
		ClientSecret: intent.ClientSecret,
	})
	require.NoError(t, err)
	return confirmed
}

// processing stores a payment for a that is mid-confirmation, stamped with
// the current clock.
func (f *fixture) processing(t *testing.T, a *response.AppointmentResponse) *entity.Payment {
	t.Helper()
	repo := f.store.Repository()
	p := entity.NewPayment(f.appointmentByID(t, a.ID), "mock", f.clock.Now())
	require.NoError(t, repo.Payment.Create(f.ctx, p))
	require.NoError(t, p.TransitionTo(entity.PaymentStatusProcessing, f.clock.Now()))
	ok, err := repo.Payment.UpdateStatus(f.ctx, p, entity.PaymentStatusPending)
	require.NoError(t, err)
	require.True(t, ok)
	return p
}

func (f *fixture) paymentByID(t *testing.T, id uuid.UUID) *entity.Payment {
	t.Helper()
	p, err := f.store.Repository().Payment.FindByID(f.ctx, id)
	require.NoError(t, err)
	require.NotNil(t, p)
	return p
}

func (f *fixture) slotByID(t *testing.T, id uuid.UUID) *entity.Slot {
	t.Helper()
	s, err := f.store.Repository().Slot.FindByID(f.ctx, id)
	require.NoError(t, err)
	require.NotNil(t, s)
	return s
}

func (f *fixture) appointmentByID(t *testing.T, id string) *entity.Appointment {
	t.Helper()
	a, err := f.store.Repository().Appointment.FindByID(f.ctx, uuid.MustParse(id))
	require.NoError(t, err)
	require.NotNil(t, a)
	return a
}
