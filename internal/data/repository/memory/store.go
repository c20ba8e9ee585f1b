// Package memory is an in-process implementation of the repositories. It
// enforces the same uniqueness and compare-and-set rules as the Postgres
// schema and is used by the service and handler tests.
package memory

import (
	"context"
	"maps"
	"sync"

	"mindcare-booking/internal/data/entity"
	"mindcare-booking/internal/data/repository"

	"github.com/google/uuid"
)

type txMarker struct{}

// Store serialises every transaction. Calls outside WithinTx run as their own
// single-statement transaction.
type Store struct {
	mu sync.Mutex

	slots        map[uuid.UUID]entity.Slot
	appointments map[uuid.UUID]entity.Appointment
	payments     map[uuid.UUID]entity.Payment

	faults map[string]error
}

func NewStore() *Store {
	return &Store{
		slots:        make(map[uuid.UUID]entity.Slot),
		appointments: make(map[uuid.UUID]entity.Appointment),
		payments:     make(map[uuid.UUID]entity.Payment),
		faults:       make(map[string]error),
	}
}

// Repository exposes the store through the repository interfaces.
func (s *Store) Repository() *repository.Repository {
	return &repository.Repository{
		Slot:        &slotRepo{s: s},
		Appointment: &appointmentRepo{s: s},
		Payment:     &paymentRepo{s: s},
		Tx:          s,
	}
}

// FailNext makes the next call of op return err. Ops are named
// "<entity>.<method>", e.g. "appointment.create".
func (s *Store) FailNext(op string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.faults[op] = err
}

func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if s.inTx(ctx) {
		return fn(ctx)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	slots := maps.Clone(s.slots)
	appointments := maps.Clone(s.appointments)
	payments := maps.Clone(s.payments)

	if err := fn(context.WithValue(ctx, txMarker{}, s)); err != nil {
		s.slots, s.appointments, s.payments = slots, appointments, payments
		return err
	}
	return nil
}

func (s *Store) inTx(ctx context.Context) bool {
	owner, _ := ctx.Value(txMarker{}).(*Store)
	return owner == s
}

// lock takes the store lock unless ctx already holds it through WithinTx.
func (s *Store) lock(ctx context.Context) func() {
	if s.inTx(ctx) {
		return func() {}
	}
	s.mu.Lock()
	return s.mu.Unlock
}

// fault must be called with the lock held. A cancelled ctx fails the write
// the way a database round trip would.
func (s *Store) fault(ctx context.Context, op string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	err, ok := s.faults[op]
	if !ok {
		return nil
	}
	delete(s.faults, op)
	return err
}

// Slots returns a snapshot of every stored slot, for assertions.
func (s *Store) Slots() []entity.Slot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return collect(s.slots)
}

func (s *Store) Appointments() []entity.Appointment {
	s.mu.Lock()
	defer s.mu.Unlock()
	return collect(s.appointments)
}

func (s *Store) Payments() []entity.Payment {
	s.mu.Lock()
	defer s.mu.Unlock()
	return collect(s.payments)
}

func collect[T any](m map[uuid.UUID]T) []T {
	out := make([]T, 0, len(m))
	for _, v := range m {
		out = append(out, v)
	}
	return out
}
