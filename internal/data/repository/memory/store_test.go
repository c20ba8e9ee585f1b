package memory

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"mindcare-booking/internal/data/entity"
	"mindcare-booking/internal/data/repository"
	"mindcare-booking/pkg/apperror"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_HoldIsCompareAndSet(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	repo := store.Repository()
	now := time.Now().UTC()

	prof := uuid.New()
	slot := entity.NewSlot(prof, now.Add(time.Hour), 60, "UTC", now)
	require.NoError(t, repo.Slot.Create(ctx, slot))

	var wins atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			held, err := repo.Slot.Hold(ctx, slot.ID, prof, uuid.New(), now)
			assert.NoError(t, err)
			if held != nil {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), wins.Load())
}

func TestStore_HoldRejectsOtherProfessional(t *testing.T) {
	ctx := context.Background()
	repo := NewStore().Repository()
	now := time.Now().UTC()

	slot := entity.NewSlot(uuid.New(), now.Add(time.Hour), 60, "UTC", now)
	require.NoError(t, repo.Slot.Create(ctx, slot))

	held, err := repo.Slot.Hold(ctx, slot.ID, uuid.New(), uuid.New(), now)
	require.NoError(t, err)
	assert.Nil(t, held)
}

func TestStore_WithinTxRollsBack(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	repo := store.Repository()
	now := time.Now().UTC()

	slot := entity.NewSlot(uuid.New(), now.Add(time.Hour), 60, "UTC", now)
	require.NoError(t, repo.Slot.Create(ctx, slot))

	boom := errors.New("boom")
	err := repo.Tx.WithinTx(ctx, func(ctx context.Context) error {
		held, err := repo.Slot.Hold(ctx, slot.ID, slot.ProfessionalID, uuid.New(), now)
		require.NoError(t, err)
		require.NotNil(t, held)
		return boom
	})
	require.ErrorIs(t, err, boom)

	got, err := repo.Slot.FindByID(ctx, slot.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.SlotStatusFree, got.Status)
	assert.Nil(t, got.HeldBy)
}

func TestStore_UniqueConstraints(t *testing.T) {
	ctx := context.Background()
	repo := NewStore().Repository()
	now := time.Now().UTC()

	prof := uuid.New()
	start := now.Add(time.Hour)
	require.NoError(t, repo.Slot.Create(ctx, entity.NewSlot(prof, start, 60, "UTC", now)))
	err := repo.Slot.Create(ctx, entity.NewSlot(prof, start, 30, "UTC", now))
	assert.ErrorIs(t, err, apperror.ErrConflict)

	slot := entity.NewSlot(prof, start.Add(time.Hour), 60, "UTC", now)
	require.NoError(t, repo.Slot.Create(ctx, slot))
	require.NoError(t, repo.Appointment.Create(ctx, entity.NewAppointment(uuid.New(), slot, 100, "USD", now)))
	err = repo.Appointment.Create(ctx, entity.NewAppointment(uuid.New(), slot, 100, "USD", now))
	assert.ErrorIs(t, err, apperror.ErrConflict)
}

func TestStore_UpdateRequiresExpectedStatus(t *testing.T) {
	ctx := context.Background()
	repo := NewStore().Repository()
	now := time.Now().UTC()

	slot := entity.NewSlot(uuid.New(), now.Add(time.Hour), 60, "UTC", now)
	a := entity.NewAppointment(uuid.New(), slot, 100, "USD", now)
	require.NoError(t, repo.Appointment.Create(ctx, a))

	require.NoError(t, a.TransitionTo(entity.AppointmentStatusCancelled, now))
	ok, err := repo.Appointment.Update(ctx, a, entity.AppointmentStatusConfirmed)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = repo.Appointment.Update(ctx, a, entity.AppointmentStatusPendingPayment)
	require.NoError(t, err)
	assert.True(t, ok)

	list, err := repo.Appointment.ListByUserID(ctx, a.UserID, 10, 0)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, entity.AppointmentStatusCancelled, list[0].Status)
}

func TestStore_ListExpiredHoldsPagesByCursor(t *testing.T) {
	ctx := context.Background()
	repo := NewStore().Repository()
	now := time.Now().UTC()

	prof := uuid.New()
	for i := 0; i < 5; i++ {
		slot := entity.NewSlot(prof, now.Add(time.Duration(i+1)*time.Hour), 60, "UTC", now)
		require.NoError(t, repo.Slot.Create(ctx, slot))
		// Two holds share each timestamp so the id breaks the tie.
		_, err := repo.Slot.Hold(ctx, slot.ID, prof, uuid.New(), now.Add(time.Duration(i/2)*time.Minute))
		require.NoError(t, err)
	}

	var (
		seen  []uuid.UUID
		after *repository.HoldCursor
	)
	for {
		page, err := repo.Slot.ListExpiredHolds(ctx, now.Add(time.Hour), after, 2)
		require.NoError(t, err)
		for _, slot := range page {
			if after != nil {
				assert.True(t, after.Before(*slot.HeldAt, slot.ID))
			}
			seen = append(seen, slot.ID)
			after = &repository.HoldCursor{HeldAt: *slot.HeldAt, ID: slot.ID}
		}
		if len(page) < 2 {
			break
		}
	}

	assert.Len(t, seen, 5)
	seenSet := make(map[uuid.UUID]struct{}, len(seen))
	for _, id := range seen {
		seenSet[id] = struct{}{}
	}
	assert.Len(t, seenSet, 5)
}

func TestStore_SetProviderIntentRequiresPending(t *testing.T) {
	ctx := context.Background()
	repo := NewStore().Repository()
	now := time.Now().UTC()

	slot := entity.NewSlot(uuid.New(), now.Add(time.Hour), 60, "UTC", now)
	a := entity.NewAppointment(uuid.New(), slot, 100, "USD", now)
	p := entity.NewPayment(a, "mock", now)
	require.NoError(t, repo.Payment.Create(ctx, p))

	require.NoError(t, p.TransitionTo(entity.PaymentStatusCancelled, now))
	ok, err := repo.Payment.UpdateStatus(ctx, p, entity.PaymentStatusPending)
	require.NoError(t, err)
	require.True(t, ok)

	err = repo.Payment.SetProviderIntent(ctx, p.ID, "pi_late", "hash", now)
	assert.ErrorIs(t, err, apperror.ErrState)

	got, err := repo.Payment.FindByID(ctx, p.ID)
	require.NoError(t, err)
	assert.Nil(t, got.ProviderPaymentID)

	err = repo.Payment.SetProviderIntent(ctx, uuid.New(), "pi_missing", "hash", now)
	assert.ErrorIs(t, err, apperror.ErrNotFound)
}
