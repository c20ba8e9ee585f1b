package usecase

import (
	"testing"
	"time"

	"mindcare-booking/internal/data/entity"
	"mindcare-booking/internal/dto/request"
	"mindcare-booking/pkg/apperror"
	"mindcare-booking/pkg/utils"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateBulkSlots_ExpandsDatesByTimes(t *testing.T) {
	f := newFixture(t)
	prof := f.professional(t, 50000, "COP")

	slots, err := f.svc.Slot.CreateBulkSlots(f.ctx, prof, prof.ID.String(), &request.CreateBulkSlotsRequest{
		StartDate:       "2024-12-01",
		EndDate:         "2024-12-02",
		TimeSlots:       []string{"10:00", "09:00"},
		DurationMinutes: 60,
		Timezone:        "America/Bogota",
	})
	require.NoError(t, err)
	require.Len(t, slots, 4)

	want := []time.Time{
		time.Date(2024, 12, 1, 14, 0, 0, 0, time.UTC),
		time.Date(2024, 12, 1, 15, 0, 0, 0, time.UTC),
		time.Date(2024, 12, 2, 14, 0, 0, 0, time.UTC),
		time.Date(2024, 12, 2, 15, 0, 0, 0, time.UTC),
	}
	for i, s := range slots {
		assert.Equal(t, entity.SlotStatusFree, s.Status)
		assert.Equal(t, 60, s.DurationMinutes)
		assert.Equal(t, "America/Bogota", s.Timezone)
		assert.True(t, want[i].Equal(s.StartAt), "slot %d starts at %s", i, s.StartAt)
	}
	assert.Equal(t, "2024-12-01T09:00:00-05:00", slots[0].LocalStart)
	assert.Len(t, f.store.Slots(), 4)
}

func TestCreateBulkSlots_IsAllOrNothing(t *testing.T) {
	f := newFixture(t)
	prof := f.professional(t, 50000, "COP")

	_, err := f.svc.Slot.CreateSlot(f.ctx, prof, prof.ID.String(), &request.CreateSlotRequest{
		StartAt:         time.Date(2024, 12, 2, 15, 0, 0, 0, time.UTC),
		DurationMinutes: 60,
		Timezone:        "America/Bogota",
	})
	require.NoError(t, err)

	_, err = f.svc.Slot.CreateBulkSlots(f.ctx, prof, prof.ID.String(), &request.CreateBulkSlotsRequest{
		StartDate:       "2024-12-01",
		EndDate:         "2024-12-02",
		TimeSlots:       []string{"09:00", "10:00"},
		DurationMinutes: 60,
		Timezone:        "America/Bogota",
	})
	require.ErrorIs(t, err, apperror.ErrConflict)
	assert.Len(t, f.store.Slots(), 1)
}

func TestCreateBulkSlots_Validation(t *testing.T) {
	f := newFixture(t, func(c *utils.Config) { c.Booking.BulkLimit = 3 })
	prof := f.professional(t, 50000, "COP")

	base := request.CreateBulkSlotsRequest{
		StartDate:       "2024-12-01",
		EndDate:         "2024-12-01",
		TimeSlots:       []string{"09:00"},
		DurationMinutes: 60,
		Timezone:        "America/Bogota",
	}

	tests := []struct {
		name   string
		mutate func(r *request.CreateBulkSlotsRequest)
	}{
		{"end before start", func(r *request.CreateBulkSlotsRequest) { r.EndDate = "2024-11-30" }},
		{"over the limit", func(r *request.CreateBulkSlotsRequest) {
			r.EndDate = "2024-12-02"
			r.TimeSlots = []string{"09:00", "11:00"}
		}},
		{"overlapping times", func(r *request.CreateBulkSlotsRequest) { r.TimeSlots = []string{"09:00", "09:30"} }},
		{"bad time", func(r *request.CreateBulkSlotsRequest) { r.TimeSlots = []string{"25:00"} }},
		{"bad timezone", func(r *request.CreateBulkSlotsRequest) { r.Timezone = "Mars/Olympus" }},
		{"zero duration", func(r *request.CreateBulkSlotsRequest) { r.DurationMinutes = 0 }},
		{"in the past", func(r *request.CreateBulkSlotsRequest) {
			r.StartDate = "2024-10-01"
			r.EndDate = "2024-10-01"
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := base
			req.TimeSlots = append([]string(nil), base.TimeSlots...)
			tt.mutate(&req)

			_, err := f.svc.Slot.CreateBulkSlots(f.ctx, prof, prof.ID.String(), &req)
			require.ErrorIs(t, err, apperror.ErrValidation)
		})
	}
	assert.Empty(t, f.store.Slots())
}

func TestCreateSlot_Rules(t *testing.T) {
	f := newFixture(t)
	prof := f.professional(t, 50000, "COP")
	future := fixtureStart.Add(24 * time.Hour)

	_, err := f.svc.Slot.CreateSlot(f.ctx, prof, prof.ID.String(), &request.CreateSlotRequest{
		StartAt: future, DurationMinutes: 0, Timezone: "UTC",
	})
	require.ErrorIs(t, err, apperror.ErrValidation)

	_, err = f.svc.Slot.CreateSlot(f.ctx, prof, prof.ID.String(), &request.CreateSlotRequest{
		StartAt: fixtureStart.Add(-time.Hour), DurationMinutes: 50, Timezone: "UTC",
	})
	require.ErrorIs(t, err, apperror.ErrValidation)

	other := f.professional(t, 50000, "COP")
	_, err = f.svc.Slot.CreateSlot(f.ctx, other, prof.ID.String(), &request.CreateSlotRequest{
		StartAt: future, DurationMinutes: 50, Timezone: "UTC",
	})
	require.ErrorIs(t, err, apperror.ErrOwnership)

	created, err := f.svc.Slot.CreateSlot(f.ctx, prof, prof.ID.String(), &request.CreateSlotRequest{
		StartAt: future, DurationMinutes: 50, Timezone: "UTC",
	})
	require.NoError(t, err)
	assert.Equal(t, entity.SlotStatusFree, created.Status)

	_, err = f.svc.Slot.CreateSlot(f.ctx, prof, prof.ID.String(), &request.CreateSlotRequest{
		StartAt: future, DurationMinutes: 50, Timezone: "UTC",
	})
	require.ErrorIs(t, err, apperror.ErrConflict)
}

func TestListAvailableSlots_FreeOnlyInRange(t *testing.T) {
	f := newFixture(t)
	prof := f.professional(t, 50000, "COP")

	later := f.slot(t, prof, 72*time.Hour)
	sooner := f.slot(t, prof, 24*time.Hour)
	held := f.slot(t, prof, 48*time.Hour)
	f.slot(t, prof, 60*24*time.Hour)
	f.slot(t, f.professional(t, 1, "COP"), 24*time.Hour)
	f.book(t, f.user(t), prof, held)

	got, err := f.svc.Slot.ListAvailableSlots(f.ctx, prof.ID.String(), &request.ListSlotsRequest{})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, sooner.ID.String(), got[0].ID)
	assert.Equal(t, later.ID.String(), got[1].ID)

	got, err = f.svc.Slot.ListAvailableSlots(f.ctx, prof.ID.String(), &request.ListSlotsRequest{
		From: fixtureStart.Add(48 * time.Hour).Format(time.RFC3339),
		To:   fixtureStart.Add(96 * time.Hour).Format(time.RFC3339),
	})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, later.ID.String(), got[0].ID)

	_, err = f.svc.Slot.ListAvailableSlots(f.ctx, prof.ID.String(), &request.ListSlotsRequest{
		From: "2024-12-10", To: "2024-12-01",
	})
	require.ErrorIs(t, err, apperror.ErrValidation)
}

func TestListAvailableSlots_ClampsRangeToNow(t *testing.T) {
	f := newFixture(t)
	prof := f.professional(t, 50000, "COP")

	f.slot(t, prof, -2*time.Hour)
	upcoming := f.slot(t, prof, 2*time.Hour)
	f.slot(t, prof, 30*time.Hour)

	got, err := f.svc.Slot.ListAvailableSlots(f.ctx, prof.ID.String(), &request.ListSlotsRequest{
		From: fixtureStart.Add(-24 * time.Hour).Format(time.RFC3339),
		To:   fixtureStart.Add(24 * time.Hour).Format(time.RFC3339),
	})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, upcoming.ID.String(), got[0].ID)

	got, err = f.svc.Slot.ListAvailableSlots(f.ctx, prof.ID.String(), &request.ListSlotsRequest{
		From: fixtureStart.Add(-24 * time.Hour).Format(time.RFC3339),
		To:   fixtureStart.Add(-time.Hour).Format(time.RFC3339),
	})
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestSlotTransitions(t *testing.T) {
	f := newFixture(t)
	prof := f.professional(t, 50000, "COP")
	user := uuid.New()
	slot := f.slot(t, prof, 24*time.Hour)

	_, err := f.svc.Slot.ConfirmSlot(f.ctx, slot.ID)
	require.ErrorIs(t, err, apperror.ErrState, "FREE -> BOOKED is not an edge")

	_, err = f.svc.Slot.ReleaseSlot(f.ctx, slot.ID)
	require.ErrorIs(t, err, apperror.ErrState)

	_, err = f.svc.Slot.ReserveSlot(f.ctx, slot.ID, uuid.New(), user)
	require.ErrorIs(t, err, apperror.ErrNotFound, "professional mismatch")

	_, err = f.svc.Slot.ReserveSlot(f.ctx, uuid.New(), prof.ID, user)
	require.ErrorIs(t, err, apperror.ErrNotFound)

	held, err := f.svc.Slot.ReserveSlot(f.ctx, slot.ID, prof.ID, user)
	require.NoError(t, err)
	assert.Equal(t, entity.SlotStatusHeld, held.Status)

	_, err = f.svc.Slot.ReserveSlot(f.ctx, slot.ID, prof.ID, uuid.New())
	require.ErrorIs(t, err, apperror.ErrConflict)

	booked, err := f.svc.Slot.ConfirmSlot(f.ctx, slot.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.SlotStatusBooked, booked.Status)
	assert.Nil(t, booked.HeldBy)

	_, err = f.svc.Slot.ReserveSlot(f.ctx, slot.ID, prof.ID, user)
	require.ErrorIs(t, err, apperror.ErrConflict)

	freed, err := f.svc.Slot.ReleaseSlot(f.ctx, slot.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.SlotStatusFree, freed.Status)

	_, err = f.svc.Slot.GetSlot(f.ctx, uuid.NewString())
	require.ErrorIs(t, err, apperror.ErrNotFound)
}
