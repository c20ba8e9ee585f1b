package entity

import (
	"testing"
	"time"

	"mindcare-booking/pkg/apperror"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSlotStatus_Transitions(t *testing.T) {
	all := []SlotStatus{SlotStatusFree, SlotStatusHeld, SlotStatusBooked, SlotStatusCancelled}
	legal := map[[2]SlotStatus]bool{
		{SlotStatusFree, SlotStatusHeld}:   true,
		{SlotStatusHeld, SlotStatusBooked}: true,
		{SlotStatusHeld, SlotStatusFree}:   true,
		{SlotStatusBooked, SlotStatusFree}: true,
	}

	for _, from := range all {
		for _, to := range all {
			assert.Equal(t, legal[[2]SlotStatus{from, to}], from.CanTransitionTo(to), "%s -> %s", from, to)
		}
	}
}

func TestSlot_TransitionTracksHolder(t *testing.T) {
	now := time.Date(2024, 12, 1, 9, 0, 0, 0, time.UTC)
	slot := NewSlot(uuid.New(), now.Add(24*time.Hour), 60, "America/Bogota", now)
	user := uuid.New()

	require.NoError(t, slot.Transition(SlotStatusHeld, user, now))
	require.NotNil(t, slot.HeldBy)
	assert.Equal(t, user, *slot.HeldBy)
	assert.Equal(t, now, *slot.HeldAt)

	require.NoError(t, slot.Transition(SlotStatusBooked, uuid.Nil, now))
	assert.Nil(t, slot.HeldBy)
	assert.Nil(t, slot.HeldAt)

	err := slot.Transition(SlotStatusHeld, user, now)
	require.ErrorIs(t, err, apperror.ErrState)
	assert.Equal(t, SlotStatusBooked, slot.Status)

	require.NoError(t, slot.Transition(SlotStatusFree, uuid.Nil, now))
	assert.Equal(t, SlotStatusFree, slot.Status)
}

func TestSlot_HoldExpired(t *testing.T) {
	now := time.Date(2024, 12, 1, 9, 0, 0, 0, time.UTC)
	slot := NewSlot(uuid.New(), now.Add(time.Hour), 30, "UTC", now)
	assert.False(t, slot.HoldExpired(now.Add(time.Hour), 15*time.Minute))

	require.NoError(t, slot.Transition(SlotStatusHeld, uuid.New(), now))
	assert.False(t, slot.HoldExpired(now.Add(14*time.Minute), 15*time.Minute))
	assert.True(t, slot.HoldExpired(now.Add(15*time.Minute), 15*time.Minute))
	assert.Equal(t, now.Add(time.Hour+30*time.Minute), slot.EndAt())
}
