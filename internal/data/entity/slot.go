package entity

import (
	"time"

	"mindcare-booking/pkg/apperror"

	"github.com/google/uuid"
)

type SlotStatus string

const (
	SlotStatusFree      SlotStatus = "FREE"
	SlotStatusHeld      SlotStatus = "HELD"
	SlotStatusBooked    SlotStatus = "BOOKED"
	SlotStatusCancelled SlotStatus = "CANCELLED"
)

// slotTransitions lists every legal slot edge. CANCELLED has no inbound edge.
var slotTransitions = map[SlotStatus][]SlotStatus{
	SlotStatusFree:   {SlotStatusHeld},
	SlotStatusHeld:   {SlotStatusBooked, SlotStatusFree},
	SlotStatusBooked: {SlotStatusFree},
}

func (s SlotStatus) Valid() bool {
	switch s {
	case SlotStatusFree, SlotStatusHeld, SlotStatusBooked, SlotStatusCancelled:
		return true
	}
	return false
}

func (s SlotStatus) CanTransitionTo(next SlotStatus) bool {
	for _, allowed := range slotTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

type Slot struct {
	Base
	ProfessionalID  uuid.UUID  `db:"professional_id"`
	StartAt         time.Time  `db:"start_at"`
	DurationMinutes int        `db:"duration_minutes"`
	Timezone        string     `db:"timezone"`
	Status          SlotStatus `db:"status"`
	HeldBy          *uuid.UUID `db:"held_by"`
	HeldAt          *time.Time `db:"held_at"`
}

// NewSlot builds a FREE slot. The caller validates duration and timezone.
func NewSlot(professionalID uuid.UUID, startAt time.Time, durationMinutes int, timezone string, now time.Time) *Slot {
	return &Slot{
		Base:            newBase(now),
		ProfessionalID:  professionalID,
		StartAt:         startAt.UTC(),
		DurationMinutes: durationMinutes,
		Timezone:        timezone,
		Status:          SlotStatusFree,
	}
}

func (s *Slot) EndAt() time.Time {
	return s.StartAt.Add(time.Duration(s.DurationMinutes) * time.Minute)
}

// Transition moves the slot along a legal edge. heldBy is recorded only when
// entering HELD and cleared on every other target.
func (s *Slot) Transition(next SlotStatus, heldBy uuid.UUID, at time.Time) error {
	if !s.Status.CanTransitionTo(next) {
		return apperror.State("slot transition", "slot %s cannot move from %s to %s", s.ID, s.Status, next)
	}

	s.Status = next
	s.UpdatedAt = at
	if next == SlotStatusHeld {
		by, heldAt := heldBy, at
		s.HeldBy = &by
		s.HeldAt = &heldAt
	} else {
		s.HeldBy = nil
		s.HeldAt = nil
	}
	return nil
}

// HoldExpired reports whether a HELD slot has outlived ttl at now.
func (s *Slot) HoldExpired(now time.Time, ttl time.Duration) bool {
	return s.Status == SlotStatusHeld && s.HeldAt != nil && !s.HeldAt.Add(ttl).After(now)
}
