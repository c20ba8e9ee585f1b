package response

import (
	"time"

	"mindcare-booking/internal/data/entity"
)

type SlotResponse struct {
	ID              string            `json:"id"`
	ProfessionalID  string            `json:"professional_id"`
	StartAt         time.Time         `json:"start_at"`
	EndAt           time.Time         `json:"end_at"`
	LocalStart      string            `json:"local_start"`
	DurationMinutes int               `json:"duration_minutes"`
	Timezone        string            `json:"timezone"`
	Status          entity.SlotStatus `json:"status"`
	HeldAt          *time.Time        `json:"held_at,omitempty"`
}

func SlotToResponse(s *entity.Slot) SlotResponse {
	local := s.StartAt
	if loc, err := time.LoadLocation(s.Timezone); err == nil {
		local = s.StartAt.In(loc)
	}

	return SlotResponse{
		ID:              s.ID.String(),
		ProfessionalID:  s.ProfessionalID.String(),
		StartAt:         s.StartAt,
		EndAt:           s.EndAt(),
		LocalStart:      local.Format(time.RFC3339),
		DurationMinutes: s.DurationMinutes,
		Timezone:        s.Timezone,
		Status:          s.Status,
		HeldAt:          s.HeldAt,
	}
}

func SlotsToResponse(slots []*entity.Slot) []SlotResponse {
	out := make([]SlotResponse, 0, len(slots))
	for _, s := range slots {
		out = append(out, SlotToResponse(s))
	}
	return out
}
