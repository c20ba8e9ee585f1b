package request

import "time"

type CreateSlotRequest struct {
	StartAt         time.Time `json:"start_at" validate:"required"`
	DurationMinutes int       `json:"duration_minutes" validate:"gt=0,max=480"`
	Timezone        string    `json:"timezone" validate:"required,timezone"`
}

// CreateBulkSlotsRequest expands to one slot per (date, time) pair. Dates are
// inclusive and times are wall clock in Timezone.
type CreateBulkSlotsRequest struct {
	StartDate       string   `json:"start_date" validate:"required,datetime=2006-01-02"`
	EndDate         string   `json:"end_date" validate:"required,datetime=2006-01-02"`
	TimeSlots       []string `json:"time_slots" validate:"required,min=1,dive,datetime=15:04"`
	DurationMinutes int      `json:"duration_minutes" validate:"gt=0,max=480"`
	Timezone        string   `json:"timezone" validate:"required,timezone"`
}

type ListSlotsRequest struct {
	From string
	To   string
}
