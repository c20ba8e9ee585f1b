package memory

import (
	"context"
	"sort"

	"mindcare-booking/internal/data/entity"
	"mindcare-booking/pkg/apperror"

	"github.com/google/uuid"
)

type appointmentRepo struct {
	s *Store
}

func (r *appointmentRepo) Create(ctx context.Context, a *entity.Appointment) error {
	defer r.s.lock(ctx)()
	if err := r.s.fault(ctx, "appointment.create"); err != nil {
		return err
	}

	if a.Status != entity.AppointmentStatusCancelled {
		for _, existing := range r.s.appointments {
			if existing.SlotID == a.SlotID && existing.Status != entity.AppointmentStatusCancelled {
				return apperror.Conflict("create appointment", "slot %s already has an appointment", a.SlotID)
			}
		}
	}
	r.s.appointments[a.ID] = *a
	return nil
}

func (r *appointmentRepo) FindByID(ctx context.Context, id uuid.UUID) (*entity.Appointment, error) {
	defer r.s.lock(ctx)()
	if err := r.s.fault(ctx, "appointment.find"); err != nil {
		return nil, err
	}
	a, ok := r.s.appointments[id]
	if !ok {
		return nil, nil
	}
	return &a, nil
}

func (r *appointmentRepo) FindActiveBySlotID(ctx context.Context, slotID uuid.UUID) (*entity.Appointment, error) {
	defer r.s.lock(ctx)()
	for _, a := range r.s.appointments {
		if a.SlotID == slotID && a.Status != entity.AppointmentStatusCancelled {
			return &a, nil
		}
	}
	return nil, nil
}

func (r *appointmentRepo) ListByUserID(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*entity.Appointment, error) {
	defer r.s.lock(ctx)()
	return page(r.filter(func(a entity.Appointment) bool { return a.UserID == userID }), limit, offset), nil
}

func (r *appointmentRepo) CountByUserID(ctx context.Context, userID uuid.UUID) (int64, error) {
	defer r.s.lock(ctx)()
	return int64(len(r.filter(func(a entity.Appointment) bool { return a.UserID == userID }))), nil
}

func (r *appointmentRepo) ListByProfessionalID(ctx context.Context, professionalID uuid.UUID, limit, offset int) ([]*entity.Appointment, error) {
	defer r.s.lock(ctx)()
	return page(r.filter(func(a entity.Appointment) bool { return a.ProfessionalID == professionalID }), limit, offset), nil
}

func (r *appointmentRepo) CountByProfessionalID(ctx context.Context, professionalID uuid.UUID) (int64, error) {
	defer r.s.lock(ctx)()
	return int64(len(r.filter(func(a entity.Appointment) bool { return a.ProfessionalID == professionalID }))), nil
}

func (r *appointmentRepo) Update(ctx context.Context, a *entity.Appointment, expected entity.AppointmentStatus) (bool, error) {
	defer r.s.lock(ctx)()
	if err := r.s.fault(ctx, "appointment.update"); err != nil {
		return false, err
	}

	stored, ok := r.s.appointments[a.ID]
	if !ok || stored.Status != expected {
		return false, nil
	}

	stored.Status = a.Status
	stored.Paid = a.Paid
	stored.SessionNotes = a.SessionNotes
	stored.Rating = a.Rating
	stored.Feedback = a.Feedback
	stored.CancelledAt = a.CancelledAt
	stored.CompletedAt = a.CompletedAt
	stored.UpdatedAt = a.UpdatedAt
	r.s.appointments[a.ID] = stored
	return true, nil
}

// filter returns matches ordered by start time, newest first.
func (r *appointmentRepo) filter(keep func(entity.Appointment) bool) []*entity.Appointment {
	out := make([]*entity.Appointment, 0)
	for _, a := range r.s.appointments {
		if keep(a) {
			out = append(out, &a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartTime.After(out[j].StartTime) })
	return out
}

func page[T any](items []T, limit, offset int) []T {
	if offset >= len(items) {
		return items[:0]
	}
	items = items[offset:]
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	return items
}
