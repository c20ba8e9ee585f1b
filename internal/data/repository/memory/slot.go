package memory

import (
	"context"
	"sort"
	"time"

	"mindcare-booking/internal/data/entity"
	"mindcare-booking/internal/data/repository"
	"mindcare-booking/pkg/apperror"

	"github.com/google/uuid"
)

type slotRepo struct {
	s *Store
}

func (r *slotRepo) Create(ctx context.Context, slot *entity.Slot) error {
	defer r.s.lock(ctx)()
	return r.create(ctx, slot)
}

func (r *slotRepo) create(ctx context.Context, slot *entity.Slot) error {
	if err := r.s.fault(ctx, "slot.create"); err != nil {
		return err
	}
	for _, existing := range r.s.slots {
		if existing.ProfessionalID == slot.ProfessionalID && existing.StartAt.Equal(slot.StartAt) {
			return apperror.Conflict("create slot", "professional %s already has a slot at %s",
				slot.ProfessionalID, slot.StartAt.Format(time.RFC3339))
		}
	}
	r.s.slots[slot.ID] = *slot
	return nil
}

func (r *slotRepo) CreateBatch(ctx context.Context, slots []*entity.Slot) error {
	defer r.s.lock(ctx)()
	for _, slot := range slots {
		if err := r.create(ctx, slot); err != nil {
			return err
		}
	}
	return nil
}

func (r *slotRepo) FindByID(ctx context.Context, id uuid.UUID) (*entity.Slot, error) {
	defer r.s.lock(ctx)()
	if err := r.s.fault(ctx, "slot.find"); err != nil {
		return nil, err
	}
	slot, ok := r.s.slots[id]
	if !ok {
		return nil, nil
	}
	return &slot, nil
}

func (r *slotRepo) ListAvailable(ctx context.Context, professionalID uuid.UUID, from, to time.Time) ([]*entity.Slot, error) {
	defer r.s.lock(ctx)()

	out := make([]*entity.Slot, 0)
	for _, slot := range r.s.slots {
		if slot.ProfessionalID != professionalID || slot.Status != entity.SlotStatusFree {
			continue
		}
		if slot.StartAt.Before(from) || !slot.StartAt.Before(to) {
			continue
		}
		out = append(out, &slot)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartAt.Before(out[j].StartAt) })
	return out, nil
}

func (r *slotRepo) Hold(ctx context.Context, slotID, professionalID, userID uuid.UUID, at time.Time) (*entity.Slot, error) {
	defer r.s.lock(ctx)()
	if err := r.s.fault(ctx, "slot.hold"); err != nil {
		return nil, err
	}

	slot, ok := r.s.slots[slotID]
	if !ok || slot.ProfessionalID != professionalID || slot.Status != entity.SlotStatusFree {
		return nil, nil
	}
	return r.apply(slot, entity.SlotStatusHeld, userID, at)
}

func (r *slotRepo) Book(ctx context.Context, slotID uuid.UUID, at time.Time) (*entity.Slot, error) {
	defer r.s.lock(ctx)()
	if err := r.s.fault(ctx, "slot.book"); err != nil {
		return nil, err
	}

	slot, ok := r.s.slots[slotID]
	if !ok || slot.Status != entity.SlotStatusHeld {
		return nil, nil
	}
	return r.apply(slot, entity.SlotStatusBooked, uuid.Nil, at)
}

func (r *slotRepo) Release(ctx context.Context, slotID uuid.UUID, at time.Time) (*entity.Slot, error) {
	defer r.s.lock(ctx)()
	if err := r.s.fault(ctx, "slot.release"); err != nil {
		return nil, err
	}

	slot, ok := r.s.slots[slotID]
	if !ok || (slot.Status != entity.SlotStatusHeld && slot.Status != entity.SlotStatusBooked) {
		return nil, nil
	}
	return r.apply(slot, entity.SlotStatusFree, uuid.Nil, at)
}

func (r *slotRepo) ListExpiredHolds(ctx context.Context, cutoff time.Time, after *repository.HoldCursor, limit int) ([]*entity.Slot, error) {
	defer r.s.lock(ctx)()

	out := make([]*entity.Slot, 0)
	for _, slot := range r.s.slots {
		if slot.Status != entity.SlotStatusHeld || slot.HeldAt == nil || slot.HeldAt.After(cutoff) {
			continue
		}
		if after != nil && !after.Before(*slot.HeldAt, slot.ID) {
			continue
		}
		out = append(out, &slot)
	}
	sort.Slice(out, func(i, j int) bool {
		cur := repository.HoldCursor{HeldAt: *out[i].HeldAt, ID: out[i].ID}
		return cur.Before(*out[j].HeldAt, out[j].ID)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *slotRepo) ReleaseExpiredHold(ctx context.Context, slotID uuid.UUID, cutoff, at time.Time) (bool, error) {
	defer r.s.lock(ctx)()

	slot, ok := r.s.slots[slotID]
	if !ok || slot.Status != entity.SlotStatusHeld || slot.HeldAt == nil || slot.HeldAt.After(cutoff) {
		return false, nil
	}
	if _, err := r.apply(slot, entity.SlotStatusFree, uuid.Nil, at); err != nil {
		return false, err
	}
	return true, nil
}

func (r *slotRepo) apply(slot entity.Slot, next entity.SlotStatus, heldBy uuid.UUID, at time.Time) (*entity.Slot, error) {
	if err := slot.Transition(next, heldBy, at); err != nil {
		return nil, err
	}
	r.s.slots[slot.ID] = slot
	return &slot, nil
}
