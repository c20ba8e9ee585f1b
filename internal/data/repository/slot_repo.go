package repository

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"mindcare-booking/internal/data/entity"
	"mindcare-booking/pkg/apperror"
	"mindcare-booking/pkg/database"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

type SlotRepository interface {
	Create(ctx context.Context, slot *entity.Slot) error
	CreateBatch(ctx context.Context, slots []*entity.Slot) error
	FindByID(ctx context.Context, id uuid.UUID) (*entity.Slot, error)
	ListAvailable(ctx context.Context, professionalID uuid.UUID, from, to time.Time) ([]*entity.Slot, error)

	// Hold flips FREE -> HELD in a single conditional update. It returns
	// nil, nil when the slot is missing, owned by another professional or
	// not FREE.
	Hold(ctx context.Context, slotID, professionalID, userID uuid.UUID, at time.Time) (*entity.Slot, error)
	// Book flips HELD -> BOOKED, returning nil, nil if the slot was not HELD.
	Book(ctx context.Context, slotID uuid.UUID, at time.Time) (*entity.Slot, error)
	// Release flips HELD or BOOKED -> FREE, returning nil, nil otherwise.
	Release(ctx context.Context, slotID uuid.UUID, at time.Time) (*entity.Slot, error)

	// ListExpiredHolds pages through holds taken at or before cutoff in
	// (held_at, id) order, starting strictly after the cursor when one is
	// given.
	ListExpiredHolds(ctx context.Context, cutoff time.Time, after *HoldCursor, limit int) ([]*entity.Slot, error)
	// ReleaseExpiredHold frees the slot only if it is still HELD by a hold
	// taken at or before cutoff.
	ReleaseExpiredHold(ctx context.Context, slotID uuid.UUID, cutoff, at time.Time) (bool, error)
}

// HoldCursor marks the last hold returned by ListExpiredHolds.
type HoldCursor struct {
	HeldAt time.Time
	ID     uuid.UUID
}

// Before reports whether the cursor sorts before the hold (heldAt, id).
func (c HoldCursor) Before(heldAt time.Time, id uuid.UUID) bool {
	if !c.HeldAt.Equal(heldAt) {
		return c.HeldAt.Before(heldAt)
	}
	return bytes.Compare(c.ID[:], id[:]) < 0
}

type slotRepository struct {
	db  database.PgxIface
	log *zap.Logger
}

func NewSlotRepository(db database.PgxIface, log *zap.Logger) SlotRepository {
	return &slotRepository{
		db:  db,
		log: log.With(zap.String("repository", "slot")),
	}
}

const slotColumns = `id, professional_id, start_at, duration_minutes, timezone, status, held_by, held_at, created_at, updated_at`

func scanSlot(row rowScanner) (*entity.Slot, error) {
	var slot entity.Slot
	err := row.Scan(
		&slot.ID,
		&slot.ProfessionalID,
		&slot.StartAt,
		&slot.DurationMinutes,
		&slot.Timezone,
		&slot.Status,
		&slot.HeldBy,
		&slot.HeldAt,
		&slot.CreatedAt,
		&slot.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	slot.StartAt = slot.StartAt.UTC()
	return &slot, nil
}

func (r *slotRepository) Create(ctx context.Context, slot *entity.Slot) error {
	query := `
		INSERT INTO slots (` + slotColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	_, err := database.Executor(ctx, r.db).Exec(ctx, query,
		slot.ID,
		slot.ProfessionalID,
		slot.StartAt,
		slot.DurationMinutes,
		slot.Timezone,
		slot.Status,
		slot.HeldBy,
		slot.HeldAt,
		slot.CreatedAt,
		slot.UpdatedAt,
	)
	if isUniqueViolation(err) {
		return apperror.Conflict("create slot", "professional %s already has a slot at %s",
			slot.ProfessionalID, slot.StartAt.Format(time.RFC3339))
	}
	if err != nil {
		r.log.Error("Failed to create slot",
			zap.Error(err),
			zap.String("professional_id", slot.ProfessionalID.String()),
		)
		return fmt.Errorf("create slot %s: %w", slot.ID, err)
	}

	return nil
}

// CreateBatch inserts slots in order. Callers wrap it in a transaction to get
// all-or-nothing behaviour.
func (r *slotRepository) CreateBatch(ctx context.Context, slots []*entity.Slot) error {
	for _, slot := range slots {
		if err := r.Create(ctx, slot); err != nil {
			return err
		}
	}
	return nil
}

func (r *slotRepository) FindByID(ctx context.Context, id uuid.UUID) (*entity.Slot, error) {
	query := `SELECT ` + slotColumns + ` FROM slots WHERE id = $1`

	slot, err := scanSlot(database.Executor(ctx, r.db).QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		r.log.Error("Failed to find slot by ID", zap.Error(err), zap.String("slot_id", id.String()))
		return nil, fmt.Errorf("find slot by ID %s: %w", id, err)
	}

	return slot, nil
}

func (r *slotRepository) ListAvailable(ctx context.Context, professionalID uuid.UUID, from, to time.Time) ([]*entity.Slot, error) {
	query := `
		SELECT ` + slotColumns + `
		FROM slots
		WHERE professional_id = $1
		  AND status = 'FREE'
		  AND start_at >= $2
		  AND start_at < $3
		ORDER BY start_at ASC
	`

	return r.list(ctx, "list available slots", query, professionalID, from, to)
}

func (r *slotRepository) Hold(ctx context.Context, slotID, professionalID, userID uuid.UUID, at time.Time) (*entity.Slot, error) {
	query := `
		UPDATE slots
		SET status = 'HELD', held_by = $3, held_at = $4, updated_at = $4
		WHERE id = $1 AND professional_id = $2 AND status = 'FREE'
		RETURNING ` + slotColumns

	return r.updateOne(ctx, "hold slot", slotID, query, slotID, professionalID, userID, at)
}

func (r *slotRepository) Book(ctx context.Context, slotID uuid.UUID, at time.Time) (*entity.Slot, error) {
	query := `
		UPDATE slots
		SET status = 'BOOKED', held_by = NULL, held_at = NULL, updated_at = $2
		WHERE id = $1 AND status = 'HELD'
		RETURNING ` + slotColumns

	return r.updateOne(ctx, "book slot", slotID, query, slotID, at)
}

func (r *slotRepository) Release(ctx context.Context, slotID uuid.UUID, at time.Time) (*entity.Slot, error) {
	query := `
		UPDATE slots
		SET status = 'FREE', held_by = NULL, held_at = NULL, updated_at = $2
		WHERE id = $1 AND status IN ('HELD', 'BOOKED')
		RETURNING ` + slotColumns

	return r.updateOne(ctx, "release slot", slotID, query, slotID, at)
}

func (r *slotRepository) ListExpiredHolds(ctx context.Context, cutoff time.Time, after *HoldCursor, limit int) ([]*entity.Slot, error) {
	if after == nil {
		query := `
			SELECT ` + slotColumns + `
			FROM slots
			WHERE status = 'HELD' AND held_at <= $1
			ORDER BY held_at ASC, id ASC
			LIMIT $2
		`
		return r.list(ctx, "list expired holds", query, cutoff, limit)
	}

	query := `
		SELECT ` + slotColumns + `
		FROM slots
		WHERE status = 'HELD' AND held_at <= $1 AND (held_at, id) > ($2, $3)
		ORDER BY held_at ASC, id ASC
		LIMIT $4
	`
	return r.list(ctx, "list expired holds", query, cutoff, after.HeldAt, after.ID, limit)
}

func (r *slotRepository) ReleaseExpiredHold(ctx context.Context, slotID uuid.UUID, cutoff, at time.Time) (bool, error) {
	query := `
		UPDATE slots
		SET status = 'FREE', held_by = NULL, held_at = NULL, updated_at = $3
		WHERE id = $1 AND status = 'HELD' AND held_at <= $2
	`

	tag, err := database.Executor(ctx, r.db).Exec(ctx, query, slotID, cutoff, at)
	if err != nil {
		r.log.Error("Failed to release expired hold", zap.Error(err), zap.String("slot_id", slotID.String()))
		return false, fmt.Errorf("release expired hold %s: %w", slotID, err)
	}

	return tag.RowsAffected() == 1, nil
}

func (r *slotRepository) updateOne(ctx context.Context, op string, slotID uuid.UUID, query string, args ...any) (*entity.Slot, error) {
	slot, err := scanSlot(database.Executor(ctx, r.db).QueryRow(ctx, query, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		r.log.Error("Failed to "+op, zap.Error(err), zap.String("slot_id", slotID.String()))
		return nil, fmt.Errorf("%s %s: %w", op, slotID, err)
	}

	return slot, nil
}

func (r *slotRepository) list(ctx context.Context, op, query string, args ...any) ([]*entity.Slot, error) {
	rows, err := database.Executor(ctx, r.db).Query(ctx, query, args...)
	if err != nil {
		r.log.Error("Failed to "+op, zap.Error(err))
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	slots := make([]*entity.Slot, 0)
	for rows.Next() {
		slot, err := scanSlot(rows)
		if err != nil {
			return nil, fmt.Errorf("%s scan: %w", op, err)
		}
		slots = append(slots, slot)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s rows: %w", op, err)
	}

	return slots, nil
}
