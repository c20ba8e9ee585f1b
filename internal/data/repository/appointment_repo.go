package repository

import (
	"context"
	"errors"
	"fmt"

	"mindcare-booking/internal/data/entity"
	"mindcare-booking/pkg/apperror"
	"mindcare-booking/pkg/database"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

type AppointmentRepository interface {
	Create(ctx context.Context, appointment *entity.Appointment) error
	FindByID(ctx context.Context, id uuid.UUID) (*entity.Appointment, error)
	// FindActiveBySlotID returns the non-cancelled appointment on a slot.
	FindActiveBySlotID(ctx context.Context, slotID uuid.UUID) (*entity.Appointment, error)
	ListByUserID(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*entity.Appointment, error)
	CountByUserID(ctx context.Context, userID uuid.UUID) (int64, error)
	ListByProfessionalID(ctx context.Context, professionalID uuid.UUID, limit, offset int) ([]*entity.Appointment, error)
	CountByProfessionalID(ctx context.Context, professionalID uuid.UUID) (int64, error)

	// Update persists the mutable fields only if the stored status still
	// equals expected. It reports whether a row was written.
	Update(ctx context.Context, appointment *entity.Appointment, expected entity.AppointmentStatus) (bool, error)
}

type appointmentRepository struct {
	db  database.PgxIface
	log *zap.Logger
}

func NewAppointmentRepository(db database.PgxIface, log *zap.Logger) AppointmentRepository {
	return &appointmentRepository{
		db:  db,
		log: log.With(zap.String("repository", "appointment")),
	}
}

const appointmentColumns = `id, user_id, professional_id, slot_id, start_time, end_time, status, paid,
	payment_amount_cents, payment_currency, session_notes, rating, feedback,
	cancelled_at, completed_at, created_at, updated_at`

func scanAppointment(row rowScanner) (*entity.Appointment, error) {
	var a entity.Appointment
	err := row.Scan(
		&a.ID,
		&a.UserID,
		&a.ProfessionalID,
		&a.SlotID,
		&a.StartTime,
		&a.EndTime,
		&a.Status,
		&a.Paid,
		&a.PaymentAmountCents,
		&a.PaymentCurrency,
		&a.SessionNotes,
		&a.Rating,
		&a.Feedback,
		&a.CancelledAt,
		&a.CompletedAt,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *appointmentRepository) Create(ctx context.Context, a *entity.Appointment) error {
	query := `
		INSERT INTO appointments (` + appointmentColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
	`

	_, err := database.Executor(ctx, r.db).Exec(ctx, query,
		a.ID,
		a.UserID,
		a.ProfessionalID,
		a.SlotID,
		a.StartTime,
		a.EndTime,
		a.Status,
		a.Paid,
		a.PaymentAmountCents,
		a.PaymentCurrency,
		a.SessionNotes,
		a.Rating,
		a.Feedback,
		a.CancelledAt,
		a.CompletedAt,
		a.CreatedAt,
		a.UpdatedAt,
	)
	if isUniqueViolation(err) {
		return apperror.Conflict("create appointment", "slot %s already has an appointment", a.SlotID)
	}
	if err != nil {
		r.log.Error("Failed to create appointment",
			zap.Error(err),
			zap.String("user_id", a.UserID.String()),
			zap.String("slot_id", a.SlotID.String()),
		)
		return fmt.Errorf("create appointment for slot %s: %w", a.SlotID, err)
	}

	return nil
}

func (r *appointmentRepository) FindByID(ctx context.Context, id uuid.UUID) (*entity.Appointment, error) {
	query := `SELECT ` + appointmentColumns + ` FROM appointments WHERE id = $1`
	return r.findOne(ctx, "find appointment by ID", id, query, id)
}

func (r *appointmentRepository) FindActiveBySlotID(ctx context.Context, slotID uuid.UUID) (*entity.Appointment, error) {
	query := `SELECT ` + appointmentColumns + ` FROM appointments WHERE slot_id = $1 AND status <> 'CANCELLED'`
	return r.findOne(ctx, "find appointment by slot", slotID, query, slotID)
}

func (r *appointmentRepository) ListByUserID(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*entity.Appointment, error) {
	query := `
		SELECT ` + appointmentColumns + `
		FROM appointments
		WHERE user_id = $1
		ORDER BY start_time DESC
		LIMIT $2 OFFSET $3
	`
	return r.list(ctx, "list appointments by user", query, userID, limit, offset)
}

func (r *appointmentRepository) CountByUserID(ctx context.Context, userID uuid.UUID) (int64, error) {
	return r.count(ctx, `SELECT COUNT(*) FROM appointments WHERE user_id = $1`, userID)
}

func (r *appointmentRepository) ListByProfessionalID(ctx context.Context, professionalID uuid.UUID, limit, offset int) ([]*entity.Appointment, error) {
	query := `
		SELECT ` + appointmentColumns + `
		FROM appointments
		WHERE professional_id = $1
		ORDER BY start_time DESC
		LIMIT $2 OFFSET $3
	`
	return r.list(ctx, "list appointments by professional", query, professionalID, limit, offset)
}

func (r *appointmentRepository) CountByProfessionalID(ctx context.Context, professionalID uuid.UUID) (int64, error) {
	return r.count(ctx, `SELECT COUNT(*) FROM appointments WHERE professional_id = $1`, professionalID)
}

func (r *appointmentRepository) Update(ctx context.Context, a *entity.Appointment, expected entity.AppointmentStatus) (bool, error) {
	query := `
		UPDATE appointments
		SET status = $3, paid = $4, session_notes = $5, rating = $6, feedback = $7,
		    cancelled_at = $8, completed_at = $9, updated_at = $10
		WHERE id = $1 AND status = $2
	`

	tag, err := database.Executor(ctx, r.db).Exec(ctx, query,
		a.ID,
		expected,
		a.Status,
		a.Paid,
		a.SessionNotes,
		a.Rating,
		a.Feedback,
		a.CancelledAt,
		a.CompletedAt,
		a.UpdatedAt,
	)
	if err != nil {
		r.log.Error("Failed to update appointment",
			zap.Error(err),
			zap.String("appointment_id", a.ID.String()),
			zap.String("status", string(a.Status)),
		)
		return false, fmt.Errorf("update appointment %s: %w", a.ID, err)
	}

	return tag.RowsAffected() == 1, nil
}

func (r *appointmentRepository) findOne(ctx context.Context, op string, id uuid.UUID, query string, args ...any) (*entity.Appointment, error) {
	a, err := scanAppointment(database.Executor(ctx, r.db).QueryRow(ctx, query, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		r.log.Error("Failed to "+op, zap.Error(err), zap.String("id", id.String()))
		return nil, fmt.Errorf("%s %s: %w", op, id, err)
	}
	return a, nil
}

func (r *appointmentRepository) list(ctx context.Context, op, query string, args ...any) ([]*entity.Appointment, error) {
	rows, err := database.Executor(ctx, r.db).Query(ctx, query, args...)
	if err != nil {
		r.log.Error("Failed to "+op, zap.Error(err))
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	appointments := make([]*entity.Appointment, 0)
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, fmt.Errorf("%s scan: %w", op, err)
		}
		appointments = append(appointments, a)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s rows: %w", op, err)
	}

	return appointments, nil
}

func (r *appointmentRepository) count(ctx context.Context, query string, id uuid.UUID) (int64, error) {
	var total int64
	if err := database.Executor(ctx, r.db).QueryRow(ctx, query, id).Scan(&total); err != nil {
		r.log.Error("Failed to count appointments", zap.Error(err), zap.String("id", id.String()))
		return 0, fmt.Errorf("count appointments for %s: %w", id, err)
	}
	return total, nil
}
