package repository

import (
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

type PaymentRepository interface {
	Create(ctx context.Context, payment *entity.Payment) error
	FindByID(ctx context.Context, id uuid.UUID) (*entity.Payment, error)
	FindByProviderPaymentID(ctx context.Context, providerPaymentID string) (*entity.Payment, error)
	FindCompletedByAppointmentID(ctx context.Context, appointmentID uuid.UUID) (*entity.Payment, error)
	ListByAppointmentID(ctx context.Context, appointmentID uuid.UUID) ([]*entity.Payment, error)
	SetProviderIntent(ctx context.Context, id uuid.UUID, providerPaymentID, clientSecretHash string, at time.Time) error

	// UpdateStatus writes status and its timestamps only if the stored status
	// still equals expected.
	UpdateStatus(ctx context.Context, payment *entity.Payment, expected entity.PaymentStatus) (bool, error)
}

type paymentRepository struct {
	db  database.PgxIface
	log *zap.Logger
}

func NewPaymentRepository(db database.PgxIface, log *zap.Logger) PaymentRepository {
	return &paymentRepository{
		db:  db,
		log: log.With(zap.String("repository", "payment")),
	}
}

const paymentColumns = `id, appointment_id, user_id, amount_cents, currency, provider, status,
	provider_payment_id, client_secret_hash, processed_at, failed_at, refunded_at, created_at, updated_at`

func scanPayment(row rowScanner) (*entity.Payment, error) {
	var p entity.Payment
	err := row.Scan(
		&p.ID,
		&p.AppointmentID,
		&p.UserID,
		&p.AmountCents,
		&p.Currency,
		&p.Provider,
		&p.Status,
		&p.ProviderPaymentID,
		&p.ClientSecretHash,
		&p.ProcessedAt,
		&p.FailedAt,
		&p.RefundedAt,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *paymentRepository) Create(ctx context.Context, p *entity.Payment) error {
	query := `
		INSERT INTO payments (` + paymentColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`

	_, err := database.Executor(ctx, r.db).Exec(ctx, query,
		p.ID,
		p.AppointmentID,
		p.UserID,
		p.AmountCents,
		p.Currency,
		p.Provider,
		p.Status,
		p.ProviderPaymentID,
		p.ClientSecretHash,
		p.ProcessedAt,
		p.FailedAt,
		p.RefundedAt,
		p.CreatedAt,
		p.UpdatedAt,
	)
	if err != nil {
		r.log.Error("Failed to create payment",
			zap.Error(err),
			zap.String("appointment_id", p.AppointmentID.String()),
		)
		return fmt.Errorf("create payment for appointment %s: %w", p.AppointmentID, err)
	}

	return nil
}

func (r *paymentRepository) FindByID(ctx context.Context, id uuid.UUID) (*entity.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE id = $1`
	return r.findOne(ctx, "find payment by ID", query, id)
}

func (r *paymentRepository) FindByProviderPaymentID(ctx context.Context, providerPaymentID string) (*entity.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE provider_payment_id = $1`
	return r.findOne(ctx, "find payment by provider ID", query, providerPaymentID)
}

func (r *paymentRepository) FindCompletedByAppointmentID(ctx context.Context, appointmentID uuid.UUID) (*entity.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE appointment_id = $1 AND status = 'COMPLETED'`
	return r.findOne(ctx, "find completed payment", query, appointmentID)
}

func (r *paymentRepository) ListByAppointmentID(ctx context.Context, appointmentID uuid.UUID) ([]*entity.Payment, error) {
	query := `
		SELECT ` + paymentColumns + `
		FROM payments
		WHERE appointment_id = $1
		ORDER BY created_at DESC
	`

	rows, err := database.Executor(ctx, r.db).Query(ctx, query, appointmentID)
	if err != nil {
		r.log.Error("Failed to list payments", zap.Error(err), zap.String("appointment_id", appointmentID.String()))
		return nil, fmt.Errorf("list payments for appointment %s: %w", appointmentID, err)
	}
	defer rows.Close()

	payments := make([]*entity.Payment, 0)
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, fmt.Errorf("scan payment: %w", err)
		}
		payments = append(payments, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list payments rows: %w", err)
	}

	return payments, nil
}

func (r *paymentRepository) SetProviderIntent(ctx context.Context, id uuid.UUID, providerPaymentID, clientSecretHash string, at time.Time) error {
	query := `
		UPDATE payments
		SET provider_payment_id = $2, client_secret_hash = $3, updated_at = $4
		WHERE id = $1 AND status = 'PENDING'
	`

	tag, err := database.Executor(ctx, r.db).Exec(ctx, query, id, providerPaymentID, clientSecretHash, at)
	if isUniqueViolation(err) {
		return apperror.Conflict("set provider intent", "intent %s is already attached to another payment", providerPaymentID)
	}
	if err != nil {
		r.log.Error("Failed to set provider intent", zap.Error(err), zap.String("payment_id", id.String()))
		return fmt.Errorf("set provider intent for payment %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return apperror.State("set provider intent", "payment %s is missing or no longer PENDING", id)
	}

	return nil
}

func (r *paymentRepository) UpdateStatus(ctx context.Context, p *entity.Payment, expected entity.PaymentStatus) (bool, error) {
	query := `
		UPDATE payments
		SET status = $3, processed_at = $4, failed_at = $5, refunded_at = $6, updated_at = $7
		WHERE id = $1 AND status = $2
	`

	tag, err := database.Executor(ctx, r.db).Exec(ctx, query,
		p.ID,
		expected,
		p.Status,
		p.ProcessedAt,
		p.FailedAt,
		p.RefundedAt,
		p.UpdatedAt,
	)
	if isUniqueViolation(err) {
		return false, apperror.Conflict("update payment", "appointment %s already has a completed payment", p.AppointmentID)
	}
	if err != nil {
		r.log.Error("Failed to update payment status",
			zap.Error(err),
			zap.String("payment_id", p.ID.String()),
			zap.String("status", string(p.Status)),
		)
		return false, fmt.Errorf("update payment %s status: %w", p.ID, err)
	}

	return tag.RowsAffected() == 1, nil
}

func (r *paymentRepository) findOne(ctx context.Context, op, query string, arg any) (*entity.Payment, error) {
	p, err := scanPayment(database.Executor(ctx, r.db).QueryRow(ctx, query, arg))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		r.log.Error("Failed to "+op, zap.Error(err), zap.Any("key", arg))
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return p, nil
}
