package repository

import (
	"context"
	"errors"

	"mindcare-booking/pkg/database"

	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"
)

// Transactor groups repository calls into one atomic unit. Calls made with
// the ctx passed to fn share the transaction.
type Transactor interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}

type Repository struct {
	Slot        SlotRepository
	Appointment AppointmentRepository
	Payment     PaymentRepository
	Tx          Transactor
}

func NewRepository(db database.PgxIface, log *zap.Logger) *Repository {
	return &Repository{
		Slot:        NewSlotRepository(db, log),
		Appointment: NewAppointmentRepository(db, log),
		Payment:     NewPaymentRepository(db, log),
		Tx:          database.NewTransactor(db),
	}
}

type rowScanner interface {
	Scan(dest ...any) error
}

const uniqueViolation = "23505"

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}
