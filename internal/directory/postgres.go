package directory

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

type PostgresDirectory struct {
	db  database.PgxIface
	log *zap.Logger
}

func NewPostgresDirectory(db database.PgxIface, log *zap.Logger) *PostgresDirectory {
	return &PostgresDirectory{
		db:  db,
		log: log.With(zap.String("repository", "directory")),
	}
}

func (d *PostgresDirectory) Lookup(ctx context.Context, id uuid.UUID) (entity.Identity, error) {
	query := `
		SELECT 'professional', id, full_name, email, rate_cents, currency::text, active, created_at, updated_at
		FROM professionals WHERE id = $1
		UNION ALL
		SELECT 'user', id, full_name, email, 0, '', TRUE, created_at, updated_at
		FROM users WHERE id = $1
		LIMIT 1
	`

	var (
		kind string
		p    entity.Professional
	)
	err := database.Executor(ctx, d.db).QueryRow(ctx, query, id).Scan(
		&kind, &p.ID, &p.FullName, &p.Email, &p.RateCents, &p.Currency, &p.Active, &p.CreatedAt, &p.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return entity.Identity{}, apperror.NotFound("lookup identity", "no user or professional with id %s", id)
	}
	if err != nil {
		d.log.Error("Failed to lookup identity", zap.Error(err), zap.String("id", id.String()))
		return entity.Identity{}, fmt.Errorf("lookup identity %s: %w", id, err)
	}

	if entity.IdentityKind(kind) == entity.KindProfessional {
		return entity.Identity{Kind: entity.KindProfessional, Professional: &p}, nil
	}
	return entity.Identity{
		Kind: entity.KindUser,
		User: &entity.User{Base: p.Base, FullName: p.FullName, Email: p.Email},
	}, nil
}

func (d *PostgresDirectory) GetProfessionalRate(ctx context.Context, professionalID uuid.UUID) (Rate, error) {
	query := `SELECT rate_cents, currency FROM professionals WHERE id = $1 AND active`

	var rate Rate
	err := database.Executor(ctx, d.db).QueryRow(ctx, query, professionalID).Scan(&rate.AmountCents, &rate.Currency)
	if errors.Is(err, pgx.ErrNoRows) {
		return Rate{}, apperror.NotFound("get professional rate", "professional %s not found", professionalID)
	}
	if err != nil {
		d.log.Error("Failed to get professional rate", zap.Error(err), zap.String("professional_id", professionalID.String()))
		return Rate{}, fmt.Errorf("get rate for professional %s: %w", professionalID, err)
	}

	return rate, nil
}

func (d *PostgresDirectory) ProfessionalExists(ctx context.Context, professionalID uuid.UUID) (bool, error) {
	return d.exists(ctx, `SELECT EXISTS (SELECT 1 FROM professionals WHERE id = $1 AND active)`, professionalID)
}

func (d *PostgresDirectory) UserExists(ctx context.Context, userID uuid.UUID) (bool, error) {
	return d.exists(ctx, `SELECT EXISTS (SELECT 1 FROM users WHERE id = $1)`, userID)
}

func (d *PostgresDirectory) exists(ctx context.Context, query string, id uuid.UUID) (bool, error) {
	var ok bool
	if err := database.Executor(ctx, d.db).QueryRow(ctx, query, id).Scan(&ok); err != nil {
		d.log.Error("Failed to check existence", zap.Error(err), zap.String("id", id.String()))
		return false, fmt.Errorf("check existence of %s: %w", id, err)
	}
	return ok, nil
}
