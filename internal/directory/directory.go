// Package directory resolves users and professionals for the booking core
// and prices sessions at the professional's current rate.
package directory

import (
	"context"

	"mindcare-booking/internal/data/entity"

	"github.com/google/uuid"
)

type Rate struct {
	AmountCents int64
	Currency    string
}

type Directory interface {
	// Lookup resolves id once into a tagged identity. Unknown ids fail with
	// apperror.ErrNotFound.
	Lookup(ctx context.Context, id uuid.UUID) (entity.Identity, error)
	GetProfessionalRate(ctx context.Context, professionalID uuid.UUID) (Rate, error)
	ProfessionalExists(ctx context.Context, professionalID uuid.UUID) (bool, error)
	UserExists(ctx context.Context, userID uuid.UUID) (bool, error)
}
