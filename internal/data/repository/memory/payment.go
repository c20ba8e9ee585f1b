package memory

import (
	"context"
	"sort"
	"time"

	"mindcare-booking/internal/data/entity"
	"mindcare-booking/pkg/apperror"

	"github.com/google/uuid"
)

type paymentRepo struct {
	s *Store
}

func (r *paymentRepo) Create(ctx context.Context, p *entity.Payment) error {
	defer r.s.lock(ctx)()
	if err := r.s.fault(ctx, "payment.create"); err != nil {
		return err
	}
	r.s.payments[p.ID] = *p
	return nil
}

func (r *paymentRepo) FindByID(ctx context.Context, id uuid.UUID) (*entity.Payment, error) {
	defer r.s.lock(ctx)()
	p, ok := r.s.payments[id]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (r *paymentRepo) FindByProviderPaymentID(ctx context.Context, providerPaymentID string) (*entity.Payment, error) {
	defer r.s.lock(ctx)()
	for _, p := range r.s.payments {
		if p.ProviderPaymentID != nil && *p.ProviderPaymentID == providerPaymentID {
			return &p, nil
		}
	}
	return nil, nil
}

func (r *paymentRepo) FindCompletedByAppointmentID(ctx context.Context, appointmentID uuid.UUID) (*entity.Payment, error) {
	defer r.s.lock(ctx)()
	return r.completed(appointmentID), nil
}

func (r *paymentRepo) ListByAppointmentID(ctx context.Context, appointmentID uuid.UUID) ([]*entity.Payment, error) {
	defer r.s.lock(ctx)()

	out := make([]*entity.Payment, 0)
	for _, p := range r.s.payments {
		if p.AppointmentID == appointmentID {
			out = append(out, &p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r *paymentRepo) SetProviderIntent(ctx context.Context, id uuid.UUID, providerPaymentID, clientSecretHash string, at time.Time) error {
	defer r.s.lock(ctx)()
	if err := r.s.fault(ctx, "payment.set_intent"); err != nil {
		return err
	}

	for _, p := range r.s.payments {
		if p.ID != id && p.ProviderPaymentID != nil && *p.ProviderPaymentID == providerPaymentID {
			return apperror.Conflict("set provider intent", "intent %s is already attached to another payment", providerPaymentID)
		}
	}

	p, ok := r.s.payments[id]
	if !ok {
		return apperror.NotFound("set provider intent", "payment %s not found", id)
	}
	if p.Status != entity.PaymentStatusPending {
		return apperror.State("set provider intent", "payment %s is %s, not PENDING", id, p.Status)
	}
	p.ProviderPaymentID = &providerPaymentID
	p.ClientSecretHash = &clientSecretHash
	p.UpdatedAt = at
	r.s.payments[id] = p
	return nil
}

func (r *paymentRepo) UpdateStatus(ctx context.Context, p *entity.Payment, expected entity.PaymentStatus) (bool, error) {
	defer r.s.lock(ctx)()
	if err := r.s.fault(ctx, "payment.update"); err != nil {
		return false, err
	}

	stored, ok := r.s.payments[p.ID]
	if !ok || stored.Status != expected {
		return false, nil
	}
	if p.Status == entity.PaymentStatusCompleted {
		if other := r.completed(p.AppointmentID); other != nil && other.ID != p.ID {
			return false, apperror.Conflict("update payment", "appointment %s already has a completed payment", p.AppointmentID)
		}
	}

	stored.Status = p.Status
	stored.ProcessedAt = p.ProcessedAt
	stored.FailedAt = p.FailedAt
	stored.RefundedAt = p.RefundedAt
	stored.UpdatedAt = p.UpdatedAt
	r.s.payments[p.ID] = stored
	return true, nil
}

func (r *paymentRepo) completed(appointmentID uuid.UUID) *entity.Payment {
	for _, p := range r.s.payments {
		if p.AppointmentID == appointmentID && p.Status == entity.PaymentStatusCompleted {
			return &p
		}
	}
	return nil
}
