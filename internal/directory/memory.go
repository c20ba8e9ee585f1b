package directory

import (
	"context"
	"sync"

	"mindcare-booking/internal/data/entity"
	"mindcare-booking/pkg/apperror"

	"github.com/google/uuid"
)

// MemoryDirectory is an in-process directory for tests and local runs.
type MemoryDirectory struct {
	mu            sync.RWMutex
	users         map[uuid.UUID]entity.User
	professionals map[uuid.UUID]entity.Professional
	rateErr       error
	rateCalls     int
}

func NewMemoryDirectory() *MemoryDirectory {
	return &MemoryDirectory{
		users:         make(map[uuid.UUID]entity.User),
		professionals: make(map[uuid.UUID]entity.Professional),
	}
}

func (d *MemoryDirectory) AddUser(u entity.User) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.users[u.ID] = u
}

func (d *MemoryDirectory) AddProfessional(p entity.Professional) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.professionals[p.ID] = p
}

// FailRates makes every rate lookup return err until it is reset with nil.
func (d *MemoryDirectory) FailRates(err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.rateErr = err
}

func (d *MemoryDirectory) RateCalls() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.rateCalls
}

func (d *MemoryDirectory) Lookup(_ context.Context, id uuid.UUID) (entity.Identity, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if p, ok := d.professionals[id]; ok {
		return entity.Identity{Kind: entity.KindProfessional, Professional: &p}, nil
	}
	if u, ok := d.users[id]; ok {
		return entity.Identity{Kind: entity.KindUser, User: &u}, nil
	}
	return entity.Identity{}, apperror.NotFound("lookup identity", "no user or professional with id %s", id)
}

func (d *MemoryDirectory) GetProfessionalRate(_ context.Context, professionalID uuid.UUID) (Rate, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.rateCalls++

	if d.rateErr != nil {
		return Rate{}, d.rateErr
	}
	p, ok := d.professionals[professionalID]
	if !ok || !p.Active {
		return Rate{}, apperror.NotFound("get professional rate", "professional %s not found", professionalID)
	}
	return Rate{AmountCents: p.RateCents, Currency: p.Currency}, nil
}

func (d *MemoryDirectory) ProfessionalExists(_ context.Context, professionalID uuid.UUID) (bool, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	p, ok := d.professionals[professionalID]
	return ok && p.Active, nil
}

func (d *MemoryDirectory) UserExists(_ context.Context, userID uuid.UUID) (bool, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	_, ok := d.users[userID]
	return ok, nil
}
