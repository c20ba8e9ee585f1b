package entity

import (
	"github.com/google/uuid"
)

type IdentityKind string

const (
	KindUser         IdentityKind = "user"
	KindProfessional IdentityKind = "professional"
)

func (k IdentityKind) Valid() bool {
	return k == KindUser || k == KindProfessional
}

type User struct {
	Base
	FullName string `db:"full_name"`
	Email    string `db:"email"`
}

type Professional struct {
	Base
	FullName  string `db:"full_name"`
	Email     string `db:"email"`
	RateCents int64  `db:"rate_cents"`
	Currency  string `db:"currency"`
	Active    bool   `db:"active"`
}

// Identity is the result of a single directory lookup. Exactly one of User
// and Professional is set, matching Kind.
type Identity struct {
	Kind         IdentityKind
	User         *User
	Professional *Professional
}

func (i Identity) ID() uuid.UUID {
	switch i.Kind {
	case KindUser:
		if i.User != nil {
			return i.User.ID
		}
	case KindProfessional:
		if i.Professional != nil {
			return i.Professional.ID
		}
	}
	return uuid.Nil
}

// Actor is the authenticated caller attached to a request.
type Actor struct {
	ID   uuid.UUID
	Kind IdentityKind
}

func (a Actor) IsUser() bool         { return a.Kind == KindUser }
func (a Actor) IsProfessional() bool { return a.Kind == KindProfessional }
