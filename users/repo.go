package users

import (
	"errors"
	"time"
)

// ErrNotFound is returned by repositories when no user matches the lookup.
var ErrNotFound = errors.New("user not found")

// UserRepo is the account store consumed by the auth service. Users are never
// physically deleted; deactivation (SetActive false) preserves the audit
// trail.
type UserRepo interface {
	Upsert(user *User) error
	GetByEmail(email string) (*User, error)
	GetByID(id string) (*User, error)
	List(offset, limit int) ([]*User, error)
	SetActive(email string, active bool) error
	SetVerified(email string, verified bool) error
	SetTwoFactor(email string, enabled bool) error
	SetLastLogin(email string, at time.Time) error
}
