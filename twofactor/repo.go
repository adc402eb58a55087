package twofactor

import (
	"context"
	"errors"
)

// ErrNotFound is returned when no challenge exists for the session id.
var ErrNotFound = errors.New("challenge not found")

// Repo stores at most one challenge per pending session.
type Repo interface {
	// Put creates or replaces the challenge for its session.
	Put(ctx context.Context, challenge Challenge) error

	// Get returns the challenge for the session, or ErrNotFound.
	Get(ctx context.Context, sessionID string) (Challenge, error)

	// DecrementAttempts consumes one failed attempt and returns how many
	// remain. Never goes below zero.
	DecrementAttempts(ctx context.Context, sessionID string) (int, error)

	// Delete destroys the challenge. Deleting a missing challenge is not an
	// error.
	Delete(ctx context.Context, sessionID string) error
}
