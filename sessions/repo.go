package sessions

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound is returned when no session exists for the given id,
	// including after a purge. Distinct from ErrExpired so callers can show
	// "please log in again" rather than "session not found".
	ErrNotFound = errors.New("session not found")

	// ErrIllegalTransition is returned when a requested state change is not a
	// legal edge of the session state machine. The stored state is unchanged.
	ErrIllegalTransition = errors.New("illegal session state transition")
)

// Store is the single source of truth for session state. Implementations
// must serialize concurrent Transition calls on the same session id (state
// changes are atomic, no lost updates) while operations on distinct ids do
// not block each other. Reads return value snapshots.
//
// Stores apply expiry lazily: a Get or Transition that observes an active
// session past its deadline records the active -> expired edge first.
type Store interface {
	// Create persists a new session. The id must be unused.
	Create(ctx context.Context, session Session) error

	// Get returns a snapshot of the session, or ErrNotFound.
	Get(ctx context.Context, sessionID string) (Session, error)

	// Touch updates LastSeenAt on an existing session.
	Touch(ctx context.Context, sessionID string, at time.Time) error

	// Transition moves the session to a new state, enforcing legal edges
	// only, and returns the resulting snapshot. Illegal edges fail with
	// ErrIllegalTransition and leave the state unchanged.
	Transition(ctx context.Context, sessionID string, to State) (Session, error)

	// Revoke is an idempotent helper for logout: revoking an already revoked
	// or expired session is a no-op, an unknown id returns ErrNotFound.
	Revoke(ctx context.Context, sessionID string) error

	// PurgeExpired removes sessions whose deadline passed before now and
	// returns how many were removed. Routine housekeeping, never on the
	// request path.
	PurgeExpired(ctx context.Context, now time.Time) (int, error)
}
