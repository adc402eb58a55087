package sessions

import (
	"time"

	"github.com/medflow/medflow-auth/users"
)

// State is the lifecycle state of a session. A session is in exactly one
// state at a time and only the edges in legalEdges are ever taken.
type State string

const (
	StatePendingTwoFactor State = "pending_two_factor"
	StateActive           State = "active"
	StateExpired          State = "expired"
	StateRevoked          State = "revoked"
)

// legalEdges enumerates the permitted state transitions:
//
//	pending_two_factor -> active   (correct, unexpired one-time code)
//	pending_two_factor -> revoked  (attempts exhausted, challenge expired, logout)
//	active             -> expired  (time-driven)
//	active             -> revoked  (explicit logout)
//
// revoked is terminal: no edge leaves it.
var legalEdges = map[State][]State{
	StatePendingTwoFactor: {StateActive, StateRevoked},
	StateActive:           {StateExpired, StateRevoked},
}

// Valid reports whether s is a defined state.
func (s State) Valid() bool {
	switch s {
	case StatePendingTwoFactor, StateActive, StateExpired, StateRevoked:
		return true
	}
	return false
}

// CanTransition reports whether the edge s -> to is legal.
func (s State) CanTransition(to State) bool {
	for _, next := range legalEdges[s] {
		if next == to {
			return true
		}
	}
	return false
}

// Session is a single authenticated browser login. The Store owns every
// Session; other components read snapshots and request mutations through it.
type Session struct {
	ID         string     `json:"session_id"` // Opaque, unguessable token
	UserID     string     `json:"user_id"`
	Role       users.Role `json:"role"` // Captured at issue time for capability lookups
	State      State      `json:"state"`
	IssuedAt   time.Time  `json:"issued_at"`
	ExpiresAt  time.Time  `json:"expires_at"` // Strictly greater than IssuedAt
	LastSeenAt time.Time  `json:"last_seen_at"`
}

// ExpiredAt reports whether the session's deadline has passed at the given
// instant. Expiry is checked lazily at read time rather than by a sweep.
func (s Session) ExpiredAt(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}

// Authorizable reports whether the session may grant module access right now.
// Pending, expired and revoked sessions grant nothing.
func (s Session) Authorizable(now time.Time) bool {
	return s.State == StateActive && !s.ExpiredAt(now)
}
