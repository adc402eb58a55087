// Package audit records an append-only trail of authentication events.
// Accounts are soft-deactivated rather than deleted so this trail stays
// meaningful over time.
package audit

import (
	"context"
	mathrand "math/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"
)

// Event types recorded by the auth service.
const (
	EventLoginSucceeded     = "login_succeeded"
	EventLoginFailed        = "login_failed"
	EventLoginPendingCode   = "login_pending_two_factor"
	EventTwoFactorSucceeded = "two_factor_succeeded"
	EventTwoFactorFailed    = "two_factor_failed"
	EventSessionRevoked     = "session_revoked"
	EventLogout             = "logout"
	EventUserRegistered     = "user_registered"
)

// Event is one audit trail entry.
type Event struct {
	ID        string    `json:"id"`
	At        time.Time `json:"at"`
	Type      string    `json:"type"`
	UserID    string    `json:"user_id,omitempty"`
	SessionID string    `json:"session_id,omitempty"`
	RemoteIP  string    `json:"remote_ip,omitempty"`
	Detail    string    `json:"detail,omitempty"`
}

// Sink persists events. Recording must never fail a login, so sink errors
// are logged and swallowed.
type Sink interface {
	Insert(ctx context.Context, event Event) error
}

var (
	entropyMu sync.Mutex
	entropy   = ulid.Monotonic(mathrand.New(mathrand.NewSource(time.Now().UnixNano())), 0)
)

func newEventID(at time.Time) string {
	entropyMu.Lock()
	defer entropyMu.Unlock()
	return ulid.MustNew(ulid.Timestamp(at), entropy).String()
}

// Trail writes events to a structured log and, when configured, to a sink.
type Trail struct {
	log     zerolog.Logger
	sink    Sink
	nowTime func() time.Time
}

// Option modifies the Trail instance.
type Option func(*Trail)

// WithSink adds a persistent sink alongside the log.
func WithSink(sink Sink) Option {
	return func(t *Trail) {
		t.sink = sink
	}
}

// WithNowTime sets the now time function (primarily for testing).
func WithNowTime(nowFunc func() time.Time) Option {
	return func(t *Trail) {
		t.nowTime = nowFunc
	}
}

func New(log zerolog.Logger, options ...Option) *Trail {
	t := &Trail{
		log:     log,
		nowTime: time.Now,
	}
	for _, opt := range options {
		opt(t)
	}
	return t
}

// Record writes one event. The event id and timestamp are assigned here.
func (t *Trail) Record(ctx context.Context, event Event) {
	event.At = t.nowTime().UTC()
	event.ID = newEventID(event.At)

	t.log.Info().
		Str("audit_id", event.ID).
		Str("event", event.Type).
		Str("user_id", event.UserID).
		Str("session_id", event.SessionID).
		Str("remote_ip", event.RemoteIP).
		Str("detail", event.Detail).
		Msg("audit")

	if t.sink == nil {
		return
	}
	if err := t.sink.Insert(ctx, event); err != nil {
		t.log.Error().Err(err).Str("audit_id", event.ID).Msg("audit sink insert failed")
	}
}
