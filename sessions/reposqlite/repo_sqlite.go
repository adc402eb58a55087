// Package reposqlite is the persistent sessions.Store backed by SQLite.
// State transitions run inside a transaction so concurrent transitions on
// the same session serialize in the database.
package reposqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/medflow/medflow-auth/sessions"
)

var _ sessions.Store = (*Store)(nil)

type Store struct {
	db      *sql.DB
	nowTime func() time.Time
}

// Option modifies the Store instance.
type Option func(*Store)

// WithNowTime sets the now time function (primarily for testing).
func WithNowTime(nowFunc func() time.Time) Option {
	return func(s *Store) {
		s.nowTime = nowFunc
	}
}

func New(db *sql.DB, options ...Option) *Store {
	s := &Store{db: db, nowTime: time.Now}
	for _, opt := range options {
		opt(s)
	}
	return s
}

const sessionCols = `id, user_id, role, state, issued_at, expires_at, last_seen_at`

func scanSession(scanner interface{ Scan(...any) error }) (sessions.Session, error) {
	var s sessions.Session
	err := scanner.Scan(&s.ID, &s.UserID, &s.Role, &s.State, &s.IssuedAt, &s.ExpiresAt, &s.LastSeenAt)
	return s, err
}

func (s *Store) Create(ctx context.Context, session sessions.Session) error {
	if session.ID == "" {
		return fmt.Errorf("session id is required")
	}
	if !session.ExpiresAt.After(session.IssuedAt) {
		return fmt.Errorf("session expiry must be after issue time")
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sessions (`+sessionCols+`) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		session.ID, session.UserID, session.Role, session.State,
		session.IssuedAt, session.ExpiresAt, session.LastSeenAt,
	)
	if err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	return nil
}

func (s *Store) Get(ctx context.Context, sessionID string) (sessions.Session, error) {
	s.expireLazily(ctx, sessionID)

	row := s.db.QueryRowContext(ctx, `SELECT `+sessionCols+` FROM sessions WHERE id = ?`, sessionID)
	sess, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return sessions.Session{}, sessions.ErrNotFound
	}
	if err != nil {
		return sessions.Session{}, fmt.Errorf("get session: %w", err)
	}
	return sess, nil
}

func (s *Store) Touch(ctx context.Context, sessionID string, at time.Time) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE sessions SET last_seen_at = ? WHERE id = ?`, at, sessionID)
	if err != nil {
		return fmt.Errorf("touch session: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return sessions.ErrNotFound
	}
	return nil
}

func (s *Store) Transition(ctx context.Context, sessionID string, to sessions.State) (sessions.Session, error) {
	s.expireLazily(ctx, sessionID)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return sessions.Session{}, fmt.Errorf("begin transition: %w", err)
	}
	defer tx.Rollback()

	row := tx.QueryRowContext(ctx, `SELECT `+sessionCols+` FROM sessions WHERE id = ?`, sessionID)
	sess, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return sessions.Session{}, sessions.ErrNotFound
	}
	if err != nil {
		return sessions.Session{}, fmt.Errorf("read session state: %w", err)
	}

	if !sess.State.CanTransition(to) {
		return sess, sessions.ErrIllegalTransition
	}

	// Guard on the observed state so a concurrent transition that slipped in
	// between read and write cannot be overwritten.
	result, err := tx.ExecContext(ctx,
		`UPDATE sessions SET state = ? WHERE id = ? AND state = ?`, to, sessionID, sess.State)
	if err != nil {
		return sessions.Session{}, fmt.Errorf("update session state: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return sessions.Session{}, fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		// A concurrent transition won between our read and write. Re-read
		// outside this transaction's snapshot so the caller sees the state
		// that actually stuck, not our stale one (a duplicate 2FA
		// confirmation resolves on it).
		_ = tx.Rollback()
		row = s.db.QueryRowContext(ctx, `SELECT `+sessionCols+` FROM sessions WHERE id = ?`, sessionID)
		if current, rereadErr := scanSession(row); rereadErr == nil {
			sess = current
		}
		return sess, sessions.ErrIllegalTransition
	}

	if err := tx.Commit(); err != nil {
		return sessions.Session{}, fmt.Errorf("commit transition: %w", err)
	}
	sess.State = to
	return sess, nil
}

func (s *Store) Revoke(ctx context.Context, sessionID string) error {
	sess, err := s.Get(ctx, sessionID)
	if err != nil {
		return err
	}

	switch sess.State {
	case sessions.StateRevoked, sessions.StateExpired:
		return nil // already unusable, logout is idempotent
	}

	_, err = s.Transition(ctx, sessionID, sessions.StateRevoked)
	if errors.Is(err, sessions.ErrIllegalTransition) {
		// Lost a race against another revoke or the expiry edge; the session
		// is unusable either way.
		return nil
	}
	return err
}

func (s *Store) PurgeExpired(ctx context.Context, now time.Time) (int, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE expires_at <= ?`, now)
	if err != nil {
		return 0, fmt.Errorf("purge expired sessions: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return int(n), nil
}

// expireLazily records the time-driven active -> expired edge before a read.
// The state guard makes it a no-op for every other state.
func (s *Store) expireLazily(ctx context.Context, sessionID string) {
	_, _ = s.db.ExecContext(ctx,
		`UPDATE sessions SET state = ? WHERE id = ? AND state = ? AND expires_at <= ?`,
		sessions.StateExpired, sessionID, sessions.StateActive, s.nowTime())
}
