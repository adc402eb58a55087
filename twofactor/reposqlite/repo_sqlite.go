// Package reposqlite is the persistent twofactor.Repo backed by SQLite.
package reposqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/medflow/medflow-auth/twofactor"
)

var _ twofactor.Repo = (*Repo)(nil)

type Repo struct {
	db *sql.DB
}

func New(db *sql.DB) *Repo {
	return &Repo{db: db}
}

func (r *Repo) Put(ctx context.Context, challenge twofactor.Challenge) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO two_factor_challenges (session_id, code, expires_at, attempts_remaining)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(session_id) DO UPDATE SET
			code = excluded.code,
			expires_at = excluded.expires_at,
			attempts_remaining = excluded.attempts_remaining`,
		challenge.SessionID, challenge.Code, challenge.ExpiresAt, challenge.AttemptsRemaining,
	)
	if err != nil {
		return fmt.Errorf("put challenge: %w", err)
	}
	return nil
}

func (r *Repo) Get(ctx context.Context, sessionID string) (twofactor.Challenge, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT session_id, code, expires_at, attempts_remaining
		FROM two_factor_challenges WHERE session_id = ?`, sessionID)

	var c twofactor.Challenge
	err := row.Scan(&c.SessionID, &c.Code, &c.ExpiresAt, &c.AttemptsRemaining)
	if errors.Is(err, sql.ErrNoRows) {
		return twofactor.Challenge{}, twofactor.ErrNotFound
	}
	if err != nil {
		return twofactor.Challenge{}, fmt.Errorf("get challenge: %w", err)
	}
	return c, nil
}

func (r *Repo) DecrementAttempts(ctx context.Context, sessionID string) (int, error) {
	result, err := r.db.ExecContext(ctx, `
		UPDATE two_factor_challenges
		SET attempts_remaining = attempts_remaining - 1
		WHERE session_id = ? AND attempts_remaining > 0`, sessionID)
	if err != nil {
		return 0, fmt.Errorf("decrement attempts: %w", err)
	}
	if _, err := result.RowsAffected(); err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}

	row := r.db.QueryRowContext(ctx,
		`SELECT attempts_remaining FROM two_factor_challenges WHERE session_id = ?`, sessionID)
	var remaining int
	err = row.Scan(&remaining)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, twofactor.ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("read attempts: %w", err)
	}
	return remaining, nil
}

func (r *Repo) Delete(ctx context.Context, sessionID string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM two_factor_challenges WHERE session_id = ?`, sessionID)
	if err != nil {
		return fmt.Errorf("delete challenge: %w", err)
	}
	return nil
}
