// Package reposqlite is the persistent users.UserRepo backed by SQLite.
package reposqlite

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/medflow/medflow-auth/users"
)

var _ users.UserRepo = (*Repo)(nil)

type Repo struct {
	db *sql.DB
}

func New(db *sql.DB) *Repo {
	return &Repo{db: db}
}

const userCols = `id, email, password_hash, first_name, last_name, phone, role, active, verified, two_factor_enabled, created_at, last_login`

func scanUser(scanner interface{ Scan(...any) error }) (*users.User, error) {
	var u users.User
	var lastLogin sql.NullTime
	err := scanner.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.FirstName, &u.LastName,
		&u.Phone, &u.Role, &u.Active, &u.Verified, &u.TwoFactorEnabled, &u.CreatedAt, &lastLogin)
	if err != nil {
		return nil, err
	}
	if lastLogin.Valid {
		u.LastLogin = lastLogin.Time
	}
	return &u, nil
}

func (r *Repo) Upsert(user *users.User) error {
	if user.ID == "" {
		user.ID = uuid.New().String()
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}
	email := users.NormalizeEmail(user.Email)

	_, err := r.db.Exec(`
		INSERT INTO users (`+userCols+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			email = excluded.email,
			password_hash = excluded.password_hash,
			first_name = excluded.first_name,
			last_name = excluded.last_name,
			phone = excluded.phone,
			role = excluded.role,
			active = excluded.active,
			verified = excluded.verified,
			two_factor_enabled = excluded.two_factor_enabled,
			last_login = excluded.last_login`,
		user.ID, email, user.PasswordHash, user.FirstName, user.LastName,
		user.Phone, user.Role, user.Active, user.Verified, user.TwoFactorEnabled,
		user.CreatedAt, nullTime(user.LastLogin),
	)
	if err != nil {
		return fmt.Errorf("upsert user: %w", err)
	}
	return nil
}

func (r *Repo) GetByEmail(email string) (*users.User, error) {
	row := r.db.QueryRow(`SELECT `+userCols+` FROM users WHERE email = ?`, users.NormalizeEmail(email))
	u, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, users.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get user by email: %w", err)
	}
	return u, nil
}

func (r *Repo) GetByID(id string) (*users.User, error) {
	row := r.db.QueryRow(`SELECT `+userCols+` FROM users WHERE id = ?`, id)
	u, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, users.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get user by id: %w", err)
	}
	return u, nil
}

func (r *Repo) List(offset, limit int) ([]*users.User, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.Query(`SELECT `+userCols+` FROM users ORDER BY id LIMIT ? OFFSET ?`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	var list []*users.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		list = append(list, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return list, nil
}

func (r *Repo) SetActive(email string, active bool) error {
	return r.setFlag(email, "active", active)
}

func (r *Repo) SetVerified(email string, verified bool) error {
	return r.setFlag(email, "verified", verified)
}

func (r *Repo) SetTwoFactor(email string, enabled bool) error {
	return r.setFlag(email, "two_factor_enabled", enabled)
}

func (r *Repo) SetLastLogin(email string, at time.Time) error {
	result, err := r.db.Exec(`UPDATE users SET last_login = ? WHERE email = ?`,
		at, users.NormalizeEmail(email))
	if err != nil {
		return fmt.Errorf("set last login: %w", err)
	}
	return checkAffected(result)
}

func (r *Repo) setFlag(email, column string, value bool) error {
	// column is one of the fixed names above, never user input
	result, err := r.db.Exec(`UPDATE users SET `+column+` = ? WHERE email = ?`,
		value, users.NormalizeEmail(email))
	if err != nil {
		return fmt.Errorf("set %s: %w", column, err)
	}
	return checkAffected(result)
}

func checkAffected(result sql.Result) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return users.ErrNotFound
	}
	return nil
}

func nullTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t
}
