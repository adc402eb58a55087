package reposqlite_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/medflow/medflow-auth/internal/database"
	"github.com/medflow/medflow-auth/sessions"
	sessionsqlite "github.com/medflow/medflow-auth/sessions/reposqlite"
	"github.com/medflow/medflow-auth/twofactor"
	"github.com/medflow/medflow-auth/twofactor/reposqlite"
	"github.com/medflow/medflow-auth/users"
	usersqlite "github.com/medflow/medflow-auth/users/reposqlite"
	"github.com/stretchr/testify/require"
)

func setup(t *testing.T) (*reposqlite.Repo, string) {
	t.Helper()

	db, err := database.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	// A challenge row needs its pending session (and that session's user).
	userRepo := usersqlite.New(db)
	u := &users.User{Email: "jane@example.com", PasswordHash: "x", Role: users.RolePatient, Active: true}
	require.NoError(t, userRepo.Upsert(u))

	now := time.Now().UTC()
	sess := sessions.Session{
		ID:         uuid.New().String(),
		UserID:     u.ID,
		Role:       u.Role,
		State:      sessions.StatePendingTwoFactor,
		IssuedAt:   now,
		ExpiresAt:  now.Add(time.Hour),
		LastSeenAt: now,
	}
	require.NoError(t, sessionsqlite.New(db).Create(context.Background(), sess))

	return reposqlite.New(db), sess.ID
}

func TestPutGetDelete(t *testing.T) {
	repo, sessionID := setup(t)
	ctx := context.Background()

	_, err := repo.Get(ctx, sessionID)
	require.ErrorIs(t, err, twofactor.ErrNotFound)

	c := twofactor.Challenge{
		SessionID:         sessionID,
		Code:              "123456",
		ExpiresAt:         time.Now().UTC().Add(5 * time.Minute).Truncate(time.Second),
		AttemptsRemaining: 3,
	}
	require.NoError(t, repo.Put(ctx, c))

	got, err := repo.Get(ctx, sessionID)
	require.NoError(t, err)
	require.Equal(t, c.Code, got.Code)
	require.Equal(t, 3, got.AttemptsRemaining)

	require.NoError(t, repo.Delete(ctx, sessionID))
	require.NoError(t, repo.Delete(ctx, sessionID)) // idempotent
	_, err = repo.Get(ctx, sessionID)
	require.ErrorIs(t, err, twofactor.ErrNotFound)
}

func TestPutReplacesExisting(t *testing.T) {
	repo, sessionID := setup(t)
	ctx := context.Background()

	first := twofactor.Challenge{SessionID: sessionID, Code: "111111", ExpiresAt: time.Now().Add(time.Minute), AttemptsRemaining: 3}
	require.NoError(t, repo.Put(ctx, first))

	second := first
	second.Code = "222222"
	require.NoError(t, repo.Put(ctx, second))

	got, err := repo.Get(ctx, sessionID)
	require.NoError(t, err)
	require.Equal(t, "222222", got.Code)
}

func TestDecrementAttemptsStopsAtZero(t *testing.T) {
	repo, sessionID := setup(t)
	ctx := context.Background()

	c := twofactor.Challenge{SessionID: sessionID, Code: "123456", ExpiresAt: time.Now().Add(time.Minute), AttemptsRemaining: 2}
	require.NoError(t, repo.Put(ctx, c))

	remaining, err := repo.DecrementAttempts(ctx, sessionID)
	require.NoError(t, err)
	require.Equal(t, 1, remaining)

	remaining, err = repo.DecrementAttempts(ctx, sessionID)
	require.NoError(t, err)
	require.Equal(t, 0, remaining)

	remaining, err = repo.DecrementAttempts(ctx, sessionID)
	require.NoError(t, err)
	require.Equal(t, 0, remaining)

	_, err = repo.DecrementAttempts(ctx, "no-such-session")
	require.ErrorIs(t, err, twofactor.ErrNotFound)
}
