package twofactor_test

import (
	"context"
	"testing"
	"time"

	"github.com/medflow/medflow-auth/twofactor"
	"github.com/stretchr/testify/require"
)

func TestGenerateCode(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 50; i++ {
		code, err := twofactor.GenerateCode()
		require.NoError(t, err)
		require.Len(t, code, twofactor.CodeLength)
		for _, r := range code {
			require.True(t, r >= '0' && r <= '9', "code %q is not numeric", code)
		}
		seen[code] = true
	}
	// 50 draws from a million possibilities collapsing to one value would
	// mean a broken random source.
	require.Greater(t, len(seen), 1)
}

func TestMatches(t *testing.T) {
	c := twofactor.Challenge{Code: "123456"}
	require.True(t, c.Matches("123456"))
	require.False(t, c.Matches("654321"))
	require.False(t, c.Matches("12345"))
	require.False(t, c.Matches(""))
}

func TestExpiredAt(t *testing.T) {
	now := time.Now()
	c := twofactor.Challenge{ExpiresAt: now.Add(5 * time.Minute)}
	require.False(t, c.ExpiredAt(now))
	require.True(t, c.ExpiredAt(now.Add(5*time.Minute)))
}

func TestInMemoryRepo(t *testing.T) {
	ctx := context.Background()
	repo := twofactor.NewInMemoryRepo()

	_, err := repo.Get(ctx, "sess-1")
	require.ErrorIs(t, err, twofactor.ErrNotFound)

	c := twofactor.Challenge{
		SessionID:         "sess-1",
		Code:              "123456",
		ExpiresAt:         time.Now().Add(5 * time.Minute),
		AttemptsRemaining: 3,
	}
	require.NoError(t, repo.Put(ctx, c))

	got, err := repo.Get(ctx, "sess-1")
	require.NoError(t, err)
	require.Equal(t, c, got)

	remaining, err := repo.DecrementAttempts(ctx, "sess-1")
	require.NoError(t, err)
	require.Equal(t, 2, remaining)

	for i := 0; i < 5; i++ {
		remaining, err = repo.DecrementAttempts(ctx, "sess-1")
		require.NoError(t, err)
	}
	require.Equal(t, 0, remaining) // never below zero

	require.NoError(t, repo.Delete(ctx, "sess-1"))
	require.NoError(t, repo.Delete(ctx, "sess-1")) // idempotent
	_, err = repo.Get(ctx, "sess-1")
	require.ErrorIs(t, err, twofactor.ErrNotFound)
}
