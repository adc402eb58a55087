package sessions_test

import (
	"testing"
	"time"

	"github.com/medflow/medflow-auth/sessions"
	"github.com/stretchr/testify/require"
)

func TestStateTransitions(t *testing.T) {
	tests := []struct {
		from  sessions.State
		to    sessions.State
		legal bool
	}{
		{sessions.StatePendingTwoFactor, sessions.StateActive, true},
		{sessions.StatePendingTwoFactor, sessions.StateRevoked, true},
		{sessions.StateActive, sessions.StateExpired, true},
		{sessions.StateActive, sessions.StateRevoked, true},

		{sessions.StatePendingTwoFactor, sessions.StateExpired, false},
		{sessions.StateActive, sessions.StatePendingTwoFactor, false},
		{sessions.StateExpired, sessions.StateActive, false},
		{sessions.StateExpired, sessions.StateRevoked, false},
		{sessions.StateRevoked, sessions.StateActive, false},
		{sessions.StateRevoked, sessions.StateExpired, false},
		{sessions.StateRevoked, sessions.StatePendingTwoFactor, false},
		{sessions.StateActive, sessions.StateActive, false},
	}

	for _, tt := range tests {
		require.Equal(t, tt.legal, tt.from.CanTransition(tt.to),
			"%s -> %s", tt.from, tt.to)
	}
}

func TestRevokedIsTerminal(t *testing.T) {
	for _, to := range []sessions.State{
		sessions.StatePendingTwoFactor,
		sessions.StateActive,
		sessions.StateExpired,
		sessions.StateRevoked,
	} {
		require.False(t, sessions.StateRevoked.CanTransition(to))
	}
}

func TestExpiredAt(t *testing.T) {
	now := time.Now()
	s := sessions.Session{ExpiresAt: now.Add(time.Hour)}

	require.False(t, s.ExpiredAt(now))
	require.True(t, s.ExpiredAt(now.Add(time.Hour)))   // deadline itself counts
	require.True(t, s.ExpiredAt(now.Add(2*time.Hour)))
}

func TestAuthorizable(t *testing.T) {
	now := time.Now()

	active := sessions.Session{State: sessions.StateActive, ExpiresAt: now.Add(time.Hour)}
	require.True(t, active.Authorizable(now))
	require.False(t, active.Authorizable(now.Add(2*time.Hour)))

	for _, state := range []sessions.State{
		sessions.StatePendingTwoFactor,
		sessions.StateExpired,
		sessions.StateRevoked,
	} {
		s := sessions.Session{State: state, ExpiresAt: now.Add(time.Hour)}
		require.False(t, s.Authorizable(now), "state %s", state)
	}
}
