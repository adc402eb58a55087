package audit_test

import (
	"context"
	"testing"
	"time"

	"github.com/medflow/medflow-auth/internal/audit"
	"github.com/medflow/medflow-auth/internal/database"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestSQLiteSinkInsert(t *testing.T) {
	db, err := database.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	trail := audit.New(zerolog.Nop(), audit.WithSink(audit.NewSQLiteSink(db)))
	trail.Record(context.Background(), audit.Event{
		Type:     audit.EventLoginSucceeded,
		UserID:   "user-1",
		RemoteIP: "203.0.113.9",
	})

	row := db.QueryRow(`SELECT event, user_id, remote_ip, at FROM audit_events`)
	var eventType, userID, remoteIP string
	var at time.Time
	require.NoError(t, row.Scan(&eventType, &userID, &remoteIP, &at))
	require.Equal(t, audit.EventLoginSucceeded, eventType)
	require.Equal(t, "user-1", userID)
	require.Equal(t, "203.0.113.9", remoteIP)
	require.False(t, at.IsZero())
}
