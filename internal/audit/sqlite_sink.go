package audit

import (
	"context"
	"database/sql"
	"fmt"
)

var _ Sink = (*SQLiteSink)(nil)

// SQLiteSink persists audit events into the audit_events table.
type SQLiteSink struct {
	db *sql.DB
}

func NewSQLiteSink(db *sql.DB) *SQLiteSink {
	return &SQLiteSink{db: db}
}

func (s *SQLiteSink) Insert(ctx context.Context, event Event) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO audit_events (id, at, event, user_id, session_id, remote_ip, detail)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		event.ID, event.At, event.Type, event.UserID, event.SessionID, event.RemoteIP, event.Detail,
	)
	if err != nil {
		return fmt.Errorf("insert audit event: %w", err)
	}
	return nil
}
