package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"
)

// PostgresAuditSink persists audit events to an append-only postgres
// table. It satisfies audit.Sink.
type PostgresAuditSink struct {
	db *sql.DB
}

// NewPostgresAuditSink wraps an existing postgres handle. Migration is
// the caller's choice; Migrate is provided for single-binary setups.
func NewPostgresAuditSink(db *sql.DB) *PostgresAuditSink {
	return &PostgresAuditSink{db: db}
}

// Migrate creates the audit_events table if missing.
func (s *PostgresAuditSink) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS audit_events (
			id UUID PRIMARY KEY,
			action TEXT NOT NULL,
			entity_type TEXT NOT NULL,
			entity_id TEXT NOT NULL,
			metadata JSONB,
			recorded_at TIMESTAMPTZ NOT NULL
		)`)
	if err != nil {
		return fmt.Errorf("postgres audit migrate: %w", err)
	}
	return nil
}

// Record appends one event. There is no update or delete path.
func (s *PostgresAuditSink) Record(ctx context.Context, action, entityType, entityID string, metadata map[string]any) error {
	var meta any
	if metadata != nil {
		b, err := json.Marshal(metadata)
		if err != nil {
			return fmt.Errorf("postgres audit metadata: %w", err)
		}
		meta = string(b)
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO audit_events (id, action, entity_type, entity_id, metadata, recorded_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		uuid.New().String(), action, entityType, entityID, meta, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("postgres audit insert: %w", err)
	}
	return nil
}
