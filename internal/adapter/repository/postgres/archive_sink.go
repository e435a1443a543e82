// Package postgres implements the long-term archive sink for admitted
// events.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/lib/pq"

	"github.com/user/eventwatch/internal/domain"
)

const createTableStmt = `
CREATE TABLE IF NOT EXISTS archived_events (
	event_id   TEXT PRIMARY KEY,
	event_type TEXT NOT NULL,
	repo       TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL,
	payload    JSONB
);
CREATE INDEX IF NOT EXISTS archived_events_created_at_idx ON archived_events (created_at);
CREATE INDEX IF NOT EXISTS archived_events_type_idx ON archived_events (event_type);
`

// ArchiveSink implements domain.ArchiveSink on PostgreSQL.
type ArchiveSink struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewArchiveSink creates a PostgreSQL archive sink.
func NewArchiveSink(db *sql.DB, logger *slog.Logger) *ArchiveSink {
	return &ArchiveSink{db: db, logger: logger.With("component", "archive_sink")}
}

// EnsureSchema creates the archive table and its indexes if missing.
func (s *ArchiveSink) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, createTableStmt); err != nil {
		return fmt.Errorf("create archive schema: %w", err)
	}
	return nil
}

// WriteBatch bulk-inserts events via COPY into a temp table and merges them
// with ON CONFLICT DO NOTHING. Events are immutable, so a conflict means
// the event was already archived and the replay is a no-op.
func (s *ArchiveSink) WriteBatch(ctx context.Context, events []domain.Event) error {
	if len(events) == 0 {
		return nil
	}

	txn, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin archive transaction: %w", err)
	}
	defer txn.Rollback() // no-op after Commit

	const tempTable = "archived_events_import"
	_, err = txn.ExecContext(ctx,
		`CREATE TEMP TABLE `+tempTable+` (LIKE archived_events INCLUDING DEFAULTS) ON COMMIT DROP;`)
	if err != nil {
		return fmt.Errorf("create staging table: %w", err)
	}

	stmt, err := txn.Prepare(pq.CopyIn(tempTable, "event_id", "event_type", "repo", "created_at", "payload"))
	if err != nil {
		return fmt.Errorf("prepare copy: %w", err)
	}

	for _, ev := range events {
		var payload interface{}
		if len(ev.Payload) > 0 {
			payload = string(ev.Payload)
		}
		if _, err := stmt.ExecContext(ctx, ev.ID, string(ev.Type), ev.Repo, ev.CreatedAt, payload); err != nil {
			_ = stmt.Close()
			return fmt.Errorf("copy event %s: %w", ev.ID, err)
		}
	}
	if err := stmt.Close(); err != nil {
		return fmt.Errorf("flush copy: %w", err)
	}

	_, err = txn.ExecContext(ctx, `
		INSERT INTO archived_events (event_id, event_type, repo, created_at, payload)
		SELECT event_id, event_type, repo, created_at, payload FROM `+tempTable+`
		ON CONFLICT (event_id) DO NOTHING;
	`)
	if err != nil {
		return fmt.Errorf("merge staged events: %w", err)
	}

	return txn.Commit()
}
