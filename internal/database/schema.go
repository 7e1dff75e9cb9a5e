package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
)

// Execer is the subset of pgxpool.Pool used to apply the schema.
type Execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// schema is applied in order; every statement is idempotent.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS effect_events (
		event_id    BIGSERIAL PRIMARY KEY,
		instance_id TEXT NOT NULL,
		session_id  TEXT NOT NULL,
		message_id  TEXT,
		kind        TEXT NOT NULL,
		effect_id   TEXT NOT NULL,
		title       TEXT,
		description TEXT,
		progress    DOUBLE PRECISION,
		state       TEXT,
		received_at BIGINT NOT NULL
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS effect_events_delivery_idx
		ON effect_events (session_id, message_id)`,
	`CREATE INDEX IF NOT EXISTS effect_events_effect_idx
		ON effect_events (effect_id, received_at)`,
}

// EnsureSchema creates the history tables if they do not exist.
func EnsureSchema(ctx context.Context, db Execer) error {
	for i, stmt := range schema {
		if _, err := db.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema statement %d: %w", i+1, err)
		}
	}
	return nil
}
