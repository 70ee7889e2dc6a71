// Package postgres provides a PostgreSQL-backed [store.Store].
//
// Sessions are stored one row each with their attempts in a JSONB column;
// daily usage is one row per calendar day keyed by the "YYYY-MM-DD" date key.
//
// Usage:
//
//	st, err := postgres.NewStore(ctx, dsn)
//	if err != nil { … }
//	defer st.Close()
//
//	_ = st.Append(ctx, session)
//	_ = st.AddSeconds(ctx, practice.DateKey(time.Now()), 12.5)
package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

const ddlSessions = `
CREATE TABLE IF NOT EXISTS practice_sessions (
    id          TEXT         PRIMARY KEY,
    language    TEXT         NOT NULL,
    started_at  TIMESTAMPTZ  NOT NULL,
    ended_at    TIMESTAMPTZ,
    attempts    JSONB        NOT NULL DEFAULT '[]'
);

CREATE INDEX IF NOT EXISTS idx_practice_sessions_started_at
    ON practice_sessions (started_at);
`

const ddlUsage = `
CREATE TABLE IF NOT EXISTS daily_usage (
    date_key  TEXT              PRIMARY KEY,
    seconds   DOUBLE PRECISION  NOT NULL DEFAULT 0 CHECK (seconds >= 0),
    notified  BOOLEAN           NOT NULL DEFAULT false
);
`

// Migrate creates the tables if they do not exist. It is idempotent and safe
// to call on every start.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	for _, stmt := range []string{ddlSessions, ddlUsage} {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("postgres migrate: %w", err)
		}
	}
	return nil
}
