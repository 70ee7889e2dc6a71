// Package sqlite provides a single-file [store.Store] on the pure-Go
// modernc.org/sqlite driver.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	_ "modernc.org/sqlite"

	"github.com/MrWong99/hearcoach/internal/practice"
	"github.com/MrWong99/hearcoach/pkg/store"
)

var _ store.Store = (*Store)(nil)

// migrations are applied in order; each index is recorded in
// schema_migrations once applied. Append only.
var migrations = []string{
	`CREATE TABLE practice_sessions (
		id          TEXT PRIMARY KEY,
		language    TEXT NOT NULL,
		started_at  TEXT NOT NULL,
		ended_at    TEXT NOT NULL DEFAULT '',
		attempts    TEXT NOT NULL DEFAULT '[]'
	);
	CREATE INDEX idx_practice_sessions_started_at ON practice_sessions (started_at);`,

	`CREATE TABLE daily_usage (
		date_key  TEXT PRIMARY KEY,
		seconds   REAL NOT NULL DEFAULT 0 CHECK (seconds >= 0),
		notified  INTEGER NOT NULL DEFAULT 0
	);`,
}

// Store implements [store.Store] on a SQLite database file.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the database at path, enables WAL mode and
// applies pending migrations.
func Open(ctx context.Context, path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("sqlite store: open: %w", err)
	}
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{"PRAGMA journal_mode=WAL", "PRAGMA busy_timeout=5000"} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("sqlite store: %s: %w", pragma, err)
		}
	}
	if err := migrate(ctx, db); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite store: migrate: %w", err)
	}
	return &Store{db: db}, nil
}

func migrate(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (
		version     INTEGER PRIMARY KEY,
		applied_at  TEXT NOT NULL
	)`); err != nil {
		return fmt.Errorf("ensure migrations table: %w", err)
	}

	var applied int
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM schema_migrations`).Scan(&applied); err != nil {
		return fmt.Errorf("count applied migrations: %w", err)
	}

	for version := applied; version < len(migrations); version++ {
		if err := applyMigration(ctx, db, version); err != nil {
			return fmt.Errorf("apply migration %d: %w", version+1, err)
		}
		slog.Debug("sqlite migration applied", "version", version+1)
	}
	return nil
}

func applyMigration(ctx context.Context, db *sql.DB, version int) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, migrations[version]); err != nil {
		return fmt.Errorf("execute sql: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `INSERT INTO schema_migrations (version, applied_at) VALUES (?, ?)`,
		version+1, time.Now().UTC().Format(time.RFC3339)); err != nil {
		return fmt.Errorf("record migration: %w", err)
	}
	return tx.Commit()
}

// Ping checks that the database is usable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Append implements [store.SessionStore].
func (s *Store) Append(ctx context.Context, sess practice.Session) error {
	attempts := sess.Attempts
	if attempts == nil {
		attempts = []practice.Attempt{}
	}
	data, err := json.Marshal(attempts)
	if err != nil {
		return fmt.Errorf("sqlite store: encode attempts: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO practice_sessions (id, language, started_at, ended_at, attempts)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT (id) DO UPDATE
		 SET language = excluded.language,
		     started_at = excluded.started_at,
		     ended_at = excluded.ended_at,
		     attempts = excluded.attempts`,
		sess.ID, string(sess.Language), formatTime(sess.StartedAt), formatTime(sess.EndedAt), string(data),
	)
	if err != nil {
		return fmt.Errorf("sqlite store: append session: %w", err)
	}
	return nil
}

// List implements [store.SessionStore].
func (s *Store) List(ctx context.Context) ([]practice.Session, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, language, started_at, ended_at, attempts
		 FROM practice_sessions
		 ORDER BY started_at, id`)
	if err != nil {
		return nil, fmt.Errorf("sqlite store: list sessions: %w", err)
	}
	defer rows.Close()

	sessions := []practice.Session{}
	for rows.Next() {
		var (
			sess                 practice.Session
			lang, started, ended string
			attempts             string
		)
		if err := rows.Scan(&sess.ID, &lang, &started, &ended, &attempts); err != nil {
			return nil, fmt.Errorf("sqlite store: scan session: %w", err)
		}
		sess.Language = practice.Language(lang)
		if sess.StartedAt, err = parseTime(started); err != nil {
			return nil, fmt.Errorf("sqlite store: session %s: %w", sess.ID, err)
		}
		if sess.EndedAt, err = parseTime(ended); err != nil {
			return nil, fmt.Errorf("sqlite store: session %s: %w", sess.ID, err)
		}
		if err := json.Unmarshal([]byte(attempts), &sess.Attempts); err != nil {
			return nil, fmt.Errorf("sqlite store: decode attempts of %s: %w", sess.ID, err)
		}
		sessions = append(sessions, sess)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite store: list sessions: %w", err)
	}
	return sessions, nil
}

// AddSeconds implements [store.UsageStore].
func (s *Store) AddSeconds(ctx context.Context, dateKey string, seconds float64) error {
	if err := store.CheckSeconds(seconds); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO daily_usage (date_key, seconds) VALUES (?, ?)
		 ON CONFLICT (date_key) DO UPDATE SET seconds = daily_usage.seconds + excluded.seconds`,
		dateKey, seconds)
	if err != nil {
		return fmt.Errorf("sqlite store: add seconds: %w", err)
	}
	return nil
}

// GetSeconds implements [store.UsageStore].
func (s *Store) GetSeconds(ctx context.Context, dateKey string) (float64, error) {
	var seconds float64
	err := s.db.QueryRowContext(ctx, `SELECT seconds FROM daily_usage WHERE date_key = ?`, dateKey).Scan(&seconds)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("sqlite store: get seconds: %w", err)
	}
	return seconds, nil
}

// HasNotified implements [store.UsageStore].
func (s *Store) HasNotified(ctx context.Context, dateKey string) (bool, error) {
	var notified int
	err := s.db.QueryRowContext(ctx, `SELECT notified FROM daily_usage WHERE date_key = ?`, dateKey).Scan(&notified)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("sqlite store: has notified: %w", err)
	}
	return notified != 0, nil
}

// MarkNotified implements [store.UsageStore].
func (s *Store) MarkNotified(ctx context.Context, dateKey string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO daily_usage (date_key, notified) VALUES (?, 1)
		 ON CONFLICT (date_key) DO UPDATE SET notified = 1`,
		dateKey)
	if err != nil {
		return fmt.Errorf("sqlite store: mark notified: %w", err)
	}
	return nil
}

// timeLayout is fixed-width so that stored UTC times sort chronologically as
// text. The zero time is stored as "".
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return time.Parse(timeLayout, s)
}
