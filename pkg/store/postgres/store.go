package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/MrWong99/hearcoach/internal/practice"
	"github.com/MrWong99/hearcoach/pkg/store"
)

var _ store.Store = (*Store)(nil)

// Store implements [store.Store] on a [pgxpool.Pool]. All methods are safe
// for concurrent use.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore connects to the database at dsn, pings it and runs [Migrate].
func NewStore(ctx context.Context, dsn string) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres store: parse dsn: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("postgres store: create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres store: ping: %w", err)
	}
	if err := Migrate(ctx, pool); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres store: migrate: %w", err)
	}
	return &Store{pool: pool}, nil
}

// Ping checks that the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close releases every pooled connection.
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

// Append implements [store.SessionStore].
func (s *Store) Append(ctx context.Context, sess practice.Session) error {
	attempts, err := json.Marshal(nonNil(sess.Attempts))
	if err != nil {
		return fmt.Errorf("postgres store: encode attempts: %w", err)
	}
	var ended *time.Time
	if !sess.EndedAt.IsZero() {
		ended = &sess.EndedAt
	}

	const q = `
		INSERT INTO practice_sessions (id, language, started_at, ended_at, attempts)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE
		SET language = EXCLUDED.language,
		    started_at = EXCLUDED.started_at,
		    ended_at = EXCLUDED.ended_at,
		    attempts = EXCLUDED.attempts`
	if _, err := s.pool.Exec(ctx, q, sess.ID, string(sess.Language), sess.StartedAt, ended, attempts); err != nil {
		return fmt.Errorf("postgres store: append session: %w", err)
	}
	return nil
}

// List implements [store.SessionStore].
func (s *Store) List(ctx context.Context) ([]practice.Session, error) {
	const q = `
		SELECT id, language, started_at, ended_at, attempts
		FROM   practice_sessions
		ORDER  BY started_at, id`

	rows, err := s.pool.Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("postgres store: list sessions: %w", err)
	}
	sessions, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (practice.Session, error) {
		var (
			sess     practice.Session
			lang     string
			ended    *time.Time
			attempts []byte
		)
		if err := row.Scan(&sess.ID, &lang, &sess.StartedAt, &ended, &attempts); err != nil {
			return practice.Session{}, err
		}
		sess.Language = practice.Language(lang)
		if ended != nil {
			sess.EndedAt = *ended
		}
		if err := json.Unmarshal(attempts, &sess.Attempts); err != nil {
			return practice.Session{}, fmt.Errorf("decode attempts of %s: %w", sess.ID, err)
		}
		return sess, nil
	})
	if err != nil {
		return nil, fmt.Errorf("postgres store: scan sessions: %w", err)
	}
	if sessions == nil {
		sessions = []practice.Session{}
	}
	return sessions, nil
}

// AddSeconds implements [store.UsageStore].
func (s *Store) AddSeconds(ctx context.Context, dateKey string, seconds float64) error {
	if err := store.CheckSeconds(seconds); err != nil {
		return err
	}
	const q = `
		INSERT INTO daily_usage (date_key, seconds)
		VALUES ($1, $2)
		ON CONFLICT (date_key) DO UPDATE
		SET seconds = daily_usage.seconds + EXCLUDED.seconds`
	if _, err := s.pool.Exec(ctx, q, dateKey, seconds); err != nil {
		return fmt.Errorf("postgres store: add seconds: %w", err)
	}
	return nil
}

// GetSeconds implements [store.UsageStore].
func (s *Store) GetSeconds(ctx context.Context, dateKey string) (float64, error) {
	var seconds float64
	err := s.pool.QueryRow(ctx, `SELECT seconds FROM daily_usage WHERE date_key = $1`, dateKey).Scan(&seconds)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("postgres store: get seconds: %w", err)
	}
	return seconds, nil
}

// HasNotified implements [store.UsageStore].
func (s *Store) HasNotified(ctx context.Context, dateKey string) (bool, error) {
	var notified bool
	err := s.pool.QueryRow(ctx, `SELECT notified FROM daily_usage WHERE date_key = $1`, dateKey).Scan(&notified)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("postgres store: has notified: %w", err)
	}
	return notified, nil
}

// MarkNotified implements [store.UsageStore].
func (s *Store) MarkNotified(ctx context.Context, dateKey string) error {
	const q = `
		INSERT INTO daily_usage (date_key, notified)
		VALUES ($1, true)
		ON CONFLICT (date_key) DO UPDATE SET notified = true`
	if _, err := s.pool.Exec(ctx, q, dateKey); err != nil {
		return fmt.Errorf("postgres store: mark notified: %w", err)
	}
	return nil
}

func nonNil(a []practice.Attempt) []practice.Attempt {
	if a == nil {
		return []practice.Attempt{}
	}
	return a
}
