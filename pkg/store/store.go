// Package store defines persistence for finished practice sessions and for
// daily usage totals.
//
// Implementations:
//   - [github.com/MrWong99/hearcoach/pkg/store/memstore]: in-process maps, for
//     tests and ephemeral runs.
//   - [github.com/MrWong99/hearcoach/pkg/store/sqlite]: a single-file database
//     for on-device use.
//   - [github.com/MrWong99/hearcoach/pkg/store/postgres]: a shared PostgreSQL
//     server.
//
// All implementations are safe for concurrent use.
package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/MrWong99/hearcoach/internal/practice"
)

// ErrNegativeSeconds is returned by AddSeconds for negative amounts.
var ErrNegativeSeconds = errors.New("store: negative seconds")

// SessionStore persists finished sessions.
type SessionStore interface {
	// Append stores s. Appending a session whose ID already exists replaces
	// the stored copy.
	Append(ctx context.Context, s practice.Session) error

	// List returns every stored session ordered by start time, oldest first.
	List(ctx context.Context) ([]practice.Session, error)
}

// UsageStore persists per-day practice time and whether the daily goal
// notification has been shown. Days are identified by [practice.DateKey].
type UsageStore interface {
	// AddSeconds adds seconds (≥ 0) to the day's total, creating the day on
	// first use.
	AddSeconds(ctx context.Context, dateKey string, seconds float64) error

	// GetSeconds returns the day's total, or 0 for an unknown day.
	GetSeconds(ctx context.Context, dateKey string) (float64, error)

	// HasNotified reports whether MarkNotified was called for the day.
	HasNotified(ctx context.Context, dateKey string) (bool, error)

	// MarkNotified records that the goal notification fired for the day.
	MarkNotified(ctx context.Context, dateKey string) error
}

// Store combines both stores with a Close method.
type Store interface {
	SessionStore
	UsageStore
	Close() error
}

// CheckSeconds validates an AddSeconds amount.
func CheckSeconds(seconds float64) error {
	if seconds < 0 {
		return fmt.Errorf("%w: %v", ErrNegativeSeconds, seconds)
	}
	return nil
}
