// Package usage accumulates daily practice time and decides when the daily
// goal notification fires.
package usage

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/MrWong99/hearcoach/internal/practice"
	"github.com/MrWong99/hearcoach/pkg/store"
)

// Tracker adds practice time to today's total and reports the first time per
// calendar day that the total reaches the goal. Calls are serialised.
type Tracker struct {
	store store.UsageStore
	now   func() time.Time

	mu   sync.Mutex
	goal time.Duration
}

// Option configures a [Tracker].
type Option func(*Tracker)

// WithClock replaces time.Now. The clock's location decides where a day
// starts.
func WithClock(now func() time.Time) Option {
	return func(t *Tracker) { t.now = now }
}

// New returns a Tracker persisting to s with the given daily goal. A goal of
// zero or less never fires.
func New(s store.UsageStore, goal time.Duration, opts ...Option) *Tracker {
	t := &Tracker{store: s, goal: goal, now: time.Now}
	for _, o := range opts {
		o(t)
	}
	return t
}

// SetGoal changes the daily goal. Takes effect on the next Add.
func (t *Tracker) SetGoal(goal time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.goal = goal
}

// Goal returns the daily goal.
func (t *Tracker) Goal() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.goal
}

// Add adds d to today's total. reached is true exactly when this call moved
// the total from below the goal to at or above it and the day had not been
// notified yet; the day is then marked notified. Non-positive durations are
// ignored.
func (t *Tracker) Add(ctx context.Context, d time.Duration) (reached bool, dateKey string, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	dateKey = practice.DateKey(t.now())
	if d <= 0 {
		return false, dateKey, nil
	}

	before, err := t.store.GetSeconds(ctx, dateKey)
	if err != nil {
		return false, dateKey, fmt.Errorf("usage: read total: %w", err)
	}
	if err := t.store.AddSeconds(ctx, dateKey, d.Seconds()); err != nil {
		return false, dateKey, fmt.Errorf("usage: add: %w", err)
	}
	after := before + d.Seconds()

	goal := t.goal.Seconds()
	if t.goal <= 0 || before >= goal || after < goal {
		return false, dateKey, nil
	}
	notified, err := t.store.HasNotified(ctx, dateKey)
	if err != nil {
		return false, dateKey, fmt.Errorf("usage: read notified: %w", err)
	}
	if notified {
		return false, dateKey, nil
	}
	if err := t.store.MarkNotified(ctx, dateKey); err != nil {
		return false, dateKey, fmt.Errorf("usage: mark notified: %w", err)
	}
	return true, dateKey, nil
}

// Today returns today's date key and accumulated time.
func (t *Tracker) Today(ctx context.Context) (string, time.Duration, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	key := practice.DateKey(t.now())
	sec, err := t.store.GetSeconds(ctx, key)
	if err != nil {
		return key, 0, fmt.Errorf("usage: read total: %w", err)
	}
	return key, time.Duration(sec * float64(time.Second)), nil
}
