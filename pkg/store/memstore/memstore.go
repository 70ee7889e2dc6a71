// Package memstore keeps sessions and usage in memory. Nothing survives the
// process.
package memstore

import (
	"context"
	"slices"
	"sync"

	"github.com/MrWong99/hearcoach/internal/practice"
	"github.com/MrWong99/hearcoach/pkg/store"
)

var _ store.Store = (*Store)(nil)

// Store is an in-memory [store.Store]. The zero value is ready to use.
type Store struct {
	mu       sync.RWMutex
	sessions []practice.Session
	seconds  map[string]float64
	notified map[string]bool

	// AppendErr, when set, is returned by Append. Lets tests simulate a
	// failing backend.
	AppendErr error
}

// New returns an empty Store.
func New() *Store { return &Store{} }

// Append implements [store.SessionStore].
func (s *Store) Append(_ context.Context, sess practice.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.AppendErr != nil {
		return s.AppendErr
	}
	sess = sess.Clone()
	if i := slices.IndexFunc(s.sessions, func(x practice.Session) bool { return x.ID == sess.ID }); i >= 0 {
		s.sessions[i] = sess
		return nil
	}
	s.sessions = append(s.sessions, sess)
	return nil
}

// List implements [store.SessionStore].
func (s *Store) List(_ context.Context) ([]practice.Session, error) {
	s.mu.RLock()
	out := make([]practice.Session, len(s.sessions))
	for i, sess := range s.sessions {
		out[i] = sess.Clone()
	}
	s.mu.RUnlock()
	slices.SortStableFunc(out, func(a, b practice.Session) int { return a.StartedAt.Compare(b.StartedAt) })
	return out, nil
}

// AddSeconds implements [store.UsageStore].
func (s *Store) AddSeconds(_ context.Context, dateKey string, seconds float64) error {
	if err := store.CheckSeconds(seconds); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.seconds == nil {
		s.seconds = make(map[string]float64)
	}
	s.seconds[dateKey] += seconds
	return nil
}

// GetSeconds implements [store.UsageStore].
func (s *Store) GetSeconds(_ context.Context, dateKey string) (float64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.seconds[dateKey], nil
}

// HasNotified implements [store.UsageStore].
func (s *Store) HasNotified(_ context.Context, dateKey string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.notified[dateKey], nil
}

// MarkNotified implements [store.UsageStore].
func (s *Store) MarkNotified(_ context.Context, dateKey string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.notified == nil {
		s.notified = make(map[string]bool)
	}
	s.notified[dateKey] = true
	return nil
}

// Close implements [store.Store]. It is a no-op.
func (s *Store) Close() error { return nil }
