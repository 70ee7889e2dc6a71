// Package storetest is a behavioural test suite shared by every
// [store.Store] implementation.
package storetest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/MrWong99/hearcoach/internal/practice"
	"github.com/MrWong99/hearcoach/pkg/store"
	"github.com/MrWong99/hearcoach/pkg/types"
)

// Run exercises s. newStore must return an empty store each call.
func Run(t *testing.T, newStore func(t *testing.T) store.Store) {
	t.Run("SessionRoundTrip", func(t *testing.T) { testSessionRoundTrip(t, newStore(t)) })
	t.Run("ListOrderedByStart", func(t *testing.T) { testListOrder(t, newStore(t)) })
	t.Run("AppendReplaces", func(t *testing.T) { testAppendReplaces(t, newStore(t)) })
	t.Run("EmptyList", func(t *testing.T) { testEmptyList(t, newStore(t)) })
	t.Run("UsageAccumulates", func(t *testing.T) { testUsage(t, newStore(t)) })
	t.Run("NegativeSecondsRejected", func(t *testing.T) { testNegative(t, newStore(t)) })
	t.Run("Notified", func(t *testing.T) { testNotified(t, newStore(t)) })
}

// SampleSession returns a session with one voice and one text attempt.
func SampleSession(start time.Time) practice.Session {
	s := practice.NewSession(practice.Chinese, start)
	s.EndedAt = start.Add(5 * time.Minute)
	s.Attempts = []practice.Attempt{
		{
			ID:           practice.NewID(),
			SentenceID:   "s1",
			SentenceText: "我喜欢喝茶。",
			Timestamp:    start.Add(time.Minute),
			Number:       1,
			Mode:         practice.ModeVoice,
			Correct:      false,
			Similarity:   0.5,
			Pronunciation: &types.PronunciationScores{
				Accuracy: 70, Fluency: 60, Completeness: 80, Prosody: 50,
			},
			Transcript: "我喜欢茶",
			ItemScore:  59.5,
		},
		{
			ID:           practice.NewID(),
			SentenceID:   "s1",
			SentenceText: "我喜欢喝茶。",
			Timestamp:    start.Add(2 * time.Minute),
			Number:       2,
			Mode:         practice.ModeText,
			Correct:      true,
			Similarity:   1,
			ItemScore:    100,
		},
	}
	return s
}

func testSessionRoundTrip(t *testing.T, s store.Store) {
	ctx := context.Background()
	want := SampleSession(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC))
	if err := s.Append(ctx, want); err != nil {
		t.Fatalf("Append: %v", err)
	}
	got, err := s.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("len(List) = %d, want 1", len(got))
	}
	g := got[0]
	if g.ID != want.ID || g.Language != want.Language {
		t.Errorf("session = %+v, want %+v", g, want)
	}
	if !g.StartedAt.Equal(want.StartedAt) || !g.EndedAt.Equal(want.EndedAt) {
		t.Errorf("times = %v..%v, want %v..%v", g.StartedAt, g.EndedAt, want.StartedAt, want.EndedAt)
	}
	if g.TotalAttempts() != 2 || g.CorrectAttempts() != 1 {
		t.Errorf("totals = %d/%d, want 2/1", g.TotalAttempts(), g.CorrectAttempts())
	}
	if g.AverageScore() != want.AverageScore() {
		t.Errorf("average = %v, want %v", g.AverageScore(), want.AverageScore())
	}
	a := g.Attempts[0]
	if a.Pronunciation == nil || *a.Pronunciation != *want.Attempts[0].Pronunciation {
		t.Errorf("pronunciation = %+v, want %+v", a.Pronunciation, want.Attempts[0].Pronunciation)
	}
	if a.Transcript != "我喜欢茶" || a.Mode != practice.ModeVoice || a.Number != 1 {
		t.Errorf("attempt = %+v", a)
	}
	if g.Attempts[1].Pronunciation != nil {
		t.Errorf("text attempt has pronunciation %+v", g.Attempts[1].Pronunciation)
	}
}

func testListOrder(t *testing.T, s store.Store) {
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	late := SampleSession(base.Add(48 * time.Hour))
	early := SampleSession(base)
	mid := SampleSession(base.Add(24 * time.Hour))
	for _, sess := range []practice.Session{late, early, mid} {
		if err := s.Append(ctx, sess); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}
	got, err := s.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	want := []string{early.ID, mid.ID, late.ID}
	if len(got) != len(want) {
		t.Fatalf("len(List) = %d, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i].ID != want[i] {
			t.Errorf("List[%d] = %s, want %s", i, got[i].ID, want[i])
		}
	}
}

func testAppendReplaces(t *testing.T, s store.Store) {
	ctx := context.Background()
	sess := SampleSession(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC))
	if err := s.Append(ctx, sess); err != nil {
		t.Fatalf("Append: %v", err)
	}
	sess.Attempts = sess.Attempts[:1]
	if err := s.Append(ctx, sess); err != nil {
		t.Fatalf("second Append: %v", err)
	}
	got, err := s.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(got) != 1 || got[0].TotalAttempts() != 1 {
		t.Errorf("List = %d sessions, first has %d attempts; want 1 and 1", len(got), got[0].TotalAttempts())
	}
}

func testEmptyList(t *testing.T, s store.Store) {
	got, err := s.List(context.Background())
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("len(List) = %d, want 0", len(got))
	}
}

func testUsage(t *testing.T, s store.Store) {
	ctx := context.Background()
	if got, err := s.GetSeconds(ctx, "2026-03-01"); err != nil || got != 0 {
		t.Fatalf("GetSeconds(unknown) = %v, %v; want 0, nil", got, err)
	}
	for _, sec := range []float64{1.5, 2.25, 0} {
		if err := s.AddSeconds(ctx, "2026-03-01", sec); err != nil {
			t.Fatalf("AddSeconds: %v", err)
		}
	}
	if err := s.AddSeconds(ctx, "2026-03-02", 10); err != nil {
		t.Fatalf("AddSeconds: %v", err)
	}
	if got, _ := s.GetSeconds(ctx, "2026-03-01"); got != 3.75 {
		t.Errorf("GetSeconds = %v, want 3.75", got)
	}
	if got, _ := s.GetSeconds(ctx, "2026-03-02"); got != 10 {
		t.Errorf("GetSeconds(next day) = %v, want 10", got)
	}
}

func testNegative(t *testing.T, s store.Store) {
	err := s.AddSeconds(context.Background(), "2026-03-01", -1)
	if !errors.Is(err, store.ErrNegativeSeconds) {
		t.Errorf("err = %v, want ErrNegativeSeconds", err)
	}
}

func testNotified(t *testing.T, s store.Store) {
	ctx := context.Background()
	if ok, err := s.HasNotified(ctx, "2026-03-01"); err != nil || ok {
		t.Fatalf("HasNotified(unknown) = %v, %v; want false, nil", ok, err)
	}
	if err := s.AddSeconds(ctx, "2026-03-01", 5); err != nil {
		t.Fatalf("AddSeconds: %v", err)
	}
	if err := s.MarkNotified(ctx, "2026-03-01"); err != nil {
		t.Fatalf("MarkNotified: %v", err)
	}
	if err := s.MarkNotified(ctx, "2026-03-01"); err != nil {
		t.Fatalf("second MarkNotified: %v", err)
	}
	if ok, _ := s.HasNotified(ctx, "2026-03-01"); !ok {
		t.Error("HasNotified = false after MarkNotified")
	}
	if ok, _ := s.HasNotified(ctx, "2026-03-02"); ok {
		t.Error("HasNotified(other day) = true")
	}
	if got, _ := s.GetSeconds(ctx, "2026-03-01"); got != 5 {
		t.Errorf("GetSeconds after MarkNotified = %v, want 5", got)
	}
	if err := s.MarkNotified(ctx, "2026-03-03"); err != nil {
		t.Fatalf("MarkNotified(new day): %v", err)
	}
	if got, _ := s.GetSeconds(ctx, "2026-03-03"); got != 0 {
		t.Errorf("GetSeconds(notified-only day) = %v, want 0", got)
	}
}
