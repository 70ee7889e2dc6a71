package usage_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/MrWong99/hearcoach/internal/usage"
	"github.com/MrWong99/hearcoach/pkg/store/memstore"
)

type clock struct{ t time.Time }

func (c *clock) now() time.Time { return c.t }

func TestTracker_FiresOncePerDay(t *testing.T) {
	t.Parallel()
	c := &clock{t: time.Date(2026, 3, 1, 10, 0, 0, 0, time.Local)}
	tr := usage.New(memstore.New(), time.Minute, usage.WithClock(c.now))
	ctx := context.Background()

	steps := []struct {
		add  time.Duration
		want bool
	}{
		{30 * time.Second, false},
		{29 * time.Second, false},
		{1 * time.Second, true}, // exactly at goal
		{10 * time.Second, false},
		{time.Hour, false},
	}
	for i, s := range steps {
		reached, key, err := tr.Add(ctx, s.add)
		if err != nil {
			t.Fatalf("step %d: Add: %v", i, err)
		}
		if reached != s.want {
			t.Errorf("step %d: reached = %v, want %v", i, reached, s.want)
		}
		if key != "2026-03-01" {
			t.Errorf("step %d: key = %q", i, key)
		}
	}

	// Next calendar day starts from zero and may fire again.
	c.t = c.t.Add(24 * time.Hour)
	if reached, _, _ := tr.Add(ctx, 2*time.Minute); !reached {
		t.Error("goal did not fire on the next day")
	}
}

func TestTracker_NotifiedDaySurvivesRestart(t *testing.T) {
	t.Parallel()
	st := memstore.New()
	c := &clock{t: time.Date(2026, 3, 1, 10, 0, 0, 0, time.Local)}
	ctx := context.Background()

	first := usage.New(st, time.Minute, usage.WithClock(c.now))
	if reached, _, _ := first.Add(ctx, time.Minute); !reached {
		t.Fatal("first tracker did not fire")
	}

	// A raised goal crossed later the same day must not fire again.
	second := usage.New(st, 2*time.Minute, usage.WithClock(c.now))
	if reached, _, _ := second.Add(ctx, time.Minute); reached {
		t.Error("fired twice on the same day")
	}
}

func TestTracker_LoweredGoalNeedsCrossing(t *testing.T) {
	t.Parallel()
	st := memstore.New()
	c := &clock{t: time.Date(2026, 3, 1, 10, 0, 0, 0, time.Local)}
	ctx := context.Background()
	tr := usage.New(st, time.Hour, usage.WithClock(c.now))

	if reached, _, _ := tr.Add(ctx, 30*time.Minute); reached {
		t.Fatal("fired below goal")
	}
	tr.SetGoal(10 * time.Minute)
	// Already above the lowered goal before this call: no crossing.
	if reached, _, _ := tr.Add(ctx, time.Minute); reached {
		t.Error("fired without a crossing")
	}
	if tr.Goal() != 10*time.Minute {
		t.Errorf("Goal = %v", tr.Goal())
	}
}

func TestTracker_IgnoresNonPositive(t *testing.T) {
	t.Parallel()
	st := memstore.New()
	tr := usage.New(st, time.Second)
	for _, d := range []time.Duration{0, -time.Second} {
		reached, _, err := tr.Add(context.Background(), d)
		if err != nil || reached {
			t.Errorf("Add(%v) = %v, %v", d, reached, err)
		}
	}
	_, total, _ := tr.Today(context.Background())
	if total != 0 {
		t.Errorf("total = %v, want 0", total)
	}
}

func TestTracker_ZeroGoalNeverFires(t *testing.T) {
	t.Parallel()
	tr := usage.New(memstore.New(), 0)
	if reached, _, _ := tr.Add(context.Background(), time.Hour); reached {
		t.Error("zero goal fired")
	}
}

func TestTracker_Today(t *testing.T) {
	t.Parallel()
	c := &clock{t: time.Date(2026, 3, 1, 23, 59, 0, 0, time.Local)}
	tr := usage.New(memstore.New(), time.Hour, usage.WithClock(c.now))
	ctx := context.Background()
	_, _, _ = tr.Add(ctx, 1500*time.Millisecond)

	key, total, err := tr.Today(ctx)
	if err != nil {
		t.Fatalf("Today: %v", err)
	}
	if key != "2026-03-01" || total != 1500*time.Millisecond {
		t.Errorf("Today = %q, %v", key, total)
	}
}

func TestTracker_StoreError(t *testing.T) {
	t.Parallel()
	tr := usage.New(failingStore{}, time.Second)
	if _, _, err := tr.Add(context.Background(), time.Second); err == nil {
		t.Error("expected error")
	}
}

type failingStore struct{}

var errDown = errors.New("store down")

func (failingStore) AddSeconds(context.Context, string, float64) error   { return errDown }
func (failingStore) GetSeconds(context.Context, string) (float64, error) { return 0, errDown }
func (failingStore) HasNotified(context.Context, string) (bool, error)   { return false, errDown }
func (failingStore) MarkNotified(context.Context, string) error          { return errDown }
