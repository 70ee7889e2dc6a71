package resilience

import (
	"context"
	"errors"
	"testing"
	"time"
)

func newGroup(names ...string) *FallbackGroup[string] {
	fg := NewFallbackGroup[string](FallbackConfig{
		CircuitBreaker: CircuitBreakerConfig{MaxFailures: 2, ResetTimeout: time.Hour},
	})
	for _, n := range names {
		fg.Add(n, n)
	}
	return fg
}

func TestFallbackGroup_PrimarySuccess(t *testing.T) {
	t.Parallel()
	fg := newGroup("primary", "secondary")

	var called string
	err := fg.Execute(context.Background(), func(_ context.Context, v string) error {
		called = v
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if called != "primary" {
		t.Fatalf("called = %q, want primary", called)
	}
}

func TestFallbackGroup_FailoverNotifies(t *testing.T) {
	t.Parallel()
	var failed []string
	fg := NewFallbackGroup[string](FallbackConfig{
		OnFailover: func(name string, _ error) { failed = append(failed, name) },
	})
	fg.Add("primary", "primary")
	fg.Add("secondary", "secondary")

	got, err := ExecuteWithResult(context.Background(), fg, func(_ context.Context, v string) (string, error) {
		if v == "primary" {
			return "", errTest
		}
		return "from-" + v, nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "from-secondary" {
		t.Errorf("result = %q, want from-secondary", got)
	}
	if len(failed) != 1 || failed[0] != "primary" {
		t.Errorf("failovers = %v, want [primary]", failed)
	}
}

func TestFallbackGroup_AllFailJoinsErrors(t *testing.T) {
	t.Parallel()
	fg := newGroup("primary", "secondary")
	errSecondary := errors.New("secondary down")

	err := fg.Execute(context.Background(), func(_ context.Context, v string) error {
		if v == "secondary" {
			return errSecondary
		}
		return errTest
	})
	if !errors.Is(err, ErrAllFailed) {
		t.Fatalf("err = %v, want ErrAllFailed", err)
	}
	if !errors.Is(err, errTest) || !errors.Is(err, errSecondary) {
		t.Errorf("err = %v, want both entry errors joined", err)
	}
}

func TestFallbackGroup_SkipsOpenBreaker(t *testing.T) {
	t.Parallel()
	fg := newGroup("primary", "secondary")
	ctx := context.Background()

	for range 2 {
		_ = fg.Execute(ctx, func(_ context.Context, v string) error {
			if v == "primary" {
				return errTest
			}
			return nil
		})
	}
	if s := fg.States()["primary"]; s != StateOpen {
		t.Fatalf("primary state = %v, want open", s)
	}

	calls := map[string]int{}
	_ = fg.Execute(ctx, func(_ context.Context, v string) error {
		calls[v]++
		return nil
	})
	if calls["primary"] != 0 || calls["secondary"] != 1 {
		t.Errorf("calls = %v, want only secondary", calls)
	}
}

func TestFallbackGroup_StopsOnCancellation(t *testing.T) {
	t.Parallel()
	fg := newGroup("primary", "secondary")
	ctx, cancel := context.WithCancel(context.Background())

	calls := 0
	err := fg.Execute(ctx, func(ctx context.Context, _ string) error {
		calls++
		cancel()
		return ctx.Err()
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if errors.Is(err, ErrAllFailed) {
		t.Error("cancellation must not be reported as ErrAllFailed")
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestFallbackGroup_Empty(t *testing.T) {
	t.Parallel()
	fg := NewFallbackGroup[string](FallbackConfig{})
	if err := fg.Execute(context.Background(), func(context.Context, string) error { return nil }); !errors.Is(err, ErrAllFailed) {
		t.Errorf("err = %v, want ErrAllFailed", err)
	}
	if fg.Primary() != "" || fg.Len() != 0 {
		t.Error("empty group reports entries")
	}
}
