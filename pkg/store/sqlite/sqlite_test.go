package sqlite_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/MrWong99/hearcoach/pkg/store"
	"github.com/MrWong99/hearcoach/pkg/store/sqlite"
	"github.com/MrWong99/hearcoach/pkg/store/storetest"
)

func openTemp(t *testing.T, path string) *sqlite.Store {
	t.Helper()
	st, err := sqlite.Open(context.Background(), path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func TestStore(t *testing.T) {
	storetest.Run(t, func(t *testing.T) store.Store {
		return openTemp(t, filepath.Join(t.TempDir(), "hearcoach.db"))
	})
}

func TestOpen_Reopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hearcoach.db")
	ctx := context.Background()

	first, err := sqlite.Open(ctx, path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	sess := storetest.SampleSession(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC))
	if err := first.Append(ctx, sess); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if err := first.AddSeconds(ctx, "2026-03-01", 42); err != nil {
		t.Fatalf("AddSeconds: %v", err)
	}
	if err := first.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	// Migrations must be skipped on the second open.
	second := openTemp(t, path)
	got, err := second.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(got) != 1 || got[0].ID != sess.ID {
		t.Fatalf("List after reopen = %+v", got)
	}
	if sec, _ := second.GetSeconds(ctx, "2026-03-01"); sec != 42 {
		t.Errorf("GetSeconds after reopen = %v, want 42", sec)
	}
	if err := second.Ping(ctx); err != nil {
		t.Errorf("Ping: %v", err)
	}
}

func TestList_SubsecondOrdering(t *testing.T) {
	st := openTemp(t, filepath.Join(t.TempDir(), "hearcoach.db"))
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	later := storetest.SampleSession(base.Add(500 * time.Millisecond))
	earlier := storetest.SampleSession(base)
	if err := st.Append(ctx, later); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if err := st.Append(ctx, earlier); err != nil {
		t.Fatalf("Append: %v", err)
	}
	got, err := st.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if got[0].ID != earlier.ID {
		t.Errorf("first session started at %v, want %v", got[0].StartedAt, earlier.StartedAt)
	}
}
