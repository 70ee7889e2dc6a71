package memstore_test

import (
	"context"
	"testing"
	"time"

	"github.com/MrWong99/hearcoach/pkg/store"
	"github.com/MrWong99/hearcoach/pkg/store/memstore"
	"github.com/MrWong99/hearcoach/pkg/store/storetest"
)

func TestStore(t *testing.T) {
	storetest.Run(t, func(t *testing.T) store.Store { return memstore.New() })
}

func TestStore_ListReturnsCopies(t *testing.T) {
	t.Parallel()
	s := memstore.New()
	ctx := context.Background()
	if err := s.Append(ctx, storetest.SampleSession(time.Now())); err != nil {
		t.Fatalf("Append: %v", err)
	}
	got, _ := s.List(ctx)
	got[0].Attempts[0].ItemScore = -1

	again, _ := s.List(ctx)
	if again[0].Attempts[0].ItemScore == -1 {
		t.Error("mutating a listed session changed the stored copy")
	}
}
