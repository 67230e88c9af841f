package storage

import (
	"context"
	"errors"
	"testing"

	"github.com/km2209/onion-gateway/internal/core/domain"
	"github.com/km2209/onion-gateway/internal/port"
)

// runResourceStoreSuite exercises the ResourceStore contract against a live
// backend. Callers are responsible for starting from an empty store.
func runResourceStoreSuite(t *testing.T, store port.ResourceStore) {
	t.Helper()
	ctx := context.Background()

	t.Run("CreateAndGet", func(t *testing.T) {
		created, err := store.Create(ctx, "Note A", "first")
		if err != nil {
			t.Fatalf("create failed: %v", err)
		}
		if created.Version != 1 {
			t.Errorf("expected version 1, got %d", created.Version)
		}

		got, err := store.Get(ctx, created.ID)
		if err != nil {
			t.Fatalf("get failed: %v", err)
		}
		if got.Title != "Note A" || got.Description != "first" || got.Version != 1 {
			t.Errorf("unexpected resource: %+v", got)
		}
		if got.UpdatedAt.Before(got.CreatedAt) {
			t.Error("updated_at must not precede created_at")
		}
	})

	t.Run("EmptyTitleRejected", func(t *testing.T) {
		if _, err := store.Create(ctx, "", "x"); !errors.Is(err, domain.ErrInvalidInput) {
			t.Errorf("expected ErrInvalidInput, got %v", err)
		}
	})

	t.Run("UnknownID", func(t *testing.T) {
		if _, err := store.Get(ctx, "00000000-0000-0000-0000-000000000000"); !errors.Is(err, domain.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("UpdateAndConflict", func(t *testing.T) {
		created, err := store.Create(ctx, "Draft", "v1")
		if err != nil {
			t.Fatalf("create failed: %v", err)
		}

		updated, err := store.Update(ctx, created.ID, 1, strPtr("Draft 2"), nil)
		if err != nil {
			t.Fatalf("update failed: %v", err)
		}
		if updated.Version != 2 || updated.Title != "Draft 2" || updated.Description != "v1" {
			t.Errorf("unexpected resource after update: %+v", updated)
		}

		if _, err := store.Update(ctx, created.ID, 1, strPtr("Draft 3"), nil); !errors.Is(err, domain.ErrVersionConflict) {
			t.Fatalf("expected ErrVersionConflict, got %v", err)
		}

		got, err := store.Get(ctx, created.ID)
		if err != nil {
			t.Fatalf("get failed: %v", err)
		}
		if got.Version != 2 || got.Title != "Draft 2" {
			t.Errorf("stale update must not mutate: %+v", got)
		}
	})

	t.Run("DeleteTombstones", func(t *testing.T) {
		created, err := store.Create(ctx, "Doomed", "")
		if err != nil {
			t.Fatalf("create failed: %v", err)
		}

		if err := store.Delete(ctx, created.ID, 2); !errors.Is(err, domain.ErrVersionConflict) {
			t.Fatalf("stale delete: expected ErrVersionConflict, got %v", err)
		}
		if err := store.Delete(ctx, created.ID, 1); err != nil {
			t.Fatalf("delete failed: %v", err)
		}

		if _, err := store.Get(ctx, created.ID); !errors.Is(err, domain.ErrNotFound) {
			t.Errorf("get after delete: expected ErrNotFound, got %v", err)
		}
		if _, err := store.Update(ctx, created.ID, 1, strPtr("x"), nil); !errors.Is(err, domain.ErrNotFound) {
			t.Errorf("update after delete: expected ErrNotFound, got %v", err)
		}
		if err := store.Delete(ctx, created.ID, 1); !errors.Is(err, domain.ErrNotFound) {
			t.Errorf("second delete: expected ErrNotFound, got %v", err)
		}
	})

	t.Run("ListCreationOrder", func(t *testing.T) {
		before, err := store.List(ctx)
		if err != nil {
			t.Fatalf("list failed: %v", err)
		}

		a, _ := store.Create(ctx, "order-a", "")
		b, _ := store.Create(ctx, "order-b", "")

		after, err := store.List(ctx)
		if err != nil {
			t.Fatalf("list failed: %v", err)
		}
		if len(after) != len(before)+2 {
			t.Fatalf("expected %d resources, got %d", len(before)+2, len(after))
		}
		if after[len(after)-2].ID != a.ID || after[len(after)-1].ID != b.ID {
			t.Errorf("new resources must appear last in creation order")
		}
	})
}
