package state

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestMemoryStoreConsumeOnce(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	if err := store.Store(ctx, "abc", time.Minute); err != nil {
		t.Fatalf("Store() error = %v", err)
	}
	if err := store.Consume(ctx, "abc"); err != nil {
		t.Fatalf("first Consume() error = %v", err)
	}
	if err := store.Consume(ctx, "abc"); !errors.Is(err, ErrStateNotFound) {
		t.Errorf("second Consume() error = %v, want ErrStateNotFound", err)
	}
}

func TestMemoryStoreUnknownState(t *testing.T) {
	store := NewMemoryStore()
	if err := store.Consume(context.Background(), "never-stored"); !errors.Is(err, ErrStateNotFound) {
		t.Errorf("Consume() error = %v, want ErrStateNotFound", err)
	}
}

func TestMemoryStoreExpiredState(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	if err := store.Store(ctx, "old", -time.Second); err != nil {
		t.Fatalf("Store() error = %v", err)
	}
	if err := store.Consume(ctx, "old"); !errors.Is(err, ErrStateNotFound) {
		t.Errorf("Consume() error = %v, want ErrStateNotFound", err)
	}
}

func TestMemoryStoreSweepsExpired(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	if err := store.Store(ctx, "old", -time.Second); err != nil {
		t.Fatalf("Store() error = %v", err)
	}
	if err := store.Store(ctx, "fresh", time.Minute); err != nil {
		t.Fatalf("Store() error = %v", err)
	}

	store.mu.Lock()
	_, ok := store.states["old"]
	store.mu.Unlock()
	if ok {
		t.Error("expired state survived the sweep")
	}
	if err := store.Consume(ctx, "fresh"); err != nil {
		t.Errorf("Consume(fresh) error = %v", err)
	}
}
