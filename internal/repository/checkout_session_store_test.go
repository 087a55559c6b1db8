package repository

import (
	"errors"
	"testing"
	"time"

	"storefront-checkout-backend/internal/models"
)

func TestMemoryCheckoutSessionStoreExpiresEntries(t *testing.T) {
	now := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	store := NewMemoryCheckoutSessionStore(func() time.Time { return now })

	if err := store.Save(&models.CheckoutSession{Key: "k", SessionID: "s1"}, time.Minute); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	got, err := store.Get("k")
	if err != nil || got.SessionID != "s1" {
		t.Fatalf("expected stored session, got %+v, %v", got, err)
	}

	now = now.Add(time.Minute)
	if _, err := store.Get("k"); !errors.Is(err, ErrCheckoutSessionNotFound) {
		t.Fatalf("expected expired entry to be gone, got %v", err)
	}
}

func TestMemoryCheckoutSessionStoreReturnsCopies(t *testing.T) {
	store := NewMemoryCheckoutSessionStore(nil)
	_ = store.Save(&models.CheckoutSession{Key: "k", SessionID: "s1"}, 0)

	got, _ := store.Get("k")
	got.SessionID = "changed"

	again, _ := store.Get("k")
	if again.SessionID != "s1" {
		t.Fatalf("store must not share records with callers")
	}

	_ = store.Delete("k")
	if _, err := store.Get("k"); !errors.Is(err, ErrCheckoutSessionNotFound) {
		t.Fatalf("expected deleted entry to be gone")
	}
}
