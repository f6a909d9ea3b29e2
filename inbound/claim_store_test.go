package inbound

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestInMemoryClaimStore_ClaimCompleteFail(t *testing.T) {
	store := NewInMemoryClaimStore()
	now := time.Date(2026, 2, 13, 12, 0, 0, 0, time.UTC)
	store.Now = func() time.Time { return now }
	ctx := context.Background()

	token, ok, err := store.Claim(ctx, "claim:c1", time.Minute)
	if err != nil || !ok || token == "" {
		t.Fatalf("expected first claim accepted, got %q %v %v", token, ok, err)
	}
	if _, ok, _ := store.Claim(ctx, "claim:c1", time.Minute); ok {
		t.Fatalf("expected in-flight key to block")
	}

	if err := store.Fail(ctx, token, errors.New("boom"), now.Add(30*time.Second)); err != nil {
		t.Fatalf("fail: %v", err)
	}
	if _, ok, _ := store.Claim(ctx, "claim:c1", time.Minute); ok {
		t.Fatalf("expected retry-ready key to block until retryAt")
	}
	now = now.Add(31 * time.Second)
	retryToken, ok, err := store.Claim(ctx, "claim:c1", time.Minute)
	if err != nil || !ok {
		t.Fatalf("expected claim after retryAt, got %v %v", ok, err)
	}
	if retryToken == token {
		t.Fatalf("expected a fresh claim token")
	}
	if store.Attempts("claim:c1") != 2 {
		t.Fatalf("expected two attempts, got %d", store.Attempts("claim:c1"))
	}

	if err := store.Complete(ctx, token); err != nil {
		t.Fatalf("stale complete should be ignored, got %v", err)
	}
	if err := store.Complete(ctx, retryToken); err != nil {
		t.Fatalf("complete: %v", err)
	}
	if _, ok, _ := store.Claim(ctx, "claim:c1", time.Minute); ok {
		t.Fatalf("expected completed key to block within lease")
	}
	now = now.Add(2 * time.Minute)
	if _, ok, _ := store.Claim(ctx, "claim:c1", time.Minute); !ok {
		t.Fatalf("expected completed key to be claimable after lease")
	}
}

func TestInMemoryClaimStore_RejectsEmptyInput(t *testing.T) {
	store := NewInMemoryClaimStore()
	if _, _, err := store.Claim(context.Background(), " ", time.Minute); err == nil {
		t.Fatalf("expected empty key error")
	}
	if err := store.Complete(context.Background(), ""); err == nil {
		t.Fatalf("expected empty token error")
	}
	var nilStore *InMemoryClaimStore
	if _, _, err := nilStore.Claim(context.Background(), "k", time.Minute); err == nil {
		t.Fatalf("expected nil store error")
	}
}
