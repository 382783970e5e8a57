package redis

import (
	"context"
	"testing"
	"time"
)

func TestRateLimitStore_RecordAndCount(t *testing.T) {
	client, _ := newTestRedis(t)
	store := NewRateLimitStore(client, SlidingWindowConfig{KeyPrefix: "ratelimit:otp", TTL: time.Hour})

	ctx := context.Background()
	now := time.Now().UTC()

	for i := 0; i < 3; i++ {
		if err := store.RecordAttempt(ctx, "phone-hash", now.Add(time.Duration(i)*time.Second)); err != nil {
			t.Fatalf("RecordAttempt returned error: %v", err)
		}
	}

	count, err := store.CountAttempts(ctx, "phone-hash", time.Hour, now.Add(3*time.Second))
	if err != nil {
		t.Fatalf("CountAttempts returned error: %v", err)
	}
	if count != 3 {
		t.Fatalf("expected 3 attempts, got %d", count)
	}
}

func TestRateLimitStore_WindowSlides(t *testing.T) {
	client, _ := newTestRedis(t)
	store := NewRateLimitStore(client, SlidingWindowConfig{KeyPrefix: "ratelimit:otp", TTL: time.Hour})

	ctx := context.Background()
	now := time.Now().UTC()

	if err := store.RecordAttempt(ctx, "phone-hash", now.Add(-2*time.Hour)); err != nil {
		t.Fatalf("RecordAttempt returned error: %v", err)
	}
	if err := store.RecordAttempt(ctx, "phone-hash", now); err != nil {
		t.Fatalf("RecordAttempt returned error: %v", err)
	}

	count, err := store.CountAttempts(ctx, "phone-hash", time.Hour, now)
	if err != nil {
		t.Fatalf("CountAttempts returned error: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected attempts outside the window excluded, got %d", count)
	}

	if err := store.TrimWindow(ctx, "phone-hash", time.Hour, now); err != nil {
		t.Fatalf("TrimWindow returned error: %v", err)
	}

	oldest, ok, err := store.OldestAttempt(ctx, "phone-hash", time.Hour, now)
	if err != nil {
		t.Fatalf("OldestAttempt returned error: %v", err)
	}
	if !ok {
		t.Fatalf("expected a remaining attempt inside the window")
	}
	if oldest.Before(now.Add(-time.Hour)) {
		t.Fatalf("trimmed attempt still reported as oldest: %v", oldest)
	}
}

func TestRateLimitStore_OldestAttemptEmpty(t *testing.T) {
	client, _ := newTestRedis(t)
	store := NewRateLimitStore(client, SlidingWindowConfig{KeyPrefix: "ratelimit:otp", TTL: time.Hour})

	_, ok, err := store.OldestAttempt(context.Background(), "unknown", time.Hour, time.Now().UTC())
	if err != nil {
		t.Fatalf("OldestAttempt returned error: %v", err)
	}
	if ok {
		t.Fatalf("expected no attempts recorded")
	}
}
