package domain

import (
	"testing"
	"time"
)

func newTestSession(t *testing.T, now time.Time) *Session {
	t.Helper()
	session := NewSession(42, "refresh-hash-1", "device-1", "Pixel 9", "10.0.0.1", "lianxin-android/2.1", now.Add(7*24*time.Hour), now)
	session.DrainEvents()
	return session
}

func TestSessionValidity(t *testing.T) {
	now := time.Now()
	session := newTestSession(t, now)

	if !session.IsValid(now) {
		t.Fatal("fresh session must be valid")
	}
	if session.PublicID == "" {
		t.Fatal("expected public session id")
	}
	if session.IsValid(now.Add(8 * 24 * time.Hour)) {
		t.Fatal("expired session must be invalid")
	}
}

func TestSessionRevokeTerminal(t *testing.T) {
	now := time.Now()
	session := newTestSession(t, now)

	if err := session.Revoke(RevokeReasonUserLogout, now); err != nil {
		t.Fatalf("revoke: %v", err)
	}
	if session.IsValid(now) {
		t.Fatal("revoked session must be invalid")
	}
	if session.RevokeReason == nil || *session.RevokeReason != RevokeReasonUserLogout {
		t.Fatal("expected revoke reason recorded")
	}

	if err := session.Revoke(RevokeReasonAdminAction, now); err != ErrCannotRevoke {
		t.Fatalf("expected ErrCannotRevoke on second revoke, got %v", err)
	}

	events := session.DrainEvents()
	if len(events) != 1 || events[0].Type != EventSessionRevoked {
		t.Fatal("expected single revoked event")
	}
}

func TestSessionRotateRefreshToken(t *testing.T) {
	now := time.Now()
	session := newTestSession(t, now)
	oldHash := session.RefreshTokenHash

	newExpiry := now.Add(7 * 24 * time.Hour)
	session.RotateRefreshToken("refresh-hash-2", newExpiry, now.Add(time.Minute))

	if session.RefreshTokenHash == oldHash {
		t.Fatal("rotation must replace the stored hash")
	}
	if session.RefreshTokenHash != "refresh-hash-2" {
		t.Fatalf("unexpected hash %s", session.RefreshTokenHash)
	}
	if !session.RefreshIssuedAt.After(session.CreatedAt) {
		t.Fatal("expected refresh-issued timestamp advanced")
	}

	events := session.DrainEvents()
	if len(events) != 1 || events[0].Type != EventSessionRefreshed {
		t.Fatal("expected single refreshed event")
	}
}
