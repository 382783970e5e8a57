package port

import (
	"context"
	"time"
)

// SessionRevocationStore caches session revocation flags so token checks can
// reject revoked sessions without a relational round trip.
type SessionRevocationStore interface {
	MarkSessionRevoked(ctx context.Context, sessionPublicID string, reason string, ttl time.Duration) error
	IsSessionRevoked(ctx context.Context, sessionPublicID string) (bool, string, error)
	ClearSessionRevocation(ctx context.Context, sessionPublicID string) error
}
