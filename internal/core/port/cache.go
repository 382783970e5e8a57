package port

import (
	"context"
	"time"
)

// Cache exposes the expiring-store operations the core relies on for
// ephemeral state (OTP challenges, rate-limit counters, revocation flags).
type Cache interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value string, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
	Increment(ctx context.Context, key string) (int64, error)
	Expire(ctx context.Context, key string, ttl time.Duration) error
}
