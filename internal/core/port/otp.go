package port

import (
	"context"
	"time"

	"github.com/silver1334/lianxin/internal/core/domain"
)

// OTPChallengeStore persists ephemeral verification challenges with a TTL.
type OTPChallengeStore interface {
	Save(ctx context.Context, challenge domain.OTPChallenge, ttl time.Duration) error
	Get(ctx context.Context, verificationID string) (*domain.OTPChallenge, error)
	// IncrementAttempts bumps the attempt counter without disturbing the
	// remaining TTL and returns the new count.
	IncrementAttempts(ctx context.Context, verificationID string) (int, error)
	Delete(ctx context.Context, verificationID string) error
}

// OTPSender delivers a one-time code out of band. Delivery may run
// fire-and-forget relative to the calling request.
type OTPSender interface {
	SendOTP(ctx context.Context, phone, countryCode, code string, purpose domain.OTPPurpose) error
}
