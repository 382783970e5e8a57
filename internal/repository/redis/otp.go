package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	red "github.com/redis/go-redis/v9"

	"github.com/silver1334/lianxin/internal/core/domain"
	"github.com/silver1334/lianxin/internal/core/port"
	"github.com/silver1334/lianxin/internal/repository"
)

const (
	defaultOTPPrefix = "otp:challenge"

	fieldPhone       = "phone"
	fieldCountryCode = "country_code"
	fieldPhoneHash   = "phone_hash"
	fieldPurpose     = "purpose"
	fieldAccountUUID = "account_uuid"
	fieldCode        = "code"
	fieldAttempts    = "attempts"
	fieldCreatedAt   = "created_at"
	fieldExpiresAt   = "expires_at"
)

// OTPChallengeStore keeps verification challenges in Redis hashes so they
// disappear on TTL expiry without any cleanup job.
type OTPChallengeStore struct {
	client *red.Client
	prefix string
}

// NewOTPChallengeStore constructs a challenge store with the provided client and key prefix.
func NewOTPChallengeStore(client *red.Client, keyPrefix string) *OTPChallengeStore {
	prefix := strings.TrimSpace(keyPrefix)
	if prefix == "" {
		prefix = defaultOTPPrefix
	}
	return &OTPChallengeStore{client: client, prefix: prefix}
}

// Save persists the challenge under its verification ID with the given TTL.
func (s *OTPChallengeStore) Save(ctx context.Context, challenge domain.OTPChallenge, ttl time.Duration) error {
	switch {
	case challenge.VerificationID == "":
		return errors.New("verification id is required")
	case challenge.Code == "":
		return errors.New("code is required")
	case ttl <= 0:
		return errors.New("ttl must be positive")
	}

	key := s.key(challenge.VerificationID)

	pipe := s.client.TxPipeline()
	pipe.HSet(ctx, key, map[string]any{
		fieldPhone:       challenge.Phone,
		fieldCountryCode: challenge.CountryCode,
		fieldPhoneHash:   challenge.PhoneHash,
		fieldPurpose:     string(challenge.Purpose),
		fieldAccountUUID: challenge.AccountUUID,
		fieldCode:        challenge.Code,
		fieldAttempts:    strconv.Itoa(challenge.Attempts),
		fieldCreatedAt:   strconv.FormatInt(challenge.CreatedAt.Unix(), 10),
		fieldExpiresAt:   strconv.FormatInt(challenge.ExpiresAt.Unix(), 10),
	})
	pipe.Expire(ctx, key, ttl)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis save otp challenge: %w", err)
	}
	return nil
}

// Get loads the challenge stored under the verification ID.
func (s *OTPChallengeStore) Get(ctx context.Context, verificationID string) (*domain.OTPChallenge, error) {
	if verificationID == "" {
		return nil, errors.New("verification id is required")
	}

	values, err := s.client.HGetAll(ctx, s.key(verificationID)).Result()
	if err != nil {
		return nil, fmt.Errorf("redis get otp challenge: %w", err)
	}
	if len(values) == 0 {
		return nil, repository.ErrNotFound
	}

	attempts, err := strconv.Atoi(values[fieldAttempts])
	if err != nil {
		return nil, fmt.Errorf("parse otp attempts: %w", err)
	}
	createdAt, err := strconv.ParseInt(values[fieldCreatedAt], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("parse otp created_at: %w", err)
	}
	expiresAt, err := strconv.ParseInt(values[fieldExpiresAt], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("parse otp expires_at: %w", err)
	}

	return &domain.OTPChallenge{
		VerificationID: verificationID,
		Phone:          values[fieldPhone],
		CountryCode:    values[fieldCountryCode],
		PhoneHash:      values[fieldPhoneHash],
		Purpose:        domain.OTPPurpose(values[fieldPurpose]),
		AccountUUID:    values[fieldAccountUUID],
		Code:           values[fieldCode],
		Attempts:       attempts,
		CreatedAt:      time.Unix(createdAt, 0).UTC(),
		ExpiresAt:      time.Unix(expiresAt, 0).UTC(),
	}, nil
}

// IncrementAttempts bumps the attempt counter. HINCRBY leaves the key TTL
// untouched, so the challenge window never stretches.
func (s *OTPChallengeStore) IncrementAttempts(ctx context.Context, verificationID string) (int, error) {
	if verificationID == "" {
		return 0, errors.New("verification id is required")
	}

	key := s.key(verificationID)
	exists, err := s.client.Exists(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("redis exists otp challenge: %w", err)
	}
	if exists == 0 {
		return 0, repository.ErrNotFound
	}

	count, err := s.client.HIncrBy(ctx, key, fieldAttempts, 1).Result()
	if err != nil {
		return 0, fmt.Errorf("redis increment otp attempts: %w", err)
	}
	return int(count), nil
}

// Delete removes the challenge, making the verification ID single use.
func (s *OTPChallengeStore) Delete(ctx context.Context, verificationID string) error {
	if verificationID == "" {
		return errors.New("verification id is required")
	}
	if err := s.client.Del(ctx, s.key(verificationID)).Err(); err != nil {
		return fmt.Errorf("redis delete otp challenge: %w", err)
	}
	return nil
}

func (s *OTPChallengeStore) key(verificationID string) string {
	return fmt.Sprintf("%s:%s", s.prefix, verificationID)
}

var _ port.OTPChallengeStore = (*OTPChallengeStore)(nil)
