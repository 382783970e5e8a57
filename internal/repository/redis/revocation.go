package redis

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	red "github.com/redis/go-redis/v9"

	"github.com/silver1334/lianxin/internal/core/port"
)

const defaultSessionRevocationPrefix = "session:revoked"

// SessionRevocationStore caches session revocation flags so access-token
// checks can reject revoked sessions before the token itself expires.
type SessionRevocationStore struct {
	client *red.Client
	prefix string
}

// NewSessionRevocationStore constructs a Redis-backed revocation cache.
func NewSessionRevocationStore(client *red.Client, keyPrefix string) *SessionRevocationStore {
	prefix := strings.TrimSpace(keyPrefix)
	if prefix == "" {
		prefix = defaultSessionRevocationPrefix
	}
	return &SessionRevocationStore{client: client, prefix: prefix}
}

// MarkSessionRevoked stores the session identifier with the supplied reason.
// The TTL only needs to outlive the longest access-token lifetime.
func (s *SessionRevocationStore) MarkSessionRevoked(ctx context.Context, sessionPublicID string, reason string, ttl time.Duration) error {
	if sessionPublicID == "" {
		return errors.New("session id is required")
	}
	if ttl <= 0 {
		return errors.New("ttl must be positive")
	}

	value := strings.TrimSpace(reason)
	if value == "" {
		value = "revoked"
	}

	if err := s.client.Set(ctx, s.key(sessionPublicID), value, ttl).Err(); err != nil {
		return fmt.Errorf("redis set session revocation: %w", err)
	}
	return nil
}

// IsSessionRevoked reports whether the session was revoked and the stored reason.
func (s *SessionRevocationStore) IsSessionRevoked(ctx context.Context, sessionPublicID string) (bool, string, error) {
	if sessionPublicID == "" {
		return false, "", errors.New("session id is required")
	}

	value, err := s.client.Get(ctx, s.key(sessionPublicID)).Result()
	if err != nil {
		if errors.Is(err, red.Nil) {
			return false, "", nil
		}
		return false, "", fmt.Errorf("redis get session revocation: %w", err)
	}
	return true, value, nil
}

// ClearSessionRevocation drops the flag, typically after the backing session
// row has been deleted.
func (s *SessionRevocationStore) ClearSessionRevocation(ctx context.Context, sessionPublicID string) error {
	if sessionPublicID == "" {
		return errors.New("session id is required")
	}
	if err := s.client.Del(ctx, s.key(sessionPublicID)).Err(); err != nil {
		return fmt.Errorf("redis delete session revocation: %w", err)
	}
	return nil
}

func (s *SessionRevocationStore) key(sessionPublicID string) string {
	return fmt.Sprintf("%s:%s", s.prefix, sessionPublicID)
}

var _ port.SessionRevocationStore = (*SessionRevocationStore)(nil)
