package security

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	uuid "github.com/google/uuid"
)

// Token verification failures.
var (
	ErrTokenExpired   = errors.New("jwt: token expired")
	ErrTokenMalformed = errors.New("jwt: token malformed")
	ErrWrongTokenType = errors.New("jwt: wrong token type")
)

// Token type discriminators carried in the "type" claim. Verification rejects
// cross-use of token classes.
const (
	TokenTypeAccess  = "access"
	TokenTypeRefresh = "refresh"
	TokenTypeReset   = "reset"
)

const (
	defaultAccessTokenTTL  = 30 * time.Minute
	defaultRefreshTokenTTL = 7 * 24 * time.Hour
	defaultResetTokenTTL   = 10 * time.Minute
)

// SessionClaims are carried by access and refresh tokens.
type SessionClaims struct {
	TokenType   string   `json:"type"`
	AccountUUID string   `json:"uid"`
	SessionID   string   `json:"sid"`
	DeviceID    string   `json:"did,omitempty"`
	Roles       []string `json:"roles,omitempty"`
	jwt.RegisteredClaims
}

// ResetClaims bridge an OTP-verified password reset to the actual change.
// They are scoped to the phone identity and the consumed verification id.
type ResetClaims struct {
	TokenType      string `json:"type"`
	PhoneHash      string `json:"ph"`
	VerificationID string `json:"vid"`
	jwt.RegisteredClaims
}

// TokenPair is an access/refresh token issue result.
type TokenPair struct {
	AccessToken      string
	RefreshToken     string
	AccessExpiresAt  time.Time
	RefreshExpiresAt time.Time
}

// TokenIssuerConfig configures signing secrets and lifetimes. Access, refresh,
// and reset tokens are signed with distinct secrets.
type TokenIssuerConfig struct {
	Issuer          string
	AccessSecret    string
	RefreshSecret   string
	ResetSecret     string
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration
	ResetTokenTTL   time.Duration
	ClockTolerance  time.Duration
}

// TokenIssuer signs and verifies the service's JWT classes.
type TokenIssuer struct {
	cfg TokenIssuerConfig
	now func() time.Time
}

// NewTokenIssuer validates secrets and constructs an issuer.
func NewTokenIssuer(cfg TokenIssuerConfig) (*TokenIssuer, error) {
	if strings.TrimSpace(cfg.Issuer) == "" {
		return nil, fmt.Errorf("jwt: issuer is required")
	}
	for name, secret := range map[string]string{
		"access":  cfg.AccessSecret,
		"refresh": cfg.RefreshSecret,
		"reset":   cfg.ResetSecret,
	} {
		if len(secret) < 32 {
			return nil, fmt.Errorf("jwt: %s secret must be at least 32 bytes", name)
		}
	}
	if cfg.AccessTokenTTL <= 0 {
		cfg.AccessTokenTTL = defaultAccessTokenTTL
	}
	if cfg.RefreshTokenTTL <= 0 {
		cfg.RefreshTokenTTL = defaultRefreshTokenTTL
	}
	if cfg.ResetTokenTTL <= 0 {
		cfg.ResetTokenTTL = defaultResetTokenTTL
	}
	return &TokenIssuer{
		cfg: cfg,
		now: func() time.Time { return time.Now().UTC() },
	}, nil
}

// WithClock overrides the internal clock for deterministic tests.
func (t *TokenIssuer) WithClock(clock func() time.Time) *TokenIssuer {
	if clock != nil {
		t.now = clock
	}
	return t
}

// AccessTokenTTL returns the configured access token lifetime.
func (t *TokenIssuer) AccessTokenTTL() time.Duration { return t.cfg.AccessTokenTTL }

// RefreshTokenTTL returns the configured refresh token lifetime.
func (t *TokenIssuer) RefreshTokenTTL() time.Duration { return t.cfg.RefreshTokenTTL }

// ResetTokenTTL returns the configured reset token lifetime.
func (t *TokenIssuer) ResetTokenTTL() time.Duration { return t.cfg.ResetTokenTTL }

// IssuePair signs an access/refresh token pair bound to the account, session,
// and device.
func (t *TokenIssuer) IssuePair(accountUUID, sessionID, deviceID string, roles []string) (TokenPair, error) {
	now := t.now()
	accessExpiry := now.Add(t.cfg.AccessTokenTTL)
	refreshExpiry := now.Add(t.cfg.RefreshTokenTTL)

	access, err := t.sign(SessionClaims{
		TokenType:        TokenTypeAccess,
		AccountUUID:      accountUUID,
		SessionID:        sessionID,
		DeviceID:         deviceID,
		Roles:            roles,
		RegisteredClaims: t.registered(accountUUID, now, accessExpiry),
	}, t.cfg.AccessSecret)
	if err != nil {
		return TokenPair{}, fmt.Errorf("sign access token: %w", err)
	}

	refresh, err := t.sign(SessionClaims{
		TokenType:        TokenTypeRefresh,
		AccountUUID:      accountUUID,
		SessionID:        sessionID,
		DeviceID:         deviceID,
		RegisteredClaims: t.registered(accountUUID, now, refreshExpiry),
	}, t.cfg.RefreshSecret)
	if err != nil {
		return TokenPair{}, fmt.Errorf("sign refresh token: %w", err)
	}

	return TokenPair{
		AccessToken:      access,
		RefreshToken:     refresh,
		AccessExpiresAt:  accessExpiry,
		RefreshExpiresAt: refreshExpiry,
	}, nil
}

func (t *TokenIssuer) sign(claims jwt.Claims, secret string) (string, error) {
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

// ParseAccessToken verifies an access token and returns its claims.
func (t *TokenIssuer) ParseAccessToken(token string) (*SessionClaims, error) {
	return t.parseSession(token, TokenTypeAccess, t.cfg.AccessSecret)
}

// ParseRefreshToken verifies a refresh token and returns its claims.
func (t *TokenIssuer) ParseRefreshToken(token string) (*SessionClaims, error) {
	return t.parseSession(token, TokenTypeRefresh, t.cfg.RefreshSecret)
}

// IssueResetToken signs a short-lived single-purpose password reset token.
func (t *TokenIssuer) IssueResetToken(phoneHash, verificationID string) (string, time.Time, error) {
	now := t.now()
	expiry := now.Add(t.cfg.ResetTokenTTL)
	token, err := t.sign(ResetClaims{
		TokenType:        TokenTypeReset,
		PhoneHash:        phoneHash,
		VerificationID:   verificationID,
		RegisteredClaims: t.registered(phoneHash, now, expiry),
	}, t.cfg.ResetSecret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign reset token: %w", err)
	}
	return token, expiry, nil
}

// ParseResetToken verifies a reset token and returns its claims.
func (t *TokenIssuer) ParseResetToken(token string) (*ResetClaims, error) {
	claims := &ResetClaims{}
	if err := t.parse(token, claims, t.cfg.ResetSecret); err != nil {
		return nil, err
	}
	if claims.TokenType != TokenTypeReset {
		return nil, ErrWrongTokenType
	}
	return claims, nil
}

func (t *TokenIssuer) parseSession(token, wantType, secret string) (*SessionClaims, error) {
	claims := &SessionClaims{}
	if err := t.parse(token, claims, secret); err != nil {
		return nil, err
	}
	if claims.TokenType != wantType {
		return nil, ErrWrongTokenType
	}
	return claims, nil
}

func (t *TokenIssuer) parse(token string, claims jwt.Claims, secret string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return ErrTokenMalformed
	}

	parsed, err := jwt.ParseWithClaims(token, claims, func(tok *jwt.Token) (interface{}, error) {
		if _, ok := tok.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", tok.Header["alg"])
		}
		return []byte(secret), nil
	},
		jwt.WithIssuer(t.cfg.Issuer),
		jwt.WithLeeway(t.cfg.ClockTolerance),
		jwt.WithTimeFunc(t.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return ErrTokenExpired
		}
		return ErrTokenMalformed
	}
	if !parsed.Valid {
		return ErrTokenMalformed
	}
	return nil
}

func (t *TokenIssuer) registered(subject string, now, expiry time.Time) jwt.RegisteredClaims {
	return jwt.RegisteredClaims{
		Subject:   subject,
		Issuer:    t.cfg.Issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		NotBefore: jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(expiry),
		ID:        uuid.NewString(),
	}
}
