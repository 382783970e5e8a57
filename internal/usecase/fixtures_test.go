package usecase

import (
	"context"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"github.com/silver1334/lianxin/internal/core/domain"
	"github.com/silver1334/lianxin/internal/core/port"
	"github.com/silver1334/lianxin/internal/infra/security"
)

const (
	testPhone       = "13800138000"
	testCountryCode = "86"
	testPassword    = "Sup3r!SecurePass#7890"
	testDeviceID    = "device-1"
)

// fixture wires every service against shared in-memory dependencies and a
// controllable clock.
type fixture struct {
	mu    sync.Mutex
	clock time.Time

	accounts    *memAccountRepository
	sessions    *memSessionRepository
	audit       *memLoginAudit
	challenges  *memChallengeStore
	limiter     *memRateLimiter
	sender      *captureSender
	publisher   *capturePublisher
	revocations *memRevocationStore
	cache       *memCache
	hasher      *stubHasher
	identity    *security.IdentityHasher
	issuer      *security.TokenIssuer

	otp          *OTPService
	registration *RegistrationService
	auth         *AuthService
	password     *PasswordService
	admin        *AccountAdminService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	issuer, err := security.NewTokenIssuer(security.TokenIssuerConfig{
		Issuer:        "lianxin-test",
		AccessSecret:  "test-access-secret-0123456789abcdef",
		RefreshSecret: "test-refresh-secret-0123456789abcdef",
		ResetSecret:   "test-reset-secret-0123456789abcdefgh",
	})
	if err != nil {
		t.Fatalf("new token issuer: %v", err)
	}

	f := &fixture{
		clock:       time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC),
		accounts:    newMemAccountRepository(),
		sessions:    newMemSessionRepository(),
		audit:       &memLoginAudit{},
		challenges:  newMemChallengeStore(),
		limiter:     newMemRateLimiter(),
		sender:      newCaptureSender(),
		publisher:   &capturePublisher{},
		revocations: newMemRevocationStore(),
		cache:       newMemCache(),
		hasher:      &stubHasher{},
		identity:    security.NewIdentityHasher("test-identity-secret"),
		issuer:      issuer,
	}

	txm := &stubTxManager{repos: port.Repositories{
		Accounts:   f.accounts,
		Sessions:   f.sessions,
		LoginAudit: f.audit,
	}}

	log := zaptest.NewLogger(t)
	policy := security.DefaultPasswordValidator()
	tokens := security.NewTokenSource()
	clock := f.nowFunc()

	f.otp = NewOTPService(f.challenges, f.limiter, f.sender, f.accounts, f.identity, tokens, f.publisher, log).WithClock(clock)
	f.registration = NewRegistrationService(txm, f.otp, f.hasher, policy, f.identity, issuer, f.publisher, log).WithClock(clock)
	f.auth = NewAuthService(txm, f.accounts, f.sessions, f.audit, f.hasher, f.identity, issuer, f.revocations, f.publisher, log).WithClock(clock)
	f.password = NewPasswordService(txm, f.accounts, f.sessions, f.otp, f.hasher, policy, f.identity, issuer, f.revocations, f.cache, f.publisher, log).WithClock(clock)
	f.admin = NewAccountAdminService(txm, f.accounts, f.sessions, f.revocations, issuer, f.publisher, log).WithClock(clock)

	return f
}

func (f *fixture) nowFunc() func() time.Time {
	return func() time.Time {
		f.mu.Lock()
		defer f.mu.Unlock()
		return f.clock
	}
}

func (f *fixture) advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.clock = f.clock.Add(d)
}

// issueChallenge walks the send path and returns the verification id plus
// the delivered code.
func (f *fixture) issueChallenge(t *testing.T, purpose string) (string, string) {
	t.Helper()

	receipt, err := f.otp.Send(context.Background(), SendOTPInput{
		Phone:       testPhone,
		CountryCode: testCountryCode,
		Purpose:     purpose,
	})
	if err != nil {
		t.Fatalf("send otp: %v", err)
	}

	select {
	case <-f.sender.ready:
	case <-time.After(2 * time.Second):
		t.Fatal("otp delivery never happened")
	}

	sent, ok := f.sender.last()
	if !ok {
		t.Fatal("no otp was delivered")
	}
	return receipt.VerificationID, sent.Code
}

// register creates a fully verified account with one session.
func (f *fixture) register(t *testing.T) *AuthResult {
	t.Helper()

	verificationID, code := f.issueChallenge(t, string(domain.OTPPurposeRegistration))

	result, err := f.registration.Register(context.Background(), RegisterInput{
		Phone:          testPhone,
		CountryCode:    testCountryCode,
		Password:       testPassword,
		VerificationID: verificationID,
		Code:           code,
		DeviceID:       testDeviceID,
		DeviceName:     "Pixel 8",
		IP:             "203.0.113.7",
		UserAgent:      "okhttp/4.12",
	})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	return result
}

func (f *fixture) login(t *testing.T, deviceID string) (*AuthResult, error) {
	t.Helper()
	return f.auth.Login(context.Background(), LoginInput{
		Phone:       testPhone,
		CountryCode: testCountryCode,
		Password:    testPassword,
		DeviceID:    deviceID,
		DeviceName:  "Pixel 8",
		IP:          "203.0.113.7",
		UserAgent:   "okhttp/4.12",
	})
}
