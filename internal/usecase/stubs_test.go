package usecase

import (
	"context"
	"sync"
	"time"

	"github.com/silver1334/lianxin/internal/core/domain"
	"github.com/silver1334/lianxin/internal/core/port"
	"github.com/silver1334/lianxin/internal/repository"
)

// memAccountRepository is an in-memory port.AccountRepository.
type memAccountRepository struct {
	mu          sync.Mutex
	nextID      int64
	byID        map[int64]*domain.Account
	createCalls int
	updateCalls int
	createErr   error
}

func newMemAccountRepository() *memAccountRepository {
	return &memAccountRepository{byID: map[int64]*domain.Account{}}
}

func (m *memAccountRepository) Create(_ context.Context, account *domain.Account) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.createCalls++
	if m.createErr != nil {
		return m.createErr
	}
	for _, existing := range m.byID {
		if existing.PhoneHash == account.PhoneHash {
			return repository.ErrDuplicate
		}
	}
	m.nextID++
	account.ID = m.nextID
	m.byID[account.ID] = account
	return nil
}

func (m *memAccountRepository) GetByID(_ context.Context, id int64) (*domain.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if account, ok := m.byID[id]; ok {
		return account, nil
	}
	return nil, repository.ErrNotFound
}

func (m *memAccountRepository) GetByUUID(_ context.Context, accountUUID string) (*domain.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, account := range m.byID {
		if account.UUID == accountUUID {
			return account, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (m *memAccountRepository) GetByPhoneHash(_ context.Context, phoneHash string) (*domain.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, account := range m.byID {
		if account.PhoneHash == phoneHash {
			return account, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (m *memAccountRepository) Update(_ context.Context, account *domain.Account) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.updateCalls++
	if _, ok := m.byID[account.ID]; !ok {
		return repository.ErrNotFound
	}
	m.byID[account.ID] = account
	return nil
}

func (m *memAccountRepository) ListByStatus(_ context.Context, status domain.AccountStatus, limit int) ([]domain.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Account
	for _, account := range m.byID {
		if account.Status == status {
			out = append(out, *account)
		}
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (m *memAccountRepository) Delete(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byID[id]; !ok {
		return repository.ErrNotFound
	}
	delete(m.byID, id)
	return nil
}

// memSessionRepository is an in-memory port.SessionRepository.
type memSessionRepository struct {
	mu     sync.Mutex
	nextID int64
	byID   map[int64]*domain.Session
}

func newMemSessionRepository() *memSessionRepository {
	return &memSessionRepository{byID: map[int64]*domain.Session{}}
}

func (m *memSessionRepository) Create(_ context.Context, session *domain.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	session.ID = m.nextID
	stored := *session
	m.byID[session.ID] = &stored
	return nil
}

func (m *memSessionRepository) GetByPublicID(_ context.Context, publicID string) (*domain.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, session := range m.byID {
		if session.PublicID == publicID {
			copied := *session
			return &copied, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (m *memSessionRepository) ListByAccount(_ context.Context, accountID int64) ([]domain.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Session
	for _, session := range m.byID {
		if session.AccountID == accountID {
			out = append(out, *session)
		}
	}
	return out, nil
}

func (m *memSessionRepository) ListActiveByDevice(_ context.Context, accountID int64, deviceID string) ([]domain.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Session
	for _, session := range m.byID {
		if session.AccountID == accountID && session.DeviceID == deviceID && session.Active {
			out = append(out, *session)
		}
	}
	return out, nil
}

func (m *memSessionRepository) Update(_ context.Context, session *domain.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byID[session.ID]; !ok {
		return repository.ErrNotFound
	}
	stored := *session
	m.byID[session.ID] = &stored
	return nil
}

func (m *memSessionRepository) RevokeAllForAccount(_ context.Context, accountID int64, reason string, exceptPublicID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now().UTC()
	count := 0
	for _, session := range m.byID {
		if session.AccountID != accountID || !session.Active || session.PublicID == exceptPublicID {
			continue
		}
		session.Active = false
		session.RevokedAt = &now
		r := reason
		session.RevokeReason = &r
		count++
	}
	return count, nil
}

func (m *memSessionRepository) DeleteForAccount(_ context.Context, accountID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, session := range m.byID {
		if session.AccountID == accountID {
			delete(m.byID, id)
		}
	}
	return nil
}

func (m *memSessionRepository) activeCount(accountID int64) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	count := 0
	for _, session := range m.byID {
		if session.AccountID == accountID && session.Active {
			count++
		}
	}
	return count
}

// memLoginAudit collects login attempts.
type memLoginAudit struct {
	mu       sync.Mutex
	attempts []domain.LoginAttempt
}

func (m *memLoginAudit) Record(_ context.Context, attempt domain.LoginAttempt) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.attempts = append(m.attempts, attempt)
	return nil
}

// stubTxManager hands the same in-memory repositories to the closure.
type stubTxManager struct {
	repos port.Repositories
	err   error
}

func (m *stubTxManager) WithinTx(ctx context.Context, fn func(ctx context.Context, repos port.Repositories) error) error {
	if m.err != nil {
		return m.err
	}
	return fn(ctx, m.repos)
}

// memChallengeStore is an in-memory port.OTPChallengeStore.
type memChallengeStore struct {
	mu         sync.Mutex
	challenges map[string]domain.OTPChallenge
}

func newMemChallengeStore() *memChallengeStore {
	return &memChallengeStore{challenges: map[string]domain.OTPChallenge{}}
}

func (m *memChallengeStore) Save(_ context.Context, challenge domain.OTPChallenge, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.challenges[challenge.VerificationID] = challenge
	return nil
}

func (m *memChallengeStore) Get(_ context.Context, verificationID string) (*domain.OTPChallenge, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	challenge, ok := m.challenges[verificationID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &challenge, nil
}

func (m *memChallengeStore) IncrementAttempts(_ context.Context, verificationID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	challenge, ok := m.challenges[verificationID]
	if !ok {
		return 0, repository.ErrNotFound
	}
	challenge.Attempts++
	m.challenges[verificationID] = challenge
	return challenge.Attempts, nil
}

func (m *memChallengeStore) Delete(_ context.Context, verificationID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.challenges, verificationID)
	return nil
}

// memRateLimiter is an in-memory sliding-window store.
type memRateLimiter struct {
	mu       sync.Mutex
	attempts map[string][]time.Time
}

func newMemRateLimiter() *memRateLimiter {
	return &memRateLimiter{attempts: map[string][]time.Time{}}
}

func (m *memRateLimiter) TrimWindow(_ context.Context, identifier string, window time.Duration, reference time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	threshold := reference.Add(-window)
	var kept []time.Time
	for _, at := range m.attempts[identifier] {
		if at.After(threshold) {
			kept = append(kept, at)
		}
	}
	m.attempts[identifier] = kept
	return nil
}

func (m *memRateLimiter) CountAttempts(_ context.Context, identifier string, window time.Duration, reference time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	threshold := reference.Add(-window)
	count := 0
	for _, at := range m.attempts[identifier] {
		if at.After(threshold) && !at.After(reference) {
			count++
		}
	}
	return count, nil
}

func (m *memRateLimiter) RecordAttempt(_ context.Context, identifier string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.attempts[identifier] = append(m.attempts[identifier], at)
	return nil
}

func (m *memRateLimiter) OldestAttempt(_ context.Context, identifier string, window time.Duration, reference time.Time) (time.Time, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	threshold := reference.Add(-window)
	var oldest time.Time
	found := false
	for _, at := range m.attempts[identifier] {
		if at.After(threshold) && (!found || at.Before(oldest)) {
			oldest = at
			found = true
		}
	}
	return oldest, found, nil
}

// captureSender records deliveries and signals each one on a channel so
// tests can wait for the asynchronous send.
type captureSender struct {
	mu    sync.Mutex
	sent  []sentOTP
	ready chan struct{}
	err   error
}

type sentOTP struct {
	Phone   string
	Code    string
	Purpose domain.OTPPurpose
}

func newCaptureSender() *captureSender {
	return &captureSender{ready: make(chan struct{}, 16)}
}

func (s *captureSender) SendOTP(_ context.Context, phone, _, code string, purpose domain.OTPPurpose) error {
	s.mu.Lock()
	s.sent = append(s.sent, sentOTP{Phone: phone, Code: code, Purpose: purpose})
	s.mu.Unlock()
	s.ready <- struct{}{}
	return s.err
}

func (s *captureSender) last() (sentOTP, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.sent) == 0 {
		return sentOTP{}, false
	}
	return s.sent[len(s.sent)-1], true
}

// capturePublisher collects published events.
type capturePublisher struct {
	mu     sync.Mutex
	events []domain.Event
}

func (p *capturePublisher) Publish(_ context.Context, events ...domain.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, events...)
}

func (p *capturePublisher) byType(eventType string) []domain.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []domain.Event
	for _, event := range p.events {
		if event.Type == eventType {
			out = append(out, event)
		}
	}
	return out
}

// memRevocationStore flags revoked sessions in memory.
type memRevocationStore struct {
	mu      sync.Mutex
	revoked map[string]string
}

func newMemRevocationStore() *memRevocationStore {
	return &memRevocationStore{revoked: map[string]string{}}
}

func (m *memRevocationStore) MarkSessionRevoked(_ context.Context, sessionPublicID, reason string, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.revoked[sessionPublicID] = reason
	return nil
}

func (m *memRevocationStore) IsSessionRevoked(_ context.Context, sessionPublicID string) (bool, string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	reason, ok := m.revoked[sessionPublicID]
	return ok, reason, nil
}

func (m *memRevocationStore) ClearSessionRevocation(_ context.Context, sessionPublicID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.revoked, sessionPublicID)
	return nil
}

// memCache is an in-memory port.Cache that ignores TTLs.
type memCache struct {
	mu     sync.Mutex
	values map[string]string
}

func newMemCache() *memCache {
	return &memCache{values: map[string]string{}}
}

func (m *memCache) Get(_ context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	value, ok := m.values[key]
	if !ok {
		return "", repository.ErrNotFound
	}
	return value, nil
}

func (m *memCache) Set(_ context.Context, key, value string, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = value
	return nil
}

func (m *memCache) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.values, key)
	return nil
}

func (m *memCache) Exists(_ context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.values[key]
	return ok, nil
}

func (m *memCache) Increment(_ context.Context, key string) (int64, error) {
	return 0, nil
}

func (m *memCache) Expire(_ context.Context, key string, _ time.Duration) error {
	return nil
}

// stubHasher is a deterministic, fast stand-in for the argon2 hasher.
type stubHasher struct {
	mu        sync.Mutex
	hashCalls int
}

func (h *stubHasher) Hash(password string) (string, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.hashCalls++
	return "hashed:" + password, nil
}

func (h *stubHasher) Verify(password, encoded string) (bool, error) {
	return encoded == "hashed:"+password, nil
}

func (h *stubHasher) calls() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.hashCalls
}
