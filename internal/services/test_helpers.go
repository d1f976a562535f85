package services

import (
	"context"
	"sync"
	"time"

	"github.com/palisadeauth/palisade/internal/models"
)

// MockAttemptStore implements AttemptStore for testing
type MockAttemptStore struct {
	RecordAttemptFunc         func(ctx context.Context, attempt *models.LoginAttempt) error
	CountFailuresFunc         func(ctx context.Context, accountID string, since time.Time) (int, error)
	CountAttemptsFunc         func(ctx context.Context, accountID string, since time.Time) (int, error)
	RecentAttemptsFunc        func(ctx context.Context, accountID string, limit int) ([]*models.LoginAttempt, error)
	HasKnownDeviceFunc        func(ctx context.Context, accountID, fingerprint string, since, before time.Time) (bool, error)
	CountFailuresBySourceFunc func(ctx context.Context, sourceID string, since time.Time) (int, error)
}

func (m *MockAttemptStore) RecordAttempt(ctx context.Context, attempt *models.LoginAttempt) error {
	if m.RecordAttemptFunc != nil {
		return m.RecordAttemptFunc(ctx, attempt)
	}
	return nil
}

func (m *MockAttemptStore) CountFailures(ctx context.Context, accountID string, since time.Time) (int, error) {
	if m.CountFailuresFunc != nil {
		return m.CountFailuresFunc(ctx, accountID, since)
	}
	return 0, nil
}

func (m *MockAttemptStore) CountAttempts(ctx context.Context, accountID string, since time.Time) (int, error) {
	if m.CountAttemptsFunc != nil {
		return m.CountAttemptsFunc(ctx, accountID, since)
	}
	return 0, nil
}

func (m *MockAttemptStore) RecentAttempts(ctx context.Context, accountID string, limit int) ([]*models.LoginAttempt, error) {
	if m.RecentAttemptsFunc != nil {
		return m.RecentAttemptsFunc(ctx, accountID, limit)
	}
	return []*models.LoginAttempt{}, nil
}

func (m *MockAttemptStore) HasKnownDevice(ctx context.Context, accountID, fingerprint string, since, before time.Time) (bool, error) {
	if m.HasKnownDeviceFunc != nil {
		return m.HasKnownDeviceFunc(ctx, accountID, fingerprint, since, before)
	}
	return false, nil
}

func (m *MockAttemptStore) CountFailuresBySource(ctx context.Context, sourceID string, since time.Time) (int, error) {
	if m.CountFailuresBySourceFunc != nil {
		return m.CountFailuresBySourceFunc(ctx, sourceID, since)
	}
	return 0, nil
}

// InMemoryAttemptStore is a thread-safe in-memory AttemptStore used where
// tests need real history semantics, including recording idempotence.
type InMemoryAttemptStore struct {
	mu       sync.Mutex
	attempts []*models.LoginAttempt
}

func (s *InMemoryAttemptStore) RecordAttempt(ctx context.Context, attempt *models.LoginAttempt) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.attempts {
		if existing.AccountID == attempt.AccountID &&
			existing.SourceID == attempt.SourceID &&
			existing.AttemptTime.Equal(attempt.AttemptTime) {
			return nil
		}
	}
	copied := *attempt
	s.attempts = append(s.attempts, &copied)
	return nil
}

func (s *InMemoryAttemptStore) CountFailures(ctx context.Context, accountID string, since time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	count := 0
	for _, a := range s.attempts {
		if a.AccountID == accountID && !a.Success() && !a.AttemptTime.Before(since) {
			count++
		}
	}
	return count, nil
}

func (s *InMemoryAttemptStore) CountAttempts(ctx context.Context, accountID string, since time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	count := 0
	for _, a := range s.attempts {
		if a.AccountID == accountID && !a.AttemptTime.Before(since) {
			count++
		}
	}
	return count, nil
}

func (s *InMemoryAttemptStore) RecentAttempts(ctx context.Context, accountID string, limit int) ([]*models.LoginAttempt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.LoginAttempt
	for i := len(s.attempts) - 1; i >= 0 && len(out) < limit; i-- {
		if s.attempts[i].AccountID == accountID {
			out = append(out, s.attempts[i])
		}
	}
	return out, nil
}

func (s *InMemoryAttemptStore) HasKnownDevice(ctx context.Context, accountID, fingerprint string, since, before time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range s.attempts {
		if a.AccountID == accountID && a.Success() &&
			a.DeviceFingerprint != nil && *a.DeviceFingerprint == fingerprint &&
			!a.AttemptTime.Before(since) && a.AttemptTime.Before(before) {
			return true, nil
		}
	}
	return false, nil
}

func (s *InMemoryAttemptStore) CountFailuresBySource(ctx context.Context, sourceID string, since time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	count := 0
	for _, a := range s.attempts {
		if a.SourceID == sourceID && !a.Success() && !a.AttemptTime.Before(since) {
			count++
		}
	}
	return count, nil
}

func (s *InMemoryAttemptStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.attempts)
}

// MockLockoutStore implements LockoutStore for testing
type MockLockoutStore struct {
	GetFunc    func(ctx context.Context, accountID string) (*models.LockoutState, error)
	UpsertFunc func(ctx context.Context, state *models.LockoutState) error
	UnlockFunc func(ctx context.Context, accountID string) error

	mu     sync.Mutex
	states map[string]*models.LockoutState
}

func (m *MockLockoutStore) Get(ctx context.Context, accountID string) (*models.LockoutState, error) {
	if m.GetFunc != nil {
		return m.GetFunc(ctx, accountID)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if state, ok := m.states[accountID]; ok {
		copied := *state
		return &copied, nil
	}
	return &models.LockoutState{AccountID: accountID}, nil
}

func (m *MockLockoutStore) Upsert(ctx context.Context, state *models.LockoutState) error {
	if m.UpsertFunc != nil {
		return m.UpsertFunc(ctx, state)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.states == nil {
		m.states = make(map[string]*models.LockoutState)
	}
	copied := *state
	m.states[state.AccountID] = &copied
	return nil
}

func (m *MockLockoutStore) Unlock(ctx context.Context, accountID string) error {
	if m.UnlockFunc != nil {
		return m.UnlockFunc(ctx, accountID)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.states, accountID)
	return nil
}

// MockTierHistory implements TierHistory for testing
type MockTierHistory struct {
	RecentTiersFunc func(ctx context.Context, accountID string, limit int) ([]models.RiskTier, error)
}

func (m *MockTierHistory) RecentTiers(ctx context.Context, accountID string, limit int) ([]models.RiskTier, error) {
	if m.RecentTiersFunc != nil {
		return m.RecentTiersFunc(ctx, accountID, limit)
	}
	return []models.RiskTier{}, nil
}

// MockAssessmentStore implements AssessmentStore for testing
type MockAssessmentStore struct {
	InsertFunc func(ctx context.Context, assessment *models.RiskAssessment) error

	mu       sync.Mutex
	Inserted []*models.RiskAssessment
}

func (m *MockAssessmentStore) Insert(ctx context.Context, assessment *models.RiskAssessment) error {
	if m.InsertFunc != nil {
		return m.InsertFunc(ctx, assessment)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Inserted = append(m.Inserted, assessment)
	return nil
}

// MockNotifier implements Notifier for testing
type MockNotifier struct {
	NotifyAccountLockedFunc func(ctx context.Context, state *models.LockoutState) error
	NotifyHighRiskLoginFunc func(ctx context.Context, assessment *models.RiskAssessment) error

	mu           sync.Mutex
	LockedCalls  []*models.LockoutState
	HighRiskCall []*models.RiskAssessment
}

// Reset clears captured notifications between test cases
func (m *MockNotifier) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.LockedCalls = nil
	m.HighRiskCall = nil
}

func (m *MockNotifier) NotifyAccountLocked(ctx context.Context, state *models.LockoutState) error {
	if m.NotifyAccountLockedFunc != nil {
		return m.NotifyAccountLockedFunc(ctx, state)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.LockedCalls = append(m.LockedCalls, state)
	return nil
}

func (m *MockNotifier) NotifyHighRiskLogin(ctx context.Context, assessment *models.RiskAssessment) error {
	if m.NotifyHighRiskLoginFunc != nil {
		return m.NotifyHighRiskLoginFunc(ctx, assessment)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.HighRiskCall = append(m.HighRiskCall, assessment)
	return nil
}

// MockCredentialVerifier implements CredentialVerifier for testing
type MockCredentialVerifier struct {
	VerifyFunc func(ctx context.Context, accountID, credential string) (bool, error)
}

func (m *MockCredentialVerifier) Verify(ctx context.Context, accountID, credential string) (bool, error) {
	if m.VerifyFunc != nil {
		return m.VerifyFunc(ctx, accountID, credential)
	}
	return credential == "correct-horse", nil
}

// NewTestAttempt creates a login attempt with sensible defaults
func NewTestAttempt(accountID, sourceID, outcome string, at time.Time) *models.LoginAttempt {
	return &models.LoginAttempt{
		AccountID:   accountID,
		SourceID:    sourceID,
		UserAgent:   "test-agent/1.0",
		Outcome:     outcome,
		AttemptTime: at,
	}
}

// NewTestAttemptWithDevice creates a login attempt carrying a fingerprint
func NewTestAttemptWithDevice(accountID, sourceID, outcome, fingerprint string, at time.Time) *models.LoginAttempt {
	attempt := NewTestAttempt(accountID, sourceID, outcome, at)
	attempt.DeviceFingerprint = &fingerprint
	return attempt
}

// NewTestLockedState creates an active lockout state
func NewTestLockedState(accountID, reason string, until time.Time) *models.LockoutState {
	return &models.LockoutState{
		AccountID:   accountID,
		IsLocked:    true,
		LockedUntil: &until,
		Reason:      &reason,
		UpdatedAt:   time.Now(),
	}
}
