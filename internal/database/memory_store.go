package database

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/ecovend/backend/internal/models"
)

// MemoryAccountStore keeps accounts in process memory.
type MemoryAccountStore struct {
	mu       sync.RWMutex
	accounts map[string]models.Account
}

func NewMemoryAccountStore() *MemoryAccountStore {
	return &MemoryAccountStore{accounts: make(map[string]models.Account)}
}

func (s *MemoryAccountStore) Get(_ context.Context, identity string) (models.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	acct, ok := s.accounts[identity]
	if !ok {
		return models.Account{}, models.ErrAccountNotFound
	}
	return cloneAccount(acct), nil
}

func (s *MemoryAccountStore) Create(_ context.Context, acct models.Account) (models.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.accounts[acct.Identity]; exists {
		return acct, models.ErrAlreadyExists
	}
	acct.Version = 1
	s.accounts[acct.Identity] = cloneAccount(acct)
	return acct, nil
}

func (s *MemoryAccountStore) Put(_ context.Context, acct models.Account) (models.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.accounts[acct.Identity]
	if !ok || stored.Version != acct.Version {
		return acct, fmt.Errorf("%w: %s at version %d", models.ErrStaleAccount, acct.Identity, acct.Version)
	}
	acct.Version++
	s.accounts[acct.Identity] = cloneAccount(acct)
	return acct, nil
}

func (s *MemoryAccountStore) Identities(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	identities := make([]string, 0, len(s.accounts))
	for identity := range s.accounts {
		identities = append(identities, identity)
	}
	sort.Strings(identities)
	return identities, nil
}

func cloneAccount(acct models.Account) models.Account {
	acct.ActivityLog = append(make(models.ActivityLog, 0, len(acct.ActivityLog)), acct.ActivityLog...)
	return acct
}

type expiringValue struct {
	value     []byte
	expiresAt time.Time // zero means no expiry
}

func (v expiringValue) expired(now time.Time) bool {
	return !v.expiresAt.IsZero() && !now.Before(v.expiresAt)
}

// MemorySessionStore is a SessionStore for single-process deployments where
// Redis is unavailable.
type MemorySessionStore struct {
	mu      sync.Mutex
	entries map[string]expiringValue
	now     func() time.Time
}

func NewMemorySessionStore() *MemorySessionStore {
	return &MemorySessionStore{entries: make(map[string]expiringValue), now: time.Now}
}

func (s *MemorySessionStore) set(key string, value []byte, ttl time.Duration) {
	entry := expiringValue{value: value}
	if ttl > 0 {
		entry.expiresAt = s.now().Add(ttl)
	}
	s.entries[key] = entry
}

func (s *MemorySessionStore) get(key string) ([]byte, bool) {
	entry, ok := s.entries[key]
	if !ok {
		return nil, false
	}
	if entry.expired(s.now()) {
		delete(s.entries, key)
		return nil, false
	}
	return entry.value, true
}

func (s *MemorySessionStore) SetActiveSession(_ context.Context, machineID, identity string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.set(sessionKey(machineID), []byte(identity), ttl)
	return nil
}

func (s *MemorySessionStore) ActiveSession(_ context.Context, machineID string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	value, ok := s.get(sessionKey(machineID))
	return string(value), ok, nil
}

func (s *MemorySessionStore) ClearActiveSession(_ context.Context, machineID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, sessionKey(machineID))
	return nil
}

func (s *MemorySessionStore) BlacklistToken(_ context.Context, token string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.set(blacklistKey(token), []byte("1"), ttl)
	return nil
}

func (s *MemorySessionStore) IsTokenBlacklisted(_ context.Context, token string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.get(blacklistKey(token))
	return ok, nil
}

func (s *MemorySessionStore) AllowScan(_ context.Context, identity string, max int, window time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := scanRateLimitKey(identity)
	count := 0
	if value, ok := s.get(key); ok {
		count, _ = strconv.Atoi(string(value))
	}
	if count >= max {
		return false, nil
	}
	// counter window starts at the first scan and is refreshed by later ones
	s.set(key, []byte(strconv.Itoa(count+1)), window)
	return true, nil
}

func (s *MemorySessionStore) ReleaseScan(_ context.Context, identity string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := scanRateLimitKey(identity)
	value, ok := s.get(key)
	if !ok {
		return nil
	}
	count, _ := strconv.Atoi(string(value))
	if count <= 1 {
		delete(s.entries, key)
		return nil
	}
	entry := s.entries[key]
	entry.value = []byte(strconv.Itoa(count - 1))
	s.entries[key] = entry
	return nil
}

func (s *MemorySessionStore) SavePendingScan(_ context.Context, scanID string, payload []byte, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.set(pendingScanKey(scanID), append([]byte(nil), payload...), ttl)
	return nil
}

func (s *MemorySessionStore) TakePendingScan(_ context.Context, scanID string) ([]byte, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := pendingScanKey(scanID)
	value, ok := s.get(key)
	if ok {
		delete(s.entries, key)
	}
	return value, ok, nil
}
