// ABOUTME: Mock AccountStore implementation for testing
// ABOUTME: Allows tests to run without SQLite and to inject storage failures

package store

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// MockStore is an in-memory AccountStore implementation for testing.
type MockStore struct {
	mu       sync.RWMutex
	accounts map[string]*Account // keyed by normalized email
	failWith error
}

// Ensure MockStore implements AccountStore.
var _ AccountStore = (*MockStore)(nil)

// NewMockStore creates a new MockStore.
func NewMockStore() *MockStore {
	return &MockStore{
		accounts: make(map[string]*Account),
	}
}

// FailWith makes every subsequent context-taking call return err.
// Passing nil restores normal behavior.
func (m *MockStore) FailWith(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failWith = err
}

// FindByEmail retrieves an account by email.
func (m *MockStore) FindByEmail(ctx context.Context, email string) (*Account, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.failWith != nil {
		return nil, m.failWith
	}

	a, ok := m.accounts[NormalizeEmail(email)]
	if !ok {
		return nil, ErrAccountNotFound
	}

	// Return a copy
	result := *a
	return &result, nil
}

// CreateAccount stores a new account. Hashing uses bcrypt.MinCost so tests
// stay fast.
func (m *MockStore) CreateAccount(ctx context.Context, displayName, email, secret string) (*Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.failWith != nil {
		return nil, m.failWith
	}

	key := NormalizeEmail(email)
	if _, exists := m.accounts[key]; exists {
		return nil, ErrEmailExists
	}

	hash, err := hashSecret(secret, bcrypt.MinCost)
	if err != nil {
		return nil, err
	}

	a := &Account{
		ID:           uuid.New().String(),
		Email:        key,
		DisplayName:  strings.TrimSpace(displayName),
		PasswordHash: hash,
		CreatedAt:    time.Now().UTC().Truncate(time.Second),
	}
	m.accounts[key] = a

	result := *a
	return &result, nil
}

// VerifySecret reports whether secret matches the account's stored hash.
func (m *MockStore) VerifySecret(account *Account, secret string) bool {
	return verifySecret(account, secret)
}

// Ping reports the injected failure, if any.
func (m *MockStore) Ping(ctx context.Context) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.failWith
}

// Close is a no-op for MockStore.
func (m *MockStore) Close() error {
	return nil
}

// Len returns the number of stored accounts.
func (m *MockStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.accounts)
}
