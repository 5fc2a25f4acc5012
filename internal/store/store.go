// ABOUTME: Account record type, store errors, and password hashing helpers
// ABOUTME: Secrets are bcrypt-hashed here and never leave the store in plaintext

package store

import (
	"context"
	"errors"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"
)

// ErrAccountNotFound is returned when no account matches the lookup key.
var ErrAccountNotFound = errors.New("account not found")

// ErrEmailExists is returned when creating an account whose email is taken.
var ErrEmailExists = errors.New("email already exists")

// Account is a registered dashboard user.
type Account struct {
	ID           string
	Email        string
	DisplayName  string
	PasswordHash string // bcrypt hash
	CreatedAt    time.Time
}

// AccountStore defines the persistence operations for accounts.
type AccountStore interface {
	FindByEmail(ctx context.Context, email string) (*Account, error)
	CreateAccount(ctx context.Context, displayName, email, secret string) (*Account, error)
	VerifySecret(account *Account, secret string) bool
	Ping(ctx context.Context) error
	Close() error
}

// dummyHash is compared against when there is no account, so that lookups for
// unknown emails cost the same as a wrong password.
const dummyHash = "$2a$10$N9qo8uLOickgx2ZMRZoMyeIjZAgcfl7p92ldGxad68LJZdL17lhWy"

// NormalizeEmail trims and lower-cases an email address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// hashSecret hashes a plaintext secret with the given bcrypt cost.
func hashSecret(secret string, cost int) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(secret), cost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// verifySecret reports whether secret matches the account's hash. A nil
// account or empty hash still performs one comparison and returns false.
func verifySecret(account *Account, secret string) bool {
	if account == nil || account.PasswordHash == "" {
		_ = bcrypt.CompareHashAndPassword([]byte(dummyHash), []byte(secret))
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(secret)) == nil
}
