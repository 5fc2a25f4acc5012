// ABOUTME: Tests for SQLite store implementation
// ABOUTME: Covers account creation, lookup, email uniqueness, and secret checks

package store

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"golang.org/x/crypto/bcrypt"
)

// newTestStore creates a SQLite store in a temp dir with a cheap bcrypt cost.
func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	store, err := NewSQLiteStore(dbPath)
	if err != nil {
		t.Fatalf("NewSQLiteStore failed: %v", err)
	}
	store.bcryptCost = bcrypt.MinCost
	t.Cleanup(func() { store.Close() })
	return store
}

func TestNewSQLiteStore(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")

	store, err := NewSQLiteStore(dbPath)
	if err != nil {
		t.Fatalf("NewSQLiteStore failed: %v", err)
	}
	defer store.Close()

	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		t.Error("database file was not created")
	}
}

func TestNewSQLiteStore_CreatesDirectory(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "subdir", "nested", "test.db")

	store, err := NewSQLiteStore(dbPath)
	if err != nil {
		t.Fatalf("NewSQLiteStore failed: %v", err)
	}
	defer store.Close()

	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		t.Error("database file was not created in nested directory")
	}
}

func TestNewSQLiteStore_Memory(t *testing.T) {
	store, err := NewSQLiteStore(":memory:")
	if err != nil {
		t.Fatalf("NewSQLiteStore failed: %v", err)
	}
	defer store.Close()

	if err := store.Ping(context.Background()); err != nil {
		t.Errorf("Ping failed: %v", err)
	}
}

func TestCreateAndFindAccount(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	created, err := store.CreateAccount(ctx, "  Ada Lovelace ", "Ada@Example.com ", "analytical")
	if err != nil {
		t.Fatalf("CreateAccount failed: %v", err)
	}

	if created.ID == "" {
		t.Error("expected generated ID")
	}
	if created.Email != "ada@example.com" {
		t.Errorf("Email = %q, want normalized", created.Email)
	}
	if created.DisplayName != "Ada Lovelace" {
		t.Errorf("DisplayName = %q, want trimmed", created.DisplayName)
	}
	if created.PasswordHash == "analytical" || created.PasswordHash == "" {
		t.Error("secret must be stored hashed")
	}

	found, err := store.FindByEmail(ctx, "ADA@example.com")
	if err != nil {
		t.Fatalf("FindByEmail failed: %v", err)
	}
	if found.ID != created.ID {
		t.Errorf("ID = %q, want %q", found.ID, created.ID)
	}
	if !found.CreatedAt.Equal(created.CreatedAt) {
		t.Errorf("CreatedAt = %v, want %v", found.CreatedAt, created.CreatedAt)
	}
}

func TestFindByEmail_NotFound(t *testing.T) {
	store := newTestStore(t)

	_, err := store.FindByEmail(context.Background(), "nobody@example.com")
	if !errors.Is(err, ErrAccountNotFound) {
		t.Errorf("expected ErrAccountNotFound, got %v", err)
	}
}

func TestCreateAccount_DuplicateEmail(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if _, err := store.CreateAccount(ctx, "First", "dup@example.com", "password1"); err != nil {
		t.Fatalf("first CreateAccount failed: %v", err)
	}

	_, err := store.CreateAccount(ctx, "Second", "DUP@example.com", "password2")
	if !errors.Is(err, ErrEmailExists) {
		t.Errorf("expected ErrEmailExists, got %v", err)
	}

	count, err := store.CountAccounts(ctx)
	if err != nil {
		t.Fatalf("CountAccounts failed: %v", err)
	}
	if count != 1 {
		t.Errorf("CountAccounts = %d, want 1", count)
	}
}

func TestVerifySecret(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	account, err := store.CreateAccount(ctx, "Grace", "grace@example.com", "cobol-rules")
	if err != nil {
		t.Fatalf("CreateAccount failed: %v", err)
	}

	if !store.VerifySecret(account, "cobol-rules") {
		t.Error("VerifySecret rejected the correct secret")
	}
	if store.VerifySecret(account, "COBOL-rules") {
		t.Error("VerifySecret accepted a wrong secret")
	}
	if store.VerifySecret(nil, "cobol-rules") {
		t.Error("VerifySecret accepted a nil account")
	}
	if store.VerifySecret(&Account{}, "") {
		t.Error("VerifySecret accepted an account without a hash")
	}
}

func TestIsUniqueConstraintError(t *testing.T) {
	if isUniqueConstraintError(nil) {
		t.Error("nil is not a constraint error")
	}
	if !isUniqueConstraintError(errors.New("constraint failed: UNIQUE constraint failed: accounts.email (2067)")) {
		t.Error("expected unique constraint error to be detected")
	}
	if isUniqueConstraintError(errors.New("database is locked")) {
		t.Error("unexpected match")
	}
}
