// ABOUTME: SQLite implementation of AccountStore using modernc.org/sqlite
// ABOUTME: Provides account persistence with automatic schema creation

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	_ "modernc.org/sqlite"
)

// SQLiteStore implements AccountStore using SQLite
type SQLiteStore struct {
	db         *sql.DB
	logger     *slog.Logger
	bcryptCost int
}

// Ensure SQLiteStore implements AccountStore.
var _ AccountStore = (*SQLiteStore)(nil)

// NewSQLiteStore creates a new SQLite store at the given path.
// The schema is automatically created if it doesn't exist.
// Parent directories are created if needed.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	logger := slog.Default().With("component", "store")

	if path != ":memory:" {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if path == ":memory:" {
		// Each pooled connection would otherwise get its own empty database.
		db.SetMaxOpenConns(1)
	}

	// Enable WAL mode for better concurrent performance
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	s := &SQLiteStore{
		db:         db,
		logger:     logger,
		bcryptCost: bcrypt.DefaultCost,
	}

	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	logger.Info("SQLite store initialized", "path", path)
	return s, nil
}

// createSchema creates the database tables if they don't exist
func (s *SQLiteStore) createSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS accounts (
			id            TEXT PRIMARY KEY,
			email         TEXT NOT NULL UNIQUE,
			display_name  TEXT NOT NULL,
			password_hash TEXT NOT NULL,
			created_at    TEXT NOT NULL
		);
	`

	_, err := s.db.Exec(schema)
	return err
}

// FindByEmail retrieves an account by its (normalized) email.
func (s *SQLiteStore) FindByEmail(ctx context.Context, email string) (*Account, error) {
	query := `
		SELECT id, email, display_name, password_hash, created_at
		FROM accounts
		WHERE email = ?
	`

	var account Account
	var createdAtStr string

	err := s.db.QueryRowContext(ctx, query, NormalizeEmail(email)).Scan(
		&account.ID,
		&account.Email,
		&account.DisplayName,
		&account.PasswordHash,
		&createdAtStr,
	)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrAccountNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying account by email: %w", err)
	}

	account.CreatedAt, err = time.Parse(time.RFC3339, createdAtStr)
	if err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}

	return &account, nil
}

// CreateAccount hashes the secret and inserts a new account.
func (s *SQLiteStore) CreateAccount(ctx context.Context, displayName, email, secret string) (*Account, error) {
	hash, err := hashSecret(secret, s.bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("hashing secret: %w", err)
	}

	account := &Account{
		ID:           uuid.New().String(),
		Email:        NormalizeEmail(email),
		DisplayName:  strings.TrimSpace(displayName),
		PasswordHash: hash,
		CreatedAt:    time.Now().UTC().Truncate(time.Second),
	}

	query := `
		INSERT INTO accounts (id, email, display_name, password_hash, created_at)
		VALUES (?, ?, ?, ?, ?)
	`

	_, err = s.db.ExecContext(ctx, query,
		account.ID,
		account.Email,
		account.DisplayName,
		account.PasswordHash,
		account.CreatedAt.Format(time.RFC3339),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return nil, ErrEmailExists
		}
		return nil, fmt.Errorf("inserting account: %w", err)
	}

	s.logger.Info("created account", "id", account.ID)
	return account, nil
}

// VerifySecret reports whether secret matches the account's stored hash.
func (s *SQLiteStore) VerifySecret(account *Account, secret string) bool {
	return verifySecret(account, secret)
}

// CountAccounts returns the number of registered accounts.
func (s *SQLiteStore) CountAccounts(ctx context.Context) (int, error) {
	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM accounts`).Scan(&count); err != nil {
		return 0, fmt.Errorf("counting accounts: %w", err)
	}
	return count, nil
}

// Ping checks that the database is reachable.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// isUniqueConstraintError checks if an error is a unique constraint violation.
func isUniqueConstraintError(err error) bool {
	// SQLite returns "UNIQUE constraint failed" in the error message
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
