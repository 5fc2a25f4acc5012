// Package store provides persistent account storage using SQLite.
//
// # Architecture
//
// AccountStore is the single interface consumed by the account service:
//
//   - FindByEmail: look up an account by its normalized email
//   - CreateAccount: hash the secret and insert a new account
//   - VerifySecret: compare a plaintext secret against the stored hash
//   - Ping: readiness check for the backing database
//
// SQLiteStore is the production implementation; MockStore is an in-memory
// implementation with failure injection for tests.
//
// # Secrets
//
// Plaintext secrets are hashed with bcrypt inside CreateAccount and are never
// persisted or returned. VerifySecret accepts a nil account and still performs
// one bcrypt comparison against a fixed dummy hash, so a login for an unknown
// email takes as long as a login with a wrong password.
//
// # Emails
//
// Emails are trimmed and lower-cased before storage and lookup. The accounts
// table carries a UNIQUE constraint on email; a duplicate insert surfaces as
// ErrEmailExists.
//
// # Schema
//
//	accounts(id TEXT PK, email TEXT UNIQUE, display_name TEXT,
//	         password_hash TEXT, created_at TEXT RFC3339)
//
// # Configuration
//
// SQLite runs in WAL mode. Parent directories of the database path are
// created automatically. The special path ":memory:" opens a single-connection
// in-memory database.
package store
