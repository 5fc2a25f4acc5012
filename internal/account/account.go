// ABOUTME: Signup and login orchestration on top of the account store
// ABOUTME: Produces claim sets for the HTTP layer to sign and attach

package account

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/2389/stockdeck/internal/auth"
	"github.com/2389/stockdeck/internal/store"
)

// Authenticator errors. Handlers map these to response codes with errors.Is.
var (
	ErrEmailTaken              = errors.New("email already registered")
	ErrInvalidCredentials      = errors.New("invalid credentials")
	ErrInvalidInput            = errors.New("invalid input")
	ErrCollaboratorUnavailable = errors.New("account store unavailable")
)

// Input limits for signup.
const (
	MaxDisplayNameLength = 100
	MinSecretLength      = 8
	// bcrypt ignores or rejects anything past 72 bytes.
	MaxSecretBytes = 72
)

// Store is the subset of the account store the authenticator needs.
type Store interface {
	FindByEmail(ctx context.Context, email string) (*store.Account, error)
	CreateAccount(ctx context.Context, displayName, email, secret string) (*store.Account, error)
	VerifySecret(account *store.Account, secret string) bool
}

// Authenticator runs signup and login against a Store.
type Authenticator struct {
	store  Store
	logger *slog.Logger
	now    func() time.Time
}

// Option configures an Authenticator.
type Option func(*Authenticator)

// WithClock overrides the time source used for issued_at.
func WithClock(now func() time.Time) Option {
	return func(a *Authenticator) { a.now = now }
}

// NewAuthenticator creates an Authenticator backed by s.
func NewAuthenticator(s Store, logger *slog.Logger, opts ...Option) *Authenticator {
	if logger == nil {
		logger = slog.Default()
	}
	a := &Authenticator{
		store:  s,
		logger: logger.With("component", "account"),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Signup registers a new account and returns a fresh claim set for it.
func (a *Authenticator) Signup(ctx context.Context, displayName, email, secret string) (auth.ClaimSet, error) {
	displayName = strings.TrimSpace(displayName)
	email = store.NormalizeEmail(email)

	if err := validateSignup(displayName, email, secret); err != nil {
		return auth.ClaimSet{}, err
	}

	_, err := a.store.FindByEmail(ctx, email)
	switch {
	case err == nil:
		return auth.ClaimSet{}, ErrEmailTaken
	case !errors.Is(err, store.ErrAccountNotFound):
		a.logger.Error("signup lookup failed", "error", err)
		return auth.ClaimSet{}, fmt.Errorf("%w: %v", ErrCollaboratorUnavailable, err)
	}

	acct, err := a.store.CreateAccount(ctx, displayName, email, secret)
	if err != nil {
		// Lost a race with a concurrent signup for the same email.
		if errors.Is(err, store.ErrEmailExists) {
			return auth.ClaimSet{}, ErrEmailTaken
		}
		a.logger.Error("signup create failed", "error", err)
		return auth.ClaimSet{}, fmt.Errorf("%w: %v", ErrCollaboratorUnavailable, err)
	}

	a.logger.Info("account registered", "account_id", acct.ID)
	return auth.NewClaimSet(acct.ID, acct.DisplayName, acct.Email, a.now()), nil
}

// Login checks an email and secret and returns a fresh claim set on success.
// Unknown emails and wrong secrets both return ErrInvalidCredentials after
// one secret comparison.
func (a *Authenticator) Login(ctx context.Context, email, secret string) (auth.ClaimSet, error) {
	email = store.NormalizeEmail(email)

	acct, err := a.store.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrAccountNotFound) {
			a.store.VerifySecret(nil, secret)
			a.logger.Debug("login rejected")
			return auth.ClaimSet{}, ErrInvalidCredentials
		}
		a.logger.Error("login lookup failed", "error", err)
		return auth.ClaimSet{}, fmt.Errorf("%w: %v", ErrCollaboratorUnavailable, err)
	}

	if !a.store.VerifySecret(acct, secret) {
		a.logger.Debug("login rejected")
		return auth.ClaimSet{}, ErrInvalidCredentials
	}

	a.logger.Info("login succeeded", "account_id", acct.ID)
	return auth.NewClaimSet(acct.ID, acct.DisplayName, acct.Email, a.now()), nil
}

// validateSignup checks signup fields after trimming and normalization.
func validateSignup(displayName, email, secret string) error {
	if displayName == "" || utf8.RuneCountInString(displayName) > MaxDisplayNameLength {
		return fmt.Errorf("%w: display name must be 1-%d characters", ErrInvalidInput, MaxDisplayNameLength)
	}
	if !plausibleEmail(email) {
		return fmt.Errorf("%w: email address is not valid", ErrInvalidInput)
	}
	if utf8.RuneCountInString(secret) < MinSecretLength {
		return fmt.Errorf("%w: secret must be at least %d characters", ErrInvalidInput, MinSecretLength)
	}
	if len(secret) > MaxSecretBytes {
		return fmt.Errorf("%w: secret must be at most %d bytes", ErrInvalidInput, MaxSecretBytes)
	}
	return nil
}

// plausibleEmail accepts a bare addr-spec with a dotted domain.
func plausibleEmail(email string) bool {
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email || addr.Name != "" {
		return false
	}
	at := strings.LastIndex(email, "@")
	if at < 1 {
		return false
	}
	domain := email[at+1:]
	return strings.Contains(domain, ".") && !strings.HasPrefix(domain, ".") && !strings.HasSuffix(domain, ".")
}
