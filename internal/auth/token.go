// ABOUTME: HS256 credential codec: issues and verifies signed session tokens
// ABOUTME: Verification failures carry a reason used only for logs and metrics

package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	// TokenTTL is the fixed lifetime of every issued credential.
	TokenTTL = 24 * time.Hour

	// MinSecretLength is the minimum signing secret size in bytes.
	MinSecretLength = 32

	tokenIssuer = "stockdeck"
)

// Token errors
var (
	ErrSecretTooShort    = fmt.Errorf("jwt secret must be at least %d bytes", MinSecretLength)
	ErrMalformedToken    = errors.New("malformed token")
	ErrSignatureMismatch = errors.New("token signature mismatch")
	ErrExpiredToken      = errors.New("token expired")
	ErrIncompleteClaims  = errors.New("claim set is incomplete")
)

// VerifyReason names why a credential failed verification.
type VerifyReason string

const (
	ReasonMalformed         VerifyReason = "malformed"
	ReasonSignatureMismatch VerifyReason = "signature_mismatch"
	ReasonExpired           VerifyReason = "expired"
)

// VerifyError is returned by Codec.Verify. Callers must treat every reason
// the same way (as "not authenticated").
type VerifyError struct {
	Reason VerifyReason
	Err    error
}

func (e *VerifyError) Error() string {
	return e.Err.Error()
}

func (e *VerifyError) Unwrap() error {
	return e.Err
}

// ReasonOf returns the verify reason carried by err, or "" if err is not a VerifyError.
func ReasonOf(err error) VerifyReason {
	var verr *VerifyError
	if errors.As(err, &verr) {
		return verr.Reason
	}
	return ""
}

func malformed(format string, args ...any) *VerifyError {
	return &VerifyError{
		Reason: ReasonMalformed,
		Err:    fmt.Errorf("%w: %s", ErrMalformedToken, fmt.Sprintf(format, args...)),
	}
}

// ClaimSet is the identity a credential certifies.
type ClaimSet struct {
	SubjectID   string
	DisplayName string
	Email       string
	IssuedAt    time.Time
	ExpiresAt   time.Time
}

// NewClaimSet builds a claim set issued at issuedAt, expiring TokenTTL later.
// Times are truncated to whole seconds, the precision of the encoded token.
func NewClaimSet(subjectID, displayName, email string, issuedAt time.Time) ClaimSet {
	issuedAt = issuedAt.UTC().Truncate(time.Second)
	return ClaimSet{
		SubjectID:   subjectID,
		DisplayName: displayName,
		Email:       email,
		IssuedAt:    issuedAt,
		ExpiresAt:   issuedAt.Add(TokenTTL),
	}
}

// tokenClaims is the JWT payload layout.
type tokenClaims struct {
	Name  string `json:"name"`
	Email string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

// Issuer mints credentials from claim sets.
type Issuer interface {
	Issue(claims ClaimSet) (string, error)
}

// Verifier validates credentials against the current time.
type Verifier interface {
	Verify(token string, now time.Time) (ClaimSet, error)
}

// Codec implements Issuer and Verifier using HS256 signed JWTs.
// It holds no mutable state and is safe for concurrent use.
type Codec struct {
	secret []byte
}

var (
	_ Issuer   = (*Codec)(nil)
	_ Verifier = (*Codec)(nil)
)

// NewCodec creates a codec with the given signing secret.
func NewCodec(secret []byte) (*Codec, error) {
	if len(secret) < MinSecretLength {
		return nil, ErrSecretTooShort
	}
	s := make([]byte, len(secret))
	copy(s, secret)
	return &Codec{secret: s}, nil
}

// Issue signs the claim set. The embedded expiration is always exactly
// TokenTTL after IssuedAt, whatever ExpiresAt the caller passed.
func (c *Codec) Issue(claims ClaimSet) (string, error) {
	if claims.SubjectID == "" || claims.IssuedAt.IsZero() {
		return "", ErrIncompleteClaims
	}

	issuedAt := claims.IssuedAt.UTC().Truncate(time.Second)
	payload := tokenClaims{
		Name:  claims.DisplayName,
		Email: claims.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    tokenIssuer,
			Subject:   claims.SubjectID,
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(issuedAt.Add(TokenTTL)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, payload)
	signed, err := token.SignedString(c.secret)
	if err != nil {
		return "", fmt.Errorf("signing token: %w", err)
	}
	return signed, nil
}

// Verify decodes the token, checks its signature, and checks that now is not
// past its expiration. Any failure is a *VerifyError.
func (c *Codec) Verify(tokenString string, now time.Time) (ClaimSet, error) {
	if tokenString == "" {
		return ClaimSet{}, malformed("empty token")
	}

	var payload tokenClaims
	_, err := jwt.ParseWithClaims(tokenString, &payload, func(token *jwt.Token) (interface{}, error) {
		return c.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Name}),
		jwt.WithStrictDecoding(),
		jwt.WithoutClaimsValidation(),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenSignatureInvalid) {
			return ClaimSet{}, &VerifyError{
				Reason: ReasonSignatureMismatch,
				Err:    fmt.Errorf("%w: %v", ErrSignatureMismatch, err),
			}
		}
		return ClaimSet{}, malformed("%v", err)
	}

	// Claims below are covered by the signature, so a failure here means a
	// token we did not issue in this shape.
	if payload.Issuer != tokenIssuer {
		return ClaimSet{}, malformed("unexpected issuer %q", payload.Issuer)
	}
	if payload.Subject == "" {
		return ClaimSet{}, malformed("missing sub")
	}
	if payload.IssuedAt == nil || payload.ExpiresAt == nil {
		return ClaimSet{}, malformed("missing iat or exp")
	}

	claims := ClaimSet{
		SubjectID:   payload.Subject,
		DisplayName: payload.Name,
		Email:       payload.Email,
		IssuedAt:    payload.IssuedAt.UTC(),
		ExpiresAt:   payload.ExpiresAt.UTC(),
	}
	if !claims.ExpiresAt.Equal(claims.IssuedAt.Add(TokenTTL)) {
		return ClaimSet{}, malformed("lifetime is not %s", TokenTTL)
	}

	if now.After(claims.ExpiresAt) {
		return ClaimSet{}, &VerifyError{
			Reason: ReasonExpired,
			Err:    fmt.Errorf("%w at %s", ErrExpiredToken, claims.ExpiresAt.Format(time.RFC3339)),
		}
	}

	return claims, nil
}
