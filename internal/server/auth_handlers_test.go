// ABOUTME: Tests for the signup, login, session, and logout endpoints
// ABOUTME: Covers cookie issuance, error mapping, and the per-IP attempt limiter

package server

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/stockdeck/internal/auth"
	"github.com/2389/stockdeck/internal/config"
)

func TestSignup_IssuesCookieAndReturnsUser(t *testing.T) {
	f := newServerFixture(t)

	rec := f.do(http.MethodPost, "/auth/signup", signupRequest{
		DisplayName: "Ada Lovelace",
		Email:       "Ada@Example.com",
		Secret:      "correct horse",
	}, nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var resp sessionResponse
	decodeBody(t, rec, &resp)
	require.NotNil(t, resp.User)
	assert.Equal(t, "Ada Lovelace", resp.User.DisplayName)
	assert.Equal(t, "ada@example.com", resp.User.Email)

	cookie := credentialCookie(rec)
	require.NotNil(t, cookie)
	assert.True(t, cookie.HttpOnly)
	assert.Equal(t, http.SameSiteLaxMode, cookie.SameSite)
	assert.Equal(t, "/", cookie.Path)
	assert.Equal(t, int(auth.TokenTTL.Seconds()), cookie.MaxAge)
	assert.Equal(t, 1, f.store.Len())
}

func TestSignup_DuplicateEmail(t *testing.T) {
	f := newServerFixture(t)
	f.signup(t, "Ada", "ada@example.com", "correct horse")

	rec := f.do(http.MethodPost, "/auth/signup", signupRequest{
		DisplayName: "Imposter",
		Email:       "ADA@example.com",
		Secret:      "another secret",
	}, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"error":"EmailTaken"}`, rec.Body.String())
	assert.Nil(t, credentialCookie(rec))
	assert.Equal(t, 1, f.store.Len())
}

func TestSignup_InvalidInput(t *testing.T) {
	f := newServerFixture(t)

	tests := []struct {
		name string
		body any
	}{
		{"empty name", signupRequest{Email: "a@example.com", Secret: "correct horse"}},
		{"bad email", signupRequest{DisplayName: "A", Email: "not-an-email", Secret: "correct horse"}},
		{"short secret", signupRequest{DisplayName: "A", Email: "a@example.com", Secret: "short"}},
		{"not an object", []string{"nope"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := f.do(http.MethodPost, "/auth/signup", tt.body, nil)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.JSONEq(t, `{"error":"InvalidInput"}`, rec.Body.String())
		})
	}
	assert.Zero(t, f.store.Len())
}

func TestSignup_RejectsNonJSONContentType(t *testing.T) {
	f := newServerFixture(t)

	req := httptest.NewRequest(http.MethodPost, "/auth/signup", strings.NewReader("display_name=a"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	f.server.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"error":"InvalidInput"}`, rec.Body.String())
}

func TestSignup_StoreFailureIsInternalError(t *testing.T) {
	f := newServerFixture(t)
	f.store.FailWith(errors.New("database locked"))

	rec := f.do(http.MethodPost, "/auth/signup", signupRequest{
		DisplayName: "Ada",
		Email:       "ada@example.com",
		Secret:      "correct horse",
	}, nil)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"error":"InternalError"}`, rec.Body.String())
	assert.NotContains(t, rec.Body.String(), "database locked")
}

func TestLogin_Success(t *testing.T) {
	f := newServerFixture(t)
	f.signup(t, "Ada", "ada@example.com", "correct horse")

	rec := f.do(http.MethodPost, "/auth/login", loginRequest{Email: " ADA@example.com ", Secret: "correct horse"}, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp sessionResponse
	decodeBody(t, rec, &resp)
	require.NotNil(t, resp.User)
	assert.Equal(t, "Ada", resp.User.DisplayName)
	assert.NotNil(t, credentialCookie(rec))
}

func TestLogin_FailuresAreIndistinguishable(t *testing.T) {
	f := newServerFixture(t)
	f.signup(t, "Ada", "ada@example.com", "correct horse")

	wrongSecret := f.do(http.MethodPost, "/auth/login", loginRequest{Email: "ada@example.com", Secret: "wrong horse"}, nil)
	unknownEmail := f.do(http.MethodPost, "/auth/login", loginRequest{Email: "bob@example.com", Secret: "correct horse"}, nil)

	assert.Equal(t, http.StatusUnauthorized, wrongSecret.Code)
	assert.Equal(t, wrongSecret.Code, unknownEmail.Code)
	assert.Equal(t, wrongSecret.Body.String(), unknownEmail.Body.String())
	assert.JSONEq(t, `{"error":"InvalidCredentials"}`, wrongSecret.Body.String())
	assert.Nil(t, credentialCookie(wrongSecret))
	assert.Nil(t, credentialCookie(unknownEmail))
}

func TestSession(t *testing.T) {
	f := newServerFixture(t)
	cookie := f.signup(t, "Ada", "ada@example.com", "correct horse")

	rec := f.do(http.MethodGet, "/auth/session", nil, cookie)
	require.Equal(t, http.StatusOK, rec.Code)
	var resp sessionResponse
	decodeBody(t, rec, &resp)
	require.NotNil(t, resp.User)
	assert.Equal(t, "ada@example.com", resp.User.Email)
}

func TestSession_WithoutCookie(t *testing.T) {
	f := newServerFixture(t)

	rec := f.do(http.MethodGet, "/auth/session", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.JSONEq(t, `{"user":null}`, rec.Body.String())
	assert.Nil(t, credentialCookie(rec))
}

func TestSession_TamperedCookieIsCleared(t *testing.T) {
	f := newServerFixture(t)
	cookie := f.signup(t, "Ada", "ada@example.com", "correct horse")
	cookie.Value += "x"

	rec := f.do(http.MethodGet, "/auth/session", nil, cookie)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.JSONEq(t, `{"user":null}`, rec.Body.String())
	cleared := credentialCookie(rec)
	require.NotNil(t, cleared)
	assert.Empty(t, cleared.Value)
}

func TestLogout_ClearsCookie(t *testing.T) {
	f := newServerFixture(t)
	cookie := f.signup(t, "Ada", "ada@example.com", "correct horse")

	rec := f.do(http.MethodPost, "/auth/logout", nil, cookie)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"ok":true}`, rec.Body.String())
	cleared := credentialCookie(rec)
	require.NotNil(t, cleared)
	assert.Empty(t, cleared.Value)
	assert.Negative(t, cleared.MaxAge)

	// Logging out without a session is still fine.
	rec = f.do(http.MethodPost, "/auth/logout", nil, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAuthEndpoints_MethodNotAllowed(t *testing.T) {
	f := newServerFixture(t)

	rec := f.do(http.MethodGet, "/auth/login", nil, nil)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestLogin_RateLimited(t *testing.T) {
	f := newServerFixture(t, func(c *config.Config) {
		c.RateLimit.RequestsPerMinute = 1
		c.RateLimit.Burst = 2
	})

	attempt := func() *httptest.ResponseRecorder {
		return f.do(http.MethodPost, "/auth/login", loginRequest{Email: "a@example.com", Secret: "whatever1"}, nil)
	}

	assert.Equal(t, http.StatusUnauthorized, attempt().Code)
	assert.Equal(t, http.StatusUnauthorized, attempt().Code)

	rec := attempt()
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.JSONEq(t, `{"error":"RateLimited"}`, rec.Body.String())
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))

	metrics := f.do(http.MethodGet, "/metrics", nil, nil).Body.String()
	assert.Contains(t, metrics, `stockdeck_auth_rate_limited_total{op="login"} 1`)
}

func TestLogin_RateLimitIsPerClient(t *testing.T) {
	f := newServerFixture(t, func(c *config.Config) {
		c.RateLimit.RequestsPerMinute = 1
		c.RateLimit.Burst = 1
	})

	send := func(remote string) int {
		req := httptest.NewRequest(http.MethodPost, "/auth/login",
			strings.NewReader(`{"email":"a@example.com","secret":"whatever1"}`))
		req.Header.Set("Content-Type", "application/json")
		req.RemoteAddr = remote
		rec := httptest.NewRecorder()
		f.server.Handler().ServeHTTP(rec, req)
		return rec.Code
	}

	assert.Equal(t, http.StatusUnauthorized, send("10.0.0.1:1234"))
	assert.Equal(t, http.StatusTooManyRequests, send("10.0.0.1:5678"))
	assert.Equal(t, http.StatusUnauthorized, send("10.0.0.2:1234"))
}
