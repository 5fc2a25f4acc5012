// ABOUTME: HTTP client that tracks session state against a stockdeck server
// ABOUTME: State only changes when the server confirms it, except logout which is local-first

package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/2389/stockdeck/internal/market"
)

// credentialCookieName is the cookie the server stores the signed credential in.
const credentialCookieName = "token"

// State is the client's view of whether it holds a session.
type State int

const (
	// StateUnknown means the server has not been asked yet.
	StateUnknown State = iota
	StateAuthenticated
	StateUnauthenticated
)

func (s State) String() string {
	switch s {
	case StateAuthenticated:
		return "authenticated"
	case StateUnauthenticated:
		return "unauthenticated"
	default:
		return "unknown"
	}
}

// User is the identity the server reports for a session.
type User struct {
	DisplayName string `json:"display_name"`
	Email       string `json:"email"`
}

// Errors matching server error codes. An *APIError unwraps to one of these
// when the code is recognized.
var (
	ErrEmailTaken         = errors.New("email already registered")
	ErrInvalidCredentials = errors.New("invalid email or secret")
	ErrInvalidInput       = errors.New("invalid input")
	ErrRateLimited        = errors.New("too many attempts")
	ErrInvalidSymbol      = errors.New("invalid symbol")
	ErrSymbolNotFound     = errors.New("symbol not found")
	ErrUpstream           = errors.New("market data unavailable")

	// ErrNotAuthenticated is returned when a protected call is redirected to
	// the login page.
	ErrNotAuthenticated = errors.New("not authenticated")
)

var codeErrors = map[string]error{
	"EmailTaken":         ErrEmailTaken,
	"InvalidCredentials": ErrInvalidCredentials,
	"InvalidInput":       ErrInvalidInput,
	"RateLimited":        ErrRateLimited,
	"InvalidSymbol":      ErrInvalidSymbol,
	"SymbolNotFound":     ErrSymbolNotFound,
	"UpstreamFailure":    ErrUpstream,
}

// APIError is a non-success response from the server.
type APIError struct {
	StatusCode int
	Code       string
}

func (e *APIError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("server returned status %d", e.StatusCode)
	}
	return fmt.Sprintf("server error (%d): %s", e.StatusCode, e.Code)
}

func (e *APIError) Unwrap() error {
	return codeErrors[e.Code]
}

// Session talks to one stockdeck server and remembers the last confirmed
// session state. It is safe for concurrent use.
type Session struct {
	baseURL string
	base    *url.URL
	http    *http.Client
	logger  *slog.Logger

	mu    sync.RWMutex
	state State
	user  *User
}

// Option configures a Session.
type Option func(*Session)

// WithHTTPClient uses a copy of c for requests, so c itself is never
// modified. A cookie jar is attached to the copy if c has none.
func WithHTTPClient(c *http.Client) Option {
	return func(s *Session) {
		if c == nil {
			return
		}
		cp := *c
		s.http = &cp
	}
}

// WithLogger sets the session logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Session) { s.logger = l }
}

// New creates a Session for the server at baseURL.
func New(baseURL string, opts ...Option) (*Session, error) {
	u, err := url.Parse(baseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid server URL %q", baseURL)
	}

	s := &Session{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		base:    u,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.http == nil {
		s.http = &http.Client{Timeout: 15 * time.Second}
	}
	if s.http.Jar == nil {
		jar, err := cookiejar.New(nil)
		if err != nil {
			return nil, fmt.Errorf("creating cookie jar: %w", err)
		}
		s.http.Jar = jar
	}
	// The gate answers protected requests with a redirect; surface it.
	s.http.CheckRedirect = func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	}

	return s, nil
}

// State returns the current state and, when authenticated, the user.
func (s *Session) State() (State, *User) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.user == nil {
		return s.state, nil
	}
	u := *s.user
	return s.state, &u
}

func (s *Session) set(state State, user *User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = state
	s.user = user
}

// Refresh asks the server for the current session. On a transport failure or
// an unexpected status the state is left as it was.
func (s *Session) Refresh(ctx context.Context) (State, error) {
	resp, err := s.do(ctx, http.MethodGet, "/auth/session", nil)
	if err != nil {
		return s.currentState(), err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		var body struct {
			User *User `json:"user"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
			return s.currentState(), fmt.Errorf("decoding session response: %w", err)
		}
		if body.User == nil {
			return s.currentState(), errors.New("decoding session response: missing user")
		}
		s.set(StateAuthenticated, body.User)
		return StateAuthenticated, nil
	case http.StatusUnauthorized:
		s.set(StateUnauthenticated, nil)
		return StateUnauthenticated, nil
	default:
		return s.currentState(), readAPIError(resp)
	}
}

// Signup creates an account and starts a session for it.
func (s *Session) Signup(ctx context.Context, displayName, email, secret string) (User, error) {
	return s.authenticate(ctx, "/auth/signup", http.StatusCreated, map[string]string{
		"display_name": displayName,
		"email":        email,
		"secret":       secret,
	})
}

// Login starts a session for an existing account.
func (s *Session) Login(ctx context.Context, email, secret string) (User, error) {
	return s.authenticate(ctx, "/auth/login", http.StatusOK, map[string]string{
		"email":  email,
		"secret": secret,
	})
}

func (s *Session) authenticate(ctx context.Context, path string, want int, payload any) (User, error) {
	resp, err := s.do(ctx, http.MethodPost, path, payload)
	if err != nil {
		return User{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != want {
		return User{}, readAPIError(resp)
	}

	var body struct {
		User *User `json:"user"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return User{}, fmt.Errorf("decoding response: %w", err)
	}
	if body.User == nil {
		return User{}, errors.New("decoding response: missing user")
	}

	s.set(StateAuthenticated, body.User)
	return *body.User, nil
}

// Logout drops the local session first, then asks the server to clear the
// cookie. The local state stays unauthenticated even if the call fails.
func (s *Session) Logout(ctx context.Context) error {
	s.set(StateUnauthenticated, nil)
	s.dropCredential()

	resp, err := s.do(ctx, http.MethodPost, "/auth/logout", nil)
	if err != nil {
		s.logger.Warn("logout request failed", "error", err)
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return readAPIError(resp)
	}
	return nil
}

// Stocks fetches the server's watchlist overview.
func (s *Session) Stocks(ctx context.Context) ([]market.Summary, error) {
	var out []market.Summary
	if err := s.getProtected(ctx, "/api/stocks", &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Stock fetches the detail view for one symbol.
func (s *Session) Stock(ctx context.Context, symbol string) (market.Detail, error) {
	var out market.Detail
	if err := s.getProtected(ctx, "/api/stocks/"+url.PathEscape(symbol), &out); err != nil {
		return market.Detail{}, err
	}
	return out, nil
}

func (s *Session) getProtected(ctx context.Context, path string, out any) error {
	resp, err := s.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decoding response: %w", err)
		}
		return nil
	case isLoginRedirect(resp):
		s.set(StateUnauthenticated, nil)
		return ErrNotAuthenticated
	default:
		return readAPIError(resp)
	}
}

// dropCredential expires the credential cookie in the local jar so later
// requests stop presenting it, whatever happens to the logout call.
func (s *Session) dropCredential() {
	s.http.Jar.SetCookies(s.base, []*http.Cookie{{
		Name:   credentialCookieName,
		Value:  "",
		Path:   "/",
		MaxAge: -1,
	}})
}

func (s *Session) currentState() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

func (s *Session) do(ctx context.Context, method, path string, payload any) (*http.Response, error) {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("marshaling request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, s.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := s.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("sending request: %w", err)
	}
	return resp, nil
}

func isLoginRedirect(resp *http.Response) bool {
	if resp.StatusCode != http.StatusFound && resp.StatusCode != http.StatusSeeOther {
		return false
	}
	loc, err := resp.Location()
	return err == nil && loc.Path == "/login"
}

// readAPIError extracts {"error": code} from a failed response.
func readAPIError(resp *http.Response) error {
	apiErr := &APIError{StatusCode: resp.StatusCode}
	var body struct {
		Error string `json:"error"`
	}
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if json.Unmarshal(data, &body) == nil {
		apiErr.Code = body.Error
	}
	return apiErr
}
