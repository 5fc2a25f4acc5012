// ABOUTME: Test fixture for the HTTP server plus health, metrics, and gate routing tests
// ABOUTME: Uses the mock account store and an in-memory market source

package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/stockdeck/internal/auth"
	"github.com/2389/stockdeck/internal/config"
	"github.com/2389/stockdeck/internal/market"
	"github.com/2389/stockdeck/internal/store"
)

const testConfigYAML = `
server:
  http_addr: "127.0.0.1:0"
auth:
  jwt_secret: "test-secret-that-is-long-enough-for-hs256"
market:
  symbols: ["AAPL", "MSFT"]
rate_limit:
  requests_per_minute: 600
  burst: 100
metrics:
  enabled: true
`

// fakeMarket serves canned market data.
type fakeMarket struct {
	mu       sync.Mutex
	details  map[string]market.Detail
	failWith error
}

func newFakeMarket() *fakeMarket {
	return &fakeMarket{details: map[string]market.Detail{
		"AAPL": {Summary: market.Summary{Symbol: "AAPL", Name: "Apple Inc", Price: 190.5, Change: 1.25, PercentChange: 0.66}, DayHigh: 191, DayLow: 188},
		"MSFT": {Summary: market.Summary{Symbol: "MSFT", Name: "Microsoft Corp", Price: 410.1, Change: -2.5, PercentChange: -0.61}, DayHigh: 414, DayLow: 409},
	}}
}

func (f *fakeMarket) fail(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failWith = err
}

func (f *fakeMarket) Overview(ctx context.Context, symbols []string) ([]market.Summary, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return nil, f.failWith
	}
	out := make([]market.Summary, 0, len(symbols))
	for _, s := range symbols {
		if d, ok := f.details[s]; ok {
			out = append(out, d.Summary)
		}
	}
	return out, nil
}

func (f *fakeMarket) Detail(ctx context.Context, symbol string) (market.Detail, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return market.Detail{}, f.failWith
	}
	sym, err := market.NormalizeSymbol(symbol)
	if err != nil {
		return market.Detail{}, err
	}
	d, ok := f.details[sym]
	if !ok {
		return market.Detail{}, market.ErrSymbolNotFound
	}
	return d, nil
}

type serverFixture struct {
	server *Server
	store  *store.MockStore
	market *fakeMarket
	now    time.Time
}

func newServerFixture(t *testing.T, mutate ...func(*config.Config)) *serverFixture {
	t.Helper()

	cfg, err := config.Parse([]byte(testConfigYAML), config.FormatYAML)
	require.NoError(t, err)
	for _, m := range mutate {
		m(cfg)
	}
	require.NoError(t, cfg.Validate())

	f := &serverFixture{
		store:  store.NewMockStore(),
		market: newFakeMarket(),
		now:    time.Date(2026, 3, 2, 15, 0, 0, 0, time.UTC),
	}
	s, err := newServer(cfg, deps{
		store:  f.store,
		market: f.market,
		now:    func() time.Time { return f.now },
	}, nil)
	require.NoError(t, err)
	f.server = s
	return f
}

// do sends a request through the full handler chain. cookie may be nil.
func (f *serverFixture) do(method, path string, body any, cookie *http.Cookie) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != nil {
		data, _ := json.Marshal(body)
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if cookie != nil {
		req.AddCookie(cookie)
	}
	rec := httptest.NewRecorder()
	f.server.Handler().ServeHTTP(rec, req)
	return rec
}

// signup registers an account and returns its credential cookie.
func (f *serverFixture) signup(t *testing.T, name, email, secret string) *http.Cookie {
	t.Helper()
	rec := f.do(http.MethodPost, "/auth/signup", signupRequest{DisplayName: name, Email: email, Secret: secret}, nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	c := credentialCookie(rec)
	require.NotNil(t, c)
	return c
}

func credentialCookie(rec *httptest.ResponseRecorder) *http.Cookie {
	for _, c := range rec.Result().Cookies() {
		if c.Name == auth.CookieName {
			return c
		}
	}
	return nil
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, dst any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), dst))
}

func TestHealth(t *testing.T) {
	f := newServerFixture(t)

	rec := f.do(http.MethodGet, "/health", nil, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OK", rec.Body.String())
}

func TestReady(t *testing.T) {
	f := newServerFixture(t)

	rec := f.do(http.MethodGet, "/health/ready", nil, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ready", rec.Body.String())

	f.store.FailWith(errors.New("disk gone"))
	rec = f.do(http.MethodGet, "/health/ready", nil, nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestSecurityHeaders(t *testing.T) {
	f := newServerFixture(t)

	rec := f.do(http.MethodGet, "/health", nil, nil)
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))
}

func TestMetricsEndpoint(t *testing.T) {
	f := newServerFixture(t)

	f.do(http.MethodGet, "/login", nil, nil)
	f.do(http.MethodPost, "/auth/login", loginRequest{Email: "nobody@example.com", Secret: "whatever1"}, nil)

	rec := f.do(http.MethodGet, "/metrics", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `stockdeck_http_requests_total{code="200",method="GET",route="/login"} 1`)
	assert.Contains(t, body, `stockdeck_auth_attempts_total{op="login",outcome="invalid_credentials"} 1`)
	assert.Contains(t, body, "stockdeck_gate_decisions_total")
	assert.Contains(t, body, "go_goroutines")
}

func TestMetricsEndpoint_Disabled(t *testing.T) {
	f := newServerFixture(t, func(c *config.Config) { c.Metrics.Enabled = false })

	rec := f.do(http.MethodGet, "/metrics", nil, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGate_ProtectedPagesRedirectWithoutSession(t *testing.T) {
	f := newServerFixture(t)

	for _, path := range []string{"/", "/stocks", "/stocks/AAPL", "/api/stocks", "/api/stocks/AAPL"} {
		t.Run(path, func(t *testing.T) {
			rec := f.do(http.MethodGet, path, nil, nil)
			assert.Equal(t, http.StatusFound, rec.Code)
			assert.Equal(t, "/login", rec.Header().Get("Location"))
		})
	}
}

func TestGate_PublicPagesRedirectWithSession(t *testing.T) {
	f := newServerFixture(t)
	cookie := f.signup(t, "Ada", "ada@example.com", "correct horse")

	for _, path := range []string{"/login", "/register"} {
		t.Run(path, func(t *testing.T) {
			rec := f.do(http.MethodGet, path, nil, cookie)
			assert.Equal(t, http.StatusFound, rec.Code)
			assert.Equal(t, "/", rec.Header().Get("Location"))
		})
	}
}

func TestGate_ExpiredSessionIsClearedOnRedirect(t *testing.T) {
	f := newServerFixture(t)
	cookie := f.signup(t, "Ada", "ada@example.com", "correct horse")

	f.now = f.now.Add(auth.TokenTTL + time.Second)

	rec := f.do(http.MethodGet, "/", nil, cookie)
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/login", rec.Header().Get("Location"))
	cleared := credentialCookie(rec)
	require.NotNil(t, cleared)
	assert.Empty(t, cleared.Value)
	assert.Negative(t, cleared.MaxAge)
}

func TestPages_PublicRenderWithoutSession(t *testing.T) {
	f := newServerFixture(t)

	rec := f.do(http.MethodGet, "/login", nil, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Log in")

	rec = f.do(http.MethodGet, "/register", nil, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Create an account")
}

func TestPages_HomeListsConfiguredSymbols(t *testing.T) {
	f := newServerFixture(t)
	cookie := f.signup(t, "Ada", "ada@example.com", "correct horse")

	rec := f.do(http.MethodGet, "/", nil, cookie)
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "Apple Inc")
	assert.Contains(t, body, "Microsoft Corp")
	assert.Contains(t, body, `href="/stocks/AAPL"`)
	assert.Contains(t, body, "data-logout")
}

func TestPages_HomeShowsErrorWhenUpstreamFails(t *testing.T) {
	f := newServerFixture(t)
	cookie := f.signup(t, "Ada", "ada@example.com", "correct horse")
	f.market.fail(market.ErrUpstream)

	rec := f.do(http.MethodGet, "/", nil, cookie)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Market data is unavailable")
}

func TestPages_StockDetail(t *testing.T) {
	f := newServerFixture(t)
	cookie := f.signup(t, "Ada", "ada@example.com", "correct horse")

	rec := f.do(http.MethodGet, "/stocks/aapl", nil, cookie)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Apple Inc")

	rec = f.do(http.MethodGet, "/stocks/ZZZZ", nil, cookie)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	f.market.fail(market.ErrUpstream)
	rec = f.do(http.MethodGet, "/stocks/AAPL", nil, cookie)
	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestPages_StocksIndexRedirectsHome(t *testing.T) {
	f := newServerFixture(t)
	cookie := f.signup(t, "Ada", "ada@example.com", "correct horse")

	rec := f.do(http.MethodGet, "/stocks", nil, cookie)
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/", rec.Header().Get("Location"))
}

func TestPages_UnknownPathIsNotFound(t *testing.T) {
	f := newServerFixture(t)

	rec := f.do(http.MethodGet, "/nope", nil, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "Not found")
}

func TestStatic_ServesAssets(t *testing.T) {
	f := newServerFixture(t)

	rec := f.do(http.MethodGet, "/static/app.css", nil, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.HasPrefix(rec.Header().Get("Content-Type"), "text/css"))
}
