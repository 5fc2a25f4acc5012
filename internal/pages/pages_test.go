// ABOUTME: Tests for page rendering, template helpers, and static assets
// ABOUTME: Renders every page against fixture data and checks the embedded markdown

package pages

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/stockdeck/internal/auth"
	"github.com/2389/stockdeck/internal/market"
)

func newTestRenderer(t *testing.T) *Renderer {
	t.Helper()
	r, err := New(nil)
	require.NoError(t, err)
	return r
}

func floatPtr(v float64) *float64 { return &v }

func testUser() *auth.ClaimSet {
	c := auth.NewClaimSet("acct-1", "Ada <script>", "ada@example.com", time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC))
	return &c
}

func TestNew_ParsesAllPages(t *testing.T) {
	r := newTestRenderer(t)

	for _, name := range pageNames {
		assert.Contains(t, r.pages, name)
	}
	assert.Contains(t, string(r.disclaimer), "<strong>information only</strong>")
}

func TestRender_Home(t *testing.T) {
	r := newTestRenderer(t)
	rec := httptest.NewRecorder()

	r.Render(rec, http.StatusOK, PageHome, Page{
		User: testUser(),
		Stocks: []market.Summary{
			{Symbol: "AAPL", Name: "Apple Inc", Price: 189.5, Change: 1.25, PercentChange: 0.66},
			{Symbol: "IBM", Name: "IBM", Price: 120, Change: -2, PercentChange: -1.64},
		},
	})

	body := rec.Body.String()
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/html; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.Contains(t, body, `href="/stocks/AAPL"`)
	assert.Contains(t, body, "$189.50")
	// html/template escapes '+' in text nodes.
	assert.Contains(t, body, `class="up">&#43;1.25 (&#43;0.66%)`)
	assert.Contains(t, body, `class="down">-2.00 (-1.64%)`)
	assert.Contains(t, body, "data-logout")
	assert.Contains(t, body, "information only")
	assert.NotContains(t, body, "<script>", "display names are escaped")
	assert.Contains(t, body, "Ada &lt;script&gt;")
}

func TestRender_HomeError(t *testing.T) {
	r := newTestRenderer(t)
	rec := httptest.NewRecorder()

	r.Render(rec, http.StatusOK, PageHome, Page{User: testUser(), Error: "Market data is unavailable right now."})

	assert.Contains(t, rec.Body.String(), "Market data is unavailable right now.")
	assert.NotContains(t, rec.Body.String(), `class="card"`)
}

func TestRender_Stock(t *testing.T) {
	r := newTestRenderer(t)
	rec := httptest.NewRecorder()

	r.Render(rec, http.StatusOK, PageStock, Page{
		User:   testUser(),
		Symbol: "AAPL",
		Stock: &market.Detail{
			Summary:  market.Summary{Symbol: "AAPL", Name: "Apple Inc", Price: 189.5},
			DayHigh:  191.5,
			DayLow:   187.5,
			Exchange: "NASDAQ",
			Fundamentals: market.Fundamentals{
				MarketCap:  floatPtr(2_900_000),
				Week52High: floatPtr(219.5),
			},
		},
	})

	body := rec.Body.String()
	assert.Contains(t, body, "Apple Inc")
	assert.Contains(t, body, "$191.50")
	assert.Contains(t, body, "$2.90T")
	assert.Contains(t, body, "219.50")
	assert.Contains(t, body, "n/a", "missing metrics render as n/a")
}

func TestRender_LoginAndRegisterForms(t *testing.T) {
	r := newTestRenderer(t)

	rec := httptest.NewRecorder()
	r.Render(rec, http.StatusOK, PageLogin, Page{Title: "Log in"})
	assert.Contains(t, rec.Body.String(), `action="/auth/login"`)
	assert.NotContains(t, rec.Body.String(), "data-logout", "anonymous pages have no logout button")

	rec = httptest.NewRecorder()
	r.Render(rec, http.StatusOK, PageRegister, Page{Title: "Sign up"})
	assert.Contains(t, rec.Body.String(), `action="/auth/signup"`)
	assert.Contains(t, rec.Body.String(), `name="display_name"`)
}

func TestRender_StatusCode(t *testing.T) {
	r := newTestRenderer(t)
	rec := httptest.NewRecorder()

	r.Render(rec, http.StatusNotFound, PageNotFound, Page{})

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "does not exist")
}

func TestRender_UnknownPage(t *testing.T) {
	r := newTestRenderer(t)
	rec := httptest.NewRecorder()

	r.Render(rec, http.StatusOK, "nope", Page{})

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestTemplateFuncs(t *testing.T) {
	assert.Equal(t, "$12.30", formatPrice(12.3))
	assert.Equal(t, "+1.50", formatChange(1.5))
	assert.Equal(t, "-0.25%", formatPercent(-0.25))
	assert.Equal(t, "up", trendClass(0.01))
	assert.Equal(t, "down", trendClass(-3))
	assert.Equal(t, "flat", trendClass(0))
	assert.Equal(t, "n/a", formatOptional(nil))
	assert.Equal(t, "31.20", formatOptional(floatPtr(31.2)))
	assert.Equal(t, "n/a", formatMarketCap(nil))
	assert.Equal(t, "$1.50B", formatMarketCap(floatPtr(1500)))
	assert.Equal(t, "$250.00M", formatMarketCap(floatPtr(250)))
}

func TestStaticHandler(t *testing.T) {
	h := http.StripPrefix("/static/", StaticHandler())

	tests := []struct {
		path        string
		wantCode    int
		contentType string
	}{
		{"/static/app.css", http.StatusOK, "text/css; charset=utf-8"},
		{"/static/app.js", http.StatusOK, "application/javascript"},
		{"/static/missing.js", http.StatusNotFound, ""},
		{"/static/", http.StatusNotFound, ""},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tt.path, nil))

			assert.Equal(t, tt.wantCode, rec.Code)
			if tt.contentType != "" {
				assert.Equal(t, tt.contentType, rec.Header().Get("Content-Type"))
				assert.True(t, strings.Contains(rec.Header().Get("Cache-Control"), "no-cache"))
			}
		})
	}
}
