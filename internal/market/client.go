// ABOUTME: HTTP client for the upstream market-data provider
// ABOUTME: Fetches quotes, profiles and metrics with concurrent fan-out

package market

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
)

// Defaults applied by NewClient when Config leaves a field empty.
const (
	DefaultBaseURL  = "https://finnhub.io/api/v1"
	DefaultTimeout  = 10 * time.Second
	DefaultCacheTTL = 15 * time.Second

	quoteCacheSize   = 512
	overviewParallel = 8
	maxResponseBytes = 1 << 20
)

// DefaultSymbols is the dashboard watchlist used when none is configured.
var DefaultSymbols = []string{
	"AAPL", "GOOGL", "MSFT", "TSLA", "AMZN", "META", "NVDA",
	"NFLX", "BABA", "INTC", "AMD", "CSCO", "UBER", "IBM",
}

var (
	// ErrInvalidSymbol is returned for symbols outside [A-Z.]{1,10}.
	ErrInvalidSymbol = errors.New("invalid symbol")
	// ErrSymbolNotFound is returned when the provider has no data for a symbol.
	ErrSymbolNotFound = errors.New("symbol not found")
	// ErrUpstream wraps every transport, status, and decode failure.
	ErrUpstream = errors.New("upstream market data unavailable")
)

var symbolPattern = regexp.MustCompile(`^[A-Z.]{1,10}$`)

// NormalizeSymbol upper-cases and validates a ticker symbol.
func NormalizeSymbol(symbol string) (string, error) {
	s := strings.ToUpper(strings.TrimSpace(symbol))
	if !symbolPattern.MatchString(s) {
		return "", fmt.Errorf("%w: %q", ErrInvalidSymbol, symbol)
	}
	return s, nil
}

// Config holds client settings.
type Config struct {
	BaseURL    string
	APIKey     string
	Timeout    time.Duration
	CacheTTL   time.Duration
	HTTPClient *http.Client
}

// Client talks to a Finnhub-compatible REST API.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
	quotes  *Cache[Quote]
	logger  *slog.Logger
}

// NewClient creates a market client. Close releases the quote cache.
func NewClient(cfg Config, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = DefaultCacheTTL
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}

	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		http:    httpClient,
		quotes:  NewCache[Quote](cfg.CacheTTL, quoteCacheSize),
		logger:  logger.With("component", "market"),
	}
}

// Close stops the quote cache's background cleanup.
func (c *Client) Close() {
	c.quotes.Close()
}

// Quote returns the current quote for symbol, served from cache when fresh.
func (c *Client) Quote(ctx context.Context, symbol string) (Quote, error) {
	sym, err := NormalizeSymbol(symbol)
	if err != nil {
		return Quote{}, err
	}

	if q, ok := c.quotes.Get(sym); ok {
		return q, nil
	}

	var resp quoteResponse
	if err := c.get(ctx, "/quote", url.Values{"symbol": {sym}}, &resp); err != nil {
		return Quote{}, err
	}

	// The provider answers unknown symbols with an all-zero quote.
	if resp.Current == 0 && resp.Timestamp == 0 {
		return Quote{}, fmt.Errorf("%w: %s", ErrSymbolNotFound, sym)
	}

	q := Quote{
		Symbol:        sym,
		Price:         resp.Current,
		Change:        resp.Change,
		PercentChange: resp.PercentChange,
		DayHigh:       resp.High,
		DayLow:        resp.Low,
		Open:          resp.Open,
		PreviousClose: resp.PreviousClose,
		Timestamp:     resp.Timestamp,
	}
	c.quotes.Set(sym, q)
	return q, nil
}

// Profile returns the company profile for symbol.
func (c *Client) Profile(ctx context.Context, symbol string) (Profile, error) {
	sym, err := NormalizeSymbol(symbol)
	if err != nil {
		return Profile{}, err
	}

	var resp profileResponse
	if err := c.get(ctx, "/stock/profile2", url.Values{"symbol": {sym}}, &resp); err != nil {
		return Profile{}, err
	}

	return Profile{
		Name:     resp.Name,
		Logo:     resp.Logo,
		Exchange: resp.Exchange,
		Industry: resp.Industry,
		Currency: resp.Currency,
		WebURL:   resp.WebURL,
	}, nil
}

// Metrics returns valuation fundamentals for symbol.
func (c *Client) Metrics(ctx context.Context, symbol string) (Fundamentals, error) {
	sym, err := NormalizeSymbol(symbol)
	if err != nil {
		return Fundamentals{}, err
	}

	var resp metricResponse
	if err := c.get(ctx, "/stock/metric", url.Values{"symbol": {sym}, "metric": {"all"}}, &resp); err != nil {
		return Fundamentals{}, err
	}

	m := resp.Metric
	return Fundamentals{
		MarketCap:  m.MarketCap,
		PERatio:    m.PERatio,
		EPS:        m.EPS,
		Week52High: m.Week52High,
		Week52Low:  m.Week52Low,
	}, nil
}

// Overview fetches a summary for every symbol concurrently. The result keeps
// the input order. The first failure cancels the remaining fetches.
func (c *Client) Overview(ctx context.Context, symbols []string) ([]Summary, error) {
	normalized := make([]string, len(symbols))
	for i, s := range symbols {
		sym, err := NormalizeSymbol(s)
		if err != nil {
			return nil, err
		}
		normalized[i] = sym
	}

	out := make([]Summary, len(normalized))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(overviewParallel)

	for i, sym := range normalized {
		g.Go(func() error {
			s, err := c.summary(gctx, sym)
			if err != nil {
				return err
			}
			out[i] = s
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		c.logger.Warn("overview fetch failed", "symbols", len(normalized), "error", err)
		return nil, err
	}
	return out, nil
}

// Detail fetches quote, profile, and metrics for one symbol concurrently.
func (c *Client) Detail(ctx context.Context, symbol string) (Detail, error) {
	sym, err := NormalizeSymbol(symbol)
	if err != nil {
		return Detail{}, err
	}

	var (
		q Quote
		p Profile
		f Fundamentals
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) { q, err = c.Quote(gctx, sym); return err })
	g.Go(func() (err error) { p, err = c.Profile(gctx, sym); return err })
	g.Go(func() (err error) { f, err = c.Metrics(gctx, sym); return err })

	if err := g.Wait(); err != nil {
		c.logger.Warn("detail fetch failed", "symbol", sym, "error", err)
		return Detail{}, err
	}

	return Detail{
		Summary:      newSummary(sym, q, p),
		DayHigh:      q.DayHigh,
		DayLow:       q.DayLow,
		Exchange:     p.Exchange,
		Industry:     p.Industry,
		Fundamentals: f,
	}, nil
}

// summary fetches quote and profile for one symbol.
func (c *Client) summary(ctx context.Context, sym string) (Summary, error) {
	q, err := c.Quote(ctx, sym)
	if err != nil {
		return Summary{}, err
	}
	p, err := c.Profile(ctx, sym)
	if err != nil {
		return Summary{}, err
	}
	return newSummary(sym, q, p), nil
}

func newSummary(sym string, q Quote, p Profile) Summary {
	return Summary{
		Symbol:        sym,
		Name:          p.Name,
		Logo:          p.Logo,
		Price:         q.Price,
		Change:        q.Change,
		PercentChange: q.PercentChange,
	}
}

// get performs a GET against the provider and decodes the JSON body into out.
// The API key is sent as the token query parameter and never logged.
func (c *Client) get(ctx context.Context, path string, query url.Values, out any) error {
	query.Set("token", c.apiKey)
	endpoint := c.baseURL + path + "?" + query.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("%w: building request for %s: %v", ErrUpstream, path, err)
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrUpstream, path, redactKey(err, c.apiKey))
	}
	defer resp.Body.Close()

	c.logger.Debug("upstream request", "path", path, "symbol", query.Get("symbol"),
		"status", resp.StatusCode, "duration", time.Since(start))

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseBytes))
		return fmt.Errorf("%w: %s returned status %d", ErrUpstream, path, resp.StatusCode)
	}

	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(out); err != nil {
		return fmt.Errorf("%w: decoding %s: %v", ErrUpstream, path, err)
	}
	return nil
}

// redactKey strips the API key from transport errors, which embed the URL.
func redactKey(err error, key string) string {
	msg := err.Error()
	if key == "" {
		return msg
	}
	return strings.ReplaceAll(msg, url.QueryEscape(key), "REDACTED")
}
