// ABOUTME: Server-rendered HTML pages for the dashboard, login, register, and stock views
// ABOUTME: Templates and markdown content are embedded; markdown is rendered with goldmark

package pages

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"log/slog"
	"math"
	"net/http"

	"github.com/yuin/goldmark"

	"github.com/2389/stockdeck/internal/auth"
	"github.com/2389/stockdeck/internal/market"
)

//go:embed templates/*.html
var templateFS embed.FS

//go:embed content/*.md
var contentFS embed.FS

// Page names accepted by Render.
const (
	PageHome     = "home"
	PageLogin    = "login"
	PageRegister = "register"
	PageStock    = "stock"
	PageNotFound = "not_found"
)

var pageNames = []string{PageHome, PageLogin, PageRegister, PageStock, PageNotFound}

// Page is the data passed to every template. Handlers fill the fields
// their page uses; Disclaimer is set by Render.
type Page struct {
	Title      string
	User       *auth.ClaimSet
	Error      string
	Stocks     []market.Summary
	Stock      *market.Detail
	Symbol     string
	Disclaimer template.HTML
}

// Renderer executes the embedded page templates.
type Renderer struct {
	pages      map[string]*template.Template
	disclaimer template.HTML
	logger     *slog.Logger
}

// New parses every page template and renders the markdown content once.
func New(logger *slog.Logger) (*Renderer, error) {
	if logger == nil {
		logger = slog.Default()
	}

	r := &Renderer{
		pages:  make(map[string]*template.Template, len(pageNames)),
		logger: logger.With("component", "pages"),
	}

	for _, name := range pageNames {
		tmpl, err := template.New("layout.html").Funcs(templateFuncs).ParseFS(templateFS,
			"templates/layout.html",
			"templates/"+name+".html",
		)
		if err != nil {
			return nil, fmt.Errorf("parsing %s template: %w", name, err)
		}
		r.pages[name] = tmpl
	}

	disclaimer, err := renderMarkdown("content/disclaimer.md")
	if err != nil {
		return nil, err
	}
	r.disclaimer = disclaimer

	return r, nil
}

// Render writes the named page with the given status code.
func (r *Renderer) Render(w http.ResponseWriter, status int, name string, data Page) {
	tmpl, ok := r.pages[name]
	if !ok {
		r.logger.Error("unknown page", "page", name)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	data.Disclaimer = r.disclaimer

	// Render to a buffer so a template error does not leave a half-written page.
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		r.logger.Error("failed to render page", "page", name, "error", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

// renderMarkdown converts an embedded markdown file to HTML.
func renderMarkdown(name string) (template.HTML, error) {
	src, err := contentFS.ReadFile(name)
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", name, err)
	}

	var buf bytes.Buffer
	if err := goldmark.Convert(src, &buf); err != nil {
		return "", fmt.Errorf("converting %s: %w", name, err)
	}
	return template.HTML(buf.String()), nil
}

var templateFuncs = template.FuncMap{
	"price":     formatPrice,
	"change":    formatChange,
	"percent":   formatPercent,
	"trend":     trendClass,
	"optional":  formatOptional,
	"marketCap": formatMarketCap,
}

func formatPrice(v float64) string {
	return fmt.Sprintf("$%.2f", v)
}

func formatChange(v float64) string {
	return fmt.Sprintf("%+.2f", v)
}

func formatPercent(v float64) string {
	return fmt.Sprintf("%+.2f%%", v)
}

// trendClass returns the CSS class for a price movement.
func trendClass(v float64) string {
	switch {
	case v > 0:
		return "up"
	case v < 0:
		return "down"
	default:
		return "flat"
	}
}

func formatOptional(v *float64) string {
	if v == nil {
		return "n/a"
	}
	return fmt.Sprintf("%.2f", *v)
}

// formatMarketCap renders a capitalization given in millions of dollars.
func formatMarketCap(millions *float64) string {
	if millions == nil {
		return "n/a"
	}
	v := *millions * 1e6
	switch abs := math.Abs(v); {
	case abs >= 1e12:
		return fmt.Sprintf("$%.2fT", v/1e12)
	case abs >= 1e9:
		return fmt.Sprintf("$%.2fB", v/1e9)
	case abs >= 1e6:
		return fmt.Sprintf("$%.2fM", v/1e6)
	default:
		return fmt.Sprintf("$%.0f", v)
	}
}
