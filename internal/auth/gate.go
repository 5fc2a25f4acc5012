// ABOUTME: Route admission gate for browser navigation
// ABOUTME: Classifies paths, verifies the cookie credential, and allows or redirects

package auth

import (
	"log/slog"
	"net/http"
	"path"
	"strings"
	"time"
)

const (
	// LoginPath is where unauthenticated callers are sent.
	LoginPath = "/login"

	// HomePath is where authenticated callers on public-only paths are sent.
	HomePath = "/"

	// RegisterPath is the public signup page.
	RegisterPath = "/register"
)

// PathClass is the admission class of a request path.
type PathClass int

const (
	// PathUngated paths bypass the gate (auth API, health, metrics, assets).
	PathUngated PathClass = iota
	// PathPublic paths are only for callers without a session.
	PathPublic
	// PathProtected paths require a session.
	PathProtected
)

func (c PathClass) String() string {
	switch c {
	case PathPublic:
		return "public"
	case PathProtected:
		return "protected"
	default:
		return "ungated"
	}
}

// protectedPrefixes are subtrees requiring a session. Each entry matches the
// path itself and everything below it.
var protectedPrefixes = []string{"/stocks", "/api/stocks"}

// ClassifyPath returns the admission class of p. It is a pure function of the
// cleaned path.
func ClassifyPath(p string) PathClass {
	if p == "" {
		p = "/"
	}
	clean := path.Clean("/" + p)

	switch clean {
	case LoginPath, RegisterPath:
		return PathPublic
	case HomePath:
		return PathProtected
	}

	for _, prefix := range protectedPrefixes {
		if clean == prefix || strings.HasPrefix(clean, prefix+"/") {
			return PathProtected
		}
	}
	return PathUngated
}

// Action is the outcome of an admission decision.
type Action int

const (
	ActionAllow Action = iota
	ActionRedirectLogin
	ActionRedirectHome
)

func (a Action) String() string {
	switch a {
	case ActionRedirectLogin:
		return "redirect_login"
	case ActionRedirectHome:
		return "redirect_home"
	default:
		return "allow"
	}
}

// Decide applies the admission table to a path class and auth state.
func Decide(class PathClass, authenticated bool) Action {
	switch class {
	case PathProtected:
		if !authenticated {
			return ActionRedirectLogin
		}
		return ActionAllow
	case PathPublic:
		if authenticated {
			return ActionRedirectHome
		}
		return ActionAllow
	default:
		return ActionAllow
	}
}

// Decision is the full result of admitting one request.
type Decision struct {
	Class  PathClass
	Action Action

	// Claims is set when the request carried a valid credential.
	Claims *ClaimSet

	// Stale is true when a credential was present but failed verification.
	Stale bool
}

// Gate evaluates admission for each inbound request.
type Gate struct {
	verifier Verifier
	cookies  CookieTransport
	logger   *slog.Logger
	metrics  *Metrics
	now      func() time.Time
}

// GateOption configures a Gate.
type GateOption func(*Gate)

// WithClock overrides the gate's time source.
func WithClock(now func() time.Time) GateOption {
	return func(g *Gate) { g.now = now }
}

// WithMetrics records gate decisions in m.
func WithMetrics(m *Metrics) GateOption {
	return func(g *Gate) { g.metrics = m }
}

// NewGate creates a gate that verifies cookie credentials with verifier.
func NewGate(verifier Verifier, cookies CookieTransport, logger *slog.Logger, opts ...GateOption) *Gate {
	if logger == nil {
		logger = slog.Default()
	}
	g := &Gate{
		verifier: verifier,
		cookies:  cookies,
		logger:   logger.With("component", "gate"),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Admit decides what to do with r. It never fails: a missing, malformed,
// forged, or expired credential all mean "unauthenticated".
func (g *Gate) Admit(r *http.Request) Decision {
	d := Decision{Class: ClassifyPath(r.URL.Path)}
	if d.Class == PathUngated {
		d.Action = ActionAllow
		return d
	}

	if token, ok := g.cookies.Extract(r); ok {
		claims, err := g.verifier.Verify(token, g.now())
		if err != nil {
			d.Stale = true
			reason := ReasonOf(err)
			g.metrics.observeVerifyFailure(reason)
			g.logger.Debug("credential rejected", "path", r.URL.Path, "reason", string(reason))
		} else {
			d.Claims = &claims
		}
	}

	d.Action = Decide(d.Class, d.Claims != nil)
	g.metrics.observeDecision(d.Class, d.Action)
	return d
}

// Middleware runs the gate in front of next. Allowed protected requests carry
// their claims in the request context.
func (g *Gate) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		d := g.Admit(r)

		switch d.Action {
		case ActionRedirectLogin:
			if d.Stale {
				g.cookies.Clear(w, r)
			}
			http.Redirect(w, r, LoginPath, http.StatusFound)
			return
		case ActionRedirectHome:
			http.Redirect(w, r, HomePath, http.StatusFound)
			return
		}

		if d.Claims != nil {
			r = r.WithContext(WithClaims(r.Context(), *d.Claims))
		}
		next.ServeHTTP(w, r)
	})
}
