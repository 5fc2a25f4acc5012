// ABOUTME: Cookie transport for session credentials
// ABOUTME: Attaches, extracts, and clears the HTTP-only token cookie

package auth

import (
	"net/http"
)

// CookieName is the name of the credential cookie.
const CookieName = "token"

// CookieTransport binds credentials to the client through a cookie.
type CookieTransport struct {
	// Secure forces the Secure flag. Requests that arrived over TLS always get it.
	Secure bool
}

func (c CookieTransport) secure(r *http.Request) bool {
	return c.Secure || (r != nil && r.TLS != nil)
}

// Attach sets the credential cookie. Max-Age matches TokenTTL so the cookie
// expires together with the claims inside it.
func (c CookieTransport) Attach(w http.ResponseWriter, r *http.Request, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(TokenTTL.Seconds()),
		HttpOnly: true,
		Secure:   c.secure(r),
		SameSite: http.SameSiteLaxMode,
	})
}

// Extract returns the credential cookie value, if any.
func (c CookieTransport) Extract(r *http.Request) (string, bool) {
	cookie, err := r.Cookie(CookieName)
	if err != nil || cookie.Value == "" {
		return "", false
	}
	return cookie.Value, true
}

// Clear expires the credential cookie on the client.
func (c CookieTransport) Clear(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   c.secure(r),
		SameSite: http.SameSiteLaxMode,
	})
}
