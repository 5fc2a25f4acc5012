// Package auth provides session credentials and route admission for stockdeck.
//
// # Credentials
//
// A credential is an HS256 JWT signed with the configured jwt_secret. It
// carries a ClaimSet (subject, display name, email, issue and expiry time).
// Every credential lives exactly TokenTTL (24h):
//
//	codec, err := auth.NewCodec(secret)
//	token, err := codec.Issue(auth.NewClaimSet(id, name, email, time.Now()))
//	claims, err := codec.Verify(token, time.Now())
//
// Verify failures are *VerifyError values with a Reason of malformed,
// signature_mismatch, or expired. The reason exists for logs and metrics;
// callers must treat all of them as "not authenticated".
//
// Credentials are stateless. There is no session table and no revocation
// list; a token is valid until it expires.
//
// # Cookie Transport
//
// CookieTransport stores the credential in the "token" cookie:
//
//   - HttpOnly, SameSite=Lax, Path=/
//   - Max-Age equal to TokenTTL
//   - Secure when configured, or when the request arrived over TLS
//
// # Admission Gate
//
// Gate runs before any page handler. Paths are classified by ClassifyPath:
//
//   - public: /login, /register
//   - protected: /, /stocks, /stocks/*, /api/stocks, /api/stocks/*
//   - ungated: everything else (/auth/*, /health, /metrics, /static/*)
//
// Decisions follow a fixed table:
//
//	protected + no session  -> 302 /login
//	protected + session     -> allow, claims in context
//	public    + session     -> 302 /
//	public    + no session  -> allow
//
// Handlers read claims with ClaimsFromContext and never parse the token again.
package auth
