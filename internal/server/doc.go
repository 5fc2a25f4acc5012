// Package server implements the stockdeck HTTP service.
//
// # Routes
//
// Every request passes through the admission gate from package auth before
// reaching the mux:
//
//	GET  /health, /health/ready      liveness and store readiness
//	GET  /metrics                    Prometheus exposition (when enabled)
//	POST /auth/signup, /auth/login   create or resume a session
//	GET  /auth/session               current user, or {"user": null}
//	POST /auth/logout                clear the credential cookie
//	GET  /api/stocks[/{symbol}]      market data as JSON (protected)
//	GET  /, /stocks/{symbol}         rendered pages (protected)
//	GET  /login, /register           rendered pages (public only)
//	GET  /static/...                 embedded assets
//
// # Errors
//
// JSON error bodies are {"error": "<Code>"}. Login failures return the same
// body whether the email is unknown or the secret is wrong.
//
// # Listeners
//
// The server listens on plain TCP, or joins a tailnet via tsnet when
// tailscale.enabled is set. See [Server.Run].
package server
