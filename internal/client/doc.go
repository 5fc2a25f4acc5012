// Package client is a Go client for a stockdeck server.
//
// # Session state
//
// A [Session] starts in [StateUnknown] and only moves to
// [StateAuthenticated] or [StateUnauthenticated] when the server says so:
//
//	sess, _ := client.New("http://127.0.0.1:8080")
//	state, err := sess.Refresh(ctx)     // GET /auth/session
//	user, err := sess.Login(ctx, email, secret)
//
// A failed Refresh (network error, 5xx) leaves the state unchanged.
// [Session.Logout] is the exception: it drops local state before calling the
// server and stays logged out even if that call fails.
//
// # Errors
//
// Non-success responses are returned as *[APIError], which unwraps to a
// sentinel such as [ErrInvalidCredentials] so callers can use errors.Is.
// Protected calls that the server redirects to the login page return
// [ErrNotAuthenticated].
package client
