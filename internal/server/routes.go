// ABOUTME: Route table for the stockdeck HTTP surface
// ABOUTME: Every route sits behind the admission gate; only ungated paths skip it

package server

import (
	"net/http"

	"github.com/2389/stockdeck/internal/pages"
)

func (s *Server) registerRoutes(mux *http.ServeMux) {
	// Health endpoints - no auth required
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /health/ready", s.handleReady)

	if s.config.Metrics.Enabled {
		mux.Handle("GET "+s.config.Metrics.Path, s.metrics.handler())
	}

	// Session API
	mux.HandleFunc("POST /auth/signup", s.instrument("/auth/signup", s.handleSignup))
	mux.HandleFunc("POST /auth/login", s.instrument("/auth/login", s.handleLogin))
	mux.HandleFunc("GET /auth/session", s.instrument("/auth/session", s.handleSession))
	mux.HandleFunc("POST /auth/logout", s.instrument("/auth/logout", s.handleLogout))

	// Market data API (protected)
	mux.HandleFunc("GET /api/stocks", s.instrument("/api/stocks", s.handleStockList))
	mux.HandleFunc("GET /api/stocks/{symbol}", s.instrument("/api/stocks/{symbol}", s.handleStockDetail))

	// Pages
	mux.HandleFunc("GET /{$}", s.instrument("/", s.handleHomePage))
	mux.HandleFunc("GET /login", s.instrument("/login", s.handleLoginPage))
	mux.HandleFunc("GET /register", s.instrument("/register", s.handleRegisterPage))
	mux.HandleFunc("GET /stocks", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/", http.StatusFound)
	})
	mux.HandleFunc("GET /stocks/{symbol}", s.instrument("/stocks/{symbol}", s.handleStockPage))
	mux.Handle("GET /static/", http.StripPrefix("/static/", pages.StaticHandler()))

	mux.HandleFunc("/", s.handleNotFound)
}
