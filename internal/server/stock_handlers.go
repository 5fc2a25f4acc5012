// ABOUTME: JSON market-data endpoints and the server-rendered pages
// ABOUTME: Pages read the caller's claims from the request context set by the gate

package server

import (
	"errors"
	"net/http"

	"github.com/2389/stockdeck/internal/auth"
	"github.com/2389/stockdeck/internal/market"
	"github.com/2389/stockdeck/internal/pages"
)

// handleStockList handles GET /api/stocks.
func (s *Server) handleStockList(w http.ResponseWriter, r *http.Request) {
	stocks, err := s.market.Overview(r.Context(), s.config.Market.Symbols)
	if err != nil {
		s.sendMarketError(w, err)
		return
	}
	s.sendJSON(w, http.StatusOK, stocks)
}

// handleStockDetail handles GET /api/stocks/{symbol}.
func (s *Server) handleStockDetail(w http.ResponseWriter, r *http.Request) {
	detail, err := s.market.Detail(r.Context(), r.PathValue("symbol"))
	if err != nil {
		s.sendMarketError(w, err)
		return
	}
	s.sendJSON(w, http.StatusOK, detail)
}

// sendMarketError maps market errors to status codes and bodies.
func (s *Server) sendMarketError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, market.ErrInvalidSymbol):
		s.sendJSONError(w, http.StatusBadRequest, codeInvalidSymbol)
	case errors.Is(err, market.ErrSymbolNotFound):
		s.sendJSONError(w, http.StatusNotFound, codeSymbolNotFound)
	default:
		s.logger.Error("market data request failed", "error", err)
		s.sendJSONError(w, http.StatusBadGateway, codeUpstreamFailure)
	}
}

// currentUser returns the gate-verified claims, if any.
func currentUser(r *http.Request) *auth.ClaimSet {
	claims, ok := auth.ClaimsFromContext(r.Context())
	if !ok {
		return nil
	}
	return &claims
}

const upstreamUnavailable = "Market data is unavailable right now. Please try again shortly."

// handleHomePage renders the market overview.
func (s *Server) handleHomePage(w http.ResponseWriter, r *http.Request) {
	page := pages.Page{Title: "Overview", User: currentUser(r)}

	stocks, err := s.market.Overview(r.Context(), s.config.Market.Symbols)
	if err != nil {
		s.logger.Error("overview fetch failed", "error", err)
		page.Error = upstreamUnavailable
	}
	page.Stocks = stocks

	s.pages.Render(w, http.StatusOK, pages.PageHome, page)
}

// handleStockPage renders the single-stock view.
func (s *Server) handleStockPage(w http.ResponseWriter, r *http.Request) {
	symbol := r.PathValue("symbol")
	page := pages.Page{Title: symbol, User: currentUser(r), Symbol: symbol}

	detail, err := s.market.Detail(r.Context(), symbol)
	switch {
	case err == nil:
		page.Title = detail.Symbol
		page.Stock = &detail
		s.pages.Render(w, http.StatusOK, pages.PageStock, page)
	case errors.Is(err, market.ErrInvalidSymbol), errors.Is(err, market.ErrSymbolNotFound):
		page.Title = "Not found"
		page.Error = "No stock matches that symbol."
		s.pages.Render(w, http.StatusNotFound, pages.PageNotFound, page)
	default:
		s.logger.Error("detail fetch failed", "symbol", symbol, "error", err)
		page.Error = upstreamUnavailable
		s.pages.Render(w, http.StatusBadGateway, pages.PageStock, page)
	}
}

func (s *Server) handleLoginPage(w http.ResponseWriter, r *http.Request) {
	s.pages.Render(w, http.StatusOK, pages.PageLogin, pages.Page{Title: "Log in"})
}

func (s *Server) handleRegisterPage(w http.ResponseWriter, r *http.Request) {
	s.pages.Render(w, http.StatusOK, pages.PageRegister, pages.Page{Title: "Sign up"})
}

func (s *Server) handleNotFound(w http.ResponseWriter, r *http.Request) {
	s.pages.Render(w, http.StatusNotFound, pages.PageNotFound, pages.Page{Title: "Not found", User: currentUser(r)})
}
