package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/cwhitelam/Tracker/internal/bitcoin"
	"github.com/cwhitelam/Tracker/internal/portfolio"
)

type snapshotService interface {
	GetBitcoinData(ctx context.Context, startDate time.Time) (bitcoin.Snapshot, error)
}

// server carries the handlers' dependencies. lastGood retains the most
// recent successful snapshot so a failed refresh degrades to stale data
// instead of an empty page.
type server struct {
	svc      snapshotService
	quotes   bitcoin.QuoteSource // credentialed provider behind the gateway route; nil when unconfigured
	holding  portfolio.Holding
	log      *slog.Logger
	lastGood atomic.Pointer[bitcoin.Snapshot]
}

type errorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(v)
}

// handleCryptoPrice is the quote gateway route: it forwards one provider
// request and replies with the normalized {price, change} pair. The provider
// credential and raw payload never leave this process.
func (s *server) handleCryptoPrice(w http.ResponseWriter, r *http.Request) {
	if s.quotes == nil {
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: "quote provider not configured"})
		return
	}

	q, err := s.quotes.FetchCurrentQuote(r.Context())
	if err != nil {
		s.log.Error("gateway quote fetch failed", "error", err)
		writeJSON(w, http.StatusBadGateway, errorResponse{Error: "Failed to fetch price data", Details: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, q)
}

// snapshot returns fresh-or-cached data, falling back to the last good
// snapshot when a refresh fails. The stale flag distinguishes "refresh
// failed but prior data exists" from a normal read.
func (s *server) snapshot(ctx context.Context) (bitcoin.Snapshot, bool, error) {
	snap, err := s.svc.GetBitcoinData(ctx, s.holding.PurchaseDate)
	if err != nil {
		if last := s.lastGood.Load(); last != nil {
			return *last, true, nil
		}
		return bitcoin.Snapshot{}, false, err
	}
	s.lastGood.Store(&snap)
	return snap, false, nil
}

func (s *server) handleBitcoinData(w http.ResponseWriter, r *http.Request) {
	snap, stale, err := s.snapshot(r.Context())
	if err != nil {
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: "bitcoin data unavailable", Details: err.Error()})
		return
	}
	if stale {
		w.Header().Set("X-Data-Stale", "true")
	}
	writeJSON(w, http.StatusOK, snap)
}

func (s *server) handlePortfolio(w http.ResponseWriter, r *http.Request) {
	snap, stale, err := s.snapshot(r.Context())
	if err != nil {
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: "bitcoin data unavailable", Details: err.Error()})
		return
	}
	if stale {
		w.Header().Set("X-Data-Stale", "true")
	}
	writeJSON(w, http.StatusOK, portfolio.Summarize(s.holding, snap, time.Now()))
}

func (s *server) routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/crypto/price", s.handleCryptoPrice)
	mux.HandleFunc("GET /api/bitcoin/data", s.handleBitcoinData)
	mux.HandleFunc("GET /api/portfolio", s.handlePortfolio)
	return mux
}
