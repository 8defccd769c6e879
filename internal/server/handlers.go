package server

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/jonathan/keyword-miner/internal/db"
	"github.com/jonathan/keyword-miner/internal/ledger"
	"github.com/jonathan/keyword-miner/internal/pipeline"
	"github.com/jonathan/keyword-miner/internal/server/middleware"
)

const (
	defaultTransactionLimit = 20
	maxTransactionLimit     = 100
	healthTimeout           = 2 * time.Second
)

// CreditsResponse is the body of GET /v1/credits.
type CreditsResponse struct {
	Success      bool                   `json:"success"`
	Balance      ledger.Balance         `json:"balance"`
	Transactions []db.CreditTransaction `json:"transactions"`
}

// handleKeywords runs one mode request for the caller.
func (s *Server) handleKeywords(w http.ResponseWriter, r *http.Request) {
	accountID, err := middleware.AccountID(r)
	if err != nil {
		s.errorResponse(w, pipeline.ErrUnauthorized)
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		s.errorResponse(w, &pipeline.InvalidInputError{Fields: []string{"body"}})
		return
	}

	resp, err := s.deps.Keywords.Handle(r.Context(), accountID, body)
	if err != nil {
		s.errorResponse(w, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, resp)
}

// handleCredits returns the caller's balance and recent transactions. An
// account without a credit row reads as an empty balance.
func (s *Server) handleCredits(w http.ResponseWriter, r *http.Request) {
	accountID, err := middleware.AccountID(r)
	if err != nil {
		s.errorResponse(w, pipeline.ErrUnauthorized)
		return
	}

	limit := defaultTransactionLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			s.errorResponse(w, &pipeline.InvalidInputError{Fields: []string{"limit"}})
			return
		}
		limit = min(n, maxTransactionLimit)
	}

	balance, err := s.deps.Balances.CheckBalance(r.Context(), accountID)
	if err != nil {
		if !errors.Is(err, ledger.ErrAccountNotProvisioned) {
			s.errorResponse(w, err)
			return
		}
		balance = &ledger.Balance{}
	}

	txns, err := s.deps.Transactions.ListTransactions(r.Context(), accountID, limit)
	if err != nil {
		s.errorResponse(w, err)
		return
	}
	if txns == nil {
		txns = []db.CreditTransaction{}
	}

	s.jsonResponse(w, http.StatusOK, CreditsResponse{Success: true, Balance: *balance, Transactions: txns})
}

// handleHealth returns server health status
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.deps.Health != nil {
		ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
		defer cancel()
		if err := s.deps.Health.Ping(ctx); err != nil {
			s.jsonResponse(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	s.jsonResponse(w, http.StatusOK, map[string]string{"status": "ok"})
}
