package api

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/seenimoa/marketdesk/internal/portfolio"
)

func (s *Server) handlePortfolio(w http.ResponseWriter, r *http.Request) {
	snap, err := s.book.Value(r.Context(), s.agg.Market())
	if err != nil {
		writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, APIResponse{Success: true, Data: snap})
}

// holdingRequest accepts shares and cost basis as JSON numbers or strings.
type holdingRequest struct {
	Ticker    string          `json:"ticker"`
	Shares    decimal.Decimal `json:"shares"`
	CostBasis decimal.Decimal `json:"cost_basis"`
}

func (s *Server) handleAddHolding(w http.ResponseWriter, r *http.Request) {
	var req holdingRequest
	if err := decodeJSON(r, &req); err != nil {
		writeErr(w, r, err)
		return
	}
	if strings.TrimSpace(req.Ticker) == "" {
		writeErr(w, r, badRequest("ticker is required"))
		return
	}
	// Reject tickers the market cannot price before they enter the book.
	if _, err := s.agg.Market().Instrument(r.Context(), req.Ticker); err != nil {
		writeErr(w, r, err)
		return
	}
	h, err := s.book.Add(req.Ticker, req.Shares, req.CostBasis)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, APIResponse{Success: true, Data: h})
}

func (s *Server) handleRemoveHolding(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeErr(w, r, badRequest("invalid holding id: %v", err))
		return
	}
	if err := s.book.Remove(id); err != nil {
		writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, APIResponse{
		Success: true,
		Data:    map[string]string{"removed": id.String()},
	})
}

// handlePortfolioPerformance replays the current holdings over the last
// ?days calendar days (default 365).
func (s *Server) handlePortfolioPerformance(w http.ResponseWriter, r *http.Request) {
	days, err := intQuery(r, "days", 365)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	to := s.agg.Market().Now()
	from := to.AddDate(0, 0, -days)

	curve, err := s.book.ValueHistory(r.Context(), s.agg.Market(), from, to)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	perf, err := portfolio.ComputePerformance(curve, s.cfg.Portfolio.RiskFreeRate)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, APIResponse{Success: true, Data: perf})
}
