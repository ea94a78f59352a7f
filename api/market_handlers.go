package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/seenimoa/marketdesk/internal/analysis/derivatives"
	"github.com/seenimoa/marketdesk/internal/datasource"
	"github.com/seenimoa/marketdesk/internal/pricing"
	"github.com/seenimoa/marketdesk/pkg/models"
	"github.com/seenimoa/marketdesk/pkg/utils"
)

// dataTimeout bounds handlers that fan out to data sources.
const dataTimeout = 15 * time.Second

func (s *Server) handleQuote(w http.ResponseWriter, r *http.Request) {
	ticker, err := tickerParam(r)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	quote, err := s.agg.Market().GetQuote(r.Context(), ticker)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, APIResponse{Success: true, Data: quote})
}

// handleHistory serves bars between ?from and ?to (YYYY-MM-DD, US/Eastern).
// ?timeframe is 1d (default) or 1w.
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	ticker, err := tickerParam(r)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	q := r.URL.Query()
	var from, to time.Time
	if v := q.Get("from"); v != "" {
		if from, err = utils.ParseDateET(v); err != nil {
			writeErr(w, r, badRequest("from: want YYYY-MM-DD, got %q", v))
			return
		}
	}
	if v := q.Get("to"); v != "" {
		if to, err = utils.ParseDateET(v); err != nil {
			writeErr(w, r, badRequest("to: want YYYY-MM-DD, got %q", v))
			return
		}
		to = to.AddDate(0, 0, 1).Add(-time.Nanosecond)
	}
	if !from.IsZero() && !to.IsZero() && from.After(to) {
		writeErr(w, r, badRequest("from must not be after to"))
		return
	}

	bars, err := s.agg.Market().GetHistoricalData(r.Context(), ticker, from, to, models.Timeframe(q.Get("timeframe")))
	if err != nil {
		writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, APIResponse{
		Success: true,
		Data: map[string]interface{}{
			"ticker": ticker,
			"count":  len(bars),
			"bars":   bars,
		},
	})
}

func (s *Server) handleMarketOverview(w http.ResponseWriter, r *http.Request) {
	overview, err := s.agg.Market().Overview(r.Context())
	if err != nil {
		writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, APIResponse{Success: true, Data: overview})
}

func (s *Server) handleFundamentals(w http.ResponseWriter, r *http.Request) {
	ticker, err := tickerParam(r)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	snap, err := s.agg.FetchFundamentals(r.Context(), ticker)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, APIResponse{Success: true, Data: snap})
}

// newsResponse carries articles together with the upstream failure when
// the articles are canned samples.
type newsResponse struct {
	Ticker   string               `json:"ticker,omitempty"`
	Articles []models.NewsArticle `json:"articles"`
	Warning  string               `json:"warning,omitempty"`
}

// handleNews serves market headlines, or ticker headlines with ?ticker.
func (s *Server) handleNews(w http.ResponseWriter, r *http.Request) {
	limit, err := intQuery(r, "limit", 20)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), dataTimeout)
	defer cancel()

	resp := newsResponse{Ticker: utils.NormalizeTicker(r.URL.Query().Get("ticker"))}
	switch news := s.agg.NewsSource(); {
	case news == nil:
		err = fmt.Errorf("%w: news disabled", datasource.ErrNotSupported)
	case resp.Ticker != "":
		resp.Articles, err = s.agg.FetchStockNews(ctx, resp.Ticker, limit)
	default:
		resp.Articles, err = news.GetMarketNews(ctx, limit)
	}
	if err != nil {
		if len(resp.Articles) == 0 {
			writeErr(w, r, err)
			return
		}
		resp.Warning = err.Error()
	}
	if resp.Articles == nil {
		resp.Articles = []models.NewsArticle{}
	}
	writeJSON(w, http.StatusOK, APIResponse{Success: true, Data: resp})
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	ticker, err := tickerParam(r)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), dataTimeout)
	defer cancel()

	d, err := s.agg.FetchDashboard(ctx, ticker)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, APIResponse{Success: true, Data: d})
}

// handleSummary builds the dashboard and has the LLM chain narrate it.
func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	ticker, err := tickerParam(r)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	d, err := s.agg.FetchDashboard(r.Context(), ticker)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	summary, err := s.summarizer.Summarize(r.Context(), d)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, APIResponse{Success: true, Data: summary})
}

// handleOptionChain serves one expiry of the chain; ?expiry defaults to the
// nearest listed expiry.
func (s *Server) handleOptionChain(w http.ResponseWriter, r *http.Request) {
	ticker, err := tickerParam(r)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	oc, err := s.agg.Market().GetOptionChain(r.Context(), ticker, r.URL.Query().Get("expiry"))
	if err != nil {
		writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, APIResponse{Success: true, Data: oc})
}

// optionAnalysisResponse is chain analytics plus suggested strategies.
type optionAnalysisResponse struct {
	Ticker      string                          `json:"ticker"`
	Expiry      string                          `json:"expiry"`
	Spot        float64                         `json:"spot"`
	Analysis    derivatives.OptionChainAnalysis `json:"analysis"`
	Suggestions []derivatives.Suggestion        `json:"suggestions"`
	Warning     string                          `json:"warning,omitempty"`
}

func (s *Server) handleOptionAnalysis(w http.ResponseWriter, r *http.Request) {
	ticker, err := tickerParam(r)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	oc, analysis, err := s.agg.FetchOptionAnalysis(r.Context(), ticker, r.URL.Query().Get("expiry"))
	if err != nil {
		writeErr(w, r, err)
		return
	}
	resp := optionAnalysisResponse{
		Ticker:   oc.Ticker,
		Expiry:   oc.ExpiryDate,
		Spot:     oc.SpotPrice,
		Analysis: analysis,
	}

	expiry, err := pricing.ParseExpiry(oc.ExpiryDate)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	years := pricing.YearsToExpiry(s.agg.Market().Now(), expiry)
	resp.Suggestions, err = derivatives.SuggestStrategies(oc, years, s.cfg.Options.RiskFreeRate)
	if err != nil {
		resp.Warning = err.Error()
	}
	writeJSON(w, http.StatusOK, APIResponse{Success: true, Data: resp})
}
