package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seenimoa/marketdesk/internal/config"
	"github.com/seenimoa/marketdesk/internal/datasource"
	"github.com/seenimoa/marketdesk/internal/llm"
	"github.com/seenimoa/marketdesk/internal/portfolio"
	"github.com/seenimoa/marketdesk/internal/pricing"
	"github.com/seenimoa/marketdesk/internal/simulation"
	"github.com/seenimoa/marketdesk/internal/strategy"
	"github.com/seenimoa/marketdesk/pkg/utils"
)

// ════════════════════════════════════════════════════════════════════
// Test Helpers
// ════════════════════════════════════════════════════════════════════

// testNow is a Wednesday mid-session.
var testNow = time.Date(2026, time.October, 14, 12, 0, 0, 0, utils.Eastern)

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.Market.Watchlist = []string{"AAPL"}
	cfg.News.Feeds = nil
	cfg.News.FallbackToSample = true
	cfg.Portfolio.SeedDemo = false
	cfg.Simulation.Workers = 2
	cfg.Simulation.Iterations = 2000
	return cfg
}

// testServer wires a fixed-clock synthetic market, sample-only news and the
// offline template provider.
func testServer(t *testing.T, opts ...Option) *Server {
	t.Helper()
	cfg := testConfig()
	market := datasource.NewMarket(cfg.Market, cfg.Options.RiskFreeRate).
		WithClock(func() time.Time { return testNow })
	news := datasource.NewNews(cfg.News, zerolog.Nop())
	agg := datasource.NewAggregator(market, news, zerolog.Nop())

	base := []Option{WithAggregator(agg), WithProvider(llm.NewTemplateProvider())}
	srv, err := NewServer(cfg, append(base, opts...)...)
	require.NoError(t, err)
	return srv
}

func do(t *testing.T, srv *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, rd)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)
	return rec
}

func decodeResponse(t *testing.T, rec *httptest.ResponseRecorder) APIResponse {
	t.Helper()
	var resp APIResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	return resp
}

// decodeData unmarshals the envelope's data into v and returns the envelope.
func decodeData(t *testing.T, rec *httptest.ResponseRecorder, v any) APIResponse {
	t.Helper()
	var env struct {
		Success bool            `json:"success"`
		Data    json.RawMessage `json:"data"`
		Error   string          `json:"error"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&env); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if v != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, v); err != nil {
			t.Fatalf("failed to decode data: %v", err)
		}
	}
	return APIResponse{Success: env.Success, Error: env.Error}
}

func expectStatus(t *testing.T, rec *httptest.ResponseRecorder, want int) {
	t.Helper()
	if rec.Code != want {
		t.Fatalf("status: got %d, want %d (body %s)", rec.Code, want, rec.Body.String())
	}
}

// ════════════════════════════════════════════════════════════════════
// Response helpers
// ════════════════════════════════════════════════════════════════════

func TestWriteJSON(t *testing.T) {
	rec := httptest.NewRecorder()
	writeJSON(rec, http.StatusCreated, APIResponse{Success: true, Data: map[string]int{"n": 1}})

	if rec.Code != http.StatusCreated {
		t.Errorf("status: got %d, want 201", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type: got %q, want application/json", ct)
	}
	if got := strings.TrimSpace(rec.Body.String()); got != `{"success":true,"data":{"n":1}}` {
		t.Errorf("body: got %s", got)
	}
}

func TestWriteError(t *testing.T) {
	rec := httptest.NewRecorder()
	writeError(rec, http.StatusNotFound, "missing")

	resp := decodeResponse(t, rec)
	if resp.Success {
		t.Error("Success should be false")
	}
	if resp.Error != "missing" {
		t.Errorf("Error: got %q, want missing", resp.Error)
	}
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"pricing input", fmt.Errorf("wrap: %w", pricing.ErrInvalidInput), 400},
		{"typed input", &pricing.InputError{Field: "spot", Value: -1, Reason: "must be positive"}, 400},
		{"invalid leg", strategy.ErrInvalidLeg, 400},
		{"unknown kind", strategy.ErrUnknownKind, 400},
		{"simulation params", simulation.ErrInvalidParams, 400},
		{"bad holding", portfolio.ErrInvalidHolding, 400},
		{"bad request", badRequest("x"), 400},
		{"instability", pricing.ErrNumericInstability, 422},
		{"non convergence", pricing.ErrNonConvergence, 422},
		{"short history", portfolio.ErrInsufficientHistory, 422},
		{"ticker", datasource.ErrTickerNotFound, 404},
		{"expiry", datasource.ErrExpiryNotListed, 404},
		{"not supported", datasource.ErrNotSupported, 404},
		{"holding", portfolio.ErrHoldingNotFound, 404},
		{"rate limited", datasource.ErrRateLimited, 429},
		{"news down", datasource.ErrNewsUnavailable, 503},
		{"llm down", llm.ErrNoProviders, 503},
		{"deadline", context.DeadlineExceeded, 504},
		{"other", errors.New("boom"), 500},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := statusFor(tt.err); got != tt.want {
				t.Errorf("statusFor(%v): got %d, want %d", tt.err, got, tt.want)
			}
		})
	}
}

// ════════════════════════════════════════════════════════════════════
// Health, metrics, CORS
// ════════════════════════════════════════════════════════════════════

func TestHandleHealth(t *testing.T) {
	srv := testServer(t)
	for _, path := range []string{"/health", "/api/v1/health"} {
		rec := do(t, srv, http.MethodGet, path, "")
		expectStatus(t, rec, http.StatusOK)

		var data map[string]any
		resp := decodeData(t, rec, &data)
		if !resp.Success {
			t.Errorf("%s: Success should be true", path)
		}
		if data["status"] != "ok" {
			t.Errorf("%s status: got %v, want ok", path, data["status"])
		}
		if data["market_status"] != "OPEN" {
			t.Errorf("%s market_status: got %v, want OPEN", path, data["market_status"])
		}
		if data["llm"] != llm.ProviderTemplate {
			t.Errorf("%s llm: got %v, want template", path, data["llm"])
		}
	}
}

func TestMetricsEndpoint(t *testing.T) {
	srv := testServer(t)
	expectStatus(t, do(t, srv, http.MethodGet, "/api/v1/quote/AAPL", ""), http.StatusOK)
	expectStatus(t, do(t, srv, http.MethodGet, "/api/v1/quote/MSFT", ""), http.StatusOK)
	expectStatus(t, do(t, srv, http.MethodGet, "/api/v1/quote/ZZZZ", ""), http.StatusNotFound)

	rec := do(t, srv, http.MethodGet, "/metrics", "")
	expectStatus(t, rec, http.StatusOK)
	body := rec.Body.String()

	for _, want := range []string{
		`marketdesk_http_requests_total{method="GET",route="/api/v1/quote/{ticker}",status="200"} 2`,
		`marketdesk_http_requests_total{method="GET",route="/api/v1/quote/{ticker}",status="404"} 1`,
		`marketdesk_http_request_duration_seconds_count{method="GET",route="/api/v1/quote/{ticker}"} 3`,
		`marketdesk_ws_clients 0`,
		`go_goroutines`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("metrics missing %q", want)
		}
	}
}

func TestMetricsRegistryPerServer(t *testing.T) {
	// Two servers in one process must not collide on registration.
	a, b := testServer(t), testServer(t)
	expectStatus(t, do(t, a, http.MethodGet, "/health", ""), http.StatusOK)
	rec := do(t, b, http.MethodGet, "/metrics", "")
	assert.NotContains(t, rec.Body.String(), `route="/health"`)
}

func TestCORSPreflight(t *testing.T) {
	srv := testServer(t)
	req := httptest.NewRequest(http.MethodOptions, "/api/v1/strategies", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", "POST")
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:3000" {
		t.Errorf("Allow-Origin: got %q, want http://localhost:3000", got)
	}
}

func TestUnknownRoute(t *testing.T) {
	srv := testServer(t)
	rec := do(t, srv, http.MethodGet, "/api/v1/nope", "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("status: got %d, want 404", rec.Code)
	}
}

// ════════════════════════════════════════════════════════════════════
// Market data
// ════════════════════════════════════════════════════════════════════

func TestHandleQuote(t *testing.T) {
	srv := testServer(t)

	rec := do(t, srv, http.MethodGet, "/api/v1/quote/apple", "")
	expectStatus(t, rec, http.StatusOK)
	var q struct {
		Ticker    string  `json:"ticker"`
		LastPrice float64 `json:"last_price"`
	}
	decodeData(t, rec, &q)
	if q.Ticker != "AAPL" {
		t.Errorf("ticker: got %q, want AAPL", q.Ticker)
	}
	if q.LastPrice <= 0 {
		t.Errorf("last price: got %v, want > 0", q.LastPrice)
	}

	// The quote equals the market's spot at the same instant.
	spot, err := srv.agg.Market().Spot(context.Background(), "AAPL")
	require.NoError(t, err)
	assert.InDelta(t, spot, q.LastPrice, 1e-9)

	rec = do(t, srv, http.MethodGet, "/api/v1/quote/ZZZZ", "")
	expectStatus(t, rec, http.StatusNotFound)
	if resp := decodeResponse(t, rec); resp.Success || resp.Error == "" {
		t.Errorf("unknown ticker: got %+v, want error envelope", resp)
	}
}

func TestHandleHistory(t *testing.T) {
	srv := testServer(t)

	rec := do(t, srv, http.MethodGet, "/api/v1/history/AAPL?from=2026-09-01&to=2026-09-30", "")
	expectStatus(t, rec, http.StatusOK)
	var data struct {
		Ticker string `json:"ticker"`
		Count  int    `json:"count"`
		Bars   []struct {
			Timestamp time.Time `json:"timestamp"`
		} `json:"bars"`
	}
	decodeData(t, rec, &data)
	// September 2026 has 21 sessions (Labor Day on the 7th).
	if data.Count != 21 || len(data.Bars) != 21 {
		t.Errorf("bars: got count=%d len=%d, want 21", data.Count, len(data.Bars))
	}

	weekly := do(t, srv, http.MethodGet, "/api/v1/history/AAPL?from=2026-09-01&to=2026-09-30&timeframe=1w", "")
	expectStatus(t, weekly, http.StatusOK)

	tests := []struct {
		query string
		want  int
	}{
		{"from=2026-13-01", http.StatusBadRequest},
		{"to=yesterday", http.StatusBadRequest},
		{"from=2026-10-01&to=2026-09-01", http.StatusBadRequest},
	}
	for _, tt := range tests {
		rec := do(t, srv, http.MethodGet, "/api/v1/history/AAPL?"+tt.query, "")
		if rec.Code != tt.want {
			t.Errorf("%s: got %d, want %d", tt.query, rec.Code, tt.want)
		}
	}
}

func TestHandleMarketOverview(t *testing.T) {
	srv := testServer(t)
	rec := do(t, srv, http.MethodGet, "/api/v1/market/overview", "")
	expectStatus(t, rec, http.StatusOK)
	assert.True(t, decodeResponse(t, rec).Success)
}

func TestHandleFundamentals(t *testing.T) {
	srv := testServer(t)

	rec := do(t, srv, http.MethodGet, "/api/v1/fundamentals/AAPL", "")
	expectStatus(t, rec, http.StatusOK)
	var snap struct {
		Ticker string `json:"ticker"`
	}
	decodeData(t, rec, &snap)
	assert.Equal(t, "AAPL", snap.Ticker)

	// ETFs have no statements.
	expectStatus(t, do(t, srv, http.MethodGet, "/api/v1/fundamentals/SPY", ""), http.StatusNotFound)
}

func TestHandleNewsSampleFallback(t *testing.T) {
	srv := testServer(t)

	rec := do(t, srv, http.MethodGet, "/api/v1/news?limit=3", "")
	expectStatus(t, rec, http.StatusOK)
	var data struct {
		Articles []struct {
			Title  string `json:"title"`
			Source string `json:"source"`
		} `json:"articles"`
		Warning string `json:"warning"`
	}
	decodeData(t, rec, &data)

	if len(data.Articles) != 3 {
		t.Fatalf("articles: got %d, want 3", len(data.Articles))
	}
	for _, a := range data.Articles {
		if a.Source != datasource.SampleSource {
			t.Errorf("source: got %q, want %q", a.Source, datasource.SampleSource)
		}
	}
	if !strings.Contains(data.Warning, "news unavailable") {
		t.Errorf("warning: got %q, want the upstream error", data.Warning)
	}

	expectStatus(t, do(t, srv, http.MethodGet, "/api/v1/news?limit=abc", ""), http.StatusBadRequest)
}

func TestHandleNewsNoFallback(t *testing.T) {
	cfg := testConfig()
	cfg.News.FallbackToSample = false
	market := datasource.NewMarket(cfg.Market, cfg.Options.RiskFreeRate).WithClock(func() time.Time { return testNow })
	agg := datasource.NewAggregator(market, datasource.NewNews(cfg.News, zerolog.Nop()), zerolog.Nop())
	srv, err := NewServer(cfg, WithAggregator(agg), WithProvider(llm.NewTemplateProvider()))
	require.NoError(t, err)

	rec := do(t, srv, http.MethodGet, "/api/v1/news", "")
	expectStatus(t, rec, http.StatusServiceUnavailable)
}

func TestHandleDashboard(t *testing.T) {
	srv := testServer(t)

	rec := do(t, srv, http.MethodGet, "/api/v1/dashboard/MSFT", "")
	expectStatus(t, rec, http.StatusOK)
	var d struct {
		Ticker string         `json:"ticker"`
		Quote  map[string]any `json:"quote"`
	}
	decodeData(t, rec, &d)
	assert.Equal(t, "MSFT", d.Ticker)
	assert.NotNil(t, d.Quote)

	expectStatus(t, do(t, srv, http.MethodGet, "/api/v1/dashboard/ZZZZ", ""), http.StatusNotFound)
}

func TestHandleSummary(t *testing.T) {
	srv := testServer(t)

	rec := do(t, srv, http.MethodGet, "/api/v1/summary/AAPL", "")
	expectStatus(t, rec, http.StatusOK)
	var s llm.Summary
	decodeData(t, rec, &s)

	if s.Provider != llm.ProviderTemplate {
		t.Errorf("provider: got %q, want template", s.Provider)
	}
	if !strings.HasPrefix(s.Text, "Apple Inc. (AAPL) last traded at") {
		t.Errorf("text: got %q", s.Text)
	}
	if len(s.Facts) == 0 {
		t.Error("facts should not be empty")
	}
}

func TestHandleSummaryProviderDown(t *testing.T) {
	down := llm.NewRouter("none")
	srv := testServer(t, WithProvider(down))

	rec := do(t, srv, http.MethodGet, "/api/v1/summary/AAPL", "")
	expectStatus(t, rec, http.StatusServiceUnavailable)
}

// ════════════════════════════════════════════════════════════════════
// Option chains
// ════════════════════════════════════════════════════════════════════

func TestHandleOptionChain(t *testing.T) {
	srv := testServer(t)

	rec := do(t, srv, http.MethodGet, "/api/v1/options/chain/AAPL", "")
	expectStatus(t, rec, http.StatusOK)
	var oc struct {
		ExpiryDate string   `json:"expiry_date"`
		Expiries   []string `json:"expiries"`
		Contracts  []any    `json:"contracts"`
	}
	decodeData(t, rec, &oc)
	if oc.ExpiryDate != "2026-10-16" {
		t.Errorf("default expiry: got %q, want 2026-10-16", oc.ExpiryDate)
	}
	if len(oc.Expiries) != 3 {
		t.Errorf("expiries: got %v, want 3", oc.Expiries)
	}
	if len(oc.Contracts) == 0 {
		t.Error("contracts should not be empty")
	}

	expectStatus(t, do(t, srv, http.MethodGet, "/api/v1/options/chain/AAPL?expiry=2026-11-20", ""), http.StatusOK)
	expectStatus(t, do(t, srv, http.MethodGet, "/api/v1/options/chain/AAPL?expiry=2026-10-17", ""), http.StatusNotFound)
	expectStatus(t, do(t, srv, http.MethodGet, "/api/v1/options/chain/VIX", ""), http.StatusNotFound)
}

func TestHandleOptionAnalysis(t *testing.T) {
	srv := testServer(t)

	rec := do(t, srv, http.MethodGet, "/api/v1/options/analysis/QQQ?expiry=2026-11-20", "")
	expectStatus(t, rec, http.StatusOK)
	var data struct {
		Ticker      string `json:"ticker"`
		Expiry      string `json:"expiry"`
		Suggestions []struct {
			Strategy struct {
				Kind string `json:"kind"`
			} `json:"strategy"`
		} `json:"suggestions"`
		Warning string `json:"warning"`
	}
	decodeData(t, rec, &data)
	assert.Equal(t, "QQQ", data.Ticker)
	assert.Equal(t, "2026-11-20", data.Expiry)
	assert.NotEmpty(t, data.Suggestions)
	assert.Empty(t, data.Warning)
}

// ════════════════════════════════════════════════════════════════════
// Pricing
// ════════════════════════════════════════════════════════════════════

const referenceCall = `{"spot":100,"strike":100,"years":1,"rate":0.05,"vol":0.2,"kind":"call"}`

func TestHandleOptionPrice(t *testing.T) {
	srv := testServer(t)

	rec := do(t, srv, http.MethodPost, "/api/v1/options/price", referenceCall)
	expectStatus(t, rec, http.StatusOK)
	var data priceResponse
	decodeData(t, rec, &data)

	if math.Abs(data.Price-10.4506) > 1e-3 {
		t.Errorf("price: got %v, want 10.4506", data.Price)
	}
	if data.Intrinsic != 0 {
		t.Errorf("intrinsic: got %v, want 0", data.Intrinsic)
	}
	if math.Abs(data.TimeValue-data.Price) > 1e-12 {
		t.Errorf("time value: got %v, want %v", data.TimeValue, data.Price)
	}
	if data.Greeks != nil {
		t.Error("price endpoint should not include greeks")
	}
}

func TestHandleOptionPriceDefaults(t *testing.T) {
	srv := testServer(t)

	// Spot from the market, years from the expiry, rate and vol from config.
	rec := do(t, srv, http.MethodPost, "/api/v1/options/price",
		`{"ticker":"AAPL","strike":200,"expiry":"2026-12-18","kind":"put"}`)
	expectStatus(t, rec, http.StatusOK)
	var data priceResponse
	decodeData(t, rec, &data)

	spot, _ := srv.agg.Market().Spot(context.Background(), "AAPL")
	expiry, _ := pricing.ParseExpiry("2026-12-18")
	assert.InDelta(t, spot, data.Params.Spot, 1e-9)
	assert.InDelta(t, pricing.YearsToExpiry(testNow, expiry), data.Params.Years, 1e-12)
	assert.Equal(t, 0.05, data.Params.Rate)
	assert.Equal(t, 0.25, data.Params.Vol)
	assert.Equal(t, pricing.Put, data.Params.Kind)
}

func TestHandleOptionGreeks(t *testing.T) {
	srv := testServer(t)

	rec := do(t, srv, http.MethodPost, "/api/v1/options/greeks", referenceCall)
	expectStatus(t, rec, http.StatusOK)
	var data priceResponse
	decodeData(t, rec, &data)

	require.NotNil(t, data.Greeks)
	if math.Abs(data.Greeks.Delta-0.6368) > 1e-3 {
		t.Errorf("delta: got %v, want 0.6368", data.Greeks.Delta)
	}
	if data.Greeks.Gamma <= 0 || data.Greeks.Vega <= 0 {
		t.Errorf("gamma and vega must be positive: %+v", data.Greeks)
	}
}

func TestHandleOptionPriceErrors(t *testing.T) {
	srv := testServer(t)

	tests := []struct {
		name string
		body string
		want int
	}{
		{"malformed json", `{"spot":`, http.StatusBadRequest},
		{"unknown field", `{"spot":100,"strike":100,"years":1,"vol":0.2,"kind":"call","colour":"red"}`, http.StatusBadRequest},
		{"bad kind", `{"spot":100,"strike":100,"years":1,"vol":0.2,"kind":"straddle"}`, http.StatusBadRequest},
		{"negative strike", `{"spot":100,"strike":-5,"years":1,"vol":0.2,"kind":"call"}`, http.StatusBadRequest},
		{"negative vol", `{"spot":100,"strike":100,"years":1,"vol":-0.2,"kind":"call"}`, http.StatusBadRequest},
		{"missing spot", `{"strike":100,"years":1,"vol":0.2,"kind":"call"}`, http.StatusBadRequest},
		{"bad expiry", `{"spot":100,"strike":100,"expiry":"12/18/2026","kind":"call"}`, http.StatusBadRequest},
		{"unknown ticker", `{"ticker":"ZZZZ","strike":100,"years":1,"kind":"call"}`, http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, srv, http.MethodPost, "/api/v1/options/price", tt.body)
			if rec.Code != tt.want {
				t.Errorf("status: got %d, want %d (body %s)", rec.Code, tt.want, rec.Body.String())
			}
			if resp := decodeResponse(t, rec); resp.Success {
				t.Error("Success should be false")
			}
		})
	}
}

func TestHandleImpliedVol(t *testing.T) {
	srv := testServer(t)

	rec := do(t, srv, http.MethodPost, "/api/v1/options/iv",
		`{"spot":100,"strike":100,"years":1,"rate":0.05,"kind":"call","market_price":10.4506}`)
	expectStatus(t, rec, http.StatusOK)
	var data ivResponse
	decodeData(t, rec, &data)

	if !data.Converged {
		t.Error("solve should converge")
	}
	if math.Abs(data.Sigma-0.2) > 1e-3 {
		t.Errorf("sigma: got %v, want 0.2", data.Sigma)
	}
	if data.Params.Vol != data.Sigma {
		t.Errorf("params.vol: got %v, want the solved sigma %v", data.Params.Vol, data.Sigma)
	}
	if data.UpperBound != 100 {
		t.Errorf("upper bound: got %v, want spot 100", data.UpperBound)
	}
}

func TestHandleImpliedVolNonConvergence(t *testing.T) {
	srv := testServer(t)

	// 99 on a 100 spot needs a volatility above the solver ceiling.
	rec := do(t, srv, http.MethodPost, "/api/v1/options/iv",
		`{"spot":100,"strike":100,"years":1,"rate":0.05,"kind":"call","market_price":99}`)
	expectStatus(t, rec, http.StatusUnprocessableEntity)

	var data ivResponse
	resp := decodeData(t, rec, &data)
	if resp.Success {
		t.Error("Success should be false")
	}
	if !strings.Contains(resp.Error, "did not converge") {
		t.Errorf("error: got %q", resp.Error)
	}
	if data.Converged || data.Sigma != pricing.MaxVol {
		t.Errorf("best estimate: got %+v, want sigma %v unconverged", data.IVResult, pricing.MaxVol)
	}
}

func TestHandleImpliedVolErrors(t *testing.T) {
	srv := testServer(t)

	tests := []struct {
		name string
		body string
		want int
	}{
		{"above bounds", `{"spot":100,"strike":100,"years":1,"kind":"call","market_price":150}`, http.StatusBadRequest},
		{"missing price", `{"spot":100,"strike":100,"years":1,"kind":"call"}`, http.StatusBadRequest},
		{"at expiry", `{"spot":100,"strike":100,"years":0,"kind":"call","market_price":1}`, http.StatusUnprocessableEntity},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, srv, http.MethodPost, "/api/v1/options/iv", tt.body)
			if rec.Code != tt.want {
				t.Errorf("status: got %d, want %d (body %s)", rec.Code, tt.want, rec.Body.String())
			}
		})
	}
}

// ════════════════════════════════════════════════════════════════════
// Strategies
// ════════════════════════════════════════════════════════════════════

func TestHandleStrategies(t *testing.T) {
	srv := testServer(t)

	rec := do(t, srv, http.MethodGet, "/api/v1/strategies", "")
	expectStatus(t, rec, http.StatusOK)
	var templates []strategy.Template
	decodeData(t, rec, &templates)

	if len(templates) != len(strategy.Templates()) {
		t.Fatalf("templates: got %d, want %d", len(templates), len(strategy.Templates()))
	}
	if templates[0].Kind != strategy.LongCall {
		t.Errorf("first template: got %q, want long_call", templates[0].Kind)
	}
}

type strategyResult struct {
	Strategy   strategy.Strategy `json:"strategy"`
	Spot       float64           `json:"spot"`
	Evaluation struct {
		Curve      []strategy.Point `json:"curve"`
		Breakevens []float64        `json:"breakevens"`
		MaxProfit  struct {
			Value     *float64 `json:"value"`
			Unbounded bool     `json:"unbounded"`
		} `json:"max_profit"`
		MaxLoss struct {
			Value     *float64 `json:"value"`
			Unbounded bool     `json:"unbounded"`
		} `json:"max_loss"`
		NetPremium          float64  `json:"net_premium"`
		ProbabilityOfProfit *float64 `json:"probability_of_profit"`
	} `json:"evaluation"`
}

func TestHandleBuildStrategy(t *testing.T) {
	srv := testServer(t)

	rec := do(t, srv, http.MethodPost, "/api/v1/strategies/build",
		`{"kind":"bull_call_spread","spot":100,"years":0.25,"vol":0.2}`)
	expectStatus(t, rec, http.StatusOK)
	var res strategyResult
	decodeData(t, rec, &res)

	legs := res.Strategy.Legs
	require.Len(t, legs, 2)
	if legs[0].Strike != 100 || legs[1].Strike != 105 {
		t.Errorf("strikes: got %v/%v, want 100/105", legs[0].Strike, legs[1].Strike)
	}
	if legs[0].Premium <= legs[1].Premium {
		t.Errorf("long leg should cost more: %v vs %v", legs[0].Premium, legs[1].Premium)
	}
	require.NotNil(t, res.Evaluation.ProbabilityOfProfit)
	pop := *res.Evaluation.ProbabilityOfProfit
	if pop <= 0 || pop >= 1 {
		t.Errorf("probability of profit: got %v, want in (0, 1)", pop)
	}
	if res.Evaluation.MaxProfit.Unbounded || res.Evaluation.MaxLoss.Unbounded {
		t.Error("a vertical spread is bounded both ways")
	}
}

func TestHandleBuildStrategyFromTicker(t *testing.T) {
	srv := testServer(t)

	rec := do(t, srv, http.MethodPost, "/api/v1/strategies/build",
		`{"kind":"long_straddle","ticker":"NVDA","expiry":"2026-11-20"}`)
	expectStatus(t, rec, http.StatusOK)
	var res strategyResult
	decodeData(t, rec, &res)

	spot, _ := srv.agg.Market().Spot(context.Background(), "NVDA")
	assert.InDelta(t, spot, res.Spot, 1e-9)
	assert.Len(t, res.Evaluation.Breakevens, 2)
	assert.True(t, res.Evaluation.MaxProfit.Unbounded)
	assert.Nil(t, res.Evaluation.MaxProfit.Value)
}

func TestHandleBuildStrategyErrors(t *testing.T) {
	srv := testServer(t)
	for body, want := range map[string]int{
		`{"kind":"covered_put","spot":100}`:             http.StatusBadRequest,
		`{"kind":"long_call","spot":-1}`:                http.StatusBadRequest,
		`{"kind":"long_call","spot":100,"width":0.9}`:   http.StatusBadRequest,
		`{"kind":"long_call","ticker":"ZZZZ"}`:          http.StatusNotFound,
		`{"kind":"long_call","spot":100,"quantity":-2}`: http.StatusBadRequest,
	} {
		rec := do(t, srv, http.MethodPost, "/api/v1/strategies/build", body)
		if rec.Code != want {
			t.Errorf("%s: got %d, want %d", body, rec.Code, want)
		}
	}
}

const bullCallLegs = `[
	{"instrument":"call","action":"buy","quantity":1,"strike":100,"premium":5},
	{"instrument":"call","action":"sell","quantity":1,"strike":110,"premium":2}
]`

func TestHandleEvaluateStrategy(t *testing.T) {
	srv := testServer(t)

	rec := do(t, srv, http.MethodPost, "/api/v1/strategies/evaluate",
		`{"current_price":100,"legs":`+bullCallLegs+`}`)
	expectStatus(t, rec, http.StatusOK)
	var res strategyResult
	decodeData(t, rec, &res)

	ev := res.Evaluation
	if len(ev.Breakevens) != 1 || math.Abs(ev.Breakevens[0]-103) > 1e-9 {
		t.Errorf("breakevens: got %v, want [103]", ev.Breakevens)
	}
	if ev.MaxProfit.Value == nil || *ev.MaxProfit.Value != 700 {
		t.Errorf("max profit: got %v, want 700", ev.MaxProfit.Value)
	}
	if ev.MaxLoss.Value == nil || *ev.MaxLoss.Value != -300 {
		t.Errorf("max loss: got %v, want -300", ev.MaxLoss.Value)
	}
	if ev.NetPremium != -300 {
		t.Errorf("net premium: got %v, want -300", ev.NetPremium)
	}
	if ev.ProbabilityOfProfit != nil {
		t.Error("probability of profit needs years and vol")
	}
	if res.Strategy.Name != "Custom" {
		t.Errorf("name: got %q, want Custom", res.Strategy.Name)
	}

	var at105 *strategy.Point
	for i := range ev.Curve {
		if ev.Curve[i].Price == 105 {
			at105 = &ev.Curve[i]
		}
	}
	if at105 == nil || at105.PnL != 200 {
		t.Errorf("P&L at 105: got %v, want 200", at105)
	}
}

func TestHandleEvaluateStrategyWithProbability(t *testing.T) {
	srv := testServer(t)

	rec := do(t, srv, http.MethodPost, "/api/v1/strategies/evaluate",
		`{"current_price":100,"years":0.5,"vol":0.3,"legs":`+bullCallLegs+`}`)
	expectStatus(t, rec, http.StatusOK)
	var res strategyResult
	decodeData(t, rec, &res)
	require.NotNil(t, res.Evaluation.ProbabilityOfProfit)
}

func TestHandleEvaluateStrategyCSV(t *testing.T) {
	srv := testServer(t)

	rec := do(t, srv, http.MethodPost, "/api/v1/strategies/evaluate?format=csv",
		`{"current_price":100,"range_pct":0.1,"step":5,"legs":`+bullCallLegs+`}`)
	expectStatus(t, rec, http.StatusOK)

	if ct := rec.Header().Get("Content-Type"); ct != "text/csv" {
		t.Errorf("Content-Type: got %q, want text/csv", ct)
	}
	lines := strings.Split(strings.TrimSpace(rec.Body.String()), "\n")
	if lines[0] != "price,pnl" {
		t.Errorf("header: got %q, want price,pnl", lines[0])
	}
	// 90..110 every 5 plus nothing extra: both strikes fall on the grid.
	if len(lines) != 6 {
		t.Errorf("rows: got %d, want 5 data rows + header\n%s", len(lines), rec.Body.String())
	}
}

func TestHandleEvaluateStrategyErrors(t *testing.T) {
	srv := testServer(t)
	tests := []struct {
		name string
		body string
		want int
	}{
		{"no legs", `{"current_price":100,"legs":[]}`, http.StatusBadRequest},
		{"zero quantity", `{"current_price":100,"legs":[{"instrument":"call","action":"buy","quantity":0,"strike":100}]}`, http.StatusBadRequest},
		{"bad instrument", `{"current_price":100,"legs":[{"instrument":"future","action":"buy","quantity":1,"strike":100}]}`, http.StatusBadRequest},
		{"no price", `{"legs":` + bullCallLegs + `}`, http.StatusBadRequest},
		{"unknown ticker", `{"ticker":"ZZZZ","legs":` + bullCallLegs + `}`, http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, srv, http.MethodPost, "/api/v1/strategies/evaluate", tt.body)
			if rec.Code != tt.want {
				t.Errorf("status: got %d, want %d (body %s)", rec.Code, tt.want, rec.Body.String())
			}
		})
	}
}

// ════════════════════════════════════════════════════════════════════
// Simulation
// ════════════════════════════════════════════════════════════════════

func TestHandleSimulateInvestment(t *testing.T) {
	srv := testServer(t)

	rec := do(t, srv, http.MethodPost, "/api/v1/simulate/investment",
		`{"initial_amount":10000,"expected_return":0.08,"volatility":0.2,"seed":7}`)
	expectStatus(t, rec, http.StatusOK)
	var report simulation.Report
	decodeData(t, rec, &report)

	if report.Params.Iterations != 2000 {
		t.Errorf("iterations: got %d, want the configured 2000", report.Params.Iterations)
	}
	if math.Abs(report.ParametricVaR95-(-2490)) > 1e-6 {
		t.Errorf("parametric VaR95: got %v, want -2490", report.ParametricVaR95)
	}
	if len(report.Intervals) != len(simulation.ReportLevels) {
		t.Errorf("intervals: got %d, want %d", len(report.Intervals), len(simulation.ReportLevels))
	}

	// Same seed, same answer.
	again := do(t, srv, http.MethodPost, "/api/v1/simulate/investment",
		`{"initial_amount":10000,"expected_return":0.08,"volatility":0.2,"seed":7}`)
	var report2 simulation.Report
	decodeData(t, again, &report2)
	assert.Equal(t, report.Summary, report2.Summary)

	metrics := do(t, srv, http.MethodGet, "/metrics", "").Body.String()
	assert.Contains(t, metrics, "marketdesk_simulation_duration_seconds_count 2")
	assert.Contains(t, metrics, "marketdesk_simulation_trials_total 4000")
}

func TestHandleSimulateZeroVolatility(t *testing.T) {
	srv := testServer(t)

	rec := do(t, srv, http.MethodPost, "/api/v1/simulate/investment",
		`{"initial_amount":5000,"expected_return":0.1,"volatility":0,"iterations":100}`)
	expectStatus(t, rec, http.StatusOK)
	var report simulation.Report
	decodeData(t, rec, &report)

	if math.Abs(report.Summary.Min-5500) > 1e-9 || math.Abs(report.Summary.Max-5500) > 1e-9 {
		t.Errorf("zero volatility outcomes: got [%v, %v], want 5500", report.Summary.Min, report.Summary.Max)
	}
}

func TestHandleSimulateErrors(t *testing.T) {
	srv := testServer(t)
	for _, body := range []string{
		`{"initial_amount":0,"expected_return":0.08,"volatility":0.2}`,
		`{"initial_amount":1000,"expected_return":0.08,"volatility":-0.2}`,
		`{"initial_amount":1000,"iterations":-1}`,
		`not json`,
	} {
		rec := do(t, srv, http.MethodPost, "/api/v1/simulate/investment", body)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("%s: got %d, want 400", body, rec.Code)
		}
	}
}

// ════════════════════════════════════════════════════════════════════
// Portfolio
// ════════════════════════════════════════════════════════════════════

type snapshotResult struct {
	Positions []struct {
		ID     string  `json:"id"`
		Ticker string  `json:"ticker"`
		Shares string  `json:"shares"`
		Weight float64 `json:"weight"`
	} `json:"positions"`
	Cost        string `json:"cost"`
	MarketValue string `json:"market_value"`
}

func TestPortfolioLifecycle(t *testing.T) {
	srv := testServer(t)

	rec := do(t, srv, http.MethodGet, "/api/v1/portfolio", "")
	expectStatus(t, rec, http.StatusOK)
	var snap snapshotResult
	decodeData(t, rec, &snap)
	if len(snap.Positions) != 0 {
		t.Fatalf("positions: got %d, want 0", len(snap.Positions))
	}

	// Shares as a string, cost as a number.
	rec = do(t, srv, http.MethodPost, "/api/v1/portfolio/holdings",
		`{"ticker":"msft","shares":"12.5","cost_basis":401.10}`)
	expectStatus(t, rec, http.StatusCreated)
	var h struct {
		ID        string `json:"id"`
		Ticker    string `json:"ticker"`
		Shares    string `json:"shares"`
		CostBasis string `json:"cost_basis"`
	}
	decodeData(t, rec, &h)
	if h.Ticker != "MSFT" || h.Shares != "12.5" || h.CostBasis != "401.1" {
		t.Errorf("holding: got %+v", h)
	}

	rec = do(t, srv, http.MethodGet, "/api/v1/portfolio", "")
	decodeData(t, rec, &snap)
	require.Len(t, snap.Positions, 1)
	if snap.Positions[0].ID != h.ID || snap.Positions[0].Weight != 100 {
		t.Errorf("position: got %+v", snap.Positions[0])
	}
	if snap.Cost != "5013.75" {
		t.Errorf("cost: got %s, want 5013.75", snap.Cost)
	}

	expectStatus(t, do(t, srv, http.MethodDelete, "/api/v1/portfolio/holdings/"+h.ID, ""), http.StatusOK)
	expectStatus(t, do(t, srv, http.MethodDelete, "/api/v1/portfolio/holdings/"+h.ID, ""), http.StatusNotFound)
	expectStatus(t, do(t, srv, http.MethodDelete, "/api/v1/portfolio/holdings/not-a-uuid", ""), http.StatusBadRequest)
}

func TestAddHoldingErrors(t *testing.T) {
	srv := testServer(t)
	tests := []struct {
		body string
		want int
	}{
		{`{"ticker":"","shares":1,"cost_basis":1}`, http.StatusBadRequest},
		{`{"ticker":"ZZZZ","shares":1,"cost_basis":1}`, http.StatusNotFound},
		{`{"ticker":"AAPL","shares":"-3","cost_basis":1}`, http.StatusBadRequest},
		{`{"ticker":"AAPL","shares":"ten","cost_basis":1}`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		rec := do(t, srv, http.MethodPost, "/api/v1/portfolio/holdings", tt.body)
		if rec.Code != tt.want {
			t.Errorf("%s: got %d, want %d", tt.body, rec.Code, tt.want)
		}
	}
	assert.Equal(t, 0, srv.book.Len())
}

func TestPortfolioPerformance(t *testing.T) {
	book := portfolio.NewBook()
	book.SeedDemo()
	srv := testServer(t, WithBook(book))

	rec := do(t, srv, http.MethodGet, "/api/v1/portfolio/performance?days=90", "")
	expectStatus(t, rec, http.StatusOK)
	var perf portfolio.Performance
	decodeData(t, rec, &perf)

	if perf.Sessions < 55 {
		t.Errorf("sessions: got %d, want roughly 60 over 90 days", perf.Sessions)
	}
	if perf.Volatility <= 0 {
		t.Errorf("volatility: got %v, want > 0", perf.Volatility)
	}
	if perf.MaxDrawdownPct < 0 || perf.MaxDrawdownPct > 100 {
		t.Errorf("max drawdown pct: got %v, want in [0, 100]", perf.MaxDrawdownPct)
	}

	// An empty book has no curve.
	empty := testServer(t)
	expectStatus(t, do(t, empty, http.MethodGet, "/api/v1/portfolio/performance", ""), http.StatusUnprocessableEntity)
	expectStatus(t, do(t, srv, http.MethodGet, "/api/v1/portfolio/performance?days=0", ""), http.StatusBadRequest)
}

// ════════════════════════════════════════════════════════════════════
// Configuration
// ════════════════════════════════════════════════════════════════════

func TestHandleGetConfig(t *testing.T) {
	srv := testServer(t)
	srv.cfg.LLM.OpenAIKey = "sk-test-abcdefghijklmnop"

	rec := do(t, srv, http.MethodGet, "/api/v1/config", "")
	expectStatus(t, rec, http.StatusOK)
	var data struct {
		Config struct {
			Market struct {
				Seed int `json:"seed"`
			} `json:"market"`
			LLM struct {
				OpenAIKey string `json:"openai_key"`
			} `json:"llm"`
		} `json:"config"`
	}
	decodeData(t, rec, &data)

	if data.Config.Market.Seed != 42 {
		t.Errorf("market.seed: got %d, want 42", data.Config.Market.Seed)
	}
	if strings.Contains(data.Config.LLM.OpenAIKey, "abcdefghijklmnop") {
		t.Errorf("openai_key leaked: %q", data.Config.LLM.OpenAIKey)
	}

	yamlRec := do(t, srv, http.MethodGet, "/api/v1/config?format=yaml", "")
	expectStatus(t, yamlRec, http.StatusOK)
	assert.Contains(t, yamlRec.Body.String(), "market:\n")
	assert.NotContains(t, yamlRec.Body.String(), "abcdefghijklmnop")
}

func TestHandleGetConfigKeys(t *testing.T) {
	t.Setenv("MARKETDESK_LLM_OPENAI_KEY", "")
	t.Setenv("OPENAI_API_KEY", "")
	srv := testServer(t)

	rec := do(t, srv, http.MethodGet, "/api/v1/config/keys", "")
	expectStatus(t, rec, http.StatusOK)
	var keys []config.KeyStatus
	decodeData(t, rec, &keys)

	require.Len(t, keys, 1)
	if keys[0].Name != "OpenAI API Key" || keys[0].IsSet {
		t.Errorf("key status: got %+v", keys[0])
	}
}

// ════════════════════════════════════════════════════════════════════
// WebSocket hub
// ════════════════════════════════════════════════════════════════════

func runHub(t *testing.T) *WSHub {
	t.Helper()
	hub := NewWSHub(zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go hub.Run(ctx)
	return hub
}

func receive(t *testing.T, c *WSClient) (WSMessage, bool) {
	t.Helper()
	select {
	case m, ok := <-c.send:
		return m, ok
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for message")
	}
	return WSMessage{}, false
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met within 1s")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestWSHub_RegisterAndUnregister(t *testing.T) {
	hub := runHub(t)
	client := NewWSClient(hub)

	if !hub.Register(client) {
		t.Fatal("Register on a running hub should succeed")
	}
	waitFor(t, func() bool { return hub.ClientCount() == 1 })

	hub.Unregister(client)
	waitFor(t, func() bool { return hub.ClientCount() == 0 })

	if _, ok := <-client.send; ok {
		t.Error("send channel should be closed after unregister")
	}
}

func TestWSHub_BroadcastFiltersByTicker(t *testing.T) {
	hub := runHub(t)
	apple := NewWSClient(hub)
	apple.Subscribe("aapl")
	msft := NewWSClient(hub)
	msft.Subscribe("MSFT")
	hub.Register(apple)
	hub.Register(msft)

	hub.Broadcast(WSMessage{Type: "quote", Ticker: "AAPL"})
	hub.Broadcast(WSMessage{Type: "notice"})

	if m, _ := receive(t, apple); m.Type != "quote" || m.Ticker != "AAPL" {
		t.Errorf("apple first message: got %+v", m)
	}
	if m, _ := receive(t, apple); m.Type != "notice" {
		t.Errorf("apple second message: got %+v", m)
	}
	if m, _ := receive(t, msft); m.Type != "notice" {
		t.Errorf("msft should only see the untargeted message, got %+v", m)
	}
}

func TestWSHub_SendTo(t *testing.T) {
	hub := runHub(t)
	a, b := NewWSClient(hub), NewWSClient(hub)
	hub.Register(a)
	hub.Register(b)

	hub.SendTo(a, WSMessage{Type: "pong"})
	if m, _ := receive(t, a); m.Type != "pong" {
		t.Errorf("got %+v, want pong", m)
	}
	select {
	case m := <-b.send:
		t.Errorf("other client received %+v", m)
	case <-time.After(20 * time.Millisecond):
	}
}

func TestWSHub_DropsSlowClient(t *testing.T) {
	hub := runHub(t)
	slow := &WSClient{hub: hub, send: make(chan WSMessage, 1), tickers: map[string]bool{}}
	hub.Register(slow)

	hub.Broadcast(WSMessage{Type: "one"})
	hub.Broadcast(WSMessage{Type: "two"})
	waitFor(t, func() bool { return hub.ClientCount() == 0 })
}

func TestWSHub_BroadcastNeverBlocks(t *testing.T) {
	hub := NewWSHub(zerolog.Nop()) // not running: the queue fills up

	done := make(chan bool)
	go func() {
		for i := 0; i < 300; i++ {
			hub.Broadcast(WSMessage{Type: "test"})
		}
		done <- true
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Broadcast blocked when buffer was full")
	}
}

func TestWSHub_ConcurrentRegisterUnregister(t *testing.T) {
	hub := runHub(t)

	const numClients = 50
	clients := make([]*WSClient, numClients)
	for i := range clients {
		clients[i] = NewWSClient(hub)
	}

	var wg sync.WaitGroup
	for _, c := range clients {
		wg.Add(1)
		go func() {
			defer wg.Done()
			hub.Register(c)
		}()
	}
	wg.Wait()
	waitFor(t, func() bool { return hub.ClientCount() == numClients })

	for _, c := range clients {
		wg.Add(1)
		go func() {
			defer wg.Done()
			hub.Unregister(c)
		}()
	}
	wg.Wait()
	waitFor(t, func() bool { return hub.ClientCount() == 0 })
}

func TestWSHub_StopClosesClients(t *testing.T) {
	hub := NewWSHub(zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan struct{})
	go func() {
		hub.Run(ctx)
		close(stopped)
	}()

	client := NewWSClient(hub)
	hub.Register(client)
	cancel()
	<-stopped

	if _, ok := <-client.send; ok {
		t.Error("send channel should be closed when the hub stops")
	}
	if hub.Register(NewWSClient(hub)) {
		t.Error("Register after stop should report false")
	}
}

func TestWSClientSubscriptions(t *testing.T) {
	c := NewWSClient(nil)
	added := c.Subscribe("aapl", "AAPL", "apple", "msft", " ")
	assert.Equal(t, []string{"AAPL", "MSFT"}, added)

	c.Unsubscribe("Msft")
	assert.Equal(t, []string{"AAPL"}, c.Subscriptions())
}

func TestWSHub_Subscriptions(t *testing.T) {
	hub := runHub(t)
	a, b := NewWSClient(hub), NewWSClient(hub)
	a.Subscribe("NVDA", "AAPL")
	b.Subscribe("AAPL", "SPY")
	hub.Register(a)
	hub.Register(b)
	waitFor(t, func() bool { return hub.ClientCount() == 2 })

	assert.Equal(t, []string{"AAPL", "NVDA", "SPY"}, hub.Subscriptions())
}

// ════════════════════════════════════════════════════════════════════
// WebSocket quote stream
// ════════════════════════════════════════════════════════════════════

func TestWebSocketQuoteStream(t *testing.T) {
	srv := testServer(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go srv.Hub().Run(ctx)

	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/v1/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	read := func() WSMessage {
		t.Helper()
		_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		var m WSMessage
		require.NoError(t, conn.ReadJSON(&m))
		return m
	}

	require.NoError(t, conn.WriteJSON(wsRequest{Type: "subscribe", Tickers: []string{"msft"}}))
	sub := read()
	if sub.Type != "subscribed" {
		t.Fatalf("first message: got %+v, want subscribed", sub)
	}
	// Watchlist plus the new ticker.
	assert.ElementsMatch(t, []any{"AAPL", "MSFT"}, sub.Data)

	snap := read()
	if snap.Type != "quote" || snap.Ticker != "MSFT" {
		t.Fatalf("snapshot: got %+v, want MSFT quote", snap)
	}

	waitFor(t, func() bool { return srv.Hub().ClientCount() == 1 })
	if n := srv.publishQuotes(ctx); n != 2 {
		t.Errorf("published: got %d tickers, want 2", n)
	}
	got := map[string]bool{}
	for range 2 {
		m := read()
		if m.Type != "quote" {
			t.Errorf("stream message: got %+v, want quote", m)
		}
		got[m.Ticker] = true
	}
	assert.Equal(t, map[string]bool{"AAPL": true, "MSFT": true}, got)

	require.NoError(t, conn.WriteJSON(wsRequest{Type: "ping"}))
	if m := read(); m.Type != "pong" {
		t.Errorf("ping reply: got %+v, want pong", m)
	}

	require.NoError(t, conn.WriteJSON(wsRequest{Type: "dance"}))
	if m := read(); m.Type != "error" {
		t.Errorf("unknown command reply: got %+v, want error", m)
	}
}
