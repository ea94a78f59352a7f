// Package api provides the HTTP REST API server for MarketDesk.
//
// It exposes endpoints for quotes, option chains, option pricing, strategy
// evaluation, Monte Carlo simulation, the demo portfolio, AI summaries, and
// a WebSocket quote stream.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"github.com/seenimoa/marketdesk/internal/config"
	"github.com/seenimoa/marketdesk/internal/datasource"
	"github.com/seenimoa/marketdesk/internal/llm"
	"github.com/seenimoa/marketdesk/internal/logging"
	"github.com/seenimoa/marketdesk/internal/portfolio"
	"github.com/seenimoa/marketdesk/internal/pricing"
	"github.com/seenimoa/marketdesk/internal/simulation"
	"github.com/seenimoa/marketdesk/internal/strategy"
	"github.com/seenimoa/marketdesk/pkg/utils"
)

// Version is reported by /health. It is set at build time.
var Version = "dev"

// Server is the HTTP API server.
type Server struct {
	router     chi.Router
	cfg        *config.Config
	log        zerolog.Logger
	agg        *datasource.Aggregator
	book       *portfolio.Book
	llm        llm.Provider
	summarizer *llm.Summarizer
	sim        *simulation.Simulator
	metrics    *Metrics
	wsHub      *WSHub
}

// Option customises a Server.
type Option func(*Server)

// WithAggregator replaces the data aggregator built from config.
func WithAggregator(agg *datasource.Aggregator) Option {
	return func(s *Server) { s.agg = agg }
}

// WithProvider replaces the LLM router built from config.
func WithProvider(p llm.Provider) Option {
	return func(s *Server) { s.llm = p }
}

// WithBook replaces the portfolio book.
func WithBook(b *portfolio.Book) Option {
	return func(s *Server) { s.book = b }
}

// WithLogger sets the server logger.
func WithLogger(log zerolog.Logger) Option {
	return func(s *Server) { s.log = log }
}

// NewServer creates a configured API server with all routes and middleware.
func NewServer(cfg *config.Config, opts ...Option) (*Server, error) {
	srv := &Server{
		cfg:     cfg,
		log:     zerolog.Nop(),
		sim:     simulation.NewSimulator(cfg.Simulation.Workers),
		metrics: NewMetrics(),
	}
	for _, opt := range opts {
		opt(srv)
	}
	srv.log = logging.WithComponent(srv.log, "api")

	if srv.agg == nil {
		market := datasource.NewMarket(cfg.Market, cfg.Options.RiskFreeRate)
		news := datasource.NewNews(cfg.News, srv.log)
		srv.agg = datasource.NewAggregator(market, news, srv.log)
	}
	if srv.llm == nil {
		router, err := llm.NewRouterFromConfig(cfg.LLM, srv.log)
		if err != nil {
			return nil, fmt.Errorf("LLM setup failed: %w", err)
		}
		srv.llm = router
	}
	srv.summarizer = llm.NewSummarizer(srv.llm, srv.log)

	if srv.book == nil {
		srv.book = portfolio.NewBook()
		if cfg.Portfolio.SeedDemo {
			srv.book.SeedDemo()
		}
	}

	srv.wsHub = NewWSHub(srv.log)
	srv.metrics.trackWebSocket(srv.wsHub)
	srv.router = srv.buildRouter()
	return srv, nil
}

// Router returns the chi router for testing.
func (s *Server) Router() chi.Router {
	return s.router
}

// Hub returns the WebSocket hub.
func (s *Server) Hub() *WSHub {
	return s.wsHub
}

// Addr is the listen address from config.
func (s *Server) Addr() string {
	return net.JoinHostPort(s.cfg.API.Host, strconv.Itoa(s.cfg.API.Port))
}

// ListenAndServe starts the HTTP server and blocks until ctx is cancelled or
// the process receives SIGINT/SIGTERM, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	httpSrv := &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	go s.wsHub.Run(ctx)
	go s.streamQuotes(ctx, time.Duration(s.cfg.API.QuoteStreamSec)*time.Second)

	errCh := make(chan error, 1)
	go func() {
		s.log.Info().Str("addr", addr).Msg("http server listening")
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}
	s.log.Info().Msg("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return httpSrv.Shutdown(shutdownCtx)
}

// buildRouter configures all routes and middleware.
func (s *Server) buildRouter() chi.Router {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(s.log))
	r.Use(s.metrics.Middleware)
	r.Use(middleware.Recoverer)

	timeout := time.Duration(s.cfg.API.RequestTimeoutSec) * time.Second
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	r.Use(middleware.Timeout(timeout))

	// CORS
	origins := []string{"*"}
	if len(s.cfg.API.CORSOrigins) > 0 {
		origins = s.cfg.API.CORSOrigins
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID"},
		ExposedHeaders: []string{"X-Request-ID"},
		MaxAge:         300,
	}))

	r.Get("/health", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", s.metrics.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)

		// Market data
		r.Get("/quote/{ticker}", s.handleQuote)
		r.Get("/history/{ticker}", s.handleHistory)
		r.Get("/market/overview", s.handleMarketOverview)
		r.Get("/fundamentals/{ticker}", s.handleFundamentals)
		r.Get("/news", s.handleNews)
		r.Get("/dashboard/{ticker}", s.handleDashboard)
		r.Get("/summary/{ticker}", s.handleSummary)

		// Options
		r.Get("/options/chain/{ticker}", s.handleOptionChain)
		r.Get("/options/analysis/{ticker}", s.handleOptionAnalysis)
		r.Post("/options/price", s.handleOptionPrice)
		r.Post("/options/greeks", s.handleOptionGreeks)
		r.Post("/options/iv", s.handleImpliedVol)

		// Strategies
		r.Get("/strategies", s.handleStrategies)
		r.Post("/strategies/build", s.handleBuildStrategy)
		r.Post("/strategies/evaluate", s.handleEvaluateStrategy)

		// Simulation
		r.Post("/simulate/investment", s.handleSimulateInvestment)

		// Portfolio
		r.Get("/portfolio", s.handlePortfolio)
		r.Post("/portfolio/holdings", s.handleAddHolding)
		r.Delete("/portfolio/holdings/{id}", s.handleRemoveHolding)
		r.Get("/portfolio/performance", s.handlePortfolioPerformance)

		// Configuration
		r.Get("/config", s.handleGetConfig)
		r.Get("/config/keys", s.handleGetConfigKeys)

		// WebSocket quote stream
		r.Get("/ws", s.handleWebSocket)
	})

	return r
}

// ============================================================
// Response helpers
// ============================================================

// APIResponse is the standard JSON envelope.
type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	now := s.agg.Market().Now()
	writeJSON(w, http.StatusOK, APIResponse{
		Success: true,
		Data: map[string]interface{}{
			"status":        "ok",
			"version":       Version,
			"market_status": utils.MarketStatusAt(now),
			"time_et":       utils.FormatDateTimeET(now),
			"llm":           s.llm.Name(),
			"ws_clients":    s.wsHub.ClientCount(),
		},
	})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, APIResponse{
		Success: false,
		Error:   msg,
	})
}

// writeErr maps err onto an HTTP status and writes the error envelope.
func writeErr(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		log := logging.FromContext(r.Context())
		log.Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
	}
	writeError(w, status, err.Error())
}

// statusFor classifies an error from the domain packages.
func statusFor(err error) int {
	switch {
	case errors.Is(err, pricing.ErrInvalidInput),
		errors.Is(err, strategy.ErrInvalidLeg),
		errors.Is(err, strategy.ErrUnknownKind),
		errors.Is(err, simulation.ErrInvalidParams),
		errors.Is(err, portfolio.ErrInvalidHolding),
		errors.Is(err, errBadRequest):
		return http.StatusBadRequest
	case errors.Is(err, pricing.ErrNumericInstability),
		errors.Is(err, pricing.ErrNonConvergence),
		errors.Is(err, portfolio.ErrInsufficientHistory):
		return http.StatusUnprocessableEntity
	case datasource.IsNotFound(err),
		errors.Is(err, datasource.ErrNotSupported),
		errors.Is(err, portfolio.ErrHoldingNotFound):
		return http.StatusNotFound
	case errors.Is(err, datasource.ErrRateLimited),
		errors.Is(err, llm.ErrRateLimit):
		return http.StatusTooManyRequests
	case errors.Is(err, datasource.ErrNewsUnavailable),
		errors.Is(err, llm.ErrNoProviders),
		errors.Is(err, llm.ErrProviderDown):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	}
	return http.StatusInternalServerError
}

// errBadRequest marks malformed request bodies and query parameters.
var errBadRequest = errors.New("bad request")

func badRequest(format string, args ...any) error {
	return fmt.Errorf("%w: %s", errBadRequest, fmt.Sprintf(format, args...))
}

// decodeJSON reads a JSON body into v, rejecting unknown fields.
func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return badRequest("invalid request body: %v", err)
	}
	return nil
}

// tickerParam returns the normalized {ticker} URL parameter.
func tickerParam(r *http.Request) (string, error) {
	ticker := utils.NormalizeTicker(chi.URLParam(r, "ticker"))
	if ticker == "" {
		return "", badRequest("ticker is required")
	}
	return ticker, nil
}

// intQuery parses an optional positive integer query parameter.
func intQuery(r *http.Request, name string, def int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return 0, badRequest("%s must be a positive integer, got %q", name, raw)
	}
	return n, nil
}
