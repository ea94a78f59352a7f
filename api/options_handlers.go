package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/seenimoa/marketdesk/internal/logging"
	"github.com/seenimoa/marketdesk/internal/pricing"
	"github.com/seenimoa/marketdesk/internal/simulation"
	"github.com/seenimoa/marketdesk/internal/strategy"
	"github.com/seenimoa/marketdesk/pkg/utils"
)

// contractRequest identifies one European option. Spot may be replaced by
// ?ticker's current price, and Years by an Expiry date.
type contractRequest struct {
	Ticker      string   `json:"ticker,omitempty"`
	Spot        float64  `json:"spot,omitempty"`
	Strike      float64  `json:"strike"`
	Years       float64  `json:"years,omitempty"`
	Expiry      string   `json:"expiry,omitempty"` // YYYY-MM-DD
	Rate        *float64 `json:"rate,omitempty"`
	Vol         float64  `json:"vol,omitempty"`
	Kind        string   `json:"kind"`
	MarketPrice float64  `json:"market_price,omitempty"`
}

// params resolves the request against the market clock and config defaults.
func (s *Server) params(ctx context.Context, req contractRequest) (pricing.Params, error) {
	kind, err := pricing.ParseKind(req.Kind)
	if err != nil {
		return pricing.Params{}, err
	}
	p := pricing.Params{
		Spot:   req.Spot,
		Strike: req.Strike,
		Years:  req.Years,
		Rate:   s.cfg.Options.RiskFreeRate,
		Vol:    req.Vol,
		Kind:   kind,
	}
	if req.Rate != nil {
		p.Rate = *req.Rate
	}
	if p.Spot == 0 && req.Ticker != "" {
		if p.Spot, err = s.agg.Market().Spot(ctx, utils.NormalizeTicker(req.Ticker)); err != nil {
			return pricing.Params{}, err
		}
	}
	if req.Expiry != "" {
		expiry, err := pricing.ParseExpiry(req.Expiry)
		if err != nil {
			return pricing.Params{}, err
		}
		p.Years = pricing.YearsToExpiry(s.agg.Market().Now(), expiry)
	}
	return p, nil
}

// priceResponse is a model price split into intrinsic and time value.
type priceResponse struct {
	Params    pricing.Params  `json:"params"`
	Price     float64         `json:"price"`
	Intrinsic float64         `json:"intrinsic"`
	TimeValue float64         `json:"time_value"`
	Greeks    *pricing.Greeks `json:"greeks,omitempty"`
}

func (s *Server) handleOptionPrice(w http.ResponseWriter, r *http.Request) {
	s.priceOption(w, r, false)
}

func (s *Server) handleOptionGreeks(w http.ResponseWriter, r *http.Request) {
	s.priceOption(w, r, true)
}

func (s *Server) priceOption(w http.ResponseWriter, r *http.Request, withGreeks bool) {
	var req contractRequest
	if err := decodeJSON(r, &req); err != nil {
		writeErr(w, r, err)
		return
	}
	if req.Vol == 0 {
		req.Vol = s.cfg.Options.DefaultVol
	}
	p, err := s.params(r.Context(), req)
	if err != nil {
		writeErr(w, r, err)
		return
	}

	price, err := pricing.Price(p)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	intrinsic := pricing.Intrinsic(p.Kind, p.Spot, p.Strike)
	resp := priceResponse{
		Params:    p,
		Price:     price,
		Intrinsic: intrinsic,
		TimeValue: price - intrinsic,
	}
	if withGreeks {
		g, err := pricing.ComputeGreeks(p)
		if err != nil {
			writeErr(w, r, err)
			return
		}
		resp.Greeks = &g
	}
	writeJSON(w, http.StatusOK, APIResponse{Success: true, Data: resp})
}

// ivResponse reports a solve. Bounds are the no-arbitrage price range.
type ivResponse struct {
	pricing.IVResult
	Params      pricing.Params `json:"params"`
	MarketPrice float64        `json:"market_price"`
	LowerBound  float64        `json:"lower_bound"`
	UpperBound  float64        `json:"upper_bound"`
}

// handleImpliedVol solves for volatility. A solve that does not converge is
// a 422 carrying the best estimate in data.
func (s *Server) handleImpliedVol(w http.ResponseWriter, r *http.Request) {
	var req contractRequest
	if err := decodeJSON(r, &req); err != nil {
		writeErr(w, r, err)
		return
	}
	p, err := s.params(r.Context(), req)
	if err != nil {
		writeErr(w, r, err)
		return
	}

	res, err := pricing.ImpliedVolatility(req.MarketPrice, p)
	if err != nil && !errors.Is(err, pricing.ErrNonConvergence) {
		writeErr(w, r, err)
		return
	}
	p.Vol = res.Sigma
	lo, hi := pricing.NoArbitrageBounds(p)
	resp := ivResponse{IVResult: res, Params: p, MarketPrice: req.MarketPrice, LowerBound: lo, UpperBound: hi}
	if err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, APIResponse{Success: false, Data: resp, Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, APIResponse{Success: true, Data: resp})
}

// ============================================================
// Strategies
// ============================================================

func (s *Server) handleStrategies(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, APIResponse{Success: true, Data: strategy.Templates()})
}

// buildRequest names a template and where to centre it.
type buildRequest struct {
	Kind       string   `json:"kind"`
	Ticker     string   `json:"ticker,omitempty"`
	Spot       float64  `json:"spot,omitempty"`
	Width      float64  `json:"width,omitempty"`
	StrikeStep float64  `json:"strike_step,omitempty"`
	Years      float64  `json:"years,omitempty"`
	Expiry     string   `json:"expiry,omitempty"`
	Rate       *float64 `json:"rate,omitempty"`
	Vol        float64  `json:"vol,omitempty"`
	Quantity   int      `json:"quantity,omitempty"`
	RangePct   float64  `json:"range_pct,omitempty"`
}

// strategyResponse is a strategy with its expiry evaluation.
type strategyResponse struct {
	Strategy   strategy.Strategy   `json:"strategy"`
	Spot       float64             `json:"spot"`
	Evaluation strategy.Evaluation `json:"evaluation"`
}

func (s *Server) handleBuildStrategy(w http.ResponseWriter, r *http.Request) {
	var req buildRequest
	if err := decodeJSON(r, &req); err != nil {
		writeErr(w, r, err)
		return
	}
	kind, err := strategy.ParseKind(req.Kind)
	if err != nil {
		writeErr(w, r, err)
		return
	}

	// Reuse the contract resolver for spot, expiry and rate.
	p, err := s.params(r.Context(), contractRequest{
		Ticker: req.Ticker, Spot: req.Spot, Years: req.Years, Expiry: req.Expiry,
		Rate: req.Rate, Vol: req.Vol, Kind: string(pricing.Call),
	})
	if err != nil {
		writeErr(w, r, err)
		return
	}
	bp := strategy.BuildParams{
		Spot:       p.Spot,
		Width:      req.Width,
		StrikeStep: req.StrikeStep,
		Years:      p.Years,
		Rate:       p.Rate,
		Vol:        p.Vol,
		Quantity:   req.Quantity,
	}
	if bp.Width == 0 {
		bp.Width = s.cfg.Options.StrategyWidth
	}
	if bp.Vol == 0 {
		bp.Vol = s.cfg.Options.DefaultVol
	}
	if bp.Years == 0 {
		bp.Years = strategy.DefaultYears
	}

	strat, err := strategy.Build(kind, bp)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	eval, err := strategy.EvaluateWithProbability(strat.Legs, bp.Spot, s.sweep(req.RangePct, 0), bp.Years, bp.Rate, bp.Vol)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, APIResponse{
		Success: true,
		Data:    strategyResponse{Strategy: strat, Spot: bp.Spot, Evaluation: eval},
	})
}

// evaluateRequest is an ad-hoc set of legs. Years and Vol, when both set,
// add the probability of profit.
type evaluateRequest struct {
	Name         string         `json:"name,omitempty"`
	Ticker       string         `json:"ticker,omitempty"`
	CurrentPrice float64        `json:"current_price,omitempty"`
	Legs         []strategy.Leg `json:"legs"`
	RangePct     float64        `json:"range_pct,omitempty"`
	Step         float64        `json:"step,omitempty"`
	Years        float64        `json:"years,omitempty"`
	Rate         *float64       `json:"rate,omitempty"`
	Vol          float64        `json:"vol,omitempty"`
}

// handleEvaluateStrategy evaluates legs at expiry. ?format=csv streams the
// P&L curve as CSV instead of the JSON envelope.
func (s *Server) handleEvaluateStrategy(w http.ResponseWriter, r *http.Request) {
	var req evaluateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeErr(w, r, err)
		return
	}
	spot := req.CurrentPrice
	if spot == 0 && req.Ticker != "" {
		var err error
		if spot, err = s.agg.Market().Spot(r.Context(), utils.NormalizeTicker(req.Ticker)); err != nil {
			writeErr(w, r, err)
			return
		}
	}
	rate := s.cfg.Options.RiskFreeRate
	if req.Rate != nil {
		rate = *req.Rate
	}

	sweep := s.sweep(req.RangePct, req.Step)
	var (
		eval strategy.Evaluation
		err  error
	)
	if req.Years > 0 && req.Vol > 0 {
		eval, err = strategy.EvaluateWithProbability(req.Legs, spot, sweep, req.Years, rate, req.Vol)
	} else {
		eval, err = strategy.Evaluate(req.Legs, spot, sweep)
	}
	if err != nil {
		writeErr(w, r, err)
		return
	}

	if r.URL.Query().Get("format") == "csv" {
		w.Header().Set("Content-Type", "text/csv")
		w.Header().Set("Content-Disposition", `attachment; filename="pnl_curve.csv"`)
		w.WriteHeader(http.StatusOK)
		if err := strategy.WriteCSV(w, eval.Curve); err != nil {
			log := logging.FromContext(r.Context())
			log.Error().Err(err).Msg("write csv")
		}
		return
	}

	name := req.Name
	if name == "" {
		name = "Custom"
	}
	writeJSON(w, http.StatusOK, APIResponse{
		Success: true,
		Data: strategyResponse{
			Strategy:   strategy.Strategy{Name: name, Legs: req.Legs},
			Spot:       spot,
			Evaluation: eval,
		},
	})
}

func (s *Server) sweep(rangePct, step float64) strategy.SweepConfig {
	cfg := strategy.DefaultSweep()
	if s.cfg.Options.SweepRangePct > 0 {
		cfg.RangePct = s.cfg.Options.SweepRangePct
	}
	if rangePct > 0 {
		cfg.RangePct = rangePct
	}
	cfg.Step = step
	return cfg
}

// ============================================================
// Simulation
// ============================================================

func (s *Server) handleSimulateInvestment(w http.ResponseWriter, r *http.Request) {
	var p simulation.Params
	if err := decodeJSON(r, &p); err != nil {
		writeErr(w, r, err)
		return
	}
	if p.Iterations == 0 {
		p.Iterations = s.cfg.Simulation.Iterations
	}

	start := time.Now()
	report, err := s.sim.Report(r.Context(), p)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	s.metrics.ObserveSimulation(time.Since(start), report.Params.Iterations)
	writeJSON(w, http.StatusOK, APIResponse{Success: true, Data: report})
}
