package strategy

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"

	"github.com/seenimoa/marketdesk/internal/pricing"
)

// maxCurvePoints caps the sweep resolution.
const maxCurvePoints = 100_000

// SweepConfig controls the sampled P&L curve.
type SweepConfig struct {
	// RangePct is the sweep half-width as a fraction of the current price.
	RangePct float64 `json:"range_pct,omitempty"`
	// Step is the sampling interval in price units.
	Step float64 `json:"step,omitempty"`
}

// DefaultSweep is ±50% around the current price in 1% steps.
func DefaultSweep() SweepConfig {
	return SweepConfig{RangePct: 0.5}
}

// Point is one sample of the expiry P&L.
type Point struct {
	Price float64 `json:"price" csv:"price"`
	PnL   float64 `json:"pnl" csv:"pnl"`
}

// Curve is a P&L curve sorted by price.
type Curve []Point

// Bound is a max-profit or max-loss figure. Unbounded bounds hold ±Inf.
type Bound struct {
	Value     float64 `json:"value"`
	Unbounded bool    `json:"unbounded"`
}

// MarshalJSON writes an unbounded value as null.
func (b Bound) MarshalJSON() ([]byte, error) {
	if b.Unbounded || math.IsInf(b.Value, 0) {
		return []byte(`{"value":null,"unbounded":true}`), nil
	}
	type plain Bound
	return json.Marshal(plain(b))
}

// Evaluation summarises a strategy at expiry. MaxLoss is the lowest P&L, so
// a loss is negative.
type Evaluation struct {
	Curve               Curve     `json:"curve"`
	Breakevens          []float64 `json:"breakevens"`
	MaxProfit           Bound     `json:"max_profit"`
	MaxLoss             Bound     `json:"max_loss"`
	NetPremium          float64   `json:"net_premium"`
	ProbabilityOfProfit *float64  `json:"probability_of_profit,omitempty"`
}

// Evaluate computes the expiry P&L curve of legs around currentPrice.
func Evaluate(legs []Leg, currentPrice float64, cfg SweepConfig) (Evaluation, error) {
	if err := Validate(legs); err != nil {
		return Evaluation{}, err
	}
	if math.IsNaN(currentPrice) || math.IsInf(currentPrice, 0) || currentPrice <= 0 {
		return Evaluation{}, fmt.Errorf("%w: current price must be positive, got %g", pricing.ErrInvalidInput, currentPrice)
	}

	prices, err := samplePrices(legs, currentPrice, cfg)
	if err != nil {
		return Evaluation{}, err
	}

	curve := make(Curve, len(prices))
	for i, p := range prices {
		curve[i] = Point{Price: p, PnL: PnLAt(legs, p, currentPrice)}
	}

	maxProfit, maxLoss := bounds(legs, currentPrice)
	return Evaluation{
		Curve:      curve,
		Breakevens: Breakevens(curve),
		MaxProfit:  maxProfit,
		MaxLoss:    maxLoss,
		NetPremium: NetPremium(legs),
	}, nil
}

// EvaluateWithProbability is Evaluate plus the probability of profit when
// years and vol are both positive.
func EvaluateWithProbability(legs []Leg, currentPrice float64, cfg SweepConfig, years, rate, vol float64) (Evaluation, error) {
	ev, err := Evaluate(legs, currentPrice, cfg)
	if err != nil {
		return ev, err
	}
	if years > 0 && vol > 0 {
		pop, err := ProbabilityOfProfit(legs, currentPrice, years, rate, vol)
		if err != nil {
			return ev, err
		}
		ev.ProbabilityOfProfit = &pop
	}
	return ev, nil
}

func samplePrices(legs []Leg, currentPrice float64, cfg SweepConfig) ([]float64, error) {
	rangePct := cfg.RangePct
	if rangePct == 0 {
		rangePct = DefaultSweep().RangePct
	}
	step := cfg.Step
	if step == 0 {
		step = currentPrice / 100
	}
	if math.IsNaN(rangePct) || rangePct < 0 || math.IsNaN(step) || step < 0 {
		return nil, fmt.Errorf("%w: sweep range and step must be positive", pricing.ErrInvalidInput)
	}

	lo := math.Max(0, currentPrice*(1-rangePct))
	hi := currentPrice * (1 + rangePct)
	if (hi-lo)/step > maxCurvePoints {
		return nil, fmt.Errorf("%w: sweep step %g too fine for range [%g, %g]", pricing.ErrInvalidInput, step, lo, hi)
	}

	var prices []float64
	for i := 0; ; i++ {
		p := lo + float64(i)*step
		if p > hi+step*1e-9 {
			break
		}
		prices = append(prices, p)
	}
	if prices[len(prices)-1] < hi {
		prices = append(prices, hi)
	}
	// Strikes are the only kinks, so with them sampled the curve is exact
	// between neighbouring points.
	for _, k := range kinks(legs) {
		if k >= lo && k <= hi {
			prices = append(prices, k)
		}
	}
	sort.Float64s(prices)

	out := prices[:1]
	for _, p := range prices[1:] {
		if p-out[len(out)-1] > 1e-9 {
			out = append(out, p)
		}
	}
	return out, nil
}

// Breakevens scans a curve for zero crossings, interpolating linearly
// between samples. A run of exact zeros reports the ends where the curve
// meets a non-zero sample; a run touching the edge of the sweep has no
// crossing at that edge.
func Breakevens(curve Curve) []float64 {
	out := []float64{}
	add := func(p float64) {
		if n := len(out); n == 0 || out[n-1] != p {
			out = append(out, p)
		}
	}
	for i, pt := range curve {
		if pt.PnL == 0 {
			if i > 0 && curve[i-1].PnL != 0 {
				add(pt.Price)
			}
			if i+1 < len(curve) && curve[i+1].PnL != 0 {
				add(pt.Price)
			}
			continue
		}
		if i == 0 {
			continue
		}
		prev := curve[i-1]
		if prev.PnL != 0 && (prev.PnL < 0) != (pt.PnL < 0) {
			add(prev.Price + (0-prev.PnL)*(pt.Price-prev.Price)/(pt.PnL-prev.PnL))
		}
	}
	return out
}

// bounds derives max profit and max loss from the piecewise-linear payoff on
// [0, ∞). Extremes sit at p = 0, at a strike, or at infinity.
func bounds(legs []Leg, currentPrice float64) (maxProfit, maxLoss Bound) {
	hi, lo := math.Inf(-1), math.Inf(1)
	for _, p := range append([]float64{0}, kinks(legs)...) {
		v := PnLAt(legs, p, currentPrice)
		hi = math.Max(hi, v)
		lo = math.Min(lo, v)
	}
	maxProfit = Bound{Value: hi}
	maxLoss = Bound{Value: lo}

	switch slope := slopeAbove(legs); {
	case slope > 0:
		maxProfit = Bound{Value: math.Inf(1), Unbounded: true}
	case slope < 0:
		maxLoss = Bound{Value: math.Inf(-1), Unbounded: true}
	}
	return maxProfit, maxLoss
}
