package pricing

import (
	"fmt"
	"math"
)

// Newton-Raphson settings for ImpliedVolatility.
const (
	IVInitialGuess  = 0.20
	IVTolerance     = 1e-4 // absolute price error
	IVMaxIterations = 100
	MinVol          = 0.001
	MaxVol          = 5.0

	minVega = 1e-12
)

// IVResult is the outcome of an implied-volatility solve. When Converged is
// false, Sigma is the best estimate seen.
type IVResult struct {
	Sigma      float64 `json:"sigma"`
	Converged  bool    `json:"converged"`
	Iterations int     `json:"iterations"`
}

// ImpliedVolatility solves for the volatility that reproduces marketPrice.
// p.Vol is ignored.
//
// Newton steps are kept inside a bracket of [MinVol, MaxVol] that shrinks
// as prices are observed. Where vega vanishes the solver moves to the bound
// on the side of the root, then bisects.
//
// A result with Converged=false is always returned together with an error
// wrapping ErrNonConvergence or ErrNumericInstability.
func ImpliedVolatility(marketPrice float64, p Params) (IVResult, error) {
	p.Vol = IVInitialGuess
	if err := p.validateContract(); err != nil {
		return IVResult{}, err
	}
	if !finite(marketPrice) || marketPrice <= 0 {
		return IVResult{}, invalid("market price", marketPrice, "must be positive")
	}
	if p.Years == 0 {
		return IVResult{}, fmt.Errorf("%w: volatility has no effect on price at expiry", ErrNumericInstability)
	}
	lower, upper := NoArbitrageBounds(p)
	if marketPrice < lower || marketPrice >= upper {
		return IVResult{}, invalid("market price", marketPrice,
			fmt.Sprintf("outside no-arbitrage bounds [%.4f, %.4f)", lower, upper))
	}

	sigma := IVInitialGuess
	best := IVResult{Sigma: sigma}
	bestErr := math.Inf(1)

	// [lo, hi] brackets the root since price is increasing in sigma. A bound
	// is "hit" once a price on the matching side of marketPrice was seen there.
	lo, hi := MinVol, MaxVol
	var loHit, hiHit bool

	for i := 1; i <= IVMaxIterations; i++ {
		p.Vol = sigma
		diff := price(p) - marketPrice
		if math.Abs(diff) < bestErr {
			bestErr = math.Abs(diff)
			best.Sigma = sigma
		}
		if math.Abs(diff) < IVTolerance {
			return IVResult{Sigma: sigma, Converged: true, Iterations: i}, nil
		}
		if diff < 0 {
			lo, loHit = sigma, true
		} else {
			hi, hiHit = sigma, true
		}

		vega := vegaRaw(p)
		var next float64
		switch {
		case vega >= minVega:
			next = sigma - diff/vega
		case diff < 0:
			next = math.Inf(1)
		default:
			next = math.Inf(-1)
		}
		next = step(next, lo, hi, loHit, hiHit)

		if vega < minVega && next == sigma {
			best.Iterations = i
			return best, fmt.Errorf("%w: vega vanished at sigma=%.4f", ErrNumericInstability, sigma)
		}
		sigma = next
	}

	best.Iterations = IVMaxIterations
	return best, fmt.Errorf("%w after %d iterations (best sigma %.4f, price error %.2e)",
		ErrNonConvergence, IVMaxIterations, best.Sigma, bestErr)
}

// NoArbitrageBounds returns the [lower, upper) interval any European option
// price must lie in, independent of volatility.
func NoArbitrageBounds(p Params) (lower, upper float64) {
	pvStrike := p.Strike * math.Exp(-p.Rate*p.Years)
	if p.Kind == Call {
		return math.Max(0, p.Spot-pvStrike), p.Spot
	}
	return math.Max(0, pvStrike-p.Spot), pvStrike
}

// step keeps a Newton update inside [lo, hi]. An update past a bound lands
// on that bound the first time and bisects the bracket once the bound has
// been priced.
func step(next, lo, hi float64, loHit, hiHit bool) float64 {
	switch {
	case next >= hi && !hiHit:
		return hi
	case next <= lo && !loHit:
		return lo
	case next >= hi || next <= lo:
		return lo + (hi-lo)/2
	}
	return next
}
