package strategy

import (
	"fmt"
	"math"
	"sort"

	"github.com/seenimoa/marketdesk/internal/pricing"
)

// ProbabilityOfProfit is the risk-neutral probability that the position
// finishes with P&L > 0, assuming ln S_T ~ N(ln S + (r − σ²/2)T, σ²T).
//
// The payoff is linear between strikes, so its zeros are found exactly and
// the probability mass of every profitable interval comes from the normal CDF.
func ProbabilityOfProfit(legs []Leg, currentPrice, years, rate, vol float64) (float64, error) {
	if err := Validate(legs); err != nil {
		return 0, err
	}
	switch {
	case !(currentPrice > 0) || math.IsInf(currentPrice, 0):
		return 0, fmt.Errorf("%w: current price must be positive, got %g", pricing.ErrInvalidInput, currentPrice)
	case !(years > 0) || math.IsInf(years, 0):
		return 0, fmt.Errorf("%w: years must be positive, got %g", pricing.ErrInvalidInput, years)
	case !(vol > 0) || math.IsInf(vol, 0):
		return 0, fmt.Errorf("%w: volatility must be positive, got %g", pricing.ErrInvalidInput, vol)
	case math.IsNaN(rate) || math.IsInf(rate, 0):
		return 0, fmt.Errorf("%w: rate must be finite, got %g", pricing.ErrInvalidInput, rate)
	}

	pnl := func(p float64) float64 { return PnLAt(legs, p, currentPrice) }

	edges := append([]float64{0}, kinks(legs)...)
	cuts := append([]float64(nil), edges...)
	for i := 0; i+1 < len(edges); i++ {
		a, b := edges[i], edges[i+1]
		fa, fb := pnl(a), pnl(b)
		if fa != 0 && fb != 0 && (fa < 0) != (fb < 0) {
			cuts = append(cuts, a+fa*(b-a)/(fa-fb))
		}
	}
	last := edges[len(edges)-1]
	if f, s := pnl(last), slopeAbove(legs); s != 0 && f != 0 && (f < 0) != (s < 0) {
		cuts = append(cuts, last-f/s)
	}
	sort.Float64s(cuts)

	mu := math.Log(currentPrice) + (rate-0.5*vol*vol)*years
	sd := vol * math.Sqrt(years)
	cdf := func(x float64) float64 {
		switch {
		case x <= 0:
			return 0
		case math.IsInf(x, 1):
			return 1
		}
		return pricing.NormCDF((math.Log(x) - mu) / sd)
	}

	var prob float64
	for i, a := range cuts {
		b := math.Inf(1)
		sample := a + math.Max(1, a)
		if i+1 < len(cuts) {
			b = cuts[i+1]
			sample = (a + b) / 2
		}
		if b <= a {
			continue
		}
		if pnl(sample) > 0 {
			prob += cdf(b) - cdf(a)
		}
	}
	return math.Min(1, math.Max(0, prob)), nil
}
