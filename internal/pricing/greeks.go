package pricing

import (
	"fmt"
	"math"
)

// DaysPerYear converts annual theta into per-calendar-day theta.
const DaysPerYear = 365.0

// Greeks are first- and second-order sensitivities of an option price.
// Theta is per calendar day; vega and rho are per one percentage point.
type Greeks struct {
	Delta float64 `json:"delta"`
	Gamma float64 `json:"gamma"`
	Theta float64 `json:"theta"`
	Vega  float64 `json:"vega"`
	Rho   float64 `json:"rho"`
}

// ComputeGreeks returns the analytic Black-Scholes Greeks.
//
// At expiry the option is pure intrinsic value: delta is a step in spot
// (0.5 exactly at the strike), and every other Greek is zero.
func ComputeGreeks(p Params) (Greeks, error) {
	if err := p.Validate(); err != nil {
		return Greeks{}, err
	}
	if p.Years == 0 {
		return expiryGreeks(p), nil
	}

	d1, d2 := d1d2(p)
	sqrtT := math.Sqrt(p.Years)
	df := math.Exp(-p.Rate * p.Years)
	pdf := NormPDF(d1)

	g := Greeks{
		Gamma: pdf / (p.Spot * p.Vol * sqrtT),
		Vega:  p.Spot * pdf * sqrtT / 100,
	}
	decay := -p.Spot * pdf * p.Vol / (2 * sqrtT)

	if p.Kind == Call {
		g.Delta = NormCDF(d1)
		g.Theta = (decay - p.Rate*p.Strike*df*NormCDF(d2)) / DaysPerYear
		g.Rho = p.Strike * p.Years * df * NormCDF(d2) / 100
	} else {
		g.Delta = NormCDF(d1) - 1
		g.Theta = (decay + p.Rate*p.Strike*df*NormCDF(-d2)) / DaysPerYear
		g.Rho = -p.Strike * p.Years * df * NormCDF(-d2) / 100
	}

	if !finite(g.Delta) || !finite(g.Gamma) || !finite(g.Theta) || !finite(g.Vega) || !finite(g.Rho) {
		return Greeks{}, fmt.Errorf("%w: greeks evaluated to %+v", ErrNumericInstability, g)
	}
	return g, nil
}

func expiryGreeks(p Params) Greeks {
	var delta float64
	switch {
	case p.Spot > p.Strike:
		delta = 1
	case p.Spot == p.Strike:
		delta = 0.5
	}
	if p.Kind == Put {
		delta--
	}
	return Greeks{Delta: delta}
}

// vegaRaw is dPrice/dSigma per unit of volatility. Assumes Years > 0.
func vegaRaw(p Params) float64 {
	d1, _ := d1d2(p)
	return p.Spot * NormPDF(d1) * math.Sqrt(p.Years)
}
