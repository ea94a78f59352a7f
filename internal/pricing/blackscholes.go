// Package pricing implements European option valuation under Black-Scholes:
// theoretical price, analytic Greeks, and an implied-volatility solver.
//
// Everything in this package is a pure function of its inputs. Nothing here
// fetches prices, logs, or substitutes default data; callers resolve spot
// prices and policies at the boundary.
package pricing

import (
	"fmt"
	"math"
	"strings"
)

// DefaultRate is the annual risk-free rate used when a caller has no better value.
const DefaultRate = 0.05

// Kind is the option right.
type Kind string

const (
	Call Kind = "call"
	Put  Kind = "put"
)

// ParseKind accepts "call"/"put" and the common short forms (c, p, ce, pe).
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "call", "c", "ce":
		return Call, nil
	case "put", "p", "pe":
		return Put, nil
	}
	return "", fmt.Errorf("%w: unknown option kind %q", ErrInvalidInput, s)
}

// Params are the inputs to a single European option valuation.
type Params struct {
	Spot   float64 `json:"spot"`   // underlying price S
	Strike float64 `json:"strike"` // strike K
	Years  float64 `json:"years"`  // time to expiry T, in years
	Rate   float64 `json:"rate"`   // continuously compounded risk-free rate r
	Vol    float64 `json:"vol"`    // annualized volatility sigma
	Kind   Kind    `json:"kind"`
}

// Validate fails fast on any input outside the model's domain.
func (p Params) Validate() error {
	if err := p.validateContract(); err != nil {
		return err
	}
	if !finite(p.Vol) || p.Vol <= 0 {
		return invalid("volatility", p.Vol, "must be positive")
	}
	return nil
}

// validateContract checks everything except volatility.
func (p Params) validateContract() error {
	switch {
	case p.Kind != Call && p.Kind != Put:
		return fmt.Errorf("%w: unknown option kind %q", ErrInvalidInput, p.Kind)
	case !finite(p.Spot) || p.Spot <= 0:
		return invalid("spot", p.Spot, "must be positive")
	case !finite(p.Strike) || p.Strike <= 0:
		return invalid("strike", p.Strike, "must be positive")
	case !finite(p.Years) || p.Years < 0:
		return invalid("years", p.Years, "must be non-negative")
	case !finite(p.Rate):
		return invalid("rate", p.Rate, "must be finite")
	}
	return nil
}

// Price returns the Black-Scholes value of a European option.
// At expiry (Years == 0) it returns the intrinsic value.
func Price(p Params) (float64, error) {
	if err := p.Validate(); err != nil {
		return 0, err
	}
	if p.Years == 0 {
		return Intrinsic(p.Kind, p.Spot, p.Strike), nil
	}
	v := price(p)
	if !finite(v) {
		return 0, fmt.Errorf("%w: price evaluated to %v", ErrNumericInstability, v)
	}
	return v, nil
}

// Intrinsic is the exercise value of an option at the given spot.
func Intrinsic(kind Kind, spot, strike float64) float64 {
	if kind == Call {
		return math.Max(0, spot-strike)
	}
	return math.Max(0, strike-spot)
}

// price assumes validated params with Years > 0.
func price(p Params) float64 {
	d1, d2 := d1d2(p)
	df := math.Exp(-p.Rate * p.Years)
	if p.Kind == Call {
		return p.Spot*NormCDF(d1) - p.Strike*df*NormCDF(d2)
	}
	return p.Strike*df*NormCDF(-d2) - p.Spot*NormCDF(-d1)
}

func d1d2(p Params) (float64, float64) {
	volSqrtT := p.Vol * math.Sqrt(p.Years)
	d1 := (math.Log(p.Spot/p.Strike) + (p.Rate+0.5*p.Vol*p.Vol)*p.Years) / volSqrtT
	return d1, d1 - volSqrtT
}

func finite(x float64) bool {
	return !math.IsNaN(x) && !math.IsInf(x, 0)
}
