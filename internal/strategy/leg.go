// Package strategy evaluates multi-leg option positions at expiry: the
// profit/loss curve, breakevens, analytic max profit and loss, and the
// log-normal probability of profit.
package strategy

import (
	"errors"
	"fmt"
	"math"
	"sort"
)

// ContractMultiplier is the number of shares one option contract controls.
const ContractMultiplier = 100

// ErrInvalidLeg is returned for malformed legs.
var ErrInvalidLeg = errors.New("strategy: invalid leg")

// Instrument is what a leg trades.
type Instrument string

const (
	Stock Instrument = "stock"
	Call  Instrument = "call"
	Put   Instrument = "put"
)

// Action is the side of a leg.
type Action string

const (
	Buy  Action = "buy"
	Sell Action = "sell"
)

// Leg is one position in a strategy. Stock quantity is in shares, option
// quantity in contracts.
type Leg struct {
	Instrument Instrument `json:"instrument"`
	Action     Action     `json:"action"`
	Quantity   int        `json:"quantity"`
	Strike     float64    `json:"strike,omitempty"`
	Premium    float64    `json:"premium,omitempty"`
	// EntryPrice is the stock purchase/sale price. Zero means the current
	// underlying price.
	EntryPrice float64 `json:"entry_price,omitempty"`
}

func (l Leg) sign() float64 {
	if l.Action == Sell {
		return -1
	}
	return 1
}

func (l Leg) entry(currentPrice float64) float64 {
	if l.EntryPrice > 0 {
		return l.EntryPrice
	}
	return currentPrice
}

// LegPnL is the expiry profit or loss of a single leg when the underlying
// settles at p.
func LegPnL(leg Leg, p, currentPrice float64) float64 {
	q := float64(leg.Quantity)
	switch leg.Instrument {
	case Stock:
		return leg.sign() * (p - leg.entry(currentPrice)) * q
	case Call:
		return leg.sign() * (math.Max(0, p-leg.Strike) - leg.Premium) * q * ContractMultiplier
	case Put:
		return leg.sign() * (math.Max(0, leg.Strike-p) - leg.Premium) * q * ContractMultiplier
	}
	return 0
}

// PnLAt sums LegPnL over all legs.
func PnLAt(legs []Leg, p, currentPrice float64) float64 {
	var total float64
	for _, l := range legs {
		total += LegPnL(l, p, currentPrice)
	}
	return total
}

// Validate checks every leg and returns the first problem found.
func Validate(legs []Leg) error {
	if len(legs) == 0 {
		return fmt.Errorf("%w: no legs", ErrInvalidLeg)
	}
	for i, l := range legs {
		if l.Action != Buy && l.Action != Sell {
			return fmt.Errorf("%w: leg %d: unknown action %q", ErrInvalidLeg, i, l.Action)
		}
		if l.Quantity <= 0 {
			return fmt.Errorf("%w: leg %d: quantity must be positive, got %d", ErrInvalidLeg, i, l.Quantity)
		}
		switch l.Instrument {
		case Stock:
			if math.IsNaN(l.EntryPrice) || math.IsInf(l.EntryPrice, 0) || l.EntryPrice < 0 {
				return fmt.Errorf("%w: leg %d: entry price must be non-negative, got %g", ErrInvalidLeg, i, l.EntryPrice)
			}
		case Call, Put:
			if math.IsNaN(l.Strike) || math.IsInf(l.Strike, 0) || l.Strike <= 0 {
				return fmt.Errorf("%w: leg %d: strike must be positive, got %g", ErrInvalidLeg, i, l.Strike)
			}
			if math.IsNaN(l.Premium) || math.IsInf(l.Premium, 0) || l.Premium < 0 {
				return fmt.Errorf("%w: leg %d: premium must be non-negative, got %g", ErrInvalidLeg, i, l.Premium)
			}
		default:
			return fmt.Errorf("%w: leg %d: unknown instrument %q", ErrInvalidLeg, i, l.Instrument)
		}
	}
	return nil
}

// NetPremium is the option premium received (+) or paid (-) in dollars.
func NetPremium(legs []Leg) float64 {
	var net float64
	for _, l := range legs {
		if l.Instrument == Stock {
			continue
		}
		net -= l.sign() * l.Premium * float64(l.Quantity) * ContractMultiplier
	}
	return net
}

// slopeAbove is dP&L/dp once p is above every strike.
func slopeAbove(legs []Leg) float64 {
	var s float64
	for _, l := range legs {
		switch l.Instrument {
		case Stock:
			s += l.sign() * float64(l.Quantity)
		case Call:
			s += l.sign() * float64(l.Quantity) * ContractMultiplier
		}
	}
	return s
}

// kinks returns the sorted distinct strikes.
func kinks(legs []Leg) []float64 {
	seen := make(map[float64]bool)
	var out []float64
	for _, l := range legs {
		if l.Instrument == Stock || seen[l.Strike] {
			continue
		}
		seen[l.Strike] = true
		out = append(out, l.Strike)
	}
	sort.Float64s(out)
	return out
}
