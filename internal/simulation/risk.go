package simulation

import (
	"fmt"
	"math"
)

// One-sided 95% quantile and 5% tail mean of the standard normal.
const (
	z95     = -1.645
	zTail95 = -2.062
)

// Interval is a two-sided confidence interval over sorted outcomes.
type Interval struct {
	Level float64 `json:"level"`
	Lower float64 `json:"lower"`
	Upper float64 `json:"upper"`
}

// ConfidenceInterval picks sorted[floor(n(1-c)/2)] and
// sorted[floor(n(1-(1-c)/2))], the latter clamped to the last element.
func ConfidenceInterval(sorted []float64, level float64) (Interval, error) {
	n := len(sorted)
	if n == 0 {
		return Interval{}, fmt.Errorf("%w: no outcomes", ErrInvalidParams)
	}
	if !(level > 0 && level < 1) {
		return Interval{}, fmt.Errorf("%w: confidence level must be in (0, 1), got %g", ErrInvalidParams, level)
	}
	lo := int(math.Floor(float64(n) * (1 - level) / 2))
	hi := int(math.Floor(float64(n) * (1 - (1-level)/2)))
	hi = min(hi, n-1)
	return Interval{Level: level, Lower: sorted[lo], Upper: sorted[hi]}, nil
}

// ParametricVaR95 is the 95% one-day value at risk under a normal return
// model: amount·(1 + r − 1.645σ) − amount. A loss is negative.
//
// This is a parametric approximation, not an empirical or historical
// estimate.
func ParametricVaR95(amount, expectedReturn, volatility float64) float64 {
	return amount*(1+expectedReturn+z95*volatility) - amount
}

// ParametricCVaR95 approximates the expected shortfall in the worst 5% tail
// with z = −2.062. Parametric, like ParametricVaR95.
func ParametricCVaR95(amount, expectedReturn, volatility float64) float64 {
	return amount*(1+expectedReturn+zTail95*volatility) - amount
}

// EmpiricalVaR reads the (1−level) quantile from sorted outcomes as P&L
// relative to amount.
func EmpiricalVaR(sorted []float64, amount, level float64) (float64, error) {
	idx, err := tailIndex(sorted, level)
	if err != nil {
		return 0, err
	}
	return sorted[idx] - amount, nil
}

// EmpiricalCVaR averages the outcomes at or below the VaR quantile.
func EmpiricalCVaR(sorted []float64, amount, level float64) (float64, error) {
	idx, err := tailIndex(sorted, level)
	if err != nil {
		return 0, err
	}
	var sum float64
	for _, v := range sorted[:idx+1] {
		sum += v
	}
	return sum/float64(idx+1) - amount, nil
}

func tailIndex(sorted []float64, level float64) (int, error) {
	if len(sorted) == 0 {
		return 0, fmt.Errorf("%w: no outcomes", ErrInvalidParams)
	}
	if !(level > 0 && level < 1) {
		return 0, fmt.Errorf("%w: confidence level must be in (0, 1), got %g", ErrInvalidParams, level)
	}
	return int(math.Floor(float64(len(sorted)) * (1 - level))), nil
}
