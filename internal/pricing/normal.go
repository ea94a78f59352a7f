package pricing

import "math"

// Abramowitz & Stegun 7.1.26 coefficients.
const (
	asP  = 0.3275911
	asA1 = 0.254829592
	asA2 = -0.284496736
	asA3 = 1.421413741
	asA4 = -1.453152027
	asA5 = 1.061405429
)

var invSqrt2Pi = 1 / math.Sqrt(2*math.Pi)

// NormCDF is the standard normal cumulative distribution function, using the
// Abramowitz & Stegun rational approximation of erf. Max absolute error is
// about 7.5e-8.
func NormCDF(x float64) float64 {
	if x == 0 {
		return 0.5
	}
	sign := 1.0
	if x < 0 {
		sign = -1.0
	}
	z := math.Abs(x) / math.Sqrt2
	t := 1 / (1 + asP*z)
	y := 1 - (((((asA5*t+asA4)*t+asA3)*t+asA2)*t+asA1)*t)*math.Exp(-z*z)
	return 0.5 * (1 + sign*y)
}

// NormPDF is the standard normal density.
func NormPDF(x float64) float64 {
	return invSqrt2Pi * math.Exp(-0.5*x*x)
}
