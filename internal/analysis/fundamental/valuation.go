package fundamental

import (
	"math"

	"github.com/seenimoa/marketdesk/pkg/models"
)

// Valuation verdicts.
const (
	VerdictUndervalued = "undervalued"
	VerdictFair        = "fairly_valued"
	VerdictOvervalued  = "overvalued"
)

// Valuation contains intrinsic value estimates per method, in USD per share.
type Valuation struct {
	Price          float64            `json:"price"`
	GrahamNumber   float64            `json:"graham_number,omitempty"`
	DCFValue       float64            `json:"dcf_value,omitempty"`
	EarningsYield  float64            `json:"earnings_yield"`
	MarginOfSafety float64            `json:"margin_of_safety"` // % below average intrinsic value
	Verdict        string             `json:"verdict,omitempty"`
	Methods        map[string]float64 `json:"methods"`
}

// DCFParams holds parameters for a two-stage discounted cash flow valuation.
// Rates are decimals.
type DCFParams struct {
	FreeCashFlow      float64 // most recent annual FCF
	Growth            float64 // FCF growth years 1-5
	FadeGrowth        float64 // FCF growth years 6-10
	TerminalGrowth    float64
	DiscountRate      float64
	SharesOutstanding float64
}

// DCF returns the per-share present value of projected free cash flow plus
// a Gordon growth terminal value. Zero when the inputs cannot produce one.
func DCF(p DCFParams) float64 {
	if p.FreeCashFlow <= 0 || p.SharesOutstanding <= 0 || p.DiscountRate <= p.TerminalGrowth {
		return 0
	}

	total := 0.0
	fcf := p.FreeCashFlow
	for year := 1; year <= 10; year++ {
		g := p.Growth
		if year > 5 {
			g = p.FadeGrowth
		}
		fcf *= 1 + g
		total += fcf / math.Pow(1+p.DiscountRate, float64(year))
	}

	terminal := fcf * (1 + p.TerminalGrowth) / (p.DiscountRate - p.TerminalGrowth)
	total += terminal / math.Pow(1+p.DiscountRate, 10)

	return total / p.SharesOutstanding
}

// GrahamNumber = sqrt(22.5 × EPS × Book Value per Share)
func GrahamNumber(eps, bookValue float64) float64 {
	if eps <= 0 || bookValue <= 0 {
		return 0
	}
	return math.Sqrt(22.5 * eps * bookValue)
}

// EarningsYield is EPS / price in percent.
func EarningsYield(eps, price float64) float64 {
	if price <= 0 {
		return 0
	}
	return eps / price * 100
}

// ComputeValuation runs the Graham and DCF methods and grades the price
// against their average.
func ComputeValuation(price float64, ratios models.FinancialRatios, fin *models.FinancialData, sharesOutstanding, discountRate float64) Valuation {
	v := Valuation{
		Price:         price,
		EarningsYield: EarningsYield(ratios.EPS, price),
		Methods:       make(map[string]float64),
	}

	var estimates []float64

	if gn := GrahamNumber(ratios.EPS, ratios.BookValue); gn > 0 {
		v.GrahamNumber = gn
		v.Methods["graham"] = gn
		estimates = append(estimates, gn)
	}

	if fin != nil && len(fin.AnnualCashFlow) > 0 {
		growth := ComputeGrowth(fin).RevenueCAGR3Y / 100
		if growth <= 0 {
			growth = 0.05
		}
		growth = math.Min(growth, 0.25)
		dcf := DCF(DCFParams{
			FreeCashFlow:      freeCashFlow(fin.AnnualCashFlow[0]),
			Growth:            growth,
			FadeGrowth:        growth / 2,
			TerminalGrowth:    0.025,
			DiscountRate:      discountRate,
			SharesOutstanding: sharesOutstanding,
		})
		if dcf > 0 {
			v.DCFValue = dcf
			v.Methods["dcf"] = dcf
			estimates = append(estimates, dcf)
		}
	}

	if len(estimates) == 0 || price <= 0 {
		return v
	}

	sum := 0.0
	for _, e := range estimates {
		sum += e
	}
	intrinsic := sum / float64(len(estimates))
	v.MarginOfSafety = (intrinsic - price) / intrinsic * 100

	switch {
	case v.MarginOfSafety > 25:
		v.Verdict = VerdictUndervalued
	case v.MarginOfSafety > -10:
		v.Verdict = VerdictFair
	default:
		v.Verdict = VerdictOvervalued
	}
	return v
}

// Snapshot bundles everything the fundamentals endpoint reports for a ticker.
type Snapshot struct {
	Ticker    string                 `json:"ticker"`
	Ratios    models.FinancialRatios `json:"ratios"`
	Growth    models.GrowthRates     `json:"growth"`
	Margins   Margins                `json:"margins"`
	Valuation Valuation              `json:"valuation"`
}

// DefaultDiscountRate is the required return used for DCF when none is configured.
const DefaultDiscountRate = 0.09

// Analyze computes ratios, growth, margins and valuation in one pass.
func Analyze(fin *models.FinancialData, price, sharesOutstanding float64) Snapshot {
	ratios := ComputeRatios(fin, price, sharesOutstanding)
	s := Snapshot{
		Ratios:    ratios,
		Growth:    ComputeGrowth(fin),
		Margins:   ComputeMargins(fin),
		Valuation: ComputeValuation(price, ratios, fin, sharesOutstanding, DefaultDiscountRate),
	}
	if fin != nil {
		s.Ticker = fin.Ticker
	}
	return s
}
