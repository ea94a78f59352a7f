// Package fundamental computes valuation ratios, growth, and margins from
// annual and quarterly financial statements.
package fundamental

import (
	"math"

	"github.com/seenimoa/marketdesk/pkg/models"
)

// ComputeRatios calculates financial ratios from raw financial data and current price.
func ComputeRatios(fin *models.FinancialData, price float64, sharesOutstanding float64) models.FinancialRatios {
	ratios := models.FinancialRatios{}

	if fin == nil || sharesOutstanding <= 0 {
		return ratios
	}

	// Use latest annual income statement.
	if len(fin.AnnualIncome) > 0 {
		latest := fin.AnnualIncome[0]

		if latest.EPS != 0 {
			ratios.EPS = latest.EPS
		} else {
			ratios.EPS = latest.NetIncome / sharesOutstanding
		}

		if ratios.EPS > 0 && price > 0 {
			ratios.PE = price / ratios.EPS
		}
		if latest.Dividends > 0 && price > 0 {
			ratios.DividendYield = latest.Dividends / price * 100
		}
	}

	if len(fin.AnnualBalanceSheet) > 0 {
		bs := fin.AnnualBalanceSheet[0]

		if bs.TotalEquity > 0 {
			ratios.BookValue = bs.TotalEquity / sharesOutstanding
			ratios.DebtEquity = bs.TotalDebt / bs.TotalEquity
		}
		if ratios.BookValue > 0 && price > 0 {
			ratios.PB = price / ratios.BookValue
		}
		if bs.CurrentLiabilities > 0 {
			ratios.CurrentRatio = bs.CurrentAssets / bs.CurrentLiabilities
		}

		if len(fin.AnnualIncome) > 0 {
			inc := fin.AnnualIncome[0]

			// ROE = Net Income / Total Equity
			if bs.TotalEquity > 0 {
				ratios.ROE = inc.NetIncome / bs.TotalEquity * 100
			}
			// ROCE = EBIT / (Total Assets - Current Liabilities)
			if capitalEmployed := bs.TotalAssets - bs.CurrentLiabilities; capitalEmployed > 0 {
				ratios.ROCE = inc.EBIT / capitalEmployed * 100
			}
			if inc.InterestExpense > 0 {
				ratios.InterestCoverage = inc.EBIT / inc.InterestExpense
			}
			if inc.EBITDA > 0 {
				ev := price*sharesOutstanding + bs.TotalDebt - bs.CashEquivalents
				ratios.EVBITDA = ev / inc.EBITDA
			}
		}
	}

	ratios.GrahamNumber = GrahamNumber(ratios.EPS, ratios.BookValue)

	// PEG = PE / EPS growth rate (percent)
	growth := ComputeGrowth(fin)
	if growth.EPSGrowthYoY > 0 && ratios.PE > 0 {
		ratios.PEGRatio = ratios.PE / growth.EPSGrowthYoY
	}

	return ratios
}

// ComputeGrowth calculates growth rates from financial data. Statements are
// expected newest first.
func ComputeGrowth(fin *models.FinancialData) models.GrowthRates {
	g := models.GrowthRates{}
	if fin == nil {
		return g
	}

	if len(fin.QuarterlyIncome) >= 2 {
		g.RevenueGrowthQoQ = pctChange(fin.QuarterlyIncome[1].Revenue, fin.QuarterlyIncome[0].Revenue)
	}

	if len(fin.AnnualIncome) >= 2 {
		curr, prev := fin.AnnualIncome[0], fin.AnnualIncome[1]
		g.RevenueGrowthYoY = pctChange(prev.Revenue, curr.Revenue)
		g.ProfitGrowthYoY = pctChange(prev.NetIncome, curr.NetIncome)
		g.EPSGrowthYoY = pctChange(prev.EPS, curr.EPS)
	}

	if len(fin.AnnualIncome) >= 4 {
		base, latest := fin.AnnualIncome[3], fin.AnnualIncome[0]
		g.RevenueCAGR3Y = cagr(base.Revenue, latest.Revenue, 3)
		g.ProfitCAGR3Y = cagr(base.NetIncome, latest.NetIncome, 3)
		g.EPSCAGR3Y = cagr(base.EPS, latest.EPS, 3)
	}

	return g
}

// Margins holds profitability and efficiency metrics, margins in percent.
type Margins struct {
	GrossMargin     float64 `json:"gross_margin"`
	OperatingMargin float64 `json:"operating_margin"` // EBIT / Revenue
	NetMargin       float64 `json:"net_margin"`
	FCFMargin       float64 `json:"fcf_margin"`
	AssetTurnover   float64 `json:"asset_turnover"`  // Revenue / Total Assets
	WorkingCapital  float64 `json:"working_capital"` // USD
}

// ComputeMargins calculates margins from the latest annual statements.
func ComputeMargins(fin *models.FinancialData) Margins {
	m := Margins{}
	if fin == nil || len(fin.AnnualIncome) == 0 {
		return m
	}

	inc := fin.AnnualIncome[0]
	if inc.Revenue > 0 {
		gross := inc.GrossProfit
		if gross == 0 {
			gross = inc.Revenue - inc.CostOfRevenue
		}
		m.GrossMargin = gross / inc.Revenue * 100
		m.OperatingMargin = inc.EBIT / inc.Revenue * 100
		m.NetMargin = inc.NetIncome / inc.Revenue * 100
		if len(fin.AnnualCashFlow) > 0 {
			m.FCFMargin = freeCashFlow(fin.AnnualCashFlow[0]) / inc.Revenue * 100
		}
	}

	if len(fin.AnnualBalanceSheet) > 0 {
		bs := fin.AnnualBalanceSheet[0]
		if bs.TotalAssets > 0 {
			m.AssetTurnover = inc.Revenue / bs.TotalAssets
		}
		m.WorkingCapital = bs.CurrentAssets - bs.CurrentLiabilities
	}

	return m
}

// --- helpers ---

func freeCashFlow(cf models.CashFlow) float64 {
	if cf.FreeCashFlow != 0 {
		return cf.FreeCashFlow
	}
	// CapEx is reported as a negative outflow.
	return cf.OperatingCashFlow + cf.CapEx
}

func pctChange(old, new_ float64) float64 {
	if old == 0 {
		return 0
	}
	return (new_ - old) / math.Abs(old) * 100
}

func cagr(start, end float64, years float64) float64 {
	if start <= 0 || end <= 0 || years <= 0 {
		return 0
	}
	return (math.Pow(end/start, 1/years) - 1) * 100
}
