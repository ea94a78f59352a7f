package datasource

import (
	"context"
	"fmt"
	"math"

	"github.com/seenimoa/marketdesk/pkg/models"
)

const (
	annualPeriods    = 4
	quarterlyPeriods = 5
	effectiveTaxRate = 0.18
)

// GetFinancials returns synthetic annual and quarterly statements, newest
// first, scaled from the catalog profile. ETFs and indices have none.
func (m *Market) GetFinancials(_ context.Context, ticker string) (*models.FinancialData, error) {
	p, err := lookupProfile(ticker)
	if err != nil {
		return nil, err
	}
	if !p.hasStatements() {
		return nil, fmt.Errorf("%w: financials for %s", ErrNotSupported, p.Ticker)
	}

	now := m.Now()
	fy := now.Year() - 1
	fd := &models.FinancialData{Ticker: p.Ticker}

	revenue := p.Revenue
	for i := 0; i < annualPeriods; i++ {
		r := m.rng(p.Ticker, streamFinancials, fy-i, 0)
		period := fmt.Sprintf("FY%d", fy-i)
		inc, bs, cf := statements(p, period, "annual", revenue, 1, r.NormFloat64())
		fd.AnnualIncome = append(fd.AnnualIncome, inc)
		fd.AnnualBalanceSheet = append(fd.AnnualBalanceSheet, bs)
		fd.AnnualCashFlow = append(fd.AnnualCashFlow, cf)
		revenue /= 1 + p.Growth*(1+0.2*r.NormFloat64())
	}

	// Latest completed calendar quarter, walking back.
	year, quarter := now.Year(), (int(now.Month())-1)/3
	if quarter == 0 {
		year, quarter = year-1, 4
	}
	qRevenue := p.Revenue / 4 * math.Pow(1+p.Growth, 0.5)
	for i := 0; i < quarterlyPeriods; i++ {
		r := m.rng(p.Ticker, streamFinancials, year*10+quarter, 1)
		period := fmt.Sprintf("Q%d %d", quarter, year)
		inc, _, _ := statements(p, period, "quarterly", qRevenue, 0.25, r.NormFloat64())
		fd.QuarterlyIncome = append(fd.QuarterlyIncome, inc)
		qRevenue /= math.Pow(1+p.Growth, 0.25) * (1 + 0.03*r.NormFloat64())
		if quarter--; quarter == 0 {
			year, quarter = year-1, 4
		}
	}

	return fd, nil
}

// statements derives one period's statements from revenue. scale is the
// period length in years; z perturbs the margins.
func statements(p profile, period, periodType string, revenue, scale, z float64) (models.IncomeStatement, models.BalanceSheet, models.CashFlow) {
	jitter := 1 + 0.04*z
	gross := revenue * p.GrossPct * jitter
	ebit := revenue * p.OpPct * jitter
	depreciation := revenue * 0.04
	equity := p.Revenue * p.EquityToRv
	debt := equity * p.DebtToEq
	interest := debt * 0.045 * scale
	pretax := ebit - interest
	net := math.Min(revenue*p.NetPct*jitter, pretax*(1-effectiveTaxRate))
	eps := net / p.SharesOutstanding

	inc := models.IncomeStatement{
		Period:           period,
		PeriodType:       periodType,
		Revenue:          revenue,
		CostOfRevenue:    revenue - gross,
		GrossProfit:      gross,
		OperatingExpense: gross - ebit,
		EBITDA:           ebit + depreciation,
		Depreciation:     depreciation,
		EBIT:             ebit,
		InterestExpense:  interest,
		PretaxIncome:     pretax,
		Tax:              pretax - net,
		NetIncome:        net,
		EPS:              round2(eps),
		Dividends:        round2(eps * p.PayoutPct),
	}

	totalAssets := equity + debt + revenue/scale*0.3
	current := totalAssets * 0.3
	bs := models.BalanceSheet{
		Period:             period,
		PeriodType:         periodType,
		TotalAssets:        totalAssets,
		CurrentAssets:      current,
		CashEquivalents:    current * 0.4,
		TotalLiabilities:   totalAssets - equity,
		CurrentLiabilities: current / 1.3,
		TotalDebt:          debt,
		TotalEquity:        equity,
	}

	ocf := net*1.1 + depreciation
	capex := -revenue * 0.05
	cf := models.CashFlow{
		Period:            period,
		PeriodType:        periodType,
		OperatingCashFlow: ocf,
		InvestingCashFlow: capex * 1.2,
		FinancingCashFlow: -net * p.PayoutPct,
		CapEx:             capex,
		FreeCashFlow:      ocf + capex,
		DividendsPaid:     -net * p.PayoutPct,
	}
	return inc, bs, cf
}
