package models

// IncomeStatement represents a single period income statement. Amounts are USD.
type IncomeStatement struct {
	Period           string  `json:"period"`      // e.g., "FY2025", "Q3 2025"
	PeriodType       string  `json:"period_type"` // "annual" or "quarterly"
	Revenue          float64 `json:"revenue"`
	CostOfRevenue    float64 `json:"cost_of_revenue"`
	GrossProfit      float64 `json:"gross_profit"`
	OperatingExpense float64 `json:"operating_expense"`
	EBITDA           float64 `json:"ebitda"`
	Depreciation     float64 `json:"depreciation"`
	EBIT             float64 `json:"ebit"`
	InterestExpense  float64 `json:"interest_expense"`
	PretaxIncome     float64 `json:"pretax_income"`
	Tax              float64 `json:"tax"`
	NetIncome        float64 `json:"net_income"`
	EPS              float64 `json:"eps"`
	Dividends        float64 `json:"dividends"` // per share
}

// BalanceSheet represents a single period balance sheet.
type BalanceSheet struct {
	Period             string  `json:"period"`
	PeriodType         string  `json:"period_type"`
	TotalAssets        float64 `json:"total_assets"`
	CurrentAssets      float64 `json:"current_assets"`
	CashEquivalents    float64 `json:"cash_equivalents"`
	TotalLiabilities   float64 `json:"total_liabilities"`
	CurrentLiabilities float64 `json:"current_liabilities"`
	TotalDebt          float64 `json:"total_debt"`
	TotalEquity        float64 `json:"total_equity"`
}

// CashFlow represents a single period cash flow statement.
type CashFlow struct {
	Period            string  `json:"period"`
	PeriodType        string  `json:"period_type"`
	OperatingCashFlow float64 `json:"operating_cash_flow"`
	InvestingCashFlow float64 `json:"investing_cash_flow"`
	FinancingCashFlow float64 `json:"financing_cash_flow"`
	CapEx             float64 `json:"capex"`
	FreeCashFlow      float64 `json:"free_cash_flow"`
	DividendsPaid     float64 `json:"dividends_paid"`
}

// FinancialData aggregates financial statements for a stock, newest first.
type FinancialData struct {
	Ticker             string            `json:"ticker"`
	AnnualIncome       []IncomeStatement `json:"annual_income"`
	QuarterlyIncome    []IncomeStatement `json:"quarterly_income"`
	AnnualBalanceSheet []BalanceSheet    `json:"annual_balance_sheet"`
	AnnualCashFlow     []CashFlow        `json:"annual_cash_flow"`
}

// GrowthRates holds computed growth metrics, in percent.
type GrowthRates struct {
	RevenueGrowthQoQ float64 `json:"revenue_growth_qoq"`
	RevenueGrowthYoY float64 `json:"revenue_growth_yoy"`
	RevenueCAGR3Y    float64 `json:"revenue_cagr_3y"`
	ProfitGrowthYoY  float64 `json:"profit_growth_yoy"`
	ProfitCAGR3Y     float64 `json:"profit_cagr_3y"`
	EPSGrowthYoY     float64 `json:"eps_growth_yoy"`
	EPSCAGR3Y        float64 `json:"eps_cagr_3y"`
}
