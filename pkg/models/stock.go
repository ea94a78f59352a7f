// Package models defines the core data structures used throughout MarketDesk.
package models

import "time"

// Instrument describes a listed equity, ETF, or index.
type Instrument struct {
	Ticker            string  `json:"ticker"`   // e.g., "AAPL"
	Name              string  `json:"name"`     // e.g., "Apple Inc."
	Exchange          string  `json:"exchange"` // "NASDAQ", "NYSE", "INDEX"
	Sector            string  `json:"sector"`
	Industry          string  `json:"industry"`
	MarketCap         float64 `json:"market_cap"` // USD
	SharesOutstanding float64 `json:"shares_outstanding"`
	IsIndex           bool    `json:"is_index"`
}

// OHLCV represents a single candlestick bar of price data.
type OHLCV struct {
	Timestamp time.Time `json:"timestamp"`
	Open      float64   `json:"open"`
	High      float64   `json:"high"`
	Low       float64   `json:"low"`
	Close     float64   `json:"close"`
	Volume    int64     `json:"volume"`
}

// Quote represents a delayed stock quote.
type Quote struct {
	Ticker     string    `json:"ticker"`
	Name       string    `json:"name"`
	LastPrice  float64   `json:"last_price"`
	Change     float64   `json:"change"`
	ChangePct  float64   `json:"change_pct"`
	Open       float64   `json:"open"`
	High       float64   `json:"high"`
	Low        float64   `json:"low"`
	PrevClose  float64   `json:"prev_close"`
	Volume     int64     `json:"volume"`
	WeekHigh52 float64   `json:"week_high_52"`
	WeekLow52  float64   `json:"week_low_52"`
	MarketCap  float64   `json:"market_cap"`
	Timestamp  time.Time `json:"timestamp"`
}

// Timeframe represents chart timeframe for OHLCV data.
type Timeframe string

const (
	Timeframe1Day  Timeframe = "1d"
	Timeframe1Week Timeframe = "1w"
)

// MarketOverview is a snapshot of the headline US indices.
type MarketOverview struct {
	Status  string    `json:"status"` // e.g., "OPEN", "CLOSED (Weekend)"
	Indices []Quote   `json:"indices"`
	AsOf    time.Time `json:"as_of"`
}

// FinancialRatios contains key financial ratios.
type FinancialRatios struct {
	PE               float64 `json:"pe"`
	PB               float64 `json:"pb"`
	EVBITDA          float64 `json:"ev_ebitda"`
	ROE              float64 `json:"roe"`
	ROCE             float64 `json:"roce"`
	DebtEquity       float64 `json:"debt_equity"`
	CurrentRatio     float64 `json:"current_ratio"`
	InterestCoverage float64 `json:"interest_coverage"`
	DividendYield    float64 `json:"dividend_yield"`
	EPS              float64 `json:"eps"`
	BookValue        float64 `json:"book_value"`
	PEGRatio         float64 `json:"peg_ratio"`
	GrahamNumber     float64 `json:"graham_number"`
}
