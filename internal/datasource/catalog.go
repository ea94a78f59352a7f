package datasource

import (
	"fmt"
	"sort"

	"github.com/seenimoa/marketdesk/pkg/models"
	"github.com/seenimoa/marketdesk/pkg/utils"
)

// profile seeds the synthetic market for one instrument.
type profile struct {
	models.Instrument
	BasePrice  float64 // price on the anchor date
	Vol        float64 // annualized
	Drift      float64 // annualized
	AvgVolume  int64
	Revenue    float64 // latest annual, USD
	Growth     float64 // annual revenue growth
	GrossPct   float64 // gross margin
	OpPct      float64 // operating margin
	NetPct     float64 // net margin
	PayoutPct  float64 // dividend payout of net income
	DebtToEq   float64
	EquityToRv float64 // book equity as a multiple of revenue
}

// Index and ETF profiles carry no statements.
var catalog = map[string]profile{
	"AAPL": {Instrument: models.Instrument{Ticker: "AAPL", Name: "Apple Inc.", Exchange: "NASDAQ", Sector: "Technology", Industry: "Consumer Electronics", SharesOutstanding: 15.0e9},
		BasePrice: 185, Vol: 0.24, Drift: 0.10, AvgVolume: 55_000_000,
		Revenue: 391e9, Growth: 0.05, GrossPct: 0.46, OpPct: 0.31, NetPct: 0.24, PayoutPct: 0.15, DebtToEq: 1.5, EquityToRv: 0.17},
	"MSFT": {Instrument: models.Instrument{Ticker: "MSFT", Name: "Microsoft Corporation", Exchange: "NASDAQ", Sector: "Technology", Industry: "Software", SharesOutstanding: 7.43e9},
		BasePrice: 375, Vol: 0.22, Drift: 0.12, AvgVolume: 22_000_000,
		Revenue: 245e9, Growth: 0.15, GrossPct: 0.69, OpPct: 0.45, NetPct: 0.36, PayoutPct: 0.25, DebtToEq: 0.3, EquityToRv: 1.1},
	"NVDA": {Instrument: models.Instrument{Ticker: "NVDA", Name: "NVIDIA Corporation", Exchange: "NASDAQ", Sector: "Technology", Industry: "Semiconductors", SharesOutstanding: 24.4e9},
		BasePrice: 48, Vol: 0.48, Drift: 0.30, AvgVolume: 250_000_000,
		Revenue: 130e9, Growth: 0.60, GrossPct: 0.75, OpPct: 0.62, NetPct: 0.55, PayoutPct: 0.01, DebtToEq: 0.15, EquityToRv: 0.6},
	"AMZN": {Instrument: models.Instrument{Ticker: "AMZN", Name: "Amazon.com, Inc.", Exchange: "NASDAQ", Sector: "Consumer Discretionary", Industry: "Internet Retail", SharesOutstanding: 10.6e9},
		BasePrice: 150, Vol: 0.30, Drift: 0.12, AvgVolume: 45_000_000,
		Revenue: 638e9, Growth: 0.11, GrossPct: 0.49, OpPct: 0.11, NetPct: 0.09, DebtToEq: 0.5, EquityToRv: 0.45},
	"GOOGL": {Instrument: models.Instrument{Ticker: "GOOGL", Name: "Alphabet Inc.", Exchange: "NASDAQ", Sector: "Communication Services", Industry: "Internet Content", SharesOutstanding: 12.2e9},
		BasePrice: 140, Vol: 0.28, Drift: 0.12, AvgVolume: 30_000_000,
		Revenue: 350e9, Growth: 0.14, GrossPct: 0.58, OpPct: 0.32, NetPct: 0.29, PayoutPct: 0.07, DebtToEq: 0.1, EquityToRv: 0.93},
	"META": {Instrument: models.Instrument{Ticker: "META", Name: "Meta Platforms, Inc.", Exchange: "NASDAQ", Sector: "Communication Services", Industry: "Internet Content", SharesOutstanding: 2.52e9},
		BasePrice: 350, Vol: 0.35, Drift: 0.15, AvgVolume: 15_000_000,
		Revenue: 165e9, Growth: 0.22, GrossPct: 0.82, OpPct: 0.42, NetPct: 0.38, PayoutPct: 0.08, DebtToEq: 0.3, EquityToRv: 1.1},
	"TSLA": {Instrument: models.Instrument{Ticker: "TSLA", Name: "Tesla, Inc.", Exchange: "NASDAQ", Sector: "Consumer Discretionary", Industry: "Auto Manufacturers", SharesOutstanding: 3.2e9},
		BasePrice: 245, Vol: 0.55, Drift: 0.05, AvgVolume: 95_000_000,
		Revenue: 97e9, Growth: 0.01, GrossPct: 0.18, OpPct: 0.07, NetPct: 0.07, DebtToEq: 0.1, EquityToRv: 0.75},
	"JPM": {Instrument: models.Instrument{Ticker: "JPM", Name: "JPMorgan Chase & Co.", Exchange: "NYSE", Sector: "Financials", Industry: "Banks", SharesOutstanding: 2.8e9},
		BasePrice: 170, Vol: 0.20, Drift: 0.08, AvgVolume: 9_000_000,
		Revenue: 177e9, Growth: 0.07, GrossPct: 0.60, OpPct: 0.40, NetPct: 0.33, PayoutPct: 0.28, DebtToEq: 1.3, EquityToRv: 1.9},
	"SPY": {Instrument: models.Instrument{Ticker: "SPY", Name: "SPDR S&P 500 ETF Trust", Exchange: "NYSE Arca", Sector: "ETF", Industry: "Large Blend", SharesOutstanding: 0.9e9},
		BasePrice: 470, Vol: 0.15, Drift: 0.08, AvgVolume: 70_000_000},
	"QQQ": {Instrument: models.Instrument{Ticker: "QQQ", Name: "Invesco QQQ Trust", Exchange: "NASDAQ", Sector: "ETF", Industry: "Large Growth", SharesOutstanding: 0.6e9},
		BasePrice: 400, Vol: 0.19, Drift: 0.10, AvgVolume: 40_000_000},
	"^GSPC": {Instrument: models.Instrument{Ticker: "^GSPC", Name: "S&P 500", Exchange: "INDEX", IsIndex: true},
		BasePrice: 4700, Vol: 0.15, Drift: 0.08},
	"^NDX": {Instrument: models.Instrument{Ticker: "^NDX", Name: "Nasdaq 100", Exchange: "INDEX", IsIndex: true},
		BasePrice: 16800, Vol: 0.19, Drift: 0.10},
	"^DJI": {Instrument: models.Instrument{Ticker: "^DJI", Name: "Dow Jones Industrial Average", Exchange: "INDEX", IsIndex: true},
		BasePrice: 37500, Vol: 0.13, Drift: 0.06},
	"^VIX": {Instrument: models.Instrument{Ticker: "^VIX", Name: "CBOE Volatility Index", Exchange: "INDEX", IsIndex: true},
		BasePrice: 14, Vol: 0.85, Drift: 0},
}

// overviewTickers are the headline indices shown in the market overview.
var overviewTickers = []string{"^GSPC", "^NDX", "^DJI", "^VIX"}

func lookupProfile(ticker string) (profile, error) {
	p, ok := catalog[utils.NormalizeTicker(ticker)]
	if !ok {
		return profile{}, fmt.Errorf("%w: %s", ErrTickerNotFound, ticker)
	}
	return p, nil
}

// hasStatements reports whether the instrument reports financials.
func (p profile) hasStatements() bool { return p.Revenue > 0 }

// Tickers returns every ticker the synthetic market knows, sorted.
func Tickers() []string {
	out := make([]string, 0, len(catalog))
	for t := range catalog {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}
