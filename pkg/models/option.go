package models

import "time"

// Option types.
const (
	OptionCall = "call"
	OptionPut  = "put"
)

// OptionChain represents the option chain for a ticker on one expiry date.
type OptionChain struct {
	Ticker      string           `json:"ticker"`
	SpotPrice   float64          `json:"spot_price"`
	ExpiryDate  string           `json:"expiry_date"`
	Expiries    []string         `json:"expiries"` // all listed expiry dates
	Contracts   []OptionContract `json:"contracts"`
	TotalCallOI int64            `json:"total_call_oi"`
	TotalPutOI  int64            `json:"total_put_oi"`
	PCR         float64          `json:"pcr"` // Put-Call Ratio by open interest
	MaxPain     float64          `json:"max_pain"`
	FetchedAt   time.Time        `json:"fetched_at"`
}

// OptionContract represents a single call or put at a strike.
type OptionContract struct {
	StrikePrice float64 `json:"strike_price"`
	OptionType  string  `json:"option_type"` // OptionCall or OptionPut
	ExpiryDate  string  `json:"expiry_date"`
	LTP         float64 `json:"ltp"` // Last Traded Price
	Change      float64 `json:"change"`
	BidPrice    float64 `json:"bid_price"`
	AskPrice    float64 `json:"ask_price"`
	Volume      int64   `json:"volume"`
	OI          int64   `json:"oi"` // Open Interest
	OIChange    int64   `json:"oi_change"`
	IV          float64 `json:"iv"` // Implied Volatility, percent
	// Greeks (computed)
	Delta float64 `json:"delta,omitempty"`
	Gamma float64 `json:"gamma,omitempty"`
	Theta float64 `json:"theta,omitempty"`
	Vega  float64 `json:"vega,omitempty"`
}

// Mid is the bid/ask midpoint, or LTP when there is no two-sided market.
func (c OptionContract) Mid() float64 {
	if c.BidPrice > 0 && c.AskPrice >= c.BidPrice {
		return (c.BidPrice + c.AskPrice) / 2
	}
	return c.LTP
}
