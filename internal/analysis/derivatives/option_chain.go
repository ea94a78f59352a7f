// Package derivatives derives positioning and volatility insights from an
// option chain and suggests template strategies priced off it.
package derivatives

import (
	"math"
	"sort"

	"github.com/seenimoa/marketdesk/pkg/models"
)

// OptionChainAnalysis holds derived insights from the option chain.
type OptionChainAnalysis struct {
	Ticker          string       `json:"ticker"`
	ExpiryDate      string       `json:"expiry_date"`
	SpotPrice       float64      `json:"spot_price"`
	PCR             PCRAnalysis  `json:"pcr"`
	MaxPain         float64      `json:"max_pain"`
	ATMStrike       float64      `json:"atm_strike"`
	ATMIV           float64      `json:"atm_iv"`            // average of ATM call and put IV, percent
	IVSkew          float64      `json:"iv_skew"`           // ATM put IV minus call IV
	ExpectedMove    float64      `json:"expected_move"`     // ATM straddle mid price
	ExpectedMovePct float64      `json:"expected_move_pct"` // straddle as % of spot
	OISRLevels      OISupportRes `json:"oi_sr_levels"`
	Sentiment       string       `json:"sentiment"` // "bullish", "bearish", "neutral"
}

// OISupportRes contains OI-based support and resistance levels.
type OISupportRes struct {
	MaxPutOIStrike  float64   `json:"max_put_oi_strike"`  // strongest support
	MaxCallOIStrike float64   `json:"max_call_oi_strike"` // strongest resistance
	TopPutStrikes   []float64 `json:"top_put_strikes"`    // top 3 support levels
	TopCallStrikes  []float64 `json:"top_call_strikes"`   // top 3 resistance levels
}

// Sentiment labels.
const (
	SentimentBullish = "bullish"
	SentimentBearish = "bearish"
	SentimentNeutral = "neutral"
)

// AnalyzeOptionChain performs comprehensive analysis on an option chain.
func AnalyzeOptionChain(oc *models.OptionChain) OptionChainAnalysis {
	if oc == nil || len(oc.Contracts) == 0 {
		return OptionChainAnalysis{}
	}

	a := OptionChainAnalysis{
		Ticker:     oc.Ticker,
		ExpiryDate: oc.ExpiryDate,
		SpotPrice:  oc.SpotPrice,
		PCR:        ComputePCR(oc),
		MaxPain:    oc.MaxPain,
	}
	if a.MaxPain == 0 {
		a.MaxPain = ComputeMaxPain(oc.Contracts)
	}

	a.ATMStrike = findATMStrike(oc.Contracts, oc.SpotPrice)

	var atmCall, atmPut *models.OptionContract
	for i := range oc.Contracts {
		c := &oc.Contracts[i]
		if c.StrikePrice != a.ATMStrike {
			continue
		}
		switch c.OptionType {
		case models.OptionCall:
			atmCall = c
		case models.OptionPut:
			atmPut = c
		}
	}
	if atmCall != nil && atmPut != nil {
		if atmCall.IV > 0 && atmPut.IV > 0 {
			a.ATMIV = (atmCall.IV + atmPut.IV) / 2
			a.IVSkew = atmPut.IV - atmCall.IV
		}
		a.ExpectedMove = atmCall.Mid() + atmPut.Mid()
		if oc.SpotPrice > 0 {
			a.ExpectedMovePct = a.ExpectedMove / oc.SpotPrice * 100
		}
	}

	a.OISRLevels = computeOISR(oc.Contracts)

	// Contrarian reading: heavy put open interest is sold protection.
	switch {
	case a.PCR.PCR > 1.2:
		a.Sentiment = SentimentBullish
	case a.PCR.PCR < 0.7:
		a.Sentiment = SentimentBearish
	default:
		a.Sentiment = SentimentNeutral
	}

	return a
}

// ComputeMaxPain returns the expiry price at which option holders' aggregate
// intrinsic value is smallest.
func ComputeMaxPain(contracts []models.OptionContract) float64 {
	if len(contracts) == 0 {
		return 0
	}

	callOI := map[float64]int64{}
	putOI := map[float64]int64{}
	for _, c := range contracts {
		switch c.OptionType {
		case models.OptionCall:
			callOI[c.StrikePrice] += c.OI
		case models.OptionPut:
			putOI[c.StrikePrice] += c.OI
		}
	}
	strikes := uniqueStrikes(contracts)

	minPain := math.MaxFloat64
	maxPainStrike := 0.0
	for _, expiry := range strikes {
		totalPain := 0.0
		for _, s := range strikes {
			if s < expiry {
				totalPain += (expiry - s) * float64(callOI[s])
			}
			if s > expiry {
				totalPain += (s - expiry) * float64(putOI[s])
			}
		}
		if totalPain < minPain {
			minPain = totalPain
			maxPainStrike = expiry
		}
	}

	return maxPainStrike
}

// --- helpers ---

func uniqueStrikes(contracts []models.OptionContract) []float64 {
	seen := map[float64]bool{}
	var strikes []float64
	for _, c := range contracts {
		if !seen[c.StrikePrice] {
			seen[c.StrikePrice] = true
			strikes = append(strikes, c.StrikePrice)
		}
	}
	sort.Float64s(strikes)
	return strikes
}

// strikeStep is the smallest gap between listed strikes.
func strikeStep(contracts []models.OptionContract) float64 {
	strikes := uniqueStrikes(contracts)
	step := 0.0
	for i := 1; i < len(strikes); i++ {
		if d := strikes[i] - strikes[i-1]; step == 0 || d < step {
			step = d
		}
	}
	return step
}

func findATMStrike(contracts []models.OptionContract, spot float64) float64 {
	if len(contracts) == 0 || spot <= 0 {
		return 0
	}

	closest := contracts[0].StrikePrice
	minDiff := math.Abs(closest - spot)

	for _, c := range contracts {
		diff := math.Abs(c.StrikePrice - spot)
		if diff < minDiff {
			minDiff = diff
			closest = c.StrikePrice
		}
	}

	return closest
}

func findContract(contracts []models.OptionContract, optType string, strike float64) (models.OptionContract, bool) {
	for _, c := range contracts {
		if c.OptionType == optType && c.StrikePrice == strike {
			return c, true
		}
	}
	return models.OptionContract{}, false
}

type oiEntry struct {
	strike float64
	oi     int64
}

func computeOISR(contracts []models.OptionContract) OISupportRes {
	callMap := map[float64]int64{}
	putMap := map[float64]int64{}
	for _, c := range contracts {
		switch c.OptionType {
		case models.OptionCall:
			callMap[c.StrikePrice] += c.OI
		case models.OptionPut:
			putMap[c.StrikePrice] += c.OI
		}
	}

	calls := rankOI(callMap)
	puts := rankOI(putMap)

	sr := OISupportRes{}
	if len(calls) > 0 {
		sr.MaxCallOIStrike = calls[0].strike
		for i := 0; i < 3 && i < len(calls); i++ {
			sr.TopCallStrikes = append(sr.TopCallStrikes, calls[i].strike)
		}
	}
	if len(puts) > 0 {
		sr.MaxPutOIStrike = puts[0].strike
		for i := 0; i < 3 && i < len(puts); i++ {
			sr.TopPutStrikes = append(sr.TopPutStrikes, puts[i].strike)
		}
	}
	return sr
}

// rankOI sorts by OI descending, ties broken by strike.
func rankOI(m map[float64]int64) []oiEntry {
	entries := make([]oiEntry, 0, len(m))
	for s, oi := range m {
		entries = append(entries, oiEntry{s, oi})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].oi != entries[j].oi {
			return entries[i].oi > entries[j].oi
		}
		return entries[i].strike < entries[j].strike
	})
	return entries
}
