package derivatives

import (
	"sort"

	"github.com/seenimoa/marketdesk/pkg/models"
)

// PCRAnalysis holds put-call ratio analysis results.
type PCRAnalysis struct {
	PCR            float64 `json:"pcr"`
	PCRByVolume    float64 `json:"pcr_by_volume"`
	Signal         string  `json:"signal"`
	Interpretation string  `json:"interpretation"`
}

// ComputePCR calculates PCR from option chain data.
func ComputePCR(oc *models.OptionChain) PCRAnalysis {
	if oc == nil || len(oc.Contracts) == 0 {
		return PCRAnalysis{}
	}

	var totalPutOI, totalCallOI int64
	var totalPutVol, totalCallVol int64

	for _, c := range oc.Contracts {
		switch c.OptionType {
		case models.OptionPut:
			totalPutOI += c.OI
			totalPutVol += c.Volume
		case models.OptionCall:
			totalCallOI += c.OI
			totalCallVol += c.Volume
		}
	}

	a := PCRAnalysis{}
	if totalCallOI > 0 {
		a.PCR = float64(totalPutOI) / float64(totalCallOI)
	}
	if totalCallVol > 0 {
		a.PCRByVolume = float64(totalPutVol) / float64(totalCallVol)
	}

	switch {
	case a.PCR > 1.5:
		a.Signal = "strongly_bullish"
		a.Interpretation = "Very high PCR: heavy put writing suggests strong support"
	case a.PCR > 1.2:
		a.Signal = "bullish"
		a.Interpretation = "High PCR: more puts than calls open, a bullish undertone"
	case a.PCR > 0.8:
		a.Signal = "neutral"
		a.Interpretation = "PCR in normal range, no clear directional bias"
	case a.PCR > 0.5:
		a.Signal = "bearish"
		a.Interpretation = "Low PCR: call-heavy positioning, bearish sentiment"
	default:
		a.Signal = "strongly_bearish"
		a.Interpretation = "Very low PCR: excessive call buying, potential top formation"
	}

	return a
}

// StrikeBuildup represents the session's OI change at one strike.
type StrikeBuildup struct {
	Strike     float64 `json:"strike"`
	OptionType string  `json:"option_type"`
	OI         int64   `json:"oi"`
	OIChange   int64   `json:"oi_change"`
}

// TopOIChanges returns the n largest OI additions and reductions, largest
// magnitude first.
func TopOIChanges(oc *models.OptionChain, n int) (added, shed []StrikeBuildup) {
	if oc == nil {
		return nil, nil
	}
	for _, c := range oc.Contracts {
		sb := StrikeBuildup{Strike: c.StrikePrice, OptionType: c.OptionType, OI: c.OI, OIChange: c.OIChange}
		switch {
		case c.OIChange > 0:
			added = append(added, sb)
		case c.OIChange < 0:
			shed = append(shed, sb)
		}
	}
	sort.Slice(added, func(i, j int) bool { return added[i].OIChange > added[j].OIChange })
	sort.Slice(shed, func(i, j int) bool { return shed[i].OIChange < shed[j].OIChange })
	return capBuildups(added, n), capBuildups(shed, n)
}

func capBuildups(b []StrikeBuildup, max int) []StrikeBuildup {
	if len(b) > max {
		return b[:max]
	}
	return b
}
