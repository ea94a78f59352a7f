package derivatives

import (
	"errors"
	"fmt"
	"math"

	"github.com/seenimoa/marketdesk/internal/strategy"
	"github.com/seenimoa/marketdesk/pkg/models"
)

// ErrEmptyChain is returned when a chain has no contracts or no spot price.
var ErrEmptyChain = errors.New("derivatives: empty option chain")

// Premium sources.
const (
	PremiumChain = "chain" // every option leg priced at the chain mid
	PremiumModel = "model" // at least one leg fell back to Black-Scholes
)

// Suggestion is a template strategy sized to the chain and evaluated at expiry.
type Suggestion struct {
	Strategy      strategy.Strategy   `json:"strategy"`
	Evaluation    strategy.Evaluation `json:"evaluation"`
	PremiumSource string              `json:"premium_source"`
	Rationale     string              `json:"rationale"`
}

var suggestionsBySentiment = map[string][]strategy.Kind{
	SentimentBullish: {strategy.BullCallSpread, strategy.LongCall, strategy.CoveredCall},
	SentimentBearish: {strategy.BearPutSpread, strategy.LongPut, strategy.ProtectivePut},
	SentimentNeutral: {strategy.IronCondor, strategy.LongCallButterfly, strategy.CoveredCall},
}

// SuggestStrategies builds the templates that fit the chain's sentiment, plus
// a long straddle, on the chain's listed strikes. Premiums are chain mid
// prices where the contract is listed and quoted. years and rate drive the
// fallback model price and the probability of profit.
func SuggestStrategies(oc *models.OptionChain, years, rate float64) ([]Suggestion, error) {
	if oc == nil || len(oc.Contracts) == 0 || !(oc.SpotPrice > 0) {
		return nil, ErrEmptyChain
	}

	a := AnalyzeOptionChain(oc)
	vol := a.ATMIV / 100
	if !(vol > 0) {
		vol = strategy.DefaultVol
	}
	step := strikeStep(oc.Contracts)
	if step <= 0 {
		step = strategy.DefaultStrikeStep
	}
	// At least one listed strike between wings.
	width := math.Max(step/oc.SpotPrice, strategy.DefaultWidth)

	kinds := append([]strategy.Kind{}, suggestionsBySentiment[a.Sentiment]...)
	kinds = append(kinds, strategy.LongStraddle)

	out := make([]Suggestion, 0, len(kinds))
	for _, kind := range kinds {
		s, err := strategy.Build(kind, strategy.BuildParams{
			Spot:       oc.SpotPrice,
			Width:      width,
			StrikeStep: step,
			Years:      years,
			Rate:       rate,
			Vol:        vol,
		})
		if err != nil {
			return nil, fmt.Errorf("build %s: %w", kind, err)
		}

		source := PremiumChain
		for i, leg := range s.Legs {
			if leg.Instrument == strategy.Stock {
				continue
			}
			c, ok := findContract(oc.Contracts, string(leg.Instrument), leg.Strike)
			if !ok || c.Mid() <= 0 {
				source = PremiumModel
				continue
			}
			s.Legs[i].Premium = math.Round(c.Mid()*100) / 100
		}

		ev, err := strategy.EvaluateWithProbability(s.Legs, oc.SpotPrice, strategy.DefaultSweep(), years, rate, vol)
		if err != nil {
			return nil, fmt.Errorf("evaluate %s: %w", kind, err)
		}

		rationale := fmt.Sprintf("%s outlook; chain sentiment %s (PCR %.2f)", s.Outlook, a.Sentiment, a.PCR.PCR)
		if kind == strategy.LongStraddle && a.ExpectedMovePct > 0 {
			rationale = fmt.Sprintf("straddle prices a %.1f%% move by %s", a.ExpectedMovePct, oc.ExpiryDate)
		}
		out = append(out, Suggestion{Strategy: s, Evaluation: ev, PremiumSource: source, Rationale: rationale})
	}
	return out, nil
}
