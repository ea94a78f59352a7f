package datasource

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/seenimoa/marketdesk/internal/analysis/derivatives"
	"github.com/seenimoa/marketdesk/internal/pricing"
	"github.com/seenimoa/marketdesk/pkg/models"
	"github.com/seenimoa/marketdesk/pkg/utils"
)

// Expiries lists the monthly expiries the synthetic chain quotes, nearest first.
func (m *Market) Expiries() []time.Time {
	return utils.MonthlyExpiries(m.Now(), m.expiryCount)
}

// GetOptionChain prices a chain of calls and puts around the current spot
// with Black-Scholes on a skewed volatility smile. OI and volume are
// synthetic but stable for a given seed, expiry and day.
func (m *Market) GetOptionChain(ctx context.Context, ticker string, expiry string) (*models.OptionChain, error) {
	p, err := lookupProfile(ticker)
	if err != nil {
		return nil, err
	}
	if p.Ticker == "^VIX" {
		return nil, fmt.Errorf("%w: option chain for %s", ErrNotSupported, p.Ticker)
	}

	now := m.Now()
	expiries := m.Expiries()
	listed := make([]string, len(expiries))
	for i, e := range expiries {
		listed[i] = utils.FormatDateET(e)
	}

	idx := 0
	if expiry != "" {
		idx = -1
		for i, s := range listed {
			if s == expiry {
				idx = i
			}
		}
		if idx < 0 {
			return nil, fmt.Errorf("%w: %s %s (listed: %v)", ErrExpiryNotListed, p.Ticker, expiry, listed)
		}
	}

	q, err := m.GetQuote(ctx, p.Ticker)
	if err != nil {
		return nil, err
	}
	spot := q.LastPrice
	years := pricing.YearsToExpiry(now, expiries[idx])

	oc := &models.OptionChain{
		Ticker:     p.Ticker,
		SpotPrice:  spot,
		ExpiryDate: listed[idx],
		Expiries:   listed,
		FetchedAt:  now,
	}

	step := strikeIncrement(spot)
	atm := math.Round(spot/step) * step
	for i := -m.strikeCount; i <= m.strikeCount; i++ {
		strike := atm + float64(i)*step
		if strike <= 0 {
			continue
		}
		r := m.rng(p.Ticker+listed[idx], streamChain, dayIndex(now), uint64(i+m.strikeCount))
		for _, kind := range []pricing.Kind{pricing.Call, pricing.Put} {
			c, err := m.contract(p, q, kind, strike, years, r.Float64(), r.NormFloat64())
			if err != nil {
				return nil, fmt.Errorf("price %s %s %g: %w", p.Ticker, kind, strike, err)
			}
			c.ExpiryDate = listed[idx]
			oc.Contracts = append(oc.Contracts, c)
			if kind == pricing.Call {
				oc.TotalCallOI += c.OI
			} else {
				oc.TotalPutOI += c.OI
			}
		}
	}

	if oc.TotalCallOI > 0 {
		oc.PCR = math.Round(float64(oc.TotalPutOI)/float64(oc.TotalCallOI)*100) / 100
	}
	oc.MaxPain = derivatives.ComputeMaxPain(oc.Contracts)
	return oc, nil
}

// contract prices one option. u is uniform in [0,1) and z standard normal;
// both drive the synthetic positioning.
func (m *Market) contract(p profile, q *models.Quote, kind pricing.Kind, strike, years, u, z float64) (models.OptionContract, error) {
	spot := q.LastPrice
	vol := smileVol(p.Vol, spot, strike, years)
	params := pricing.Params{Spot: spot, Strike: strike, Years: years, Rate: m.rate, Vol: vol, Kind: kind}

	price, err := pricing.Price(params)
	if err != nil {
		return models.OptionContract{}, err
	}
	g, err := pricing.ComputeGreeks(params)
	if err != nil {
		return models.OptionContract{}, err
	}

	moneyness := math.Log(strike / spot)
	oi := 25000 * math.Exp(-6*math.Abs(moneyness)) * (0.5 + u)
	// Puts cluster below spot, calls above.
	if (kind == pricing.Put && moneyness < 0) || (kind == pricing.Call && moneyness > 0) {
		oi *= 1.4
	}

	half := math.Max(0.01, 0.015*price) / 2
	return models.OptionContract{
		StrikePrice: strike,
		OptionType:  string(kind),
		LTP:         round2(price),
		Change:      round2(g.Delta * q.Change),
		BidPrice:    round2(math.Max(0, price-half)),
		AskPrice:    round2(price + half),
		Volume:      int64(oi * (0.1 + 0.3*u)),
		OI:          int64(oi),
		OIChange:    int64(oi * 0.08 * z),
		IV:          round2(vol * 100),
		Delta:       round4(g.Delta),
		Gamma:       round4(g.Gamma),
		Theta:       round4(g.Theta),
		Vega:        round4(g.Vega),
	}, nil
}

// smileVol skews volatility up for low strikes and adds curvature that
// flattens with time to expiry.
func smileVol(base, spot, strike, years float64) float64 {
	m := math.Log(strike/spot) / math.Sqrt(math.Max(years, 1.0/pricing.DaysPerYear))
	v := base * (1 - 0.12*m + 0.04*m*m)
	return math.Min(math.Max(v, 0.05), pricing.MaxVol)
}

// strikeIncrement follows listed-option conventions for the price level.
func strikeIncrement(spot float64) float64 {
	switch {
	case spot < 25:
		return 0.5
	case spot < 100:
		return 1
	case spot < 250:
		return 2.5
	case spot < 1000:
		return 5
	case spot < 5000:
		return 25
	default:
		return 100
	}
}

func round4(x float64) float64 { return math.Round(x*1e4) / 1e4 }
