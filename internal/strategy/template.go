package strategy

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/seenimoa/marketdesk/internal/pricing"
)

// ErrUnknownKind is returned for a strategy kind with no template.
var ErrUnknownKind = errors.New("strategy: unknown kind")

// Kind names a strategy template.
type Kind string

const (
	LongCall          Kind = "long_call"
	LongPut           Kind = "long_put"
	CoveredCall       Kind = "covered_call"
	ProtectivePut     Kind = "protective_put"
	BullCallSpread    Kind = "bull_call_spread"
	BearPutSpread     Kind = "bear_put_spread"
	LongStraddle      Kind = "long_straddle"
	LongStrangle      Kind = "long_strangle"
	IronCondor        Kind = "iron_condor"
	LongCallButterfly Kind = "long_call_butterfly"
)

// Template is read-only descriptive metadata for a Kind.
type Template struct {
	Kind          Kind   `json:"kind"`
	Name          string `json:"name"`
	Outlook       string `json:"outlook"`
	MaxProfitText string `json:"max_profit"`
	MaxLossText   string `json:"max_loss"`
	Description   string `json:"description"`
}

var templates = []Template{
	{LongCall, "Long Call", "bullish", "Unlimited", "Premium paid",
		"Buy a call to profit from a rise in the underlying with risk limited to the premium."},
	{LongPut, "Long Put", "bearish", "Strike minus premium", "Premium paid",
		"Buy a put to profit from a fall in the underlying."},
	{CoveredCall, "Covered Call", "neutral to mildly bullish", "Strike minus entry plus premium", "Entry price minus premium",
		"Hold 100 shares per contract and sell an out-of-the-money call against them for income."},
	{ProtectivePut, "Protective Put", "bullish with downside protection", "Unlimited", "Entry minus strike plus premium",
		"Hold shares and buy an out-of-the-money put as insurance."},
	{BullCallSpread, "Bull Call Spread", "moderately bullish", "Strike width minus net debit", "Net debit",
		"Buy a lower-strike call and sell a higher-strike call."},
	{BearPutSpread, "Bear Put Spread", "moderately bearish", "Strike width minus net debit", "Net debit",
		"Buy a higher-strike put and sell a lower-strike put."},
	{LongStraddle, "Long Straddle", "volatile", "Unlimited", "Total premium paid",
		"Buy an at-the-money call and put to profit from a large move in either direction."},
	{LongStrangle, "Long Strangle", "volatile", "Unlimited", "Total premium paid",
		"Buy an out-of-the-money call and put; cheaper than a straddle but needs a bigger move."},
	{IronCondor, "Iron Condor", "neutral", "Net credit", "Wing width minus net credit",
		"Sell an out-of-the-money put spread and call spread to collect premium in a range-bound market."},
	{LongCallButterfly, "Long Call Butterfly", "neutral", "Wing width minus net debit", "Net debit",
		"Buy one lower and one upper call, sell two at-the-money calls; profits if the underlying pins the middle strike."},
}

// Templates returns every template in a fixed order.
func Templates() []Template {
	return append([]Template(nil), templates...)
}

// Lookup returns the template for kind.
func Lookup(kind Kind) (Template, bool) {
	for _, t := range templates {
		if t.Kind == kind {
			return t, true
		}
	}
	return Template{}, false
}

// ParseKind accepts "bull_call_spread", "bull-call-spread" or "Bull Call Spread".
func ParseKind(s string) (Kind, error) {
	k := Kind(strings.NewReplacer("-", "_", " ", "_").Replace(strings.ToLower(strings.TrimSpace(s))))
	if _, ok := Lookup(k); !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownKind, s)
	}
	return k, nil
}

// Strategy is a named set of legs. Kind is empty for ad-hoc positions.
type Strategy struct {
	Kind    Kind   `json:"kind,omitempty"`
	Name    string `json:"name"`
	Outlook string `json:"outlook,omitempty"`
	Legs    []Leg  `json:"legs"`
}

// Evaluate is Evaluate over the strategy's legs.
func (s Strategy) Evaluate(currentPrice float64, cfg SweepConfig) (Evaluation, error) {
	return Evaluate(s.Legs, currentPrice, cfg)
}

// BuildParams drive template construction. Zero values take defaults.
type BuildParams struct {
	Spot       float64 `json:"spot"`
	Width      float64 `json:"width,omitempty"`       // strike distance as a fraction of spot
	StrikeStep float64 `json:"strike_step,omitempty"` // strikes round to this increment
	Years      float64 `json:"years,omitempty"`
	Rate       float64 `json:"rate"`
	Vol        float64 `json:"vol,omitempty"`
	Quantity   int     `json:"quantity,omitempty"`
}

// Build defaults.
const (
	DefaultWidth      = 0.05
	DefaultStrikeStep = 1.0
	DefaultYears      = 30.0 / pricing.DaysPerYear
	DefaultVol        = 0.25
)

func (bp BuildParams) withDefaults() BuildParams {
	if bp.Width == 0 {
		bp.Width = DefaultWidth
	}
	if bp.StrikeStep == 0 {
		bp.StrikeStep = DefaultStrikeStep
	}
	if bp.Years == 0 {
		bp.Years = DefaultYears
	}
	if bp.Vol == 0 {
		bp.Vol = DefaultVol
	}
	if bp.Quantity == 0 {
		bp.Quantity = 1
	}
	return bp
}

// Build creates the legs of a template around bp.Spot. Option premiums are
// Black-Scholes prices rounded to the cent.
func Build(kind Kind, bp BuildParams) (Strategy, error) {
	tmpl, ok := Lookup(kind)
	if !ok {
		return Strategy{}, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
	bp = bp.withDefaults()
	switch {
	case !(bp.Spot > 0) || math.IsInf(bp.Spot, 0):
		return Strategy{}, fmt.Errorf("%w: spot must be positive, got %g", pricing.ErrInvalidInput, bp.Spot)
	case !(bp.Width > 0) || bp.Width >= 0.5:
		return Strategy{}, fmt.Errorf("%w: width must be in (0, 0.5), got %g", pricing.ErrInvalidInput, bp.Width)
	case !(bp.StrikeStep > 0):
		return Strategy{}, fmt.Errorf("%w: strike step must be positive, got %g", pricing.ErrInvalidInput, bp.StrikeStep)
	case bp.Quantity < 0:
		return Strategy{}, fmt.Errorf("%w: quantity must be positive, got %d", pricing.ErrInvalidInput, bp.Quantity)
	}

	b := builder{bp: bp}
	atm := b.round(bp.Spot)
	lower := math.Min(b.round(bp.Spot*(1-bp.Width)), atm-bp.StrikeStep)
	upper := math.Max(b.round(bp.Spot*(1+bp.Width)), atm+bp.StrikeStep)
	lower2 := math.Min(b.round(bp.Spot*(1-2*bp.Width)), lower-bp.StrikeStep)
	upper2 := math.Max(b.round(bp.Spot*(1+2*bp.Width)), upper+bp.StrikeStep)
	if lower2 <= 0 {
		return Strategy{}, fmt.Errorf("%w: spot %g too small for strike step %g", pricing.ErrInvalidInput, bp.Spot, bp.StrikeStep)
	}

	q := bp.Quantity
	shares := q * ContractMultiplier
	switch kind {
	case LongCall:
		b.option(Call, Buy, atm, q)
	case LongPut:
		b.option(Put, Buy, atm, q)
	case CoveredCall:
		b.stock(Buy, shares)
		b.option(Call, Sell, upper, q)
	case ProtectivePut:
		b.stock(Buy, shares)
		b.option(Put, Buy, lower, q)
	case BullCallSpread:
		b.option(Call, Buy, atm, q)
		b.option(Call, Sell, upper, q)
	case BearPutSpread:
		b.option(Put, Buy, atm, q)
		b.option(Put, Sell, lower, q)
	case LongStraddle:
		b.option(Call, Buy, atm, q)
		b.option(Put, Buy, atm, q)
	case LongStrangle:
		b.option(Put, Buy, lower, q)
		b.option(Call, Buy, upper, q)
	case IronCondor:
		b.option(Put, Buy, lower2, q)
		b.option(Put, Sell, lower, q)
		b.option(Call, Sell, upper, q)
		b.option(Call, Buy, upper2, q)
	case LongCallButterfly:
		b.option(Call, Buy, lower, q)
		b.option(Call, Sell, atm, 2*q)
		b.option(Call, Buy, upper, q)
	}
	if b.err != nil {
		return Strategy{}, b.err
	}
	return Strategy{Kind: kind, Name: tmpl.Name, Outlook: tmpl.Outlook, Legs: b.legs}, nil
}

type builder struct {
	bp   BuildParams
	legs []Leg
	err  error
}

func (b *builder) round(x float64) float64 {
	return math.Round(x/b.bp.StrikeStep) * b.bp.StrikeStep
}

func (b *builder) stock(action Action, shares int) {
	b.legs = append(b.legs, Leg{Instrument: Stock, Action: action, Quantity: shares, EntryPrice: b.bp.Spot})
}

func (b *builder) option(inst Instrument, action Action, strike float64, qty int) {
	if b.err != nil {
		return
	}
	kind := pricing.Call
	if inst == Put {
		kind = pricing.Put
	}
	premium, err := pricing.Price(pricing.Params{
		Spot:   b.bp.Spot,
		Strike: strike,
		Years:  b.bp.Years,
		Rate:   b.bp.Rate,
		Vol:    b.bp.Vol,
		Kind:   kind,
	})
	if err != nil {
		b.err = fmt.Errorf("price %s %g: %w", inst, strike, err)
		return
	}
	b.legs = append(b.legs, Leg{
		Instrument: inst,
		Action:     action,
		Quantity:   qty,
		Strike:     strike,
		Premium:    math.Round(premium*100) / 100,
	})
}
