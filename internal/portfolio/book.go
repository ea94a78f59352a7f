// Package portfolio keeps an in-memory book of equity holdings and values it
// against live prices.
package portfolio

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/seenimoa/marketdesk/pkg/utils"
)

var (
	// ErrInvalidHolding is returned for a blank ticker, non-positive share
	// count or negative cost basis.
	ErrInvalidHolding = errors.New("invalid holding")
	// ErrHoldingNotFound is returned when no holding has the given ID.
	ErrHoldingNotFound = errors.New("holding not found")
)

// PriceSource supplies the current price of a ticker.
// datasource.Market and datasource.StaticPrices satisfy it.
type PriceSource interface {
	Spot(ctx context.Context, ticker string) (float64, error)
}

// Holding is one purchase lot. Lots of the same ticker are kept separately
// so each can be removed by ID.
type Holding struct {
	ID        uuid.UUID       `json:"id"`
	Ticker    string          `json:"ticker"`
	Shares    decimal.Decimal `json:"shares"`
	CostBasis decimal.Decimal `json:"cost_basis"` // per share
	AddedAt   time.Time       `json:"added_at"`
}

// Cost is the amount paid for the lot.
func (h Holding) Cost() decimal.Decimal { return h.Shares.Mul(h.CostBasis) }

// Book is a concurrency-safe set of holdings.
type Book struct {
	mu       sync.RWMutex
	holdings map[uuid.UUID]Holding
	now      func() time.Time
}

// NewBook creates an empty book.
func NewBook() *Book {
	return &Book{
		holdings: make(map[uuid.UUID]Holding),
		now:      time.Now,
	}
}

// Add records a new lot and returns it with its assigned ID.
func (b *Book) Add(ticker string, shares, costBasis decimal.Decimal) (Holding, error) {
	symbol := utils.NormalizeTicker(ticker)
	switch {
	case symbol == "":
		return Holding{}, fmt.Errorf("%w: ticker is required", ErrInvalidHolding)
	case !shares.IsPositive():
		return Holding{}, fmt.Errorf("%w: shares must be positive, got %s", ErrInvalidHolding, shares)
	case costBasis.IsNegative():
		return Holding{}, fmt.Errorf("%w: cost basis must not be negative, got %s", ErrInvalidHolding, costBasis)
	}

	h := Holding{
		ID:        uuid.New(),
		Ticker:    symbol,
		Shares:    shares,
		CostBasis: costBasis,
		AddedAt:   b.now(),
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.holdings[h.ID] = h
	return h, nil
}

// Remove deletes the lot with the given ID.
func (b *Book) Remove(id uuid.UUID) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.holdings[id]; !ok {
		return fmt.Errorf("%w: %s", ErrHoldingNotFound, id)
	}
	delete(b.holdings, id)
	return nil
}

// List returns all lots, oldest first.
func (b *Book) List() []Holding {
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make([]Holding, 0, len(b.holdings))
	for _, h := range b.holdings {
		out = append(out, h)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].AddedAt.Equal(out[j].AddedAt) {
			return out[i].AddedAt.Before(out[j].AddedAt)
		}
		if out[i].Ticker != out[j].Ticker {
			return out[i].Ticker < out[j].Ticker
		}
		return out[i].ID.String() < out[j].ID.String()
	})
	return out
}

// Len returns the number of lots.
func (b *Book) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.holdings)
}

// Tickers returns the distinct tickers held, sorted.
func (b *Book) Tickers() []string {
	seen := make(map[string]struct{})
	for _, h := range b.List() {
		seen[h.Ticker] = struct{}{}
	}
	out := make([]string, 0, len(seen))
	for t := range seen {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// ════════════════════════════════════════════════════════════════════
// Valuation
// ════════════════════════════════════════════════════════════════════

// Position is a lot marked to market.
type Position struct {
	Holding
	Price         decimal.Decimal `json:"price"`
	MarketValue   decimal.Decimal `json:"market_value"`
	UnrealizedPnL decimal.Decimal `json:"unrealized_pnl"`
	UnrealizedPct float64         `json:"unrealized_pct"`
	Weight        float64         `json:"weight"` // % of book market value
}

// Snapshot is the whole book marked to market.
type Snapshot struct {
	Positions     []Position      `json:"positions"`
	Cost          decimal.Decimal `json:"cost"`
	MarketValue   decimal.Decimal `json:"market_value"`
	UnrealizedPnL decimal.Decimal `json:"unrealized_pnl"`
	UnrealizedPct float64         `json:"unrealized_pct"`
	AsOf          time.Time       `json:"as_of"`
}

// Value prices every lot once per ticker and returns the marked book.
// Money amounts are rounded to the cent.
func (b *Book) Value(ctx context.Context, prices PriceSource) (*Snapshot, error) {
	holdings := b.List()

	quotes := make(map[string]decimal.Decimal)
	for _, h := range holdings {
		if _, ok := quotes[h.Ticker]; ok {
			continue
		}
		p, err := prices.Spot(ctx, h.Ticker)
		if err != nil {
			return nil, fmt.Errorf("price %s: %w", h.Ticker, err)
		}
		quotes[h.Ticker] = decimal.NewFromFloat(p)
	}

	snap := &Snapshot{
		Positions: make([]Position, 0, len(holdings)),
		AsOf:      b.now(),
	}
	for _, h := range holdings {
		price := quotes[h.Ticker]
		mv := h.Shares.Mul(price)
		cost := h.Cost()
		pos := Position{
			Holding:       h,
			Price:         price,
			MarketValue:   mv.Round(2),
			UnrealizedPnL: mv.Sub(cost).Round(2),
			UnrealizedPct: pct(mv.Sub(cost), cost),
		}
		snap.Cost = snap.Cost.Add(cost)
		snap.MarketValue = snap.MarketValue.Add(mv)
		snap.Positions = append(snap.Positions, pos)
	}

	for i := range snap.Positions {
		p := &snap.Positions[i]
		p.Weight = pct(p.Shares.Mul(p.Price), snap.MarketValue)
	}
	pnl := snap.MarketValue.Sub(snap.Cost)
	snap.UnrealizedPct = pct(pnl, snap.Cost)
	snap.UnrealizedPnL = pnl.Round(2)
	snap.Cost = snap.Cost.Round(2)
	snap.MarketValue = snap.MarketValue.Round(2)
	return snap, nil
}

// pct returns num/den in percent, rounded to two decimals, or 0 when den is 0.
func pct(num, den decimal.Decimal) float64 {
	if den.IsZero() {
		return 0
	}
	return num.Div(den).Mul(decimal.NewFromInt(100)).Round(2).InexactFloat64()
}

// demoHoldings seed a fresh book for demos.
var demoHoldings = []struct {
	ticker       string
	shares, cost string
}{
	{"AAPL", "50", "172.40"},
	{"MSFT", "20", "381.15"},
	{"NVDA", "120", "44.80"},
	{"JPM", "30", "165.00"},
	{"SPY", "15", "468.25"},
}

// SeedDemo adds a small sample portfolio.
func (b *Book) SeedDemo() {
	for _, d := range demoHoldings {
		_, _ = b.Add(d.ticker, decimal.RequireFromString(d.shares), decimal.RequireFromString(d.cost))
	}
}
