package portfolio

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/montanaflynn/stats"

	"github.com/seenimoa/marketdesk/pkg/models"
	"github.com/seenimoa/marketdesk/pkg/utils"
)

// tradingDays annualizes daily statistics.
const tradingDays = 252

// ErrInsufficientHistory is returned when fewer than two valuation points exist.
var ErrInsufficientHistory = errors.New("insufficient history")

// HistorySource supplies daily bars. datasource.Market satisfies it.
type HistorySource interface {
	GetHistoricalData(ctx context.Context, ticker string, from, to time.Time, tf models.Timeframe) ([]models.OHLCV, error)
}

// ValuePoint is the book's value at one close.
type ValuePoint struct {
	Date  time.Time `json:"date"`
	Value float64   `json:"value"`
}

// ValueHistory replays the current lots over daily closes between from and
// to. Only sessions where every held ticker has a bar are included.
func (b *Book) ValueHistory(ctx context.Context, src HistorySource, from, to time.Time) ([]ValuePoint, error) {
	holdings := b.List()
	if len(holdings) == 0 {
		return nil, nil
	}

	shares := make(map[string]float64)
	for _, h := range holdings {
		shares[h.Ticker] += h.Shares.InexactFloat64()
	}

	totals := make(map[string]float64)
	counts := make(map[string]int)
	stamps := make(map[string]time.Time)
	for ticker, qty := range shares {
		bars, err := src.GetHistoricalData(ctx, ticker, from, to, models.Timeframe1Day)
		if err != nil {
			return nil, fmt.Errorf("history %s: %w", ticker, err)
		}
		for _, bar := range bars {
			day := utils.FormatDateET(bar.Timestamp)
			totals[day] += qty * bar.Close
			counts[day]++
			stamps[day] = bar.Timestamp
		}
	}

	out := make([]ValuePoint, 0, len(totals))
	for day, v := range totals {
		if counts[day] == len(shares) {
			out = append(out, ValuePoint{Date: stamps[day], Value: math.Round(v*100) / 100})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, nil
}

// ════════════════════════════════════════════════════════════════════
// Performance Metrics
// ════════════════════════════════════════════════════════════════════

// Performance summarizes a value curve. Percentages are in percent.
type Performance struct {
	From             time.Time `json:"from"`
	To               time.Time `json:"to"`
	Sessions         int       `json:"sessions"`
	StartValue       float64   `json:"start_value"`
	EndValue         float64   `json:"end_value"`
	TotalReturn      float64   `json:"total_return_pct"`
	AnnualizedReturn float64   `json:"annualized_return_pct"`
	Volatility       float64   `json:"volatility_pct"` // annualized
	SharpeRatio      float64   `json:"sharpe_ratio"`
	SortinoRatio     float64   `json:"sortino_ratio"`
	MaxDrawdown      float64   `json:"max_drawdown"`
	MaxDrawdownPct   float64   `json:"max_drawdown_pct"`
	BestDay          float64   `json:"best_day_pct"`
	WorstDay         float64   `json:"worst_day_pct"`
}

// ComputePerformance derives return and risk statistics from a value curve.
// riskFreeRate is annual (0.045 for 4.5%).
func ComputePerformance(curve []ValuePoint, riskFreeRate float64) (*Performance, error) {
	if len(curve) < 2 {
		return nil, fmt.Errorf("%w: %d points", ErrInsufficientHistory, len(curve))
	}
	first, last := curve[0], curve[len(curve)-1]
	if first.Value <= 0 {
		return nil, fmt.Errorf("%w: starting value %.2f", ErrInsufficientHistory, first.Value)
	}

	p := &Performance{
		From:        first.Date,
		To:          last.Date,
		Sessions:    len(curve),
		StartValue:  first.Value,
		EndValue:    last.Value,
		TotalReturn: (last.Value/first.Value - 1) * 100,
	}

	computeAnnualized(p)
	computeDrawdown(p, curve)

	returns := dailyReturns(curve)
	if err := computeRisk(p, returns, riskFreeRate); err != nil {
		return nil, err
	}
	return p, nil
}

func computeAnnualized(p *Performance) {
	years := p.To.Sub(p.From).Hours() / 24 / 365.25
	if years <= 0 || p.EndValue <= 0 {
		return
	}
	p.AnnualizedReturn = (math.Pow(p.EndValue/p.StartValue, 1/years) - 1) * 100
}

// ────────────────────────────────────────────────────────────────────
// Maximum Drawdown
// ────────────────────────────────────────────────────────────────────

func computeDrawdown(p *Performance, curve []ValuePoint) {
	peak := curve[0].Value
	for _, pt := range curve {
		peak = math.Max(peak, pt.Value)
		dd := peak - pt.Value
		p.MaxDrawdown = math.Max(p.MaxDrawdown, dd)
		if peak > 0 {
			p.MaxDrawdownPct = math.Max(p.MaxDrawdownPct, dd/peak*100)
		}
	}
}

// ────────────────────────────────────────────────────────────────────
// Volatility, Sharpe and Sortino (annualized)
// ────────────────────────────────────────────────────────────────────

func computeRisk(p *Performance, returns stats.Float64Data, riskFreeRate float64) error {
	best, err := returns.Max()
	if err != nil {
		return fmt.Errorf("best day: %w", err)
	}
	worst, _ := returns.Min()
	p.BestDay, p.WorstDay = best*100, worst*100

	if len(returns) < 2 {
		return nil
	}
	sd, err := returns.StandardDeviationSample()
	if err != nil {
		return fmt.Errorf("volatility: %w", err)
	}
	p.Volatility = sd * math.Sqrt(tradingDays) * 100

	dailyRf := riskFreeRate / tradingDays
	excess := make(stats.Float64Data, len(returns))
	var downsideSq float64
	for i, r := range returns {
		excess[i] = r - dailyRf
		if excess[i] < 0 {
			downsideSq += excess[i] * excess[i]
		}
	}
	meanExcess, err := excess.Mean()
	if err != nil {
		return fmt.Errorf("mean return: %w", err)
	}

	if sd > 0 {
		p.SharpeRatio = meanExcess / sd * math.Sqrt(tradingDays)
	}
	if downside := math.Sqrt(downsideSq / float64(len(excess))); downside > 0 {
		p.SortinoRatio = meanExcess / downside * math.Sqrt(tradingDays)
	}
	return nil
}

// dailyReturns computes simple returns between consecutive points.
func dailyReturns(curve []ValuePoint) stats.Float64Data {
	out := make(stats.Float64Data, 0, len(curve)-1)
	for i := 1; i < len(curve); i++ {
		if prev := curve[i-1].Value; prev > 0 {
			out = append(out, curve[i].Value/prev-1)
		}
	}
	return out
}
