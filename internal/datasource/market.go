package datasource

import (
	"context"
	"fmt"
	"hash/fnv"
	"math"
	"math/rand/v2"
	"time"

	"github.com/seenimoa/marketdesk/internal/config"
	"github.com/seenimoa/marketdesk/internal/infra"
	"github.com/seenimoa/marketdesk/pkg/models"
	"github.com/seenimoa/marketdesk/pkg/utils"
)

// anchorDate is the first synthetic session; profile base prices apply to
// its previous close.
var anchorDate = time.Date(2024, time.January, 2, 0, 0, 0, 0, utils.Eastern)

const tradingDaysPerYear = 252

// rng stream tags, so different uses of the same day never share draws.
const (
	streamBar uint64 = iota + 1
	streamTick
	streamChain
	streamFinancials
)

// Market is a deterministic synthetic market. Every price is a pure function
// of the seed, the ticker and the clock, so two Markets with the same seed
// agree on every quote, bar and chain.
type Market struct {
	seed        uint64
	rate        float64
	expiryCount int
	strikeCount int
	historyDays int
	quoteTTL    time.Duration
	now         func() time.Time
	cache       *infra.Cache
}

// NewMarket creates a synthetic market. rate is the risk-free rate used to
// price option chains.
func NewMarket(cfg config.MarketConfig, rate float64) *Market {
	m := &Market{
		seed:        uint64(cfg.Seed),
		rate:        rate,
		expiryCount: cfg.ExpiryCount,
		strikeCount: cfg.StrikeCount,
		historyDays: cfg.HistoryDays,
		quoteTTL:    time.Duration(cfg.QuoteTTLSec) * time.Second,
		now:         time.Now,
	}
	if m.expiryCount <= 0 {
		m.expiryCount = 3
	}
	if m.strikeCount <= 0 {
		m.strikeCount = 8
	}
	if m.historyDays <= 0 {
		m.historyDays = 365
	}
	if m.quoteTTL <= 0 {
		m.quoteTTL = 15 * time.Second
	}
	m.cache = infra.NewCache(m.quoteTTL)
	return m
}

// WithClock replaces the market clock and drops cached data.
func (m *Market) WithClock(now func() time.Time) *Market {
	m.now = now
	m.cache.Flush()
	return m
}

// Name returns the data source name.
func (m *Market) Name() string { return "Synthetic Market" }

// Now is the market clock in US/Eastern.
func (m *Market) Now() time.Time { return m.now().In(utils.Eastern) }

// Instrument returns catalog metadata with market cap at the current price.
func (m *Market) Instrument(ctx context.Context, ticker string) (models.Instrument, error) {
	p, err := lookupProfile(ticker)
	if err != nil {
		return models.Instrument{}, err
	}
	inst := p.Instrument
	if q, err := m.GetQuote(ctx, ticker); err == nil {
		inst.MarketCap = q.MarketCap
	}
	return inst, nil
}

// Spot implements PriceSource.
func (m *Market) Spot(ctx context.Context, ticker string) (float64, error) {
	q, err := m.GetQuote(ctx, ticker)
	if err != nil {
		return 0, err
	}
	return q.LastPrice, nil
}

// --- Quotes ---

// GetQuote returns the synthetic quote at the market clock. Quotes move
// once per minute while the session is open.
func (m *Market) GetQuote(ctx context.Context, ticker string) (*models.Quote, error) {
	p, err := lookupProfile(ticker)
	if err != nil {
		return nil, err
	}
	now := m.Now()
	key := fmt.Sprintf("quote:%s:%s", p.Ticker, now.Format("200601021504"))
	return infra.GetOrLoad(ctx, m.cache, key, func(context.Context) (*models.Quote, error) {
		return m.quote(p, now), nil
	})
}

func (m *Market) quote(p profile, now time.Time) *models.Quote {
	bars := m.series(p, now)
	q := &models.Quote{
		Ticker:    p.Ticker,
		Name:      p.Name,
		Timestamp: now,
	}
	if len(bars) == 0 {
		q.LastPrice = p.BasePrice
		q.PrevClose = p.BasePrice
		q.Open, q.High, q.Low = p.BasePrice, p.BasePrice, p.BasePrice
		q.MarketCap = p.BasePrice * p.SharesOutstanding
		return q
	}

	last := bars[len(bars)-1]
	f := sessionProgress(now, last.Timestamp)
	if f <= 0 && len(bars) > 1 {
		// Today's session has not started: quote yesterday's bar.
		bars = bars[:len(bars)-1]
		last, f = bars[len(bars)-1], 1
	}
	prevClose := p.BasePrice
	if len(bars) > 1 {
		prevClose = bars[len(bars)-2].Close
	}

	completed := bars
	if f >= 1 {
		q.LastPrice, q.Open, q.High, q.Low, q.Volume = last.Close, last.Open, last.High, last.Low, last.Volume
	} else {
		completed = bars[:len(bars)-1]
		minute := uint64(now.Sub(utils.MarketOpenTime(now)) / time.Minute)
		r := m.rng(p.Ticker, streamTick, dayIndex(now), minute)
		noise := 4 * f * (1 - f) * p.Vol * math.Sqrt(1.0/tradingDaysPerYear) * 0.25 * r.NormFloat64()
		price := last.Open + f*(last.Close-last.Open)
		q.LastPrice = round2(price * math.Exp(noise))
		q.Open = last.Open
		q.High = math.Max(math.Max(last.Open, q.LastPrice), last.Open+f*(last.High-last.Open))
		q.Low = math.Min(math.Min(last.Open, q.LastPrice), last.Open-f*(last.Open-last.Low))
		q.Volume = int64(float64(last.Volume) * f)
	}

	q.PrevClose = prevClose
	q.Change = round2(q.LastPrice - prevClose)
	if prevClose > 0 {
		q.ChangePct = round2((q.LastPrice - prevClose) / prevClose * 100)
	}
	q.WeekHigh52, q.WeekLow52 = q.LastPrice, q.LastPrice
	start := max(0, len(completed)-tradingDaysPerYear)
	for _, b := range completed[start:] {
		q.WeekHigh52 = math.Max(q.WeekHigh52, b.High)
		q.WeekLow52 = math.Min(q.WeekLow52, b.Low)
	}
	q.MarketCap = q.LastPrice * p.SharesOutstanding
	return q
}

// sessionProgress is the elapsed fraction of the session that produced bar:
// 0 before the open, 1 after the close or for any earlier day.
func sessionProgress(now, barClose time.Time) float64 {
	if !sameDay(now, barClose) {
		return 1
	}
	open := utils.MarketOpenTime(now)
	closeAt := utils.MarketCloseTime(now)
	switch {
	case !now.After(open):
		return 0
	case !now.Before(closeAt):
		return 1
	}
	return float64(now.Sub(open)) / float64(closeAt.Sub(open))
}

// --- History ---

// GetHistoricalData returns daily or weekly bars between from and to,
// inclusive, never beyond the market clock.
func (m *Market) GetHistoricalData(_ context.Context, ticker string, from, to time.Time, tf models.Timeframe) ([]models.OHLCV, error) {
	p, err := lookupProfile(ticker)
	if err != nil {
		return nil, err
	}
	now := m.Now()
	if to.IsZero() || to.After(now) {
		to = now
	}
	if from.IsZero() {
		from = to.AddDate(0, 0, -m.historyDays)
	}

	var out []models.OHLCV
	for _, b := range m.series(p, to) {
		if b.Timestamp.Before(startOfDay(from)) || sessionProgress(now, b.Timestamp) < 1 {
			continue
		}
		out = append(out, b)
	}

	switch tf {
	case "", models.Timeframe1Day:
		return out, nil
	case models.Timeframe1Week:
		return weekly(out), nil
	default:
		return nil, fmt.Errorf("%w: timeframe %q", ErrNotSupported, tf)
	}
}

// series returns one bar per trading day from the anchor date through the
// date of end. Bars are cached per ticker and day.
func (m *Market) series(p profile, end time.Time) []models.OHLCV {
	key := fmt.Sprintf("series:%s:%s", p.Ticker, utils.FormatDateET(end))
	if v, ok := m.cache.Get(key); ok {
		return v.([]models.OHLCV)
	}

	dt := 1.0 / tradingDaysPerYear
	sd := p.Vol * math.Sqrt(dt)
	level := p.BasePrice
	var bars []models.OHLCV
	last := startOfDay(end)
	for d := anchorDate; !d.After(last); d = d.AddDate(0, 0, 1) {
		if !utils.IsTradingDay(d) {
			continue
		}
		r := m.rng(p.Ticker, streamBar, dayIndex(d), 0)
		ret := (p.Drift-0.5*p.Vol*p.Vol)*dt + sd*r.NormFloat64()
		open := level * math.Exp(0.25*sd*r.NormFloat64())
		closePx := level * math.Exp(ret)
		high := math.Max(open, closePx) * (1 + 0.5*sd*math.Abs(r.NormFloat64()))
		low := math.Min(open, closePx) * (1 - 0.5*sd*math.Abs(r.NormFloat64()))
		vol := int64(float64(p.AvgVolume) * (0.7 + 0.6*r.Float64()))
		bars = append(bars, models.OHLCV{
			Timestamp: utils.MarketCloseTime(d),
			Open:      round2(open),
			High:      round2(high),
			Low:       round2(low),
			Close:     round2(closePx),
			Volume:    vol,
		})
		level = closePx
	}

	m.cache.SetWithTTL(key, bars, time.Hour)
	return bars
}

// weekly folds daily bars into ISO weeks, stamped with the week's last session.
func weekly(daily []models.OHLCV) []models.OHLCV {
	var out []models.OHLCV
	var curYear, curWeek int
	for _, b := range daily {
		y, w := b.Timestamp.ISOWeek()
		if len(out) == 0 || y != curYear || w != curWeek {
			out = append(out, b)
			curYear, curWeek = y, w
			continue
		}
		agg := &out[len(out)-1]
		agg.Timestamp = b.Timestamp
		agg.High = math.Max(agg.High, b.High)
		agg.Low = math.Min(agg.Low, b.Low)
		agg.Close = b.Close
		agg.Volume += b.Volume
	}
	return out
}

// --- Market overview ---

// Overview returns the headline indices and the session status.
func (m *Market) Overview(ctx context.Context) (*models.MarketOverview, error) {
	now := m.Now()
	ov := &models.MarketOverview{Status: utils.MarketStatusAt(now), AsOf: now}
	for _, t := range overviewTickers {
		q, err := m.GetQuote(ctx, t)
		if err != nil {
			return nil, fmt.Errorf("overview %s: %w", t, err)
		}
		ov.Indices = append(ov.Indices, *q)
	}
	return ov, nil
}

// --- helpers ---

// rng returns the PCG stream for one (ticker, purpose, day, sub) cell.
func (m *Market) rng(ticker string, stream uint64, day int, sub uint64) *rand.Rand {
	h := fnv.New64a()
	h.Write([]byte(ticker))
	return rand.New(rand.NewPCG(m.seed^h.Sum64(), stream<<56^uint64(day)<<24^sub))
}

// dayIndex counts calendar days since the anchor date.
func dayIndex(t time.Time) int {
	return int(math.Round(startOfDay(t).Sub(anchorDate).Hours() / 24))
}

func startOfDay(t time.Time) time.Time {
	t = t.In(utils.Eastern)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, utils.Eastern)
}

func sameDay(a, b time.Time) bool {
	return utils.FormatDateET(a) == utils.FormatDateET(b)
}

func round2(x float64) float64 { return math.Round(x*100) / 100 }
