package datasource

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/seenimoa/marketdesk/internal/analysis/derivatives"
	"github.com/seenimoa/marketdesk/internal/analysis/fundamental"
	"github.com/seenimoa/marketdesk/pkg/models"
	"github.com/seenimoa/marketdesk/pkg/utils"
)

// dashboardHistoryDays is the chart window included in a dashboard.
const dashboardHistoryDays = 90

// Aggregator fetches and merges data from the market and news sources concurrently.
type Aggregator struct {
	market *Market
	news   *News
	log    zerolog.Logger
}

// NewAggregator creates an aggregator over the given sources.
func NewAggregator(market *Market, news *News, log zerolog.Logger) *Aggregator {
	return &Aggregator{
		market: market,
		news:   news,
		log:    log.With().Str("component", "aggregator").Logger(),
	}
}

// Market returns the synthetic market for direct access.
func (a *Aggregator) Market() *Market { return a.market }

// NewsSource returns the news source for direct access.
func (a *Aggregator) NewsSource() *News { return a.news }

// Sources returns all registered market data sources.
func (a *Aggregator) Sources() []DataSource { return []DataSource{a.market} }

// Dashboard is everything known about one ticker at a point in time.
// Sections that failed are absent and their errors are listed in Errors.
type Dashboard struct {
	Ticker       string                           `json:"ticker"`
	Instrument   models.Instrument                `json:"instrument"`
	Quote        *models.Quote                    `json:"quote,omitempty"`
	History      []models.OHLCV                   `json:"history,omitempty"`
	Options      *derivatives.OptionChainAnalysis `json:"options,omitempty"`
	Fundamentals *fundamental.Snapshot            `json:"fundamentals,omitempty"`
	News         []models.NewsArticle             `json:"news,omitempty"`
	Errors       map[string]string                `json:"errors,omitempty"`
	FetchedAt    time.Time                        `json:"fetched_at"`
}

// FetchDashboard gathers quote, history, option chain analysis,
// fundamentals and news concurrently. Only an unknown ticker or a failed
// quote fails the call; other sections record their error and continue.
func (a *Aggregator) FetchDashboard(ctx context.Context, ticker string) (*Dashboard, error) {
	symbol := utils.NormalizeTicker(ticker)
	inst, err := a.market.Instrument(ctx, symbol)
	if err != nil {
		return nil, err
	}

	d := &Dashboard{
		Ticker:     symbol,
		Instrument: inst,
		FetchedAt:  a.market.Now(),
	}

	var mu sync.Mutex
	fail := func(section string, err error) {
		mu.Lock()
		defer mu.Unlock()
		if d.Errors == nil {
			d.Errors = make(map[string]string)
		}
		d.Errors[section] = err.Error()
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		q, err := a.market.GetQuote(gctx, symbol)
		if err != nil {
			return fmt.Errorf("quote: %w", err)
		}
		mu.Lock()
		d.Quote = q
		mu.Unlock()
		return nil
	})

	g.Go(func() error {
		to := a.market.Now()
		bars, err := a.market.GetHistoricalData(gctx, symbol, to.AddDate(0, 0, -dashboardHistoryDays), to, models.Timeframe1Day)
		if err != nil {
			fail("history", err)
			return nil
		}
		mu.Lock()
		d.History = bars
		mu.Unlock()
		return nil
	})

	g.Go(func() error {
		_, analysis, err := a.FetchOptionAnalysis(gctx, symbol, "")
		if err != nil {
			fail("options", err)
			return nil
		}
		mu.Lock()
		d.Options = &analysis
		mu.Unlock()
		return nil
	})

	g.Go(func() error {
		snap, err := a.FetchFundamentals(gctx, symbol)
		if err != nil {
			fail("fundamentals", err)
			return nil
		}
		mu.Lock()
		d.Fundamentals = snap
		mu.Unlock()
		return nil
	})

	g.Go(func() error {
		articles, err := a.FetchStockNews(gctx, symbol, 5)
		if err != nil {
			fail("news", err)
		}
		mu.Lock()
		d.News = articles
		mu.Unlock()
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}
	if len(d.Errors) > 0 {
		a.log.Debug().Str("ticker", symbol).Interface("errors", d.Errors).Msg("dashboard partially degraded")
	}
	return d, nil
}

// FetchOptionAnalysis fetches a chain and runs the chain analytics on it.
func (a *Aggregator) FetchOptionAnalysis(ctx context.Context, ticker, expiry string) (*models.OptionChain, derivatives.OptionChainAnalysis, error) {
	oc, err := a.market.GetOptionChain(ctx, ticker, expiry)
	if err != nil {
		return nil, derivatives.OptionChainAnalysis{}, err
	}
	return oc, derivatives.AnalyzeOptionChain(oc), nil
}

// FetchFundamentals computes ratios, growth, margins and valuation at the
// current price.
func (a *Aggregator) FetchFundamentals(ctx context.Context, ticker string) (*fundamental.Snapshot, error) {
	inst, err := a.market.Instrument(ctx, ticker)
	if err != nil {
		return nil, err
	}
	fin, err := a.market.GetFinancials(ctx, ticker)
	if err != nil {
		return nil, err
	}
	price, err := a.market.Spot(ctx, ticker)
	if err != nil {
		return nil, err
	}
	snap := fundamental.Analyze(fin, price, inst.SharesOutstanding)
	return &snap, nil
}

// FetchStockNews returns ticker headlines. Sample fallback headlines are
// returned together with the upstream error.
func (a *Aggregator) FetchStockNews(ctx context.Context, ticker string, limit int) ([]models.NewsArticle, error) {
	if a.news == nil {
		return nil, fmt.Errorf("%w: news disabled", ErrNotSupported)
	}
	return a.news.GetStockNews(ctx, ticker, limit)
}

// IsNotFound reports whether err means the ticker or expiry does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrTickerNotFound) || errors.Is(err, ErrExpiryNotListed)
}
