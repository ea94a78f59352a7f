// Package datasource provides market data to the rest of MarketDesk. It
// defines a common DataSource interface, the narrower PriceSource capability
// used by pricing consumers, a deterministic synthetic market, and an RSS
// news reader.
package datasource

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/seenimoa/marketdesk/pkg/models"
)

// DataSource defines the common interface that all data sources must implement.
// Each source may support a subset of methods; unsupported methods return ErrNotSupported.
type DataSource interface {
	// Name returns the human-readable name of this data source.
	Name() string

	// GetQuote returns a delayed quote for the given ticker.
	GetQuote(ctx context.Context, ticker string) (*models.Quote, error)

	// GetHistoricalData returns OHLCV candles for the given ticker and date range.
	GetHistoricalData(ctx context.Context, ticker string, from, to time.Time, tf models.Timeframe) ([]models.OHLCV, error)

	// GetFinancials returns financial statements for the given ticker.
	GetFinancials(ctx context.Context, ticker string) (*models.FinancialData, error)

	// GetOptionChain returns the option chain for the given ticker and
	// expiry (YYYY-MM-DD). An empty expiry selects the nearest one.
	GetOptionChain(ctx context.Context, ticker string, expiry string) (*models.OptionChain, error)
}

// PriceSource supplies the current underlying price. Strategy evaluation,
// portfolio valuation and the HTTP layer receive one explicitly.
type PriceSource interface {
	Spot(ctx context.Context, ticker string) (float64, error)
}

// PriceFunc adapts a function to PriceSource.
type PriceFunc func(ctx context.Context, ticker string) (float64, error)

// Spot calls f.
func (f PriceFunc) Spot(ctx context.Context, ticker string) (float64, error) { return f(ctx, ticker) }

// StaticPrices is a fixed price table, mostly for tests.
type StaticPrices map[string]float64

// Spot returns the table entry or ErrTickerNotFound.
func (s StaticPrices) Spot(_ context.Context, ticker string) (float64, error) {
	if p, ok := s[ticker]; ok {
		return p, nil
	}
	return 0, fmt.Errorf("%w: %s", ErrTickerNotFound, ticker)
}

// --- Sentinel errors ---

// ErrNotSupported is returned when a data source does not support a method.
var ErrNotSupported = errors.New("operation not supported by this data source")

// ErrTickerNotFound is returned when a ticker cannot be resolved.
var ErrTickerNotFound = errors.New("ticker not found")

// ErrExpiryNotListed is returned for an option expiry the chain does not list.
var ErrExpiryNotListed = errors.New("expiry not listed")

// ErrRateLimited is returned when a source rate-limits the request.
var ErrRateLimited = errors.New("rate limited by data source")

// ErrHTTP wraps an HTTP error with status code.
type ErrHTTP struct {
	StatusCode int
	Status     string
	Body       string
}

func (e *ErrHTTP) Error() string {
	return fmt.Sprintf("HTTP %d %s: %s", e.StatusCode, e.Status, e.Body)
}

// --- Shared HTTP client helpers ---

// DefaultUserAgent is the user agent string used for HTTP requests.
const DefaultUserAgent = "marketdesk/1.0 (+https://github.com/seenimoa/marketdesk)"

// doGet performs a GET request with the given URL and headers, returning the response body.
// The caller is responsible for closing the returned ReadCloser.
func doGet(ctx context.Context, client *http.Client, url string, headers map[string]string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("User-Agent", DefaultUserAgent)
	req.Header.Set("Accept", "application/rss+xml, application/atom+xml, application/xml, text/xml, */*")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("HTTP GET %s: %w", url, err)
	}

	if resp.StatusCode >= 400 {
		defer resp.Body.Close()
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		herr := &ErrHTTP{StatusCode: resp.StatusCode, Status: resp.Status, Body: string(body)}
		if resp.StatusCode == http.StatusTooManyRequests {
			return nil, fmt.Errorf("%w: %w", ErrRateLimited, herr)
		}
		return nil, herr
	}

	return resp.Body, nil
}
