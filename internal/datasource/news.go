package datasource

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"
	"unicode"

	"github.com/PuerkitoBio/goquery"
	"github.com/mmcdole/gofeed"
	"github.com/rs/zerolog"

	"github.com/seenimoa/marketdesk/internal/config"
	"github.com/seenimoa/marketdesk/internal/infra"
	"github.com/seenimoa/marketdesk/pkg/models"
	"github.com/seenimoa/marketdesk/pkg/utils"
)

// SampleSource marks canned headlines served when every feed fails and
// news.fallback_to_sample is enabled.
const SampleSource = "sample"

// ErrNewsUnavailable is returned when no configured feed could be read.
var ErrNewsUnavailable = errors.New("news unavailable")

// News reads financial headlines from RSS/Atom feeds.
type News struct {
	feeds    []string
	fallback bool
	cache    *infra.Cache
	limiter  *infra.RateLimiter
	parser   *gofeed.Parser
	client   *http.Client
	log      zerolog.Logger
	now      func() time.Time
}

// NewNews creates a news reader for the configured feeds.
func NewNews(cfg config.NewsConfig, log zerolog.Logger) *News {
	ttl := time.Duration(cfg.CacheTTLSec) * time.Second
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	timeout := time.Duration(cfg.TimeoutSec) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &News{
		feeds:    cfg.Feeds,
		fallback: cfg.FallbackToSample,
		cache:    infra.NewCache(ttl),
		limiter:  infra.NewRateLimiter(cfg.RequestsPerMin, time.Minute),
		parser:   gofeed.NewParser(),
		client:   &http.Client{Timeout: timeout},
		log:      log.With().Str("component", "news").Logger(),
		now:      time.Now,
	}
}

// Name returns the data source name.
func (n *News) Name() string { return "RSS News" }

// GetMarketNews returns recent headlines from all feeds, newest first.
// A limit of zero returns everything.
//
// When every feed fails the error wraps ErrNewsUnavailable. If sample
// fallback is enabled the canned headlines are returned alongside that
// error, so callers can serve them and still report the outage.
func (n *News) GetMarketNews(ctx context.Context, limit int) ([]models.NewsArticle, error) {
	cacheKey := "news:market"
	if cached, ok := n.cache.Get(cacheKey); ok {
		return truncate(cached.([]models.NewsArticle), limit), nil
	}

	var all []models.NewsArticle
	var errs []error
	for _, feedURL := range n.feeds {
		articles, err := n.fetchFeed(ctx, feedURL)
		if err != nil {
			n.log.Warn().Err(err).Str("feed", feedURL).Msg("feed fetch failed")
			errs = append(errs, err)
			continue
		}
		all = append(all, articles...)
	}

	if len(all) == 0 {
		err := ErrNewsUnavailable
		switch {
		case len(n.feeds) == 0:
			err = fmt.Errorf("%w: no feeds configured", ErrNewsUnavailable)
		case len(errs) > 0:
			err = fmt.Errorf("%w: %w", ErrNewsUnavailable, errors.Join(errs...))
		}
		if n.fallback {
			n.log.Warn().Err(err).Msg("serving sample headlines")
			return truncate(n.sampleArticles(), limit), err
		}
		return nil, err
	}

	sort.SliceStable(all, func(i, j int) bool { return all[i].PublishedAt.After(all[j].PublishedAt) })
	n.cache.Set(cacheKey, all)
	return truncate(all, limit), nil
}

// GetStockNews returns headlines that mention the ticker or its company name.
func (n *News) GetStockNews(ctx context.Context, ticker string, limit int) ([]models.NewsArticle, error) {
	symbol := utils.NormalizeTicker(ticker)
	all, err := n.GetMarketNews(ctx, 0)
	if len(all) == 0 {
		return nil, err
	}

	var filtered []models.NewsArticle
	for _, a := range all {
		for _, t := range a.Tickers {
			if t == symbol {
				filtered = append(filtered, a)
				break
			}
		}
	}
	return truncate(filtered, limit), err
}

// --- Internal helpers ---

// fetchFeed downloads and parses one feed.
func (n *News) fetchFeed(ctx context.Context, feedURL string) ([]models.NewsArticle, error) {
	if err := n.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	body, err := doGet(ctx, n.client, feedURL, nil)
	if err != nil {
		return nil, err
	}
	defer body.Close()

	feed, err := n.parser.Parse(body)
	if err != nil {
		return nil, fmt.Errorf("parse feed %s: %w", feedURL, err)
	}

	source := feed.Title
	if source == "" {
		if u, err := url.Parse(feedURL); err == nil {
			source = u.Host
		}
	}

	articles := make([]models.NewsArticle, 0, len(feed.Items))
	for _, item := range feed.Items {
		if strings.TrimSpace(item.Title) == "" {
			continue
		}
		a := models.NewsArticle{
			Title:   strings.TrimSpace(item.Title),
			URL:     item.Link,
			Source:  source,
			Summary: cleanHTML(item.Description),
		}
		if item.PublishedParsed != nil {
			a.PublishedAt = *item.PublishedParsed
		} else if item.UpdatedParsed != nil {
			a.PublishedAt = *item.UpdatedParsed
		}
		a.Tickers = matchTickers(a.Title + " " + a.Summary)
		articles = append(articles, a)
	}
	return articles, nil
}

// cleanHTML strips HTML tags from a string using goquery.
func cleanHTML(s string) string {
	if s == "" {
		return ""
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader("<body>" + s + "</body>"))
	if err != nil {
		return s
	}
	return strings.Join(strings.Fields(doc.Text()), " ")
}

var tickerAliases = map[string][]string{
	"GOOGL": {"google"},
	"META":  {"facebook", "instagram"},
	"JPM":   {"jpmorgan", "jp morgan"},
	"SPY":   {"s&p 500"},
	"^GSPC": {"s&p 500"},
	"QQQ":   {"nasdaq 100"},
	"^NDX":  {"nasdaq 100"},
	"^DJI":  {"dow jones", "the dow"},
	"^VIX":  {"vix"},
}

// tickerKeywords returns lower-case search phrases for a catalog ticker.
// For example, "NVDA" → ["nvda", "nvidia"].
func tickerKeywords(ticker string) []string {
	p, ok := catalog[ticker]
	if !ok {
		return []string{strings.ToLower(ticker)}
	}
	var keywords []string
	if !p.IsIndex {
		keywords = append(keywords, strings.ToLower(ticker))
	}
	if !p.IsIndex && p.Sector != "ETF" {
		name := strings.ToLower(p.Name)
		if i := strings.IndexFunc(name, func(r rune) bool { return !unicode.IsLetter(r) }); i > 0 {
			name = name[:i]
		}
		keywords = append(keywords, name)
	}
	return append(keywords, tickerAliases[ticker]...)
}

// matchTickers returns the catalog tickers a headline mentions, sorted.
func matchTickers(text string) []string {
	words := strings.Fields(strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '&' {
			return unicode.ToLower(r)
		}
		return ' '
	}, text))
	normalized := " " + strings.Join(words, " ") + " "

	var out []string
	for _, t := range Tickers() {
		for _, kw := range tickerKeywords(t) {
			if strings.Contains(normalized, " "+kw+" ") {
				out = append(out, t)
				break
			}
		}
	}
	return out
}

var sampleHeadlines = []string{
	"Stocks edge higher as investors weigh Fed rate path",
	"NVIDIA extends rally on data center demand",
	"Apple unveils new devices ahead of holiday quarter",
	"Treasury yields slip after softer inflation print",
	"Microsoft cloud growth tops estimates",
	"Oil prices steady as OPEC+ holds output",
	"VIX falls to three-month low as volatility fades",
	"Amazon expands same-day delivery network",
}

// sampleArticles are canned headlines stamped relative to the clock.
func (n *News) sampleArticles() []models.NewsArticle {
	now := n.now()
	out := make([]models.NewsArticle, len(sampleHeadlines))
	for i, h := range sampleHeadlines {
		out[i] = models.NewsArticle{
			Title:       h,
			Source:      SampleSource,
			PublishedAt: now.Add(-time.Duration(i+1) * 45 * time.Minute),
			Tickers:     matchTickers(h),
		}
	}
	return out
}

func truncate(articles []models.NewsArticle, limit int) []models.NewsArticle {
	if limit > 0 && len(articles) > limit {
		return articles[:limit]
	}
	return articles
}
