package llm

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/seenimoa/marketdesk/internal/datasource"
	"github.com/seenimoa/marketdesk/pkg/utils"
)

const summarySystemPrompt = `You are a concise equity research assistant.
Write a neutral summary of 3 to 5 sentences using only the facts provided.
Do not invent numbers. Do not give buy or sell advice.`

// maxHeadlines caps the news lines fed into a prompt.
const maxHeadlines = 3

// Summary is the generated text and the facts it was built from.
type Summary struct {
	Ticker      string    `json:"ticker"`
	Text        string    `json:"text"`
	Facts       []string  `json:"facts"`
	Provider    string    `json:"provider"`
	Model       string    `json:"model"`
	GeneratedAt time.Time `json:"generated_at"`
}

// Summarizer writes dashboard summaries through a Provider.
type Summarizer struct {
	provider Provider
	log      zerolog.Logger
	now      func() time.Time
}

// NewSummarizer creates a summarizer. provider is normally a *Router.
func NewSummarizer(provider Provider, log zerolog.Logger) *Summarizer {
	return &Summarizer{
		provider: provider,
		log:      log.With().Str("component", "summarizer").Logger(),
		now:      time.Now,
	}
}

// Summarize turns a dashboard into a short narrative.
func (s *Summarizer) Summarize(ctx context.Context, d *datasource.Dashboard) (*Summary, error) {
	if d == nil {
		return nil, errors.New("llm: nil dashboard")
	}
	facts := Facts(d)
	messages := []Message{
		SystemMessage(summarySystemPrompt),
		UserMessage(BuildPrompt(d.Ticker, facts)),
	}

	resp, err := s.provider.Chat(ctx, messages, nil)
	if err != nil {
		return nil, fmt.Errorf("summarize %s: %w", d.Ticker, err)
	}
	s.log.Debug().
		Str("ticker", d.Ticker).
		Str("provider", resp.Provider).
		Int("tokens", resp.Usage.TotalTokens).
		Dur("latency", resp.Latency).
		Msg("summary generated")

	return &Summary{
		Ticker:      d.Ticker,
		Text:        resp.Content,
		Facts:       facts,
		Provider:    resp.Provider,
		Model:       resp.Model,
		GeneratedAt: s.now(),
	}, nil
}

// BuildPrompt lays out facts as a bulleted list under an instruction line.
func BuildPrompt(ticker string, facts []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Summarize the current picture for %s.\nFacts:\n", ticker)
	for _, f := range facts {
		b.WriteString("- ")
		b.WriteString(f)
		b.WriteByte('\n')
	}
	return b.String()
}

// Facts renders the dashboard as short declarative sentences. Missing
// sections are reported as unavailable rather than skipped silently.
func Facts(d *datasource.Dashboard) []string {
	var facts []string
	name := d.Ticker
	if d.Instrument.Name != "" {
		name = fmt.Sprintf("%s (%s)", d.Instrument.Name, d.Ticker)
	}

	if q := d.Quote; q != nil {
		facts = append(facts, fmt.Sprintf("%s last traded at %s, %s on the day",
			name, utils.FormatUSD(q.LastPrice), utils.FormatPct(q.ChangePct)))
		if q.WeekHigh52 > 0 && q.WeekLow52 > 0 {
			facts = append(facts, fmt.Sprintf("The 52-week range is %s to %s",
				utils.FormatUSD(q.WeekLow52), utils.FormatUSD(q.WeekHigh52)))
		}
	}

	if n := len(d.History); n > 1 {
		first, last := d.History[0].Close, d.History[n-1].Close
		if first > 0 {
			facts = append(facts, fmt.Sprintf("Over the last %d sessions the stock moved %s",
				n, utils.FormatPct((last/first-1)*100)))
		}
	}

	if o := d.Options; o != nil {
		facts = append(facts, fmt.Sprintf("Options for %s expiry price an expected move of %s (%.1f%%) with ATM implied volatility of %.1f%%",
			o.ExpiryDate, utils.FormatUSD(o.ExpectedMove), o.ExpectedMovePct, o.ATMIV))
		facts = append(facts, fmt.Sprintf("The put/call open interest ratio is %.2f, read as %s, with max pain at %s",
			o.PCR.PCR, o.Sentiment, utils.FormatUSD(o.MaxPain)))
	}

	if f := d.Fundamentals; f != nil {
		r := f.Ratios
		if r.PE > 0 {
			facts = append(facts, fmt.Sprintf("The stock trades at %.1f times earnings with a return on equity of %.1f%%", r.PE, r.ROE))
		}
		if g := f.Growth.RevenueGrowthYoY; g != 0 {
			facts = append(facts, fmt.Sprintf("Revenue grew %s year over year", utils.FormatPct(g)))
		}
		if v := f.Valuation; v.Verdict != "" {
			facts = append(facts, fmt.Sprintf("Intrinsic value models rate it %s with a margin of safety of %s",
				strings.ReplaceAll(v.Verdict, "_", " "), utils.FormatPct(v.MarginOfSafety)))
		}
	}

	for i, a := range d.News {
		if i == maxHeadlines {
			break
		}
		facts = append(facts, fmt.Sprintf("Headline from %s: %q", a.Source, a.Title))
	}

	if len(d.Errors) > 0 {
		sections := make([]string, 0, len(d.Errors))
		for s := range d.Errors {
			sections = append(sections, s)
		}
		sort.Strings(sections)
		facts = append(facts, "Data unavailable for "+strings.Join(sections, ", "))
	}
	return facts
}
