package main

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/seenimoa/marketdesk/internal/datasource"
	"github.com/seenimoa/marketdesk/internal/llm"
	"github.com/seenimoa/marketdesk/pkg/models"
	"github.com/seenimoa/marketdesk/pkg/utils"
)

// --- Quote Command ---

var quoteCmd = &cobra.Command{
	Use:   "quote [ticker...]",
	Short: "Show delayed quotes (default: the watchlist)",
	RunE: func(cmd *cobra.Command, args []string) error {
		tickers := args
		if len(tickers) == 0 {
			tickers = cfg.Market.Watchlist
		}
		market := newAggregator().Market()

		table := tablewriter.NewWriter(os.Stdout)
		table.SetHeader([]string{"Ticker", "Name", "Last", "Change", "Volume"})
		table.SetAlignment(tablewriter.ALIGN_RIGHT)
		var errs []error
		for _, t := range tickers {
			q, err := market.GetQuote(cmd.Context(), utils.NormalizeTicker(t))
			if err != nil {
				errs = append(errs, err)
				continue
			}
			table.Append([]string{q.Ticker, q.Name, utils.FormatUSD(q.LastPrice), changeText(q), utils.FormatVolume(q.Volume)})
		}
		fmt.Printf("%s  %s\n", utils.MarketStatusAt(market.Now()), utils.FormatDateTimeET(market.Now()))
		table.Render()
		return errors.Join(errs...)
	},
}

func changeText(q *models.Quote) string {
	s := fmt.Sprintf("%+.2f (%s)", q.Change, utils.FormatPct(q.ChangePct))
	if q.Change < 0 {
		return color.RedString(s)
	}
	return color.GreenString(s)
}

// --- News Command ---

var newsCmd = &cobra.Command{
	Use:   "news [ticker]",
	Short: "Show market or ticker headlines from the configured RSS feeds",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")
		news := datasource.NewNews(cfg.News, log)

		var (
			articles []models.NewsArticle
			err      error
		)
		if len(args) == 1 {
			articles, err = news.GetStockNews(cmd.Context(), args[0], limit)
		} else {
			articles, err = news.GetMarketNews(cmd.Context(), limit)
		}
		if err != nil && len(articles) == 0 {
			return err
		}
		if err != nil {
			color.Yellow("⚠️  %v (showing sample headlines)", err)
		}

		for _, a := range articles {
			fmt.Printf("%s  %s\n", color.CyanString(a.PublishedAt.In(utils.Eastern).Format("Jan 02 15:04")), a.Title)
			if a.Source != "" {
				fmt.Printf("               %s\n", color.New(color.Faint).Sprint(a.Source))
			}
		}
		return nil
	},
}

func init() {
	newsCmd.Flags().Int("limit", 10, "maximum number of headlines")
}

// --- Summary Command ---

var summaryCmd = &cobra.Command{
	Use:   "summary [ticker]",
	Short: "Summarize a ticker's dashboard with the configured LLM",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		router, err := llm.NewRouterFromConfig(cfg.LLM, log)
		if err != nil {
			return err
		}
		dashboard, err := newAggregator().FetchDashboard(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		summary, err := llm.NewSummarizer(router, log).Summarize(cmd.Context(), dashboard)
		if err != nil {
			return err
		}

		color.Cyan("📝 %s (%s/%s)", summary.Ticker, summary.Provider, summary.Model)
		fmt.Println(wrap(summary.Text, 76))
		return nil
	},
}

// wrap breaks text on spaces at width columns.
func wrap(text string, width int) string {
	var b strings.Builder
	col := 0
	for _, w := range strings.Fields(text) {
		if col > 0 && col+1+len(w) > width {
			b.WriteByte('\n')
			col = 0
		} else if col > 0 {
			b.WriteByte(' ')
			col++
		}
		b.WriteString(w)
		col += len(w)
	}
	return b.String()
}
