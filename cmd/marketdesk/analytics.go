package main

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/seenimoa/marketdesk/internal/pricing"
	"github.com/seenimoa/marketdesk/internal/simulation"
	"github.com/seenimoa/marketdesk/internal/strategy"
	"github.com/seenimoa/marketdesk/pkg/utils"
)

// contractFlags registers the flags shared by price, greeks and iv.
func contractFlags(cmd *cobra.Command) {
	cmd.Flags().Float64("spot", 0, "underlying price (default: synthetic spot of --ticker)")
	cmd.Flags().String("ticker", "", "take the spot from this ticker")
	cmd.Flags().Float64("strike", 0, "strike price")
	cmd.Flags().Float64("years", 0, "time to expiry in years")
	cmd.Flags().String("expiry", "", "expiry date YYYY-MM-DD (overrides --years)")
	cmd.Flags().Float64("rate", 0, "risk-free rate (default: options.risk_free_rate)")
	cmd.Flags().Float64("vol", 0, "annualized volatility (default: options.default_vol)")
	cmd.Flags().String("kind", "call", "call or put")
	_ = cmd.MarkFlagRequired("strike")
}

// contractParams resolves contract flags the same way the API does.
func contractParams(cmd *cobra.Command) (pricing.Params, error) {
	kindFlag, _ := cmd.Flags().GetString("kind")
	kind, err := pricing.ParseKind(kindFlag)
	if err != nil {
		return pricing.Params{}, err
	}
	p := pricing.Params{Kind: kind, Rate: cfg.Options.RiskFreeRate, Vol: cfg.Options.DefaultVol}
	p.Spot, _ = cmd.Flags().GetFloat64("spot")
	p.Strike, _ = cmd.Flags().GetFloat64("strike")
	p.Years, _ = cmd.Flags().GetFloat64("years")
	if v, _ := cmd.Flags().GetFloat64("vol"); v != 0 {
		p.Vol = v
	}
	if cmd.Flags().Changed("rate") {
		p.Rate, _ = cmd.Flags().GetFloat64("rate")
	}

	agg := newAggregator()
	if ticker, _ := cmd.Flags().GetString("ticker"); p.Spot == 0 && ticker != "" {
		if p.Spot, err = agg.Market().Spot(cmd.Context(), utils.NormalizeTicker(ticker)); err != nil {
			return pricing.Params{}, err
		}
	}
	if e, _ := cmd.Flags().GetString("expiry"); e != "" {
		expiry, err := pricing.ParseExpiry(e)
		if err != nil {
			return pricing.Params{}, err
		}
		p.Years = pricing.YearsToExpiry(agg.Market().Now(), expiry)
	}
	return p, nil
}

func printContract(p pricing.Params) {
	fmt.Printf("  %s  S=%s  K=%s  T=%.4fy  r=%.2f%%  σ=%.2f%%\n",
		p.Kind, utils.FormatUSD(p.Spot), utils.FormatUSD(p.Strike), p.Years, p.Rate*100, p.Vol*100)
}

// --- Price / Greeks Commands ---

var priceCmd = &cobra.Command{
	Use:   "price",
	Short: "Price a European option with Black-Scholes",
	Example: `  marketdesk price --spot 100 --strike 100 --years 1 --vol 0.2
  marketdesk price --ticker AAPL --strike 200 --expiry 2026-12-18 --kind put`,
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := contractParams(cmd)
		if err != nil {
			return err
		}
		price, err := pricing.Price(p)
		if err != nil {
			return err
		}
		intrinsic := pricing.Intrinsic(p.Kind, p.Spot, p.Strike)

		color.Cyan("💲 Black-Scholes Price")
		printContract(p)
		fmt.Printf("  Price:      %s\n", color.GreenString("%.4f", price))
		fmt.Printf("  Intrinsic:  %.4f\n", intrinsic)
		fmt.Printf("  Time value: %.4f\n", price-intrinsic)
		return nil
	},
}

var greeksCmd = &cobra.Command{
	Use:   "greeks",
	Short: "Compute option sensitivities",
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := contractParams(cmd)
		if err != nil {
			return err
		}
		price, err := pricing.Price(p)
		if err != nil {
			return err
		}
		g, err := pricing.ComputeGreeks(p)
		if err != nil {
			return err
		}

		color.Cyan("📐 Greeks")
		printContract(p)
		table := tablewriter.NewWriter(os.Stdout)
		table.SetHeader([]string{"Price", "Delta", "Gamma", "Theta/day", "Vega/1%", "Rho/1%"})
		table.Append([]string{
			f4(price), f4(g.Delta), f4(g.Gamma), f4(g.Theta), f4(g.Vega), f4(g.Rho),
		})
		table.Render()
		return nil
	},
}

func init() {
	contractFlags(priceCmd)
	contractFlags(greeksCmd)
}

// --- IV Command ---

var ivCmd = &cobra.Command{
	Use:   "iv [market-price]",
	Short: "Solve implied volatility from a market price",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		marketPrice, err := strconv.ParseFloat(args[0], 64)
		if err != nil {
			return fmt.Errorf("market price %q: %w", args[0], err)
		}
		p, err := contractParams(cmd)
		if err != nil {
			return err
		}

		res, err := pricing.ImpliedVolatility(marketPrice, p)
		color.Cyan("🔎 Implied Volatility")
		printContract(p)
		if err != nil {
			if res.Sigma > 0 {
				color.Yellow("  best estimate σ=%.4f after %d iterations", res.Sigma, res.Iterations)
			}
			return err
		}
		fmt.Printf("  σ = %s  (%d iterations)\n", color.GreenString("%.4f", res.Sigma), res.Iterations)
		return nil
	},
}

func init() {
	contractFlags(ivCmd)
}

// --- Strategy Commands ---

var strategyCmd = &cobra.Command{
	Use:   "strategy",
	Short: "List and evaluate option strategy templates",
}

var strategyListCmd = &cobra.Command{
	Use:   "list",
	Short: "List strategy templates",
	Run: func(cmd *cobra.Command, args []string) {
		table := tablewriter.NewWriter(os.Stdout)
		table.SetHeader([]string{"Kind", "Name", "Outlook", "Max Profit", "Max Loss"})
		table.SetAutoWrapText(false)
		for _, t := range strategy.Templates() {
			table.Append([]string{string(t.Kind), t.Name, t.Outlook, t.MaxProfitText, t.MaxLossText})
		}
		table.Render()
	},
}

var strategyBuildCmd = &cobra.Command{
	Use:   "build [kind] [ticker-or-spot]",
	Short: "Build a template around a spot price and show its expiry payoff",
	Example: `  marketdesk strategy build iron_condor SPY
  marketdesk strategy build bull_call_spread 100 --vol 0.2 --csv > curve.csv`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		kind, err := strategy.ParseKind(args[0])
		if err != nil {
			return err
		}
		spot, err := strconv.ParseFloat(args[1], 64)
		if err != nil {
			if spot, err = newAggregator().Market().Spot(cmd.Context(), utils.NormalizeTicker(args[1])); err != nil {
				return err
			}
		}

		bp := strategy.BuildParams{Spot: spot, Rate: cfg.Options.RiskFreeRate, Width: cfg.Options.StrategyWidth}
		bp.Vol, _ = cmd.Flags().GetFloat64("vol")
		bp.Years, _ = cmd.Flags().GetFloat64("years")
		bp.Quantity, _ = cmd.Flags().GetInt("quantity")
		if w, _ := cmd.Flags().GetFloat64("width"); w != 0 {
			bp.Width = w
		}
		if bp.Vol == 0 {
			bp.Vol = cfg.Options.DefaultVol
		}
		if bp.Years == 0 {
			bp.Years = strategy.DefaultYears
		}
		strat, err := strategy.Build(kind, bp)
		if err != nil {
			return err
		}
		sweep := strategy.SweepConfig{RangePct: cfg.Options.SweepRangePct}
		eval, err := strategy.EvaluateWithProbability(strat.Legs, spot, sweep, bp.Years, bp.Rate, bp.Vol)
		if err != nil {
			return err
		}

		if asCSV, _ := cmd.Flags().GetBool("csv"); asCSV {
			return strategy.WriteCSV(os.Stdout, eval.Curve)
		}
		printStrategy(strat, spot, eval)
		return nil
	},
}

func init() {
	strategyBuildCmd.Flags().Float64("vol", 0, "volatility for premiums and probability (default: options.default_vol)")
	strategyBuildCmd.Flags().Float64("years", 0, "time to expiry in years (default: 30 days)")
	strategyBuildCmd.Flags().Float64("width", 0, "strike distance as a fraction of spot (default: options.strategy_width)")
	strategyBuildCmd.Flags().Int("quantity", 1, "contracts per leg")
	strategyBuildCmd.Flags().Bool("csv", false, "write the P&L curve as CSV")

	strategyCmd.AddCommand(strategyListCmd)
	strategyCmd.AddCommand(strategyBuildCmd)
}

func printStrategy(s strategy.Strategy, spot float64, ev strategy.Evaluation) {
	color.Cyan("🧩 %s on %s", s.Name, utils.FormatUSD(spot))

	legs := tablewriter.NewWriter(os.Stdout)
	legs.SetHeader([]string{"Action", "Qty", "Instrument", "Strike", "Premium"})
	for _, l := range s.Legs {
		strike, premium := "-", "-"
		if l.Instrument != strategy.Stock {
			strike, premium = f2(l.Strike), f2(l.Premium)
		}
		legs.Append([]string{string(l.Action), strconv.Itoa(l.Quantity), string(l.Instrument), strike, premium})
	}
	legs.Render()

	fmt.Printf("  Net premium:  %s\n", utils.FormatUSD(ev.NetPremium))
	fmt.Printf("  Max profit:   %s\n", boundText(ev.MaxProfit))
	fmt.Printf("  Max loss:     %s\n", boundText(ev.MaxLoss))
	if len(ev.Breakevens) > 0 {
		fmt.Printf("  Breakevens:  ")
		for _, b := range ev.Breakevens {
			fmt.Printf(" %s", utils.FormatUSD(b))
		}
		fmt.Println()
	}
	if ev.ProbabilityOfProfit != nil {
		fmt.Printf("  P(profit):    %.1f%%\n", *ev.ProbabilityOfProfit*100)
	}
}

func boundText(b strategy.Bound) string {
	if b.Unbounded {
		return color.YellowString("unbounded")
	}
	return utils.FormatUSD(b.Value)
}

// --- Simulate Command ---

var simulateCmd = &cobra.Command{
	Use:   "simulate [initial-amount]",
	Short: "Run a one-period Monte Carlo investment simulation",
	Example: `  marketdesk simulate 10000 --return 0.08 --vol 0.2
  marketdesk simulate 5000 --iterations 100000 --seed 7`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		amount, err := strconv.ParseFloat(args[0], 64)
		if err != nil {
			return fmt.Errorf("initial amount %q: %w", args[0], err)
		}
		p := simulation.Params{InitialAmount: amount, Iterations: cfg.Simulation.Iterations}
		p.ExpectedReturn, _ = cmd.Flags().GetFloat64("return")
		p.Volatility, _ = cmd.Flags().GetFloat64("vol")
		p.Seed, _ = cmd.Flags().GetUint64("seed")
		if n, _ := cmd.Flags().GetInt("iterations"); n > 0 {
			p.Iterations = n
		}

		ctx, cancel := signalContext()
		defer cancel()
		start := time.Now()
		report, err := simulation.NewSimulator(cfg.Simulation.Workers).Report(ctx, p)
		if err != nil {
			return err
		}
		log.Debug().Dur("elapsed", time.Since(start)).Int("iterations", report.Params.Iterations).Msg("simulation finished")

		printReport(report)
		return nil
	},
}

func init() {
	simulateCmd.Flags().Float64("return", 0.08, "expected one-period return")
	simulateCmd.Flags().Float64("vol", 0.2, "one-period volatility")
	simulateCmd.Flags().Int("iterations", 0, "number of trials (default: simulation.iterations)")
	simulateCmd.Flags().Uint64("seed", 0, "random seed; 0 draws one")
}

func printReport(r simulation.Report) {
	s := r.Summary
	color.Cyan("🎲 Monte Carlo: %s over %d trials (seed %d)",
		utils.FormatUSD(r.Params.InitialAmount), r.Params.Iterations, r.Params.Seed)

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Statistic", "Value"})
	table.SetAlignment(tablewriter.ALIGN_RIGHT)
	for _, row := range [][2]string{
		{"Mean", utils.FormatUSD(s.Mean)},
		{"Median", utils.FormatUSD(s.Median)},
		{"Std dev", utils.FormatUSD(s.StdDev)},
		{"Min", utils.FormatUSD(s.Min)},
		{"5th pct", utils.FormatUSD(s.P5)},
		{"25th pct", utils.FormatUSD(s.P25)},
		{"75th pct", utils.FormatUSD(s.P75)},
		{"95th pct", utils.FormatUSD(s.P95)},
		{"Max", utils.FormatUSD(s.Max)},
		{"P(loss)", fmt.Sprintf("%.2f%%", s.ProbabilityOfLoss*100)},
	} {
		table.Append(row[:])
	}
	table.Render()

	for _, ci := range r.Intervals {
		fmt.Printf("  %.0f%% interval: %s to %s\n", ci.Level*100, utils.FormatUSD(ci.Lower), utils.FormatUSD(ci.Upper))
	}
	fmt.Printf("  Parametric VaR 95%%:  %s\n", color.RedString(utils.FormatUSD(r.ParametricVaR95)))
	fmt.Printf("  Parametric CVaR 95%%: %s\n", color.RedString(utils.FormatUSD(r.ParametricCVaR95)))
	fmt.Printf("  Empirical VaR 95%%:   %s\n", utils.FormatUSD(r.EmpiricalVaR95))
	fmt.Printf("  Empirical CVaR 95%%:  %s\n", utils.FormatUSD(r.EmpiricalCVaR95))
}

func f2(v float64) string { return strconv.FormatFloat(v, 'f', 2, 64) }
func f4(v float64) string { return strconv.FormatFloat(v, 'f', 4, 64) }
