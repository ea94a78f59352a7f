// MarketDesk: option pricing, strategy payoffs and Monte Carlo risk over a
// synthetic US equity market.
//
// Main CLI entrypoint using cobra command framework.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/fatih/color"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/seenimoa/marketdesk/api"
	"github.com/seenimoa/marketdesk/internal/config"
	"github.com/seenimoa/marketdesk/internal/datasource"
	"github.com/seenimoa/marketdesk/internal/logging"
	"github.com/seenimoa/marketdesk/pkg/utils"
)

// Build-time variables (set via -ldflags).
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// Global config and logger, set in PersistentPreRunE.
var (
	cfg *config.Config
	log zerolog.Logger
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		color.Red("Error: %v", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "marketdesk",
	Short: "MarketDesk: option pricing, strategies and risk simulation",
	Long: `MarketDesk prices European options with Black-Scholes, solves implied
volatility, evaluates multi-leg option strategies at expiry and runs Monte
Carlo investment simulations over a deterministic synthetic market.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		configFile, _ := cmd.Flags().GetString("config")
		if configFile != "" {
			cfg, err = config.LoadFromFile(configFile)
		} else {
			cfg, err = config.Load()
		}
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		if lvl, _ := cmd.Flags().GetString("log-level"); lvl != "" {
			cfg.Logging.Level = lvl
		}
		log = logging.New(cfg.Logging)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "config file path (default: ./config/config.yaml)")
	rootCmd.PersistentFlags().String("log-level", "", "log level override (debug, info, warn, error)")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(priceCmd)
	rootCmd.AddCommand(greeksCmd)
	rootCmd.AddCommand(ivCmd)
	rootCmd.AddCommand(strategyCmd)
	rootCmd.AddCommand(simulateCmd)
	rootCmd.AddCommand(quoteCmd)
	rootCmd.AddCommand(newsCmd)
	rootCmd.AddCommand(summaryCmd)
}

// newAggregator wires the synthetic market and the news client from cfg.
func newAggregator() *datasource.Aggregator {
	market := datasource.NewMarket(cfg.Market, cfg.Options.RiskFreeRate)
	news := datasource.NewNews(cfg.News, log)
	return datasource.NewAggregator(market, news, log)
}

// signalContext is cancelled on Ctrl-C.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// --- Version Command ---

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("MarketDesk %s\n", version)
		fmt.Printf("  commit:  %s\n", commit)
		fmt.Printf("  built:   %s\n", date)
	},
}

// --- Serve Command (API Server) ---

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	RunE: func(cmd *cobra.Command, args []string) error {
		if port, _ := cmd.Flags().GetInt("port"); port > 0 {
			cfg.API.Port = port
		}
		if err := cfg.Validate(); err != nil {
			return err
		}
		api.Version = version

		srv, err := api.NewServer(cfg, api.WithLogger(log))
		if err != nil {
			return err
		}
		color.Cyan("🌐 Starting MarketDesk API server on %s", srv.Addr())
		return srv.ListenAndServe(cmd.Context(), srv.Addr())
	},
}

func init() {
	serveCmd.Flags().Int("port", 0, "override api.port")
}

// --- Status Command ---

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show system status and configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		now := utils.NowET()
		fmt.Println("═══════════════════════════════════════")
		fmt.Println("  MarketDesk: System Status")
		fmt.Println("═══════════════════════════════════════")
		fmt.Printf("  Version:       %s (%s)\n", version, commit)
		fmt.Printf("  Market Status: %s\n", utils.MarketStatusAt(now))
		fmt.Printf("  Time (ET):     %s\n", utils.FormatDateTimeET(now))
		fmt.Println()

		fmt.Println("  Configuration:")
		fmt.Printf("    LLM Provider:  %s (model: %s)\n", cfg.LLM.Primary, cfg.LLM.Model)
		fmt.Printf("    Market Seed:   %d\n", cfg.Market.Seed)
		fmt.Printf("    Watchlist:     %s\n", strings.Join(cfg.Market.Watchlist, ", "))
		fmt.Printf("    Risk-free:     %.2f%%\n", cfg.Options.RiskFreeRate*100)
		fmt.Printf("    News Feeds:    %d\n", len(cfg.News.Feeds))
		fmt.Printf("    API Server:    %s:%d\n", cfg.API.Host, cfg.API.Port)
		fmt.Println()

		fmt.Println("  API Keys:")
		for _, k := range config.CheckAPIKeys(cfg) {
			status := color.RedString("not set")
			if k.IsSet {
				status = color.GreenString("set (%s: %s)", k.Source, k.Masked)
			}
			fmt.Printf("    %-25s %s\n", k.Name+":", status)
		}

		fmt.Println("═══════════════════════════════════════")
		return nil
	},
}

// --- Config Command ---

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration as YAML (secrets masked)",
	RunE: func(cmd *cobra.Command, args []string) error {
		out, err := config.Dump(cfg)
		if err != nil {
			return err
		}
		_, err = os.Stdout.Write(out)
		return err
	},
}

func init() {
	configCmd.AddCommand(configShowCmd)
}
