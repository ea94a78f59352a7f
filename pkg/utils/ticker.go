package utils

import (
	"strings"
)

// Common US ticker aliases.
var tickerAliases = map[string]string{
	"APPLE":     "AAPL",
	"MICROSOFT": "MSFT",
	"GOOGLE":    "GOOGL",
	"ALPHABET":  "GOOGL",
	"GOOG":      "GOOGL",
	"AMAZON":    "AMZN",
	"TESLA":     "TSLA",
	"NVIDIA":    "NVDA",
	"FACEBOOK":  "META",
	"FB":        "META",
	"JPMORGAN":  "JPM",
	"JP MORGAN": "JPM",
	"BRK.B":     "BRK-B",
	"BRK/B":     "BRK-B",
}

// Index tickers and their display names.
var indexTickers = map[string]string{
	"SPX":    "^GSPC",
	"SP500":  "^GSPC",
	"S&P500": "^GSPC",
	"^GSPC":  "^GSPC",
	"NDX":    "^NDX",
	"^NDX":   "^NDX",
	"DJI":    "^DJI",
	"DOW":    "^DJI",
	"^DJI":   "^DJI",
	"VIX":    "^VIX",
	"^VIX":   "^VIX",
}

// NormalizeTicker normalizes a user-input ticker to its canonical form.
// It handles aliases, uppercasing, and whitespace.
func NormalizeTicker(ticker string) string {
	ticker = strings.TrimSpace(strings.ToUpper(ticker))

	// Remove $ prefix if present (common in chat)
	ticker = strings.TrimPrefix(ticker, "$")

	if idx, ok := indexTickers[ticker]; ok {
		return idx
	}
	if canonical, ok := tickerAliases[ticker]; ok {
		return canonical
	}
	return ticker
}

// IsIndex checks if the ticker is an index (not a stock).
func IsIndex(ticker string) bool {
	_, ok := indexTickers[NormalizeTicker(ticker)]
	return ok
}

// IsValidTicker reports whether s looks like a US equity or index symbol.
func IsValidTicker(s string) bool {
	s = NormalizeTicker(s)
	if s == "" || len(s) > 10 {
		return false
	}
	for i, r := range s {
		switch {
		case r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		case r == '^' && i == 0:
		case (r == '-' || r == '.') && i > 0:
		default:
			return false
		}
	}
	return true
}
