// Package utils provides common utility functions for MarketDesk.
package utils

import (
	"fmt"
	"math"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var usPrinter = message.NewPrinter(language.English)

// FormatUSD formats a dollar amount with thousands separators.
// e.g., 1234567.891 → "$1,234,567.89", -42 → "-$42.00"
func FormatUSD(amount float64) string {
	if math.IsInf(amount, 1) {
		return "unbounded"
	}
	if math.IsInf(amount, -1) {
		return "-unbounded"
	}
	if amount < 0 {
		return "-$" + usPrinter.Sprintf("%.2f", -amount)
	}
	return "$" + usPrinter.Sprintf("%.2f", amount)
}

// FormatUSDCompact formats a large dollar amount with a magnitude suffix.
// e.g., 2_500_000 → "$2.5M", 3.1e12 → "$3.1T"
func FormatUSDCompact(amount float64) string {
	prefix := "$"
	if amount < 0 {
		prefix = "-$"
		amount = -amount
	}

	switch {
	case amount >= 1e12:
		return prefix + formatWithDecimals(amount/1e12) + "T"
	case amount >= 1e9:
		return prefix + formatWithDecimals(amount/1e9) + "B"
	case amount >= 1e6:
		return prefix + formatWithDecimals(amount/1e6) + "M"
	case amount >= 1e3:
		return prefix + formatWithDecimals(amount/1e3) + "K"
	default:
		return fmt.Sprintf("%s%.2f", prefix, amount)
	}
}

// FormatPct formats a percentage value with sign and suffix.
// e.g., 2.45 → "+2.45%", -1.23 → "-1.23%"
func FormatPct(pct float64) string {
	if pct >= 0 {
		return fmt.Sprintf("+%.2f%%", pct)
	}
	return fmt.Sprintf("%.2f%%", pct)
}

// FormatVolume formats share volume in human-readable form.
// e.g., 1500 → "1.50K", 25000000 → "25.00M"
func FormatVolume(volume int64) string {
	v := float64(volume)
	switch {
	case v >= 1e9:
		return fmt.Sprintf("%.2fB", v/1e9)
	case v >= 1e6:
		return fmt.Sprintf("%.2fM", v/1e6)
	case v >= 1e3:
		return fmt.Sprintf("%.2fK", v/1e3)
	default:
		return fmt.Sprintf("%d", volume)
	}
}

// formatWithDecimals formats a number with up to 2 decimal places,
// removing trailing zeros.
func formatWithDecimals(n float64) string {
	s := fmt.Sprintf("%.2f", n)
	s = strings.TrimRight(s, "0")
	s = strings.TrimRight(s, ".")
	return s
}
