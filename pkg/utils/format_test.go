package utils

import (
	"math"
	"testing"
)

func TestFormatUSD(t *testing.T) {
	tests := []struct {
		input    float64
		expected string
	}{
		{0, "$0.00"},
		{42, "$42.00"},
		{1234.5, "$1,234.50"},
		{1234567.891, "$1,234,567.89"},
		{-2490, "-$2,490.00"},
		{math.Inf(1), "unbounded"},
		{math.Inf(-1), "-unbounded"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			result := FormatUSD(tt.input)
			if result != tt.expected {
				t.Errorf("FormatUSD(%f) = %s, want %s", tt.input, result, tt.expected)
			}
		})
	}
}

func TestFormatUSDCompact(t *testing.T) {
	tests := []struct {
		input    float64
		expected string
	}{
		{999, "$999.00"},
		{1500, "$1.5K"},
		{2500000, "$2.5M"},
		{7.25e9, "$7.25B"},
		{3.1e12, "$3.1T"},
		{-2000000, "-$2M"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			result := FormatUSDCompact(tt.input)
			if result != tt.expected {
				t.Errorf("FormatUSDCompact(%f) = %s, want %s", tt.input, result, tt.expected)
			}
		})
	}
}

func TestFormatPct(t *testing.T) {
	tests := []struct {
		input    float64
		expected string
	}{
		{2.45, "+2.45%"},
		{-1.23, "-1.23%"},
		{0.0, "+0.00%"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			result := FormatPct(tt.input)
			if result != tt.expected {
				t.Errorf("FormatPct(%f) = %s, want %s", tt.input, result, tt.expected)
			}
		})
	}
}

func TestFormatVolume(t *testing.T) {
	tests := []struct {
		input    int64
		expected string
	}{
		{500, "500"},
		{1500, "1.50K"},
		{25000000, "25.00M"},
		{1200000000, "1.20B"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			result := FormatVolume(tt.input)
			if result != tt.expected {
				t.Errorf("FormatVolume(%d) = %s, want %s", tt.input, result, tt.expected)
			}
		})
	}
}
