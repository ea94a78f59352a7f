package utils

import (
	"time"
)

// Eastern is the US/Eastern location used by NYSE and Nasdaq.
var Eastern *time.Location

func init() {
	var err error
	Eastern, err = time.LoadLocation("America/New_York")
	if err != nil {
		// Fallback: fixed EST zone if tz database is not available
		Eastern = time.FixedZone("ET", -5*60*60)
	}
}

// NowET returns the current time in US/Eastern.
func NowET() time.Time {
	return time.Now().In(Eastern)
}

// MarketOpenTime returns the regular session open (9:30 AM ET) for a given date.
func MarketOpenTime(date time.Time) time.Time {
	d := date.In(Eastern)
	return time.Date(d.Year(), d.Month(), d.Day(), 9, 30, 0, 0, Eastern)
}

// MarketCloseTime returns the regular session close (4:00 PM ET) for a given date.
func MarketCloseTime(date time.Time) time.Time {
	d := date.In(Eastern)
	return time.Date(d.Year(), d.Month(), d.Day(), 16, 0, 0, 0, Eastern)
}

// PreMarketStart returns the pre-market session start (4:00 AM ET).
func PreMarketStart(date time.Time) time.Time {
	d := date.In(Eastern)
	return time.Date(d.Year(), d.Month(), d.Day(), 4, 0, 0, 0, Eastern)
}

// IsMarketOpen checks if the US equity market is currently open.
func IsMarketOpen() bool {
	return IsMarketOpenAt(NowET())
}

// IsMarketOpenAt checks if the market would be open at the given time.
func IsMarketOpenAt(t time.Time) bool {
	t = t.In(Eastern)
	if !IsTradingDay(t) {
		return false
	}
	return !t.Before(MarketOpenTime(t)) && t.Before(MarketCloseTime(t))
}

// NextTradingDay returns the next trading day after the given date.
func NextTradingDay(from time.Time) time.Time {
	next := from.In(Eastern).AddDate(0, 0, 1)
	for !IsTradingDay(next) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}

// PrevTradingDay returns the previous trading day before the given date.
func PrevTradingDay(from time.Time) time.Time {
	prev := from.In(Eastern).AddDate(0, 0, -1)
	for !IsTradingDay(prev) {
		prev = prev.AddDate(0, 0, -1)
	}
	return prev
}

// IsTradingDay checks if the given date is a trading day (not weekend, not holiday).
func IsTradingDay(t time.Time) bool {
	t = t.In(Eastern)
	if t.Weekday() == time.Saturday || t.Weekday() == time.Sunday {
		return false
	}
	return !IsTradingHoliday(t)
}

// TradingDaysBetween returns the number of trading days between two dates (exclusive of end).
func TradingDaysBetween(start, end time.Time) int {
	start = start.In(Eastern)
	end = end.In(Eastern)
	count := 0
	for current := start; current.Before(end); current = current.AddDate(0, 0, 1) {
		if IsTradingDay(current) {
			count++
		}
	}
	return count
}

// IsTradingHoliday checks if the given date is an NYSE holiday.
func IsTradingHoliday(t time.Time) bool {
	_, isHoliday := nyseHolidays2026[t.In(Eastern).Format("2006-01-02")]
	return isHoliday
}

// NYSE holidays for 2026 (update annually).
var nyseHolidays2026 = map[string]string{
	"2026-01-01": "New Year's Day",
	"2026-01-19": "Martin Luther King Jr. Day",
	"2026-02-16": "Washington's Birthday",
	"2026-04-03": "Good Friday",
	"2026-05-25": "Memorial Day",
	"2026-06-19": "Juneteenth",
	"2026-07-03": "Independence Day (observed)",
	"2026-09-07": "Labor Day",
	"2026-11-26": "Thanksgiving Day",
	"2026-12-25": "Christmas Day",
}

// GetTradingHolidays returns all trading holidays for the current year.
func GetTradingHolidays() map[string]string {
	return nyseHolidays2026
}

// ThirdFriday returns the standard monthly options expiration date for
// the given month. When the third Friday is an exchange holiday the
// expiration moves to the preceding trading day.
func ThirdFriday(year int, month time.Month) time.Time {
	first := time.Date(year, month, 1, 0, 0, 0, 0, Eastern)
	offset := (int(time.Friday) - int(first.Weekday()) + 7) % 7
	d := first.AddDate(0, 0, offset+14)
	for !IsTradingDay(d) {
		d = d.AddDate(0, 0, -1)
	}
	return d
}

// MonthlyExpiries returns the next n monthly expirations, at market close,
// strictly after from.
func MonthlyExpiries(from time.Time, n int) []time.Time {
	from = from.In(Eastern)
	out := make([]time.Time, 0, n)
	y, m := from.Year(), from.Month()
	for len(out) < n {
		exp := MarketCloseTime(ThirdFriday(y, m))
		if exp.After(from) {
			out = append(out, exp)
		}
		m++
		if m > time.December {
			m = time.January
			y++
		}
	}
	return out
}

// ParseDateET parses a date string in "2006-01-02" format in US/Eastern.
func ParseDateET(dateStr string) (time.Time, error) {
	return time.ParseInLocation("2006-01-02", dateStr, Eastern)
}

// FormatDateET formats a time.Time to "2006-01-02" in US/Eastern.
func FormatDateET(t time.Time) string {
	return t.In(Eastern).Format("2006-01-02")
}

// FormatDateTimeET formats a time.Time to "2006-01-02 15:04:05 MST" in US/Eastern.
func FormatDateTimeET(t time.Time) string {
	return t.In(Eastern).Format("2006-01-02 15:04:05 MST")
}

// MarketStatus returns the current market status string.
func MarketStatus() string {
	return MarketStatusAt(NowET())
}

// MarketStatusAt returns the market status at the given instant.
func MarketStatusAt(now time.Time) string {
	now = now.In(Eastern)

	if now.Weekday() == time.Saturday || now.Weekday() == time.Sunday {
		return "CLOSED (Weekend)"
	}
	if holiday, ok := nyseHolidays2026[now.Format("2006-01-02")]; ok {
		return "CLOSED (" + holiday + ")"
	}

	switch {
	case now.Before(PreMarketStart(now)):
		return "CLOSED"
	case now.Before(MarketOpenTime(now)):
		return "PRE-MARKET"
	case now.Before(MarketCloseTime(now)):
		return "OPEN"
	case now.Hour() < 20:
		return "AFTER-HOURS"
	default:
		return "CLOSED"
	}
}
