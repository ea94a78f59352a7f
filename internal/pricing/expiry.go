package pricing

import (
	"fmt"
	"time"

	"github.com/seenimoa/marketdesk/pkg/utils"
)

// YearsToExpiry converts the interval until expiry into an ACT/365 year
// fraction. Expired contracts return 0.
func YearsToExpiry(now, expiry time.Time) float64 {
	d := expiry.Sub(now)
	if d <= 0 {
		return 0
	}
	return d.Hours() / 24 / DaysPerYear
}

// ParseExpiry parses a YYYY-MM-DD expiration date. Contracts expire at the
// 4:00 PM US/Eastern close.
func ParseExpiry(date string) (time.Time, error) {
	d, err := utils.ParseDateET(date)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: expiry %q: want YYYY-MM-DD", ErrInvalidInput, date)
	}
	return utils.MarketCloseTime(d), nil
}
