// Package marketdata fetches daily price history for the evaluators.
package marketdata

import (
	"context"
	"errors"
	"time"

	"github.com/gnidc/Sheet-Manager-sub001/internal/models"
)

var (
	// ErrNoData means the source answered but has no bars for the symbol.
	ErrNoData = errors.New("no price data")
	// ErrTransient marks failures worth one more attempt (network, 5xx, 429).
	ErrTransient = errors.New("price source temporarily unavailable")
)

// Source is one upstream of daily bars. Bars are returned oldest first.
type Source interface {
	Name() string
	FetchDaily(ctx context.Context, symbol string, start, end time.Time) ([]models.PriceBar, error)
}

// calendarSpan is a calendar-day window wide enough to cover n trading days.
func calendarSpan(n int) time.Duration {
	if n <= 0 {
		n = 1
	}
	days := n*7/5 + 10
	return time.Duration(days) * 24 * time.Hour
}

func lastN(bars []models.PriceBar, n int) []models.PriceBar {
	if n > 0 && len(bars) > n {
		return bars[len(bars)-n:]
	}
	return bars
}
