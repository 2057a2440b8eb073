package marketdata

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/alpacahq/alpaca-trade-api-go/v3/alpaca"
	alpacamd "github.com/alpacahq/alpaca-trade-api-go/v3/marketdata"

	"github.com/gnidc/Sheet-Manager-sub001/internal/models"
)

// AlpacaSource reads daily bars from the Alpaca market-data API.
type AlpacaSource struct {
	client *alpacamd.Client
	feed   string
}

func NewAlpacaSource(apiKey, apiSecret, dataURL, feed string) *AlpacaSource {
	opts := alpacamd.ClientOpts{
		APIKey:    apiKey,
		APISecret: apiSecret,
	}
	if dataURL != "" {
		opts.BaseURL = dataURL
	}
	if feed == "" {
		feed = "iex"
	}
	return &AlpacaSource{client: alpacamd.NewClient(opts), feed: feed}
}

func (s *AlpacaSource) Name() string { return "alpaca" }

func (s *AlpacaSource) FetchDaily(ctx context.Context, symbol string, start, end time.Time) ([]models.PriceBar, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	type result struct {
		bars []alpacamd.Bar
		err  error
	}
	// The SDK call takes no context; run it aside so the per-call timeout still applies.
	ch := make(chan result, 1)
	go func() {
		bars, err := s.client.GetBars(strings.ToUpper(symbol), alpacamd.GetBarsRequest{
			TimeFrame: alpacamd.OneDay,
			Start:     start,
			End:       end,
			Feed:      alpacamd.Feed(s.feed),
		})
		ch <- result{bars: bars, err: err}
	}()

	var res result
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res = <-ch:
	}
	if res.err != nil {
		return nil, classifyAlpacaError(res.err)
	}
	if len(res.bars) == 0 {
		return nil, ErrNoData
	}

	out := make([]models.PriceBar, 0, len(res.bars))
	for _, b := range res.bars {
		out = append(out, models.PriceBar{
			Time:   b.Timestamp.UTC(),
			Open:   b.Open,
			High:   b.High,
			Low:    b.Low,
			Close:  b.Close,
			Volume: float64(b.Volume),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Time.Before(out[j].Time) })
	return out, nil
}

func classifyAlpacaError(err error) error {
	var apiErr *alpaca.APIError
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.StatusCode == http.StatusNotFound || apiErr.StatusCode == http.StatusUnprocessableEntity:
			return fmt.Errorf("%w: %s", ErrNoData, apiErr.Message)
		case apiErr.StatusCode == http.StatusTooManyRequests || apiErr.StatusCode >= 500:
			return fmt.Errorf("%w: %v", ErrTransient, err)
		default:
			return err
		}
	}
	return fmt.Errorf("%w: %v", ErrTransient, err)
}
