package marketdata

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/gnidc/Sheet-Manager-sub001/internal/models"
)

// HTTPSource reads bars from a JSON endpoint:
//
//	GET {base}/v1/bars/{symbol}?start=YYYY-MM-DD&end=YYYY-MM-DD&interval=1d
//	{"symbol":"005930","bars":[{"t":"...","o":1,"h":1,"l":1,"c":1,"v":1}]}
type HTTPSource struct {
	http *resty.Client
}

type barsResponse struct {
	Symbol string            `json:"symbol"`
	Bars   []models.PriceBar `json:"bars"`
}

func NewHTTPSource(baseURL, apiKey string, timeout time.Duration) *HTTPSource {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	c := resty.New().
		SetBaseURL(strings.TrimRight(baseURL, "/")).
		SetTimeout(timeout).
		SetHeader("Accept", "application/json")
	if apiKey != "" {
		c.SetHeader("X-API-Key", apiKey)
	}
	return &HTTPSource{http: c}
}

func (s *HTTPSource) Name() string { return "http" }

func (s *HTTPSource) FetchDaily(ctx context.Context, symbol string, start, end time.Time) ([]models.PriceBar, error) {
	var body barsResponse
	resp, err := s.http.R().
		SetContext(ctx).
		SetPathParam("symbol", symbol).
		SetQueryParams(map[string]string{
			"start":    start.Format("2006-01-02"),
			"end":      end.Format("2006-01-02"),
			"interval": "1d",
		}).
		SetResult(&body).
		Get("/v1/bars/{symbol}")
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: %v", ErrTransient, err)
	}
	if err := classifyStatus(resp); err != nil {
		return nil, err
	}
	if len(body.Bars) == 0 {
		return nil, ErrNoData
	}
	bars := body.Bars
	sort.Slice(bars, func(i, j int) bool { return bars[i].Time.Before(bars[j].Time) })
	return bars, nil
}

func classifyStatus(resp *resty.Response) error {
	code := resp.StatusCode()
	switch {
	case code >= 200 && code < 300:
		return nil
	case code == http.StatusNotFound:
		return ErrNoData
	case code == http.StatusTooManyRequests || code == http.StatusRequestTimeout || code >= 500:
		return fmt.Errorf("%w: HTTP %d", ErrTransient, code)
	default:
		return fmt.Errorf("price source: HTTP %d: %s", code, strings.TrimSpace(string(resp.Body())))
	}
}
