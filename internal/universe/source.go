package universe

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/alpacahq/alpaca-trade-api-go/v3/alpaca"
	"github.com/go-resty/resty/v2"

	"github.com/gnidc/Sheet-Manager-sub001/internal/models"
	"github.com/gnidc/Sheet-Manager-sub001/internal/repository"
)

// ConstituentSource lists index members with their metadata.
type ConstituentSource interface {
	Constituents(ctx context.Context, indices []string) ([]models.IndexConstituent, error)
}

// DBSource reads the index_constituents table.
type DBSource struct {
	Repo repository.UniverseRepository
}

func (s DBSource) Constituents(ctx context.Context, indices []string) ([]models.IndexConstituent, error) {
	if s.Repo == nil {
		return nil, errors.New("universe repository not configured")
	}
	return s.Repo.ListConstituents(ctx, indices)
}

// HTTPSource reads constituents from a vendor endpoint:
//
//	GET {base}/v1/indices/{index}/constituents
//	{"index":"KOSPI200","items":[{"symbol":"005930","name":"...","market":"KOSPI"}]}
type HTTPSource struct {
	http *resty.Client
}

type constituentsResponse struct {
	Index string `json:"index"`
	Items []struct {
		Symbol       string `json:"symbol"`
		Name         string `json:"name"`
		Market       string `json:"market"`
		Sector       string `json:"sector"`
		ListedShares int64  `json:"listed_shares"`
	} `json:"items"`
}

func NewHTTPSource(baseURL, apiKey string, timeout time.Duration) *HTTPSource {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	c := resty.New().
		SetBaseURL(strings.TrimRight(baseURL, "/")).
		SetTimeout(timeout).
		SetRetryCount(1).
		SetRetryWaitTime(300 * time.Millisecond).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			if err != nil {
				return true
			}
			return r != nil && (r.StatusCode() == http.StatusTooManyRequests || r.StatusCode() >= 500)
		})
	if apiKey != "" {
		c.SetHeader("X-API-Key", apiKey)
	}
	return &HTTPSource{http: c}
}

func (s *HTTPSource) Constituents(ctx context.Context, indices []string) ([]models.IndexConstituent, error) {
	var out []models.IndexConstituent
	for _, index := range indices {
		var body constituentsResponse
		resp, err := s.http.R().
			SetContext(ctx).
			SetPathParam("index", index).
			SetResult(&body).
			Get("/v1/indices/{index}/constituents")
		if err != nil {
			return nil, fmt.Errorf("constituents %s: %w", index, err)
		}
		if resp.StatusCode() != http.StatusOK {
			return nil, fmt.Errorf("constituents %s: HTTP %d", index, resp.StatusCode())
		}
		for _, it := range body.Items {
			out = append(out, models.IndexConstituent{
				IndexCode:    index,
				Symbol:       it.Symbol,
				Name:         it.Name,
				Market:       it.Market,
				Sector:       it.Sector,
				ListedShares: it.ListedShares,
			})
		}
	}
	return out, nil
}

// AssetChecker reports which symbols the broker can currently trade.
type AssetChecker interface {
	Tradable(ctx context.Context) (map[string]bool, error)
}

// AlpacaAssets lists active, tradable assets from the Alpaca trading API.
type AlpacaAssets struct {
	client *alpaca.Client
}

func NewAlpacaAssets(client *alpaca.Client) *AlpacaAssets {
	return &AlpacaAssets{client: client}
}

func (a *AlpacaAssets) Tradable(ctx context.Context) (map[string]bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	assets, err := a.client.GetAssets(alpaca.GetAssetsRequest{Status: "active"})
	if err != nil {
		return nil, fmt.Errorf("alpaca assets: %w", err)
	}
	out := make(map[string]bool, len(assets))
	for _, as := range assets {
		if as.Tradable && string(as.Status) == "active" {
			out[strings.ToUpper(as.Symbol)] = true
		}
	}
	return out, nil
}
