package marketdata

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gnidc/Sheet-Manager-sub001/internal/cache"
	"github.com/gnidc/Sheet-Manager-sub001/internal/models"
)

type fakeSource struct {
	mu    sync.Mutex
	calls int
	errs  []error
	bars  []models.PriceBar
	delay time.Duration
}

func (f *fakeSource) Name() string { return "fake" }

func (f *fakeSource) FetchDaily(ctx context.Context, symbol string, start, end time.Time) ([]models.PriceBar, error) {
	f.mu.Lock()
	f.calls++
	n := f.calls
	f.mu.Unlock()
	if f.delay > 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(f.delay):
		}
	}
	if n <= len(f.errs) && f.errs[n-1] != nil {
		return nil, f.errs[n-1]
	}
	return f.bars, nil
}

func makeBars(n int) []models.PriceBar {
	start := time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC)
	out := make([]models.PriceBar, n)
	for i := range out {
		v := 100 + float64(i)
		out[i] = models.PriceBar{Time: start.AddDate(0, 0, i), Open: v, High: v, Low: v, Close: v, Volume: 1000}
	}
	return out
}

func newTestProvider(src Source, store cache.Store) *Provider {
	p := NewProvider(src, store, ProviderOptions{CallTimeout: 50 * time.Millisecond, CacheTTL: time.Minute}, nil)
	p.Policy.Sleep = func(ctx context.Context, d time.Duration) error { return nil }
	p.now = func() time.Time { return time.Date(2026, 3, 2, 15, 0, 0, 0, time.UTC) }
	return p
}

func TestProvider_RetriesTransientOnce(t *testing.T) {
	src := &fakeSource{errs: []error{ErrTransient}, bars: makeBars(10)}
	p := newTestProvider(src, nil)

	bars, err := p.GetBars(context.Background(), "005930", 5)
	require.NoError(t, err)
	assert.Len(t, bars, 5)
	assert.Equal(t, 2, src.calls)
	assert.Equal(t, 109.0, bars[len(bars)-1].Close)
}

func TestProvider_GivesUpAfterSecondFailure(t *testing.T) {
	src := &fakeSource{errs: []error{ErrTransient, ErrTransient, nil}, bars: makeBars(10)}
	p := newTestProvider(src, nil)

	_, err := p.GetBars(context.Background(), "005930", 5)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTransient)
	assert.Equal(t, 2, src.calls)
}

func TestProvider_NoDataIsNotRetried(t *testing.T) {
	src := &fakeSource{errs: []error{ErrNoData}}
	p := newTestProvider(src, nil)

	_, err := p.GetBars(context.Background(), "XXXX", 5)
	assert.ErrorIs(t, err, ErrNoData)
	assert.Equal(t, 1, src.calls)
}

func TestProvider_CallTimeoutCountsAsTransient(t *testing.T) {
	src := &fakeSource{delay: time.Second, bars: makeBars(3)}
	p := newTestProvider(src, nil)
	p.CallTimeout = 5 * time.Millisecond

	_, err := p.GetBars(context.Background(), "005930", 3)
	assert.ErrorIs(t, err, ErrTransient)
	assert.Equal(t, 2, src.calls)
}

func TestProvider_CachesPerDay(t *testing.T) {
	src := &fakeSource{bars: makeBars(10)}
	p := newTestProvider(src, cache.NewMemoryStore())

	first, err := p.GetBars(context.Background(), "005930", 8)
	require.NoError(t, err)
	second, err := p.GetBars(context.Background(), "005930", 8)
	require.NoError(t, err)
	assert.Equal(t, 1, src.calls)
	assert.Equal(t, len(first), len(second))

	p.now = func() time.Time { return time.Date(2026, 3, 3, 15, 0, 0, 0, time.UTC) }
	_, err = p.GetBars(context.Background(), "005930", 8)
	require.NoError(t, err)
	assert.Equal(t, 2, src.calls, "a new day must miss the cache")
}

func TestProvider_EmptyResultIsNoData(t *testing.T) {
	p := newTestProvider(&fakeSource{}, nil)
	_, err := p.GetBars(context.Background(), "005930", 5)
	assert.True(t, errors.Is(err, ErrNoData))
}

func TestHTTPSource_FetchDaily(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v1/bars/005930":
			assert.Equal(t, "1d", r.URL.Query().Get("interval"))
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"symbol":"005930","bars":[
				{"t":"2026-03-03T00:00:00Z","o":2,"h":2,"l":2,"c":2,"v":20},
				{"t":"2026-03-02T00:00:00Z","o":1,"h":1,"l":1,"c":1,"v":10}]}`))
		case "/v1/bars/BUSY":
			w.WriteHeader(http.StatusServiceUnavailable)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	src := NewHTTPSource(srv.URL, "k", time.Second)
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 3, 0)

	bars, err := src.FetchDaily(context.Background(), "005930", start, end)
	require.NoError(t, err)
	require.Len(t, bars, 2)
	assert.Equal(t, 1.0, bars[0].Close, "bars sorted oldest first")

	_, err = src.FetchDaily(context.Background(), "BUSY", start, end)
	assert.ErrorIs(t, err, ErrTransient)

	_, err = src.FetchDaily(context.Background(), "NOPE", start, end)
	assert.ErrorIs(t, err, ErrNoData)
}
