package universe

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gnidc/Sheet-Manager-sub001/internal/cache"
	"github.com/gnidc/Sheet-Manager-sub001/internal/models"
)

type fakeSource struct {
	calls int
	items []models.IndexConstituent
	err   error
}

func (f *fakeSource) Constituents(ctx context.Context, indices []string) ([]models.IndexConstituent, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	want := map[string]bool{}
	for _, i := range indices {
		want[i] = true
	}
	var out []models.IndexConstituent
	for _, it := range f.items {
		if want[it.IndexCode] {
			out = append(out, it)
		}
	}
	return out, nil
}

type fakeAssets map[string]bool

func (f fakeAssets) Tradable(ctx context.Context) (map[string]bool, error) { return f, nil }

func member(index, symbol string) models.IndexConstituent {
	return models.IndexConstituent{IndexCode: index, Symbol: symbol, Name: "n-" + symbol, Market: "KOSPI"}
}

func TestProvider_Load(t *testing.T) {
	src := &fakeSource{items: []models.IndexConstituent{
		member("KOSPI200", "035420"),
		member("KOSPI200", "005930"),
		member("KOSDAQ150", "005930"),
		member("KOSDAQ150", "247540"),
		{IndexCode: "KOSPI200", Symbol: "000001", Name: "", Market: "KOSPI"},
		member("KOSPI200", "000660"),
	}}
	p := &Provider{Source: src, DefaultIndices: []string{"KOSPI200", "KOSDAQ150"}}

	got, err := p.Load(context.Background(), 1, "t1", Filter{})
	require.NoError(t, err)
	assert.Equal(t, []string{"000660", "005930", "035420", "247540"}, got)

	got, err = p.Load(context.Background(), 1, "t1", Filter{Indices: []string{"kospi200"}, Exclude: []string{"000660"}, Limit: 1})
	require.NoError(t, err)
	assert.Equal(t, []string{"005930"}, got)
}

func TestProvider_ExcludesUntradable(t *testing.T) {
	src := &fakeSource{items: []models.IndexConstituent{member("SP", "AAPL"), member("SP", "DELISTED")}}
	p := &Provider{Source: src, Assets: fakeAssets{"AAPL": true}}

	got, err := p.Load(context.Background(), 1, "t1", Filter{Indices: []string{"SP"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"AAPL"}, got)
}

func TestProvider_CachesWithinTickOnly(t *testing.T) {
	src := &fakeSource{items: []models.IndexConstituent{member("SP", "AAPL")}}
	p := &Provider{Source: src, Cache: cache.NewMemoryStore(), CacheTTL: time.Minute}

	_, err := p.Load(context.Background(), 1, "t1", Filter{Indices: []string{"SP"}})
	require.NoError(t, err)
	_, err = p.Load(context.Background(), 1, "t1", Filter{Indices: []string{"SP"}})
	require.NoError(t, err)
	assert.Equal(t, 1, src.calls)

	_, err = p.Load(context.Background(), 1, "t2", Filter{Indices: []string{"SP"}})
	require.NoError(t, err)
	assert.Equal(t, 2, src.calls)
}

func TestProvider_CachePerRule(t *testing.T) {
	src := &fakeSource{items: []models.IndexConstituent{member("SP", "AAPL")}}
	p := &Provider{Source: src, Cache: cache.NewMemoryStore(), CacheTTL: time.Minute}
	f := Filter{Indices: []string{"SP"}}

	_, err := p.Load(context.Background(), 1, "t1", f)
	require.NoError(t, err)
	_, err = p.Load(context.Background(), 2, "t1", f)
	require.NoError(t, err)
	assert.Equal(t, 2, src.calls, "rules sharing a tick and filter resolve separately")

	_, err = p.Load(context.Background(), 2, "t1", f)
	require.NoError(t, err)
	assert.Equal(t, 2, src.calls)
}

func TestProvider_Errors(t *testing.T) {
	boom := errors.New("db down")
	p := &Provider{Source: &fakeSource{err: boom}}
	_, err := p.Load(context.Background(), 1, "t1", Filter{Indices: []string{"SP"}})
	assert.ErrorIs(t, err, boom)

	p = &Provider{Source: &fakeSource{}}
	_, err = p.Load(context.Background(), 1, "t1", Filter{Indices: []string{"SP"}})
	assert.ErrorIs(t, err, ErrEmptyUniverse)

	_, err = p.Load(context.Background(), 1, "t1", Filter{})
	assert.Error(t, err, "no indices and no defaults")
}

func TestParseFilter(t *testing.T) {
	f, err := ParseFilter(nil)
	require.NoError(t, err)
	assert.Equal(t, Filter{}, f)

	f, err = ParseFilter([]byte(`{"indices":["KOSPI200"],"exclude":["005930"],"limit":10}`))
	require.NoError(t, err)
	assert.Equal(t, 10, f.Limit)
	assert.Equal(t, []string{"KOSPI200"}, f.Indices)

	_, err = ParseFilter([]byte(`{"limit":-1}`))
	assert.Error(t, err)
	_, err = ParseFilter([]byte(`{`))
	assert.Error(t, err)
}

func TestHTTPSource_Constituents(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/indices/KOSPI200/constituents" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"index":"KOSPI200","items":[{"symbol":"005930","name":"Samsung Electronics","market":"KOSPI"}]}`))
	}))
	defer srv.Close()

	src := NewHTTPSource(srv.URL, "", time.Second)
	items, err := src.Constituents(context.Background(), []string{"KOSPI200"})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "KOSPI200", items[0].IndexCode)
	assert.Equal(t, "005930", items[0].Symbol)

	_, err = src.Constituents(context.Background(), []string{"NOPE"})
	assert.Error(t, err)
}
