package market

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"token_vote/internal/cache"
	"token_vote/internal/domain"
	"token_vote/internal/infra"
)

const onePair = `{
  "schemaVersion": "1.0.0",
  "pairs": [
    {
      "baseToken": {"symbol": "BONK"},
      "quoteToken": {"symbol": "SOL"},
      "priceUsd": "1.2345",
      "liquidity": {"usd": 150000.5},
      "fdv": 9876543,
      "volume": {"h24": 42000},
      "priceChange": {"h24": -3.75},
      "info": {"imageUrl": "https://cdn.example/bonk.png"}
    },
    {
      "baseToken": {"symbol": "IGNORED"},
      "quoteToken": {"symbol": "USDC"},
      "priceUsd": "99"
    }
  ]
}`

type provider struct {
	*httptest.Server
	hits   atomic.Int32
	mu     sync.Mutex
	status int
	body   string
}

func newProvider(t *testing.T, status int, body string) *provider {
	p := &provider{status: status, body: body}
	p.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p.hits.Add(1)
		p.mu.Lock()
		status, body := p.status, p.body
		p.mu.Unlock()
		w.WriteHeader(status)
		w.Write([]byte(body))
	}))
	t.Cleanup(p.Close)
	return p
}

func (p *provider) set(status int, body string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.status, p.body = status, body
}

func newTestReader(baseURL string, clock cache.Clock) (*Reader, *infra.Metrics) {
	m := &infra.Metrics{}
	c := cache.New[string, Payload](time.Minute, clock)
	return NewReader(baseURL, c, WithMetrics(m)), m
}

func TestReader_FetchTokenData(t *testing.T) {
	p := newProvider(t, http.StatusOK, onePair)
	r, _ := newTestReader(p.URL, nil)

	view := r.FetchTokenData(context.Background(), "TOKEN1")
	require.NotNil(t, view)
	require.False(t, view.NoData)
	require.Equal(t, "TOKEN1", view.Contract)
	require.Equal(t, "BONK", view.BaseSymbol)
	require.Equal(t, "SOL", view.QuoteSymbol)
	require.Equal(t, "BONK / SOL", view.PairLabel())
	require.True(t, view.PriceUSD.Equal(decimal.RequireFromString("1.2345")))
	require.True(t, view.LiquidityUSD.Equal(decimal.RequireFromString("150000.5")))
	require.True(t, view.FDVUSD.Equal(decimal.NewFromInt(9876543)))
	require.True(t, view.Volume24hUSD.Equal(decimal.NewFromInt(42000)))
	require.True(t, view.PriceChange24hPct.Equal(decimal.RequireFromString("-3.75")))
	require.Equal(t, "negative", view.ChangeDirection())
	require.Equal(t, "https://cdn.example/bonk.png", view.ImageURL)
}

func TestReader_CachedViewSurvivesProviderFailure(t *testing.T) {
	clock := cache.NewManualClock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	p := newProvider(t, http.StatusOK, `{"pairs":[{"baseToken":{"symbol":"T"},"quoteToken":{"symbol":"SOL"},"priceUsd":"1.2345"}]}`)
	r, m := newTestReader(p.URL, clock)
	ctx := context.Background()

	first := r.FetchTokenData(ctx, "TOKEN1")
	require.NotNil(t, first)
	require.True(t, first.PriceUSD.Equal(decimal.RequireFromString("1.2345")))

	p.set(http.StatusInternalServerError, "boom")
	clock.Advance(59 * time.Second)

	res := r.Lookup(ctx, "TOKEN1")
	require.Equal(t, StatusOK, res.Status)
	require.True(t, res.Cached)
	require.Equal(t, first, res.View)
	require.Equal(t, int32(1), p.hits.Load())

	// past the TTL the provider is asked again and its failure is absorbed
	clock.Advance(time.Second)
	require.Nil(t, r.FetchTokenData(ctx, "TOKEN1"))
	require.Equal(t, int32(2), p.hits.Load())

	snap := m.Snapshot()
	require.Equal(t, uint64(1), snap.CacheHits)
	require.Equal(t, uint64(2), snap.CacheMisses)
	require.Equal(t, uint64(1), snap.MarketFailures)
}

func TestReader_NonNumericDefaultsToZero(t *testing.T) {
	p := newProvider(t, http.StatusOK, `{"pairs":[{"priceUsd":"abc","liquidity":{"usd":null},"fdv":"","volume":{},"priceChange":{"h24":"NaN"}}]}`)
	r, _ := newTestReader(p.URL, nil)

	view := r.FetchTokenData(context.Background(), "TOKEN2")
	require.NotNil(t, view)
	require.False(t, view.NoData)
	require.True(t, view.PriceUSD.IsZero())
	require.True(t, view.LiquidityUSD.IsZero())
	require.True(t, view.FDVUSD.IsZero())
	require.True(t, view.Volume24hUSD.IsZero())
	require.True(t, view.PriceChange24hPct.IsZero())
	require.Equal(t, "neutral", view.ChangeDirection())
}

func TestReader_NoPairs(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"empty pairs", `{"pairs":[]}`},
		{"null pairs", `{"schemaVersion":"1.0.0","pairs":null}`},
		{"missing pairs", `{}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newProvider(t, http.StatusOK, tt.body)
			r, _ := newTestReader(p.URL, nil)

			res := r.Lookup(context.Background(), "TOKEN3")
			require.Equal(t, StatusNoData, res.Status)
			require.NotNil(t, res.View)
			require.True(t, res.View.NoData)
			require.Empty(t, res.View.PairLabel())

			// fetched-but-empty is cached like any success
			r.Lookup(context.Background(), "TOKEN3")
			require.Equal(t, int32(1), p.hits.Load())
		})
	}
}

func TestReader_SoftFailures(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{"server error", http.StatusInternalServerError, `{"pairs":[]}`},
		{"rate limited", http.StatusTooManyRequests, ``},
		{"invalid json", http.StatusOK, `{"pairs":[`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newProvider(t, tt.status, tt.body)
			r, _ := newTestReader(p.URL, nil)

			res := r.Lookup(context.Background(), "TOKEN4")
			require.Equal(t, StatusUnavailable, res.Status)
			require.Nil(t, res.View)
			require.True(t, errors.Is(res.Err, domain.ErrMarketDataUnavailable))

			// failures are never cached
			require.Nil(t, r.FetchTokenData(context.Background(), "TOKEN4"))
			require.Equal(t, int32(2), p.hits.Load())
		})
	}

	t.Run("transport failure", func(t *testing.T) {
		p := newProvider(t, http.StatusOK, onePair)
		url := p.URL
		p.Close()

		r, _ := newTestReader(url, nil)
		require.Nil(t, r.FetchTokenData(context.Background(), "TOKEN5"))
	})
}

func TestReader_RequestPath(t *testing.T) {
	var gotPath atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath.Store(r.URL.Path)
		w.Write([]byte(`{"pairs":[]}`))
	}))
	defer srv.Close()

	r, _ := newTestReader(srv.URL+"/latest/dex/tokens/", nil)
	r.FetchTokenData(context.Background(), "So11111111111111111111111111111111111111112")
	require.Equal(t, "/latest/dex/tokens/So11111111111111111111111111111111111111112", gotPath.Load())
}

func TestReader_ConcurrentMissesCollapse(t *testing.T) {
	release := make(chan struct{})
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		<-release
		w.Write([]byte(onePair))
	}))
	defer srv.Close()

	r, _ := newTestReader(srv.URL, nil)

	const callers = 8
	var wg sync.WaitGroup
	views := make([]*domain.TokenMarketView, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			views[i] = r.FetchTokenData(context.Background(), "TOKEN6")
		}(i)
	}

	require.Eventually(t, func() bool { return hits.Load() == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	require.Equal(t, int32(1), hits.Load())
	for _, v := range views {
		require.NotNil(t, v)
		require.Equal(t, "BONK", v.BaseSymbol)
	}
}

func TestReader_CancelledCallerDoesNotFailSharedFetch(t *testing.T) {
	release := make(chan struct{})
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		<-release
		w.Write([]byte(onePair))
	}))
	defer srv.Close()
	defer close(release)

	r, m := newTestReader(srv.URL, nil)

	ctx, cancel := context.WithCancel(context.Background())
	first := make(chan Result, 1)
	go func() { first <- r.Lookup(ctx, "TOKEN7") }()

	require.Eventually(t, func() bool { return hits.Load() == 1 }, time.Second, 5*time.Millisecond)
	cancel()

	res := <-first
	require.Equal(t, StatusUnavailable, res.Status)
	require.ErrorIs(t, res.Err, domain.ErrMarketDataUnavailable)

	// The request started by the cancelled caller is still in flight.
	second := make(chan *domain.TokenMarketView, 1)
	go func() { second <- r.FetchTokenData(context.Background(), "TOKEN7") }()
	time.Sleep(20 * time.Millisecond)
	release <- struct{}{}

	view := <-second
	require.NotNil(t, view)
	require.Equal(t, "BONK", view.BaseSymbol)
	require.Equal(t, int32(1), hits.Load())
	require.Equal(t, uint64(1), m.Snapshot().MarketFailures)
}

func TestCoerce(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want string
	}{
		{"nil", nil, "0"},
		{"string number", "0.00001234", "0.00001234"},
		{"padded string", " 12 ", "12"},
		{"exponent", "1e3", "1000"},
		{"garbage", "abc", "0"},
		{"infinity", "Infinity", "0"},
		{"float", 2.5, "2.5"},
		{"true", true, "1"},
		{"false", false, "0"},
		{"object", map[string]any{"usd": 1}, "0"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Coerce(tt.in)
			require.True(t, got.Equal(decimal.RequireFromString(tt.want)), "got %s", got)
		})
	}
}
