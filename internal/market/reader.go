// Package market fetches token market data from a DexScreener-shaped provider behind a TTL cache.
package market

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"token_vote/internal/cache"
	"token_vote/internal/domain"
	"token_vote/internal/infra"
)

const (
	DefaultBaseURL = "https://api.dexscreener.com/latest/dex/tokens"

	// CacheKeyPrefix namespaces market payloads in the shared cache.
	CacheKeyPrefix = "dex_"

	maxBodyBytes = 4 << 20
)

// Status classifies a lookup.
type Status int

const (
	StatusUnavailable Status = iota
	StatusOK
	StatusNoData
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusNoData:
		return "no_data"
	default:
		return "unavailable"
	}
}

// Result is the typed outcome of Lookup. View is nil only when Status is StatusUnavailable.
type Result struct {
	Status Status
	View   *domain.TokenMarketView
	Cached bool
	Err    error
}

// Payload is the provider response as decoded, numbers kept as json.Number.
type Payload struct {
	Raw map[string]any
}

// Cache stores raw payloads keyed by CacheKey.
type Cache = cache.TTLCache[string, Payload]

// CacheKey returns the cache key for contract.
func CacheKey(contract string) string {
	return CacheKeyPrefix + contract
}

// Reader implements domain.MarketDataReader.
type Reader struct {
	baseURL    string
	httpClient *http.Client
	cache      *Cache
	group      singleflight.Group
	metrics    *infra.Metrics
	logger     *slog.Logger
}

type Option func(*Reader)

func WithHTTPClient(hc *http.Client) Option {
	return func(r *Reader) { r.httpClient = hc }
}

func WithMetrics(m *infra.Metrics) Option {
	return func(r *Reader) { r.metrics = m }
}

// NewReader creates a reader for baseURL. A nil cache gets a fresh one with the default TTL.
func NewReader(baseURL string, c *Cache, opts ...Option) *Reader {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if c == nil {
		c = cache.New[string, Payload](cache.DefaultTTL, nil)
	}
	r := &Reader{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		cache:   c,
		metrics: infra.GlobalMetrics,
		logger:  slog.Default().With("module", "market"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// FetchTokenData returns the market view for contract, or nil when nothing could be fetched.
// Failures are logged and absorbed here.
func (r *Reader) FetchTokenData(ctx context.Context, contract string) *domain.TokenMarketView {
	return r.Lookup(ctx, contract).View
}

// Lookup is FetchTokenData with the outcome exposed.
func (r *Reader) Lookup(ctx context.Context, contract string) Result {
	key := CacheKey(contract)

	if p, ok := r.cache.Get(key); ok {
		r.metrics.RecordCacheLookup(true)
		return resultFrom(contract, p, true)
	}
	r.metrics.RecordCacheLookup(false)

	// The fetch outlives any single caller; the http client timeout bounds it.
	fetchCtx := context.WithoutCancel(ctx)
	ch := r.group.DoChan(key, func() (any, error) {
		p, err := r.fetch(fetchCtx, contract)
		if err != nil {
			return Payload{}, err
		}
		r.cache.Put(key, p)
		return p, nil
	})

	var res singleflight.Result
	select {
	case res = <-ch:
	case <-ctx.Done():
		res = singleflight.Result{Err: ctx.Err()}
	}
	if res.Err != nil {
		r.metrics.RecordMarketFailure()
		r.logger.Warn("Market data fetch failed",
			slog.String("contract", contract),
			slog.Any("error", res.Err),
		)
		return Result{Status: StatusUnavailable, Err: fmt.Errorf("%w: %v", domain.ErrMarketDataUnavailable, res.Err)}
	}
	if res.Shared {
		r.logger.Debug("Market data fetch shared", slog.String("contract", contract))
	}
	return resultFrom(contract, res.Val.(Payload), false)
}

func (r *Reader) fetch(ctx context.Context, contract string) (Payload, error) {
	endpoint := r.baseURL + "/" + url.PathEscape(contract)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return Payload{}, err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", infra.DefaultUserAgent)

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return Payload{}, domain.NewNetworkError("fetch", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Payload{}, domain.NewNetworkError("fetch", fmt.Errorf("unexpected status code: %d", resp.StatusCode))
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return Payload{}, domain.NewNetworkError("read", err)
	}

	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	var raw map[string]any
	if err := dec.Decode(&raw); err != nil {
		return Payload{}, domain.NewFatalNetworkError("decode", err)
	}
	if raw == nil {
		raw = map[string]any{}
	}
	return Payload{Raw: raw}, nil
}

func resultFrom(contract string, p Payload, cached bool) Result {
	view := DeriveView(contract, p)
	status := StatusOK
	if view.NoData {
		status = StatusNoData
	}
	return Result{Status: status, View: view, Cached: cached}
}
