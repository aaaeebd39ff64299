// Package marketdata retrieves quotes, price history, and market indices
// from an upstream market-data API, with every lookup cached through the
// caching layer under the TTL class matching how fast the data goes stale.
package marketdata

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"

	"github.com/harshh999/FinDocGPT/pkg/cache"
	"github.com/harshh999/FinDocGPT/pkg/logging"
	"github.com/harshh999/FinDocGPT/pkg/ratelimit"
)

// Prometheus metrics for upstream market-data requests.
var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "findocgpt_marketdata_requests_total",
		Help: "Total upstream market-data requests by endpoint and status",
	}, []string{"endpoint", "status"})

	requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "findocgpt_marketdata_request_duration_seconds",
		Help:    "Upstream market-data request duration by endpoint",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10},
	}, []string{"endpoint"})
)

// Quote is a point-in-time price for a symbol.
type Quote struct {
	Symbol        string    `json:"symbol"`
	Price         float64   `json:"price"`
	Change        float64   `json:"change"`
	ChangePercent float64   `json:"change_percent"`
	Volume        int64     `json:"volume"`
	Timestamp     time.Time `json:"timestamp"`
}

// Candle is one bar of price history.
type Candle struct {
	Time   time.Time `json:"time"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume int64     `json:"volume"`
}

// History is a symbol's price history at a given period and interval.
type History struct {
	Symbol   string   `json:"symbol"`
	Period   string   `json:"period"`
	Interval string   `json:"interval"`
	Candles  []Candle `json:"candles"`
}

// Index is a market index reading.
type Index struct {
	Name          string  `json:"name"`
	Symbol        string  `json:"symbol"`
	Price         float64 `json:"price"`
	ChangePercent float64 `json:"change_percent"`
}

// CompanyInfo is slow-moving company reference data.
type CompanyInfo struct {
	Symbol    string `json:"symbol"`
	Name      string `json:"name"`
	Sector    string `json:"sector"`
	Industry  string `json:"industry"`
	MarketCap int64  `json:"market_cap"`
}

// Config holds the fetcher configuration.
type Config struct {
	// BaseURL of the upstream market-data API (required).
	BaseURL string

	// HTTPClient for upstream requests (default: 30s timeout client).
	HTTPClient *http.Client

	// Retry configuration for upstream requests.
	Retry RetryConfig

	// Logger for fetch events.
	Logger zerolog.Logger
}

// DefaultConfig returns a fetcher configuration for the given upstream URL.
func DefaultConfig(baseURL string) Config {
	return Config{
		BaseURL:    baseURL,
		HTTPClient: &http.Client{Timeout: 30 * time.Second},
		Retry:      DefaultRetryConfig(),
		Logger:     logging.NewLogger("marketdata"),
	}
}

// Fetcher retrieves market data through the cache service: each lookup is a
// GetOrCompute whose loader performs the upstream HTTP request with retry.
// Repeated lookups within a TTL window never touch the network.
type Fetcher struct {
	cache      *cache.Service
	httpClient *http.Client
	baseURL    string
	retry      RetryConfig
	limiter    *ratelimit.Limiter
	logger     zerolog.Logger
}

// NewFetcher creates a fetcher backed by the given cache service.
func NewFetcher(svc *cache.Service, cfg Config) (*Fetcher, error) {
	if svc == nil {
		return nil, fmt.Errorf("cache service is required")
	}
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("base URL is required")
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	retry := cfg.Retry
	if retry.MaxAttempts == 0 {
		retry = DefaultRetryConfig()
	}

	return &Fetcher{
		cache:      svc,
		httpClient: httpClient,
		baseURL:    cfg.BaseURL,
		retry:      retry,
		limiter:    ratelimit.NewLimiter(cfg.Logger),
		logger:     cfg.Logger,
	}, nil
}

// ttlClassForInterval maps a bar interval to a TTL class: intraday bars go
// stale in minutes, daily and coarser bars last an hour.
func ttlClassForInterval(interval string) string {
	switch interval {
	case "1m", "5m", "15m", "30m", "1h":
		return "intraday"
	default:
		return "daily"
	}
}

// Quote returns the current quote for symbol, cached under the intraday
// class.
func (f *Fetcher) Quote(ctx context.Context, symbol string) (*Quote, error) {
	params := cache.Params{"symbol": symbol}
	return fetchCached(ctx, f, "stock_quote", params, "intraday",
		func(ctx context.Context) (*Quote, error) {
			var quote Quote
			query := url.Values{"symbol": []string{symbol}}
			if err := f.fetchJSON(ctx, "/v1/quote", query, &quote); err != nil {
				return nil, err
			}
			return &quote, nil
		})
}

// History returns price history for symbol. The TTL class follows the bar
// interval.
func (f *Fetcher) History(ctx context.Context, symbol, period, interval string) (*History, error) {
	params := cache.Params{"symbol": symbol, "period": period, "interval": interval}
	return fetchCached(ctx, f, "stock_data", params, ttlClassForInterval(interval),
		func(ctx context.Context) (*History, error) {
			var history History
			query := url.Values{
				"symbol":   []string{symbol},
				"period":   []string{period},
				"interval": []string{interval},
			}
			if err := f.fetchJSON(ctx, "/v1/history", query, &history); err != nil {
				return nil, err
			}
			return &history, nil
		})
}

// MarketIndices returns the major market indices, cached under the market
// class.
func (f *Fetcher) MarketIndices(ctx context.Context) ([]Index, error) {
	indices, err := fetchCached(ctx, f, "market_data", cache.Params{"type": "indices"}, "market",
		func(ctx context.Context) (*[]Index, error) {
			var indices []Index
			if err := f.fetchJSON(ctx, "/v1/indices", nil, &indices); err != nil {
				return nil, err
			}
			return &indices, nil
		})
	if err != nil {
		return nil, err
	}
	return *indices, nil
}

// CompanyInfo returns company reference data for symbol, cached under the
// static class.
func (f *Fetcher) CompanyInfo(ctx context.Context, symbol string) (*CompanyInfo, error) {
	params := cache.Params{"symbol": symbol}
	return fetchCached(ctx, f, "stock_info", params, "static",
		func(ctx context.Context) (*CompanyInfo, error) {
			var info CompanyInfo
			query := url.Values{"symbol": []string{symbol}}
			if err := f.fetchJSON(ctx, "/v1/company", query, &info); err != nil {
				return nil, err
			}
			return &info, nil
		})
}

// Invalidate drops the cached quote and company info for symbol, for callers
// that know their data is stale before the TTL expires. History entries are
// keyed by (symbol, period, interval) and cannot be enumerated from the
// symbol alone; use InvalidateHistory to drop a specific one.
func (f *Fetcher) Invalidate(symbol string) error {
	params := cache.Params{"symbol": symbol}
	for _, prefix := range []string{"stock_quote", "stock_info"} {
		if _, err := f.cache.Invalidate(prefix, params); err != nil {
			return err
		}
	}
	return nil
}

// InvalidateHistory drops the cached price history for one
// (symbol, period, interval) combination.
func (f *Fetcher) InvalidateHistory(symbol, period, interval string) error {
	params := cache.Params{"symbol": symbol, "period": period, "interval": interval}
	_, err := f.cache.Invalidate("stock_data", params)
	return err
}

// fetchCached routes a typed load through the cache service. Values restored
// from a snapshot decode as generic JSON rather than the original type; those
// are dropped and recomputed once with the typed loader.
func fetchCached[T any](ctx context.Context, f *Fetcher, prefix string, params cache.Params, ttlClass string, load func(ctx context.Context) (*T, error)) (*T, error) {
	loader := func(ctx context.Context) (any, error) {
		return load(ctx)
	}

	value, err := f.cache.GetOrCompute(ctx, prefix, params, ttlClass, loader)
	if err != nil {
		return nil, err
	}
	if typed, ok := value.(*T); ok {
		return typed, nil
	}

	if _, err := f.cache.Invalidate(prefix, params); err != nil {
		return nil, err
	}
	value, err = f.cache.GetOrCompute(ctx, prefix, params, ttlClass, loader)
	if err != nil {
		return nil, err
	}
	typed, ok := value.(*T)
	if !ok {
		return nil, fmt.Errorf("unexpected cached value type %T for %s", value, prefix)
	}
	return typed, nil
}

// fetchJSON performs a GET against the upstream API with retry and decodes
// the JSON response into target.
func (f *Fetcher) fetchJSON(ctx context.Context, endpoint string, query url.Values, target any) error {
	requestURL := f.baseURL + endpoint
	if len(query) > 0 {
		requestURL += "?" + query.Encode()
	}

	start := time.Now()
	defer func() {
		requestDuration.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
	}()

	return retryWithBackoff(ctx, f.retry, f.logger, func() (ErrorClass, error) {
		if err := f.limiter.Allow(ctx); err != nil {
			return ErrorClassClient, fmt.Errorf("request %s: %w", endpoint, err)
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, nil)
		if err != nil {
			return ErrorClassClient, fmt.Errorf("create request: %w", err)
		}
		req.Header.Set("Accept", "application/json")

		resp, err := f.httpClient.Do(req)
		if err != nil {
			requestsTotal.WithLabelValues(endpoint, "network_error").Inc()
			return ErrorClassNetwork, fmt.Errorf("request %s: %w", endpoint, err)
		}
		defer resp.Body.Close()

		f.limiter.ObserveResponse(resp.StatusCode, resp.Header)
		requestsTotal.WithLabelValues(endpoint, strconv.Itoa(resp.StatusCode)).Inc()

		if resp.StatusCode != http.StatusOK {
			class := classifyStatus(resp.StatusCode)
			f.logger.Warn().
				Str("endpoint", endpoint).
				Int("status", resp.StatusCode).
				Str("error_class", string(class)).
				Msg("Upstream request error")
			return class, &APIError{
				StatusCode: resp.StatusCode,
				ErrorClass: class,
				Endpoint:   endpoint,
				Message:    resp.Status,
			}
		}

		if err := json.NewDecoder(resp.Body).Decode(target); err != nil {
			return ErrorClassClient, fmt.Errorf("decode response: %w", err)
		}
		return "", nil
	})
}
