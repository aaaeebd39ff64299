package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/harshh999/FinDocGPT/internal/config"
	"github.com/harshh999/FinDocGPT/pkg/cache"
	"github.com/harshh999/FinDocGPT/pkg/logging"
	"github.com/harshh999/FinDocGPT/pkg/marketdata"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(1)
	}

	logger := logging.Setup(logging.Config{
		Level:  logging.LogLevel(cfg.Logging.Level),
		Pretty: cfg.Logging.Pretty,
	})

	if err := run(cfg, logger); err != nil {
		logger.Fatal().Err(err).Msg("Server failed")
	}
}

func run(cfg config.Config, logger zerolog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	snapshotter, err := buildSnapshotter(ctx, cfg.Snapshot, logger)
	if err != nil {
		return err
	}

	cacheCfg := cache.DefaultConfig()
	cacheCfg.Logger = logger
	cacheCfg.Snapshotter = snapshotter
	cacheCfg.SweepInterval = cfg.Cache.SweepInterval
	if cfg.Cache.ShardCount > 0 {
		cacheCfg.ShardCount = cfg.Cache.ShardCount
	}
	for class, ttl := range cfg.Cache.TTLClasses {
		cacheCfg.TTLClasses[class] = ttl
	}

	cacheSvc, err := cache.New(cacheCfg)
	if err != nil {
		return fmt.Errorf("create cache service: %w", err)
	}
	if err := cacheSvc.Start(ctx); err != nil {
		return fmt.Errorf("start cache service: %w", err)
	}

	fetcherCfg := marketdata.DefaultConfig(cfg.MarketData.BaseURL)
	fetcherCfg.Logger = logger
	fetcherCfg.HTTPClient = &http.Client{Timeout: cfg.MarketData.RequestTimeout}
	fetcher, err := marketdata.NewFetcher(cacheSvc, fetcherCfg)
	if err != nil {
		return fmt.Errorf("create market data fetcher: %w", err)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/health", healthHandler)
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/stats", statsHandler(cacheSvc))
	mux.HandleFunc("/api/quote", quoteHandler(fetcher))
	mux.HandleFunc("/api/history", historyHandler(fetcher))
	mux.HandleFunc("/api/indices", indicesHandler(fetcher))
	mux.HandleFunc("/api/company", companyHandler(fetcher))
	mux.HandleFunc("/api/invalidate", invalidateHandler(cacheSvc, fetcher))

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", srv.Addr).Msg("Starting server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info().Msg("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("Server shutdown failed")
	}
	if err := cacheSvc.Stop(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("Cache shutdown failed")
	}
	return nil
}

// buildSnapshotter picks the snapshot backend from configuration. Redis
// wins over the file path when both are set; neither disables snapshots.
func buildSnapshotter(ctx context.Context, cfg config.SnapshotConfig, logger zerolog.Logger) (cache.Snapshotter, error) {
	if cfg.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		if err := client.Ping(ctx).Err(); err != nil {
			return nil, fmt.Errorf("connect to Redis at %s: %w", cfg.RedisAddr, err)
		}
		logger.Info().Str("addr", cfg.RedisAddr).Msg("Using Redis cache snapshots")
		return cache.NewRedisSnapshotter(client, cache.DefaultRedisSnapshotKey), nil
	}
	if cfg.Path != "" {
		logger.Info().Str("path", cfg.Path).Msg("Using file cache snapshots")
		return cache.NewFileSnapshotter(cfg.Path), nil
	}
	return nil, nil
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, "OK")
}

func statsHandler(svc *cache.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, svc.Stats())
	}
}

func quoteHandler(fetcher *marketdata.Fetcher) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		symbol := r.URL.Query().Get("symbol")
		if symbol == "" {
			http.Error(w, "missing symbol parameter", http.StatusBadRequest)
			return
		}
		quote, err := fetcher.Quote(r.Context(), symbol)
		if err != nil {
			writeFetchError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, quote)
	}
}

func historyHandler(fetcher *marketdata.Fetcher) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		symbol := q.Get("symbol")
		if symbol == "" {
			http.Error(w, "missing symbol parameter", http.StatusBadRequest)
			return
		}
		period := q.Get("period")
		if period == "" {
			period = "1mo"
		}
		interval := q.Get("interval")
		if interval == "" {
			interval = "1d"
		}
		history, err := fetcher.History(r.Context(), symbol, period, interval)
		if err != nil {
			writeFetchError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, history)
	}
}

func indicesHandler(fetcher *marketdata.Fetcher) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		indices, err := fetcher.MarketIndices(r.Context())
		if err != nil {
			writeFetchError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, indices)
	}
}

func companyHandler(fetcher *marketdata.Fetcher) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		symbol := r.URL.Query().Get("symbol")
		if symbol == "" {
			http.Error(w, "missing symbol parameter", http.StatusBadRequest)
			return
		}
		info, err := fetcher.CompanyInfo(r.Context(), symbol)
		if err != nil {
			writeFetchError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, info)
	}
}

func invalidateHandler(svc *cache.Service, fetcher *marketdata.Fetcher) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		symbol := r.URL.Query().Get("symbol")
		if symbol == "" {
			removed := svc.InvalidateAll()
			writeJSON(w, http.StatusOK, map[string]int{"removed": removed})
			return
		}
		if err := fetcher.Invalidate(symbol); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"invalidated": symbol})
	}
}

// writeFetchError maps loader failures to upstream-style status codes.
func writeFetchError(w http.ResponseWriter, err error) {
	var apiErr *marketdata.APIError
	switch {
	case errors.As(err, &apiErr) && apiErr.ErrorClass == marketdata.ErrorClassClient:
		http.Error(w, apiErr.Message, http.StatusBadRequest)
	case errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled):
		http.Error(w, "request cancelled", http.StatusGatewayTimeout)
	default:
		http.Error(w, fmt.Sprintf("market data request failed: %v", err), http.StatusBadGateway)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	// Headers are already sent; encode errors cannot be reported.
	_ = json.NewEncoder(w).Encode(v)
}
