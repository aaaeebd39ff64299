package marketdata

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// BatchConfig holds batch quote fetching configuration.
type BatchConfig struct {
	// MaxConcurrency is the maximum number of parallel lookups.
	MaxConcurrency int

	// Timeout per symbol lookup.
	Timeout time.Duration
}

// DefaultBatchConfig returns a safe default batch configuration.
func DefaultBatchConfig() BatchConfig {
	return BatchConfig{
		MaxConcurrency: 8,
		Timeout:        15 * time.Second,
	}
}

type quoteResult struct {
	symbol string
	quote  *Quote
	err    error
}

// Quotes fetches quotes for several symbols in parallel through the cache.
// Symbols already cached are served from memory; the rest fan out to the
// upstream API bounded by MaxConcurrency. Failed symbols are skipped and the
// partial result is returned alongside the first error.
func (f *Fetcher) Quotes(ctx context.Context, symbols []string, cfg BatchConfig) (map[string]*Quote, error) {
	if cfg.MaxConcurrency <= 0 {
		cfg.MaxConcurrency = 8
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	if len(symbols) == 0 {
		return map[string]*Quote{}, nil
	}

	start := time.Now()
	f.logger.Info().
		Int("symbols", len(symbols)).
		Int("concurrency", cfg.MaxConcurrency).
		Msg("Starting batch quote fetch")

	queue := make(chan string, len(symbols))
	results := make(chan quoteResult, len(symbols))

	for _, symbol := range symbols {
		queue <- symbol
	}
	close(queue)

	var wg sync.WaitGroup
	workers := cfg.MaxConcurrency
	if workers > len(symbols) {
		workers = len(symbols)
	}
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go f.quoteWorker(ctx, cfg.Timeout, queue, results, &wg)
	}

	go func() {
		wg.Wait()
		close(results)
	}()

	quotes := make(map[string]*Quote, len(symbols))
	var firstErr error
	failed := 0
	for res := range results {
		if res.err != nil {
			failed++
			if firstErr == nil {
				firstErr = fmt.Errorf("fetch quote for %s: %w", res.symbol, res.err)
			}
			f.logger.Warn().
				Err(res.err).
				Str("symbol", res.symbol).
				Msg("Batch quote fetch failed for symbol")
			continue
		}
		quotes[res.symbol] = res.quote
	}

	f.logger.Info().
		Int("fetched", len(quotes)).
		Int("failed", failed).
		Dur("duration", time.Since(start)).
		Msg("Batch quote fetch complete")

	return quotes, firstErr
}

// quoteWorker processes symbols from the queue until it is drained or the
// context is cancelled.
func (f *Fetcher) quoteWorker(ctx context.Context, timeout time.Duration, queue <-chan string, results chan<- quoteResult, wg *sync.WaitGroup) {
	defer wg.Done()

	for symbol := range queue {
		select {
		case <-ctx.Done():
			results <- quoteResult{symbol: symbol, err: ctx.Err()}
			continue
		default:
		}

		symbolCtx, cancel := context.WithTimeout(ctx, timeout)
		quote, err := f.Quote(symbolCtx, symbol)
		cancel()

		results <- quoteResult{symbol: symbol, quote: quote, err: err}
	}
}
