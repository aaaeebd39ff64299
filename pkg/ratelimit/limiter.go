package ratelimit

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
)

// Prometheus metrics for rate limit tracking.
var (
	budgetRemaining = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "findocgpt_marketdata_rate_limit_remaining",
		Help: "Requests remaining in the current upstream rate limit window",
	})

	blocksTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "findocgpt_marketdata_rate_limit_blocks_total",
		Help: "Total number of requests blocked due to an exhausted upstream budget",
	})

	throttlesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "findocgpt_marketdata_rate_limit_throttles_total",
		Help: "Total number of requests throttled due to a low upstream budget",
	})
)

// ErrBudgetExhausted is returned by Allow when the upstream request budget
// is exhausted and the window has not reset yet.
var ErrBudgetExhausted = fmt.Errorf("upstream request budget exhausted")

// defaultResetWindow is assumed when the provider reports exhaustion without
// a reset hint.
const defaultResetWindow = 60 * time.Second

// staleAfter is how long an observation stays authoritative. Beyond this the
// window has rolled over and the limiter resets to a healthy state.
const staleAfter = 5 * time.Minute

// Limiter gates upstream requests based on observed rate limit headers.
// All fetcher requests in a process share one limiter.
type Limiter struct {
	mu            sync.Mutex
	state         State
	throttleDelay time.Duration
	logger        zerolog.Logger
	now           func() time.Time
}

// NewLimiter creates a limiter starting in a healthy state.
func NewLimiter(logger zerolog.Logger) *Limiter {
	return &Limiter{
		state: State{
			Remaining: 100,
			Healthy:   true,
		},
		throttleDelay: time.Second,
		logger:        logger,
		now:           time.Now,
	}
}

// State returns a copy of the current rate limit state.
func (l *Limiter) State() State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

// ObserveResponse updates the limiter from an upstream response. A 429
// status counts as an exhausted budget even without rate limit headers.
func (l *Limiter) ObserveResponse(statusCode int, headers http.Header) {
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	if remainStr := headers.Get("X-RateLimit-Remaining"); remainStr != "" {
		remain, err := strconv.Atoi(remainStr)
		if err != nil {
			l.logger.Warn().Str("value", remainStr).Msg("Unparseable X-RateLimit-Remaining header")
			return
		}
		l.state.Remaining = remain
		l.state.ResetAt = now.Add(resetDuration(headers))
		l.state.LastUpdate = now
		l.state.UpdateHealth()
	} else if statusCode == http.StatusTooManyRequests {
		l.state.Remaining = 0
		l.state.ResetAt = now.Add(resetDuration(headers))
		l.state.LastUpdate = now
		l.state.UpdateHealth()
	} else {
		return
	}

	budgetRemaining.Set(float64(l.state.Remaining))

	switch {
	case l.state.NeedsBlock():
		l.logger.Error().
			Int("remaining", l.state.Remaining).
			Time("reset_at", l.state.ResetAt).
			Msg("Upstream budget exhausted - requests will be blocked")
	case l.state.NeedsThrottle():
		l.logger.Warn().
			Int("remaining", l.state.Remaining).
			Msg("Upstream budget low - requests will be throttled")
	default:
		l.logger.Debug().
			Int("remaining", l.state.Remaining).
			Bool("healthy", l.state.Healthy).
			Msg("Upstream budget updated")
	}
}

// Allow gates an outgoing request. It returns ErrBudgetExhausted when the
// budget is critical, sleeps briefly when the budget is low, and returns nil
// when the request may proceed.
func (l *Limiter) Allow(ctx context.Context) error {
	l.mu.Lock()
	state := l.state
	stale := state.LastUpdate.IsZero() || l.now().Sub(state.LastUpdate) > staleAfter
	if stale && !state.LastUpdate.IsZero() {
		// The window rolled over; start fresh.
		l.state = State{Remaining: 100, Healthy: true}
		state = l.state
	}
	l.mu.Unlock()

	if stale {
		return nil
	}

	if state.NeedsBlock() {
		if state.TimeUntilReset() == 0 {
			// Reset time has passed but no fresh observation yet; let the
			// request probe the new window.
			return nil
		}
		l.logger.Error().
			Int("remaining", state.Remaining).
			Dur("wait", state.TimeUntilReset()).
			Msg("Blocking request - upstream budget exhausted")
		blocksTotal.Inc()
		return fmt.Errorf("%w: resets in %s", ErrBudgetExhausted, state.TimeUntilReset().Round(time.Second))
	}

	if state.NeedsThrottle() {
		l.logger.Warn().
			Int("remaining", state.Remaining).
			Msg("Throttling request - upstream budget low")
		throttlesTotal.Inc()
		select {
		case <-time.After(l.throttleDelay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	return nil
}

// resetDuration derives the window reset from X-RateLimit-Reset (seconds
// until reset) or Retry-After, falling back to a fixed window.
func resetDuration(headers http.Header) time.Duration {
	for _, name := range []string{"X-RateLimit-Reset", "Retry-After"} {
		if v := headers.Get(name); v != "" {
			if seconds, err := strconv.Atoi(v); err == nil && seconds >= 0 {
				return time.Duration(seconds) * time.Second
			}
		}
	}
	return defaultResetWindow
}
