package upstream

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"fipeline/internal/constants"
	pkgerrors "fipeline/pkg/errors"
	"fipeline/pkg/metrics"
)

// QuotaLimiter enforces the upstream's daily request budget over a rolling
// window, plus a short smoothing delay between consecutive calls so bursts
// never hammer the API. Window reset and slot reservation happen under one
// lock: a caller never sees a fresh window without also taking its slot.
type QuotaLimiter struct {
	mu          sync.Mutex
	maxRequests int
	window      time.Duration
	count       int
	windowStart time.Time

	smoother *rate.Limiter

	// now is swappable in tests
	now func() time.Time
}

func NewQuotaLimiter(maxRequests int, window, smoothingInterval time.Duration) *QuotaLimiter {
	if maxRequests <= 0 {
		maxRequests = constants.DefaultDailyQuota
	}
	if window <= 0 {
		window = constants.DefaultQuotaWindow
	}

	var smoother *rate.Limiter
	if smoothingInterval > 0 {
		smoother = rate.NewLimiter(rate.Every(smoothingInterval), 1)
	}

	return &QuotaLimiter{
		maxRequests: maxRequests,
		window:      window,
		smoother:    smoother,
		now:         time.Now,
	}
}

// Acquire reserves one request slot. Over quota it fails retryable with the
// remaining window in the error details, so callers back off instead of
// dropping the work. The smoothing wait respects ctx cancellation.
func (q *QuotaLimiter) Acquire(ctx context.Context) error {
	if err := q.reserve(); err != nil {
		return err
	}

	if q.smoother != nil {
		if err := q.smoother.Wait(ctx); err != nil {
			return pkgerrors.ErrTimeout.WithCause(err)
		}
	}

	return nil
}

func (q *QuotaLimiter) reserve() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	now := q.now()
	if q.windowStart.IsZero() || now.Sub(q.windowStart) >= q.window {
		q.windowStart = now
		q.count = 0
	}

	if q.count >= q.maxRequests {
		retryAfter := q.window - now.Sub(q.windowStart)
		metrics.UpstreamQuotaRejectedTotal.Inc()
		return pkgerrors.ErrRateLimited.
			WithDetail("retry_after", retryAfter.String()).
			WithDetail("max_requests", q.maxRequests).
			AsRetryable()
	}

	q.count++
	metrics.UpstreamQuotaUsed.Set(float64(q.count))
	return nil
}

// Used reports requests consumed in the current window.
func (q *QuotaLimiter) Used() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	if !q.windowStart.IsZero() && q.now().Sub(q.windowStart) >= q.window {
		return 0
	}
	return q.count
}
