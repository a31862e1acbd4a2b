package remote

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/notedex/notedex/internal/core/domain"
)

const (
	// HeaderRetryAfter is the retry-after header (seconds).
	HeaderRetryAfter = "Retry-After"
)

// RateLimiter implements dual-strategy rate limiting for the notebook API:
// a proactive token bucket plus reactive honouring of Retry-After. One
// instance is shared by every caller in the process; it is injected into
// the client at construction, never ambient.
type RateLimiter struct {
	mu      sync.Mutex
	holdOff time.Time     // Server-imposed pause from Retry-After
	bucket  *rate.Limiter // Proactive throttling
}

// NewRateLimiter creates a limiter allowing reqPerSec sustained requests
// with the given burst.
func NewRateLimiter(reqPerSec float64, burst int) *RateLimiter {
	if reqPerSec <= 0 {
		reqPerSec = domain.DefaultRequestsPerSecond
	}
	if burst <= 0 {
		burst = domain.DefaultRequestBurst
	}
	return &RateLimiter{
		bucket: rate.NewLimiter(rate.Limit(reqPerSec), burst),
	}
}

// Wait blocks until it's safe to make a request. A caller deadline that
// elapses before capacity is available fails with ErrRateLimited rather
// than a bare context error, so sync and search treat it as a backoff
// signal instead of a hard failure.
func (r *RateLimiter) Wait(ctx context.Context) error {
	// 1. Honour any server-imposed pause.
	r.mu.Lock()
	holdOff := r.holdOff
	r.mu.Unlock()

	if wait := time.Until(holdOff); wait > 0 {
		if deadline, ok := ctx.Deadline(); ok && deadline.Before(holdOff) {
			return domain.ErrRateLimited
		}
		select {
		case <-ctx.Done():
			return wrapWaitErr(ctx.Err())
		case <-time.After(wait):
		}
	}

	// 2. Token bucket (proactive throttling).
	if err := r.bucket.Wait(ctx); err != nil {
		return wrapWaitErr(err)
	}
	return nil
}

// UpdateFromResponse records a server-imposed pause from a 429 response.
func (r *RateLimiter) UpdateFromResponse(resp *http.Response) {
	if resp == nil || resp.StatusCode != http.StatusTooManyRequests {
		return
	}

	pause := time.Minute // Conservative default when no header is present
	if retryAfter := resp.Header.Get(HeaderRetryAfter); retryAfter != "" {
		if seconds, err := strconv.Atoi(retryAfter); err == nil && seconds > 0 {
			pause = time.Duration(seconds) * time.Second
		}
	}

	r.mu.Lock()
	if until := time.Now().Add(pause); until.After(r.holdOff) {
		r.holdOff = until
	}
	r.mu.Unlock()
}

// HoldOffUntil returns the end of the current server-imposed pause.
func (r *RateLimiter) HoldOffUntil() time.Time {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.holdOff
}

// wrapWaitErr maps deadline expiry while queued for capacity to
// ErrRateLimited; plain cancellation passes through.
func wrapWaitErr(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return domain.ErrRateLimited
	}
	// rate.Limiter returns its own error when the wait cannot finish
	// before the deadline; treat anything that isn't cancellation as
	// exhausted budget.
	if !errors.Is(err, context.Canceled) {
		return domain.ErrRateLimited
	}
	return err
}
