package backend

import (
	"context"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

// RateLimiter paces outbound backend requests with a local token bucket and
// honours Retry-After on throttled responses. It is safe for concurrent use.
type RateLimiter struct {
	mu sync.Mutex

	local *rate.Limiter

	// backoffUntil is set from Retry-After and blocks requests until it passes.
	backoffUntil time.Time

	now    func() time.Time
	logger *logrus.Entry
}

// NewRateLimiter creates a RateLimiter with the given requests-per-second and burst.
// A zero or negative rps disables local rate limiting (unlimited).
func NewRateLimiter(rps int, burst int, logger *logrus.Entry) *RateLimiter {
	var limiter *rate.Limiter
	if rps <= 0 {
		limiter = rate.NewLimiter(rate.Inf, 0)
	} else {
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
	return &RateLimiter{
		local:  limiter,
		now:    time.Now,
		logger: logger,
	}
}

// Wait blocks until the rate limiter allows one more request. It returns
// ctx.Err() if the context expires while waiting.
func (rl *RateLimiter) Wait(ctx context.Context) error {
	rl.mu.Lock()
	backoff := rl.backoffUntil
	rl.mu.Unlock()

	if delay := backoff.Sub(rl.now()); !backoff.IsZero() && delay > 0 {
		rl.logger.WithField("delay", delay.Round(time.Millisecond)).
			Debug("rate limiter: waiting for Retry-After backoff")
		timer := time.NewTimer(delay)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	return rl.local.Wait(ctx)
}

// UpdateFromHeaders extends the backoff window when the response carries a
// Retry-After header, either in delta-seconds or HTTP-date form.
func (rl *RateLimiter) UpdateFromHeaders(headers http.Header) {
	ra := headers.Get("Retry-After")
	if ra == "" {
		return
	}

	now := rl.now()
	var until time.Time
	if sec, err := strconv.Atoi(ra); err == nil {
		if sec <= 0 {
			return
		}
		until = now.Add(time.Duration(sec) * time.Second)
	} else if t, err := http.ParseTime(ra); err == nil {
		until = t
	} else {
		return
	}

	rl.mu.Lock()
	defer rl.mu.Unlock()
	if until.After(rl.backoffUntil) {
		rl.backoffUntil = until
		rl.logger.WithField("until", until.Format(time.RFC3339)).
			Warn("rate limiter: backend asked us to back off")
	}
}

// BackoffUntil returns the end of the current Retry-After window, or the zero
// time if none has been seen.
func (rl *RateLimiter) BackoffUntil() time.Time {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return rl.backoffUntil
}
