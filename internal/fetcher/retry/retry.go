// Package retry wraps a crawler.Fetcher so transient failures are attempted
// again with jittered exponential backoff.
package retry

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math"
	"math/big"
	"net"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/mixtape-crawler/internal/crawler"
	"github.com/JakeFAU/mixtape-crawler/internal/metrics"
)

// Policy decides whether a failed fetch is attempted again.
type Policy interface {
	ShouldRetry(err error, attempt int) bool
	Backoff(attempt int) time.Duration
}

// ExponentialPolicy implements Policy. Only timeouts and throttling or
// server-side statuses are retried.
type ExponentialPolicy struct {
	maxAttempts int
	baseDelay   time.Duration
	maxDelay    time.Duration
}

// NewExponentialPolicy allows maxAttempts fetches per request in total.
// Values below one disable retries.
func NewExponentialPolicy(maxAttempts int) *ExponentialPolicy {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	return &ExponentialPolicy{
		maxAttempts: maxAttempts,
		baseDelay:   250 * time.Millisecond,
		maxDelay:    5 * time.Second,
	}
}

// ShouldRetry reports whether err is transient and attempts remain. attempt
// counts the fetches already made.
func (p *ExponentialPolicy) ShouldRetry(err error, attempt int) bool {
	if err == nil {
		return false
	}
	if attempt >= p.maxAttempts {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var statusErr *crawler.StatusError
	if errors.As(err, &statusErr) {
		return retryableStatus(statusErr.StatusCode)
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return netErr.Timeout()
	}
	return false
}

// Backoff returns the wait before the next attempt.
func (p *ExponentialPolicy) Backoff(attempt int) time.Duration {
	delay := float64(p.baseDelay) * math.Pow(2, float64(attempt-1))
	if delay > float64(p.maxDelay) {
		delay = float64(p.maxDelay)
	}
	jitter := p.randomJitter(time.Duration(delay) / 2)
	return time.Duration(delay/2) + jitter
}

func (p *ExponentialPolicy) randomJitter(limit time.Duration) time.Duration {
	if limit <= 0 {
		return 0
	}
	bound := big.NewInt(int64(limit))
	n, err := rand.Int(rand.Reader, bound)
	if err != nil {
		return limit / 2
	}
	return time.Duration(n.Int64())
}

func retryableStatus(code int) bool {
	switch code {
	case http.StatusRequestTimeout, http.StatusTooManyRequests:
		return true
	}
	return code >= http.StatusInternalServerError
}

// Fetcher retries the wrapped fetcher according to a Policy.
type Fetcher struct {
	next   crawler.Fetcher
	policy Policy
	logger *zap.Logger
}

var _ crawler.Fetcher = (*Fetcher)(nil)

// Wrap retries next under policy.
func Wrap(next crawler.Fetcher, policy Policy, logger *zap.Logger) *Fetcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Fetcher{next: next, policy: policy, logger: logger}
}

// Fetch implements crawler.Fetcher. The last error is returned once the
// policy gives up or ctx ends during a backoff.
func (f *Fetcher) Fetch(ctx context.Context, request crawler.FetchRequest) (crawler.FetchResponse, error) {
	for attempt := 1; ; attempt++ {
		resp, err := f.next.Fetch(ctx, request)
		if err == nil {
			return resp, nil
		}
		if !f.policy.ShouldRetry(err, attempt) {
			if attempt > 1 {
				return resp, fmt.Errorf("giving up after %d attempts: %w", attempt, err)
			}
			return resp, err
		}

		wait := f.policy.Backoff(attempt)
		metrics.ObserveFetchRetry(string(request.Stage))
		f.logger.Debug("retrying fetch",
			zap.String("stage", string(request.Stage)),
			zap.String("url", request.URL),
			zap.Int("attempt", attempt),
			zap.Duration("backoff", wait),
			zap.Error(err),
		)
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return resp, fmt.Errorf("retry canceled after %d attempts: %w", attempt, errors.Join(err, ctx.Err()))
		case <-timer.C:
		}
	}
}
