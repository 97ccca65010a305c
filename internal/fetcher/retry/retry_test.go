package retry

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/mixtape-crawler/internal/crawler"
)

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

var _ net.Error = timeoutErr{}

func TestExponentialPolicyShouldRetry(t *testing.T) {
	t.Parallel()

	p := NewExponentialPolicy(3)
	tests := []struct {
		name    string
		err     error
		attempt int
		want    bool
	}{
		{"nil error", nil, 1, false},
		{"server error", &crawler.StatusError{StatusCode: 503, Err: errors.New("unavailable")}, 1, true},
		{"wrapped throttle", fmt.Errorf("colly: %w", &crawler.StatusError{StatusCode: 429}), 2, true},
		{"not found", &crawler.StatusError{StatusCode: 404}, 1, false},
		{"timeout", timeoutErr{}, 1, true},
		{"canceled", context.Canceled, 1, false},
		{"plain error", errors.New("malformed"), 1, false},
		{"attempts exhausted", &crawler.StatusError{StatusCode: 500}, 3, false},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.want, p.ShouldRetry(tc.err, tc.attempt), tc.name)
	}
}

func TestExponentialPolicySingleAttempt(t *testing.T) {
	t.Parallel()

	p := NewExponentialPolicy(0)
	assert.False(t, p.ShouldRetry(&crawler.StatusError{StatusCode: 500}, 1))
}

func TestExponentialPolicyBackoffBounds(t *testing.T) {
	t.Parallel()

	p := NewExponentialPolicy(5)
	for attempt := 1; attempt <= 10; attempt++ {
		got := p.Backoff(attempt)
		full := 250 * time.Millisecond * time.Duration(1<<(attempt-1))
		if full > 5*time.Second {
			full = 5 * time.Second
		}
		assert.GreaterOrEqual(t, got, full/2, "attempt %d", attempt)
		assert.LessOrEqual(t, got, full, "attempt %d", attempt)
	}
}

// flakyFetcher fails each URL with a 503 the configured number of times.
type flakyFetcher struct {
	mu       sync.Mutex
	failures map[string]int
	calls    map[string]int
}

func (f *flakyFetcher) Fetch(_ context.Context, req crawler.FetchRequest) (crawler.FetchResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[req.URL]++
	if f.failures[req.URL] > 0 {
		f.failures[req.URL]--
		return crawler.FetchResponse{}, &crawler.StatusError{StatusCode: 503, Err: errors.New("Service Unavailable")}
	}
	return crawler.FetchResponse{URL: req.URL, StatusCode: 200}, nil
}

type instantPolicy struct {
	*ExponentialPolicy
}

func (instantPolicy) Backoff(int) time.Duration { return 0 }

func TestFetcherRetriesUntilSuccess(t *testing.T) {
	t.Parallel()

	next := &flakyFetcher{failures: map[string]int{"https://a/1": 2}, calls: map[string]int{}}
	f := Wrap(next, instantPolicy{NewExponentialPolicy(3)}, nil)

	resp, err := f.Fetch(context.Background(), crawler.FetchRequest{Stage: crawler.StageDetail, URL: "https://a/1"})
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)
	assert.Equal(t, 3, next.calls["https://a/1"])
}

func TestFetcherGivesUpAfterMaxAttempts(t *testing.T) {
	t.Parallel()

	next := &flakyFetcher{failures: map[string]int{"https://a/1": 5}, calls: map[string]int{}}
	f := Wrap(next, instantPolicy{NewExponentialPolicy(3)}, nil)

	_, err := f.Fetch(context.Background(), crawler.FetchRequest{URL: "https://a/1"})
	var statusErr *crawler.StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, 503, statusErr.StatusCode)
	assert.Contains(t, err.Error(), "after 3 attempts")
	assert.Equal(t, 3, next.calls["https://a/1"])
}

func TestFetcherDoesNotRetryPermanentFailures(t *testing.T) {
	t.Parallel()

	notFound := &crawler.StatusError{StatusCode: 404, Err: errors.New("Not Found")}
	calls := 0
	next := fetchFunc(func(context.Context, crawler.FetchRequest) (crawler.FetchResponse, error) {
		calls++
		return crawler.FetchResponse{}, notFound
	})
	f := Wrap(next, NewExponentialPolicy(3), nil)

	_, err := f.Fetch(context.Background(), crawler.FetchRequest{URL: "https://a/missing"})
	require.ErrorIs(t, err, notFound)
	assert.Equal(t, 1, calls)
}

func TestFetcherStopsBackoffOnCancel(t *testing.T) {
	t.Parallel()

	next := &flakyFetcher{failures: map[string]int{"https://a/1": 5}, calls: map[string]int{}}
	f := Wrap(next, NewExponentialPolicy(3), nil)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := f.Fetch(ctx, crawler.FetchRequest{URL: "https://a/1"})
	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, 1, next.calls["https://a/1"])
}

type fetchFunc func(context.Context, crawler.FetchRequest) (crawler.FetchResponse, error)

func (f fetchFunc) Fetch(ctx context.Context, req crawler.FetchRequest) (crawler.FetchResponse, error) {
	return f(ctx, req)
}
