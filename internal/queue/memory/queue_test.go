package memory

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/mixtape-crawler/internal/crawler"
)

func TestQueueEnqueueDequeue(t *testing.T) {
	t.Parallel()

	q := NewQueue()
	result := make(chan crawler.Request, 1)
	errCh := make(chan error, 1)

	go func() {
		item, err := q.Dequeue(context.Background())
		if err != nil {
			errCh <- err
			return
		}
		result <- item
	}()

	time.Sleep(10 * time.Millisecond) // allow goroutine to start
	req := crawler.Request{Stage: crawler.StageCatalog, URL: "https://example.org/p=1"}
	require.NoError(t, q.Enqueue(context.Background(), req))

	select {
	case err := <-errCh:
		t.Fatalf("Dequeue() error = %v", err)
	case got := <-result:
		assert.Equal(t, req, got)
	case <-time.After(time.Second):
		t.Fatal("dequeue did not return request")
	}
}

func TestQueueIsFIFOAndUnbounded(t *testing.T) {
	t.Parallel()

	q := NewQueue()
	ctx := context.Background()
	for _, u := range []string{"a", "b", "c", "d", "e"} {
		require.NoError(t, q.Enqueue(ctx, crawler.Request{URL: u}))
	}
	assert.Equal(t, 5, q.Len())

	var got []string
	for range 5 {
		req, err := q.Dequeue(ctx)
		require.NoError(t, err)
		got = append(got, req.URL)
	}
	assert.Equal(t, []string{"a", "b", "c", "d", "e"}, got)
}

func TestQueueCancelationErrors(t *testing.T) {
	t.Parallel()

	q := NewQueue()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := q.Dequeue(ctx)
	require.EqualError(t, err, "dequeue canceled: context canceled")

	err = q.Enqueue(ctx, crawler.Request{})
	require.EqualError(t, err, "enqueue canceled: context canceled")
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestQueueDequeueUnblocksOnCancel(t *testing.T) {
	t.Parallel()

	q := NewQueue()
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := q.Dequeue(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestQueueClose(t *testing.T) {
	t.Parallel()

	q := NewQueue()
	require.NoError(t, q.Enqueue(context.Background(), crawler.Request{URL: "left"}))
	q.Close()

	req, err := q.Dequeue(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "left", req.URL)

	_, err = q.Dequeue(context.Background())
	require.ErrorIs(t, err, ErrQueueClosed)
	require.ErrorIs(t, q.Enqueue(context.Background(), crawler.Request{}), ErrQueueClosed)

	// Closing twice should be safe.
	q.Close()
}

func TestQueueCloseWakesWaiters(t *testing.T) {
	t.Parallel()

	q := NewQueue()
	var wg sync.WaitGroup
	errs := make(chan error, 3)
	for range 3 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := q.Dequeue(context.Background())
			errs <- err
		}()
	}
	time.Sleep(10 * time.Millisecond)
	q.Close()
	wg.Wait()
	close(errs)
	for err := range errs {
		require.ErrorIs(t, err, ErrQueueClosed)
	}
}

func TestQueueConcurrentConsumers(t *testing.T) {
	t.Parallel()

	q := NewQueue()
	ctx := context.Background()
	const n = 200

	var mu sync.Mutex
	seen := make(map[string]int)
	var wg sync.WaitGroup
	for range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				req, err := q.Dequeue(ctx)
				if err != nil {
					return
				}
				mu.Lock()
				seen[req.URL]++
				done := len(seen) == n
				mu.Unlock()
				if done {
					q.Close()
				}
			}
		}()
	}
	for i := range n {
		require.NoError(t, q.Enqueue(ctx, crawler.Request{URL: time.Duration(i).String()}))
	}
	wg.Wait()
	assert.Len(t, seen, n)
	for _, c := range seen {
		assert.Equal(t, 1, c)
	}
}
