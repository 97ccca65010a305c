package crawler

import (
	"sync"
)

// requestFilter remembers which requests were already enqueued.
type requestFilter interface {
	MarkIfNew(key string) bool
}

type concurrentRequestFilter struct {
	seen sync.Map
}

func newConcurrentRequestFilter() *concurrentRequestFilter {
	return &concurrentRequestFilter{}
}

// MarkIfNew stores the key if it has not been seen before and returns true.
func (f *concurrentRequestFilter) MarkIfNew(key string) bool {
	if key == "" {
		return false
	}
	_, loaded := f.seen.LoadOrStore(key, struct{}{})
	return !loaded
}

// passFilter lets every request through.
type passFilter struct{}

func (passFilter) MarkIfNew(string) bool { return true }

// requestKey identifies a request by stage and normalized URL.
func requestKey(req Request) string {
	normalized, err := NormalizeURL(req.URL)
	if err != nil {
		normalized = req.URL
	}
	return string(req.Stage) + " " + normalized
}
