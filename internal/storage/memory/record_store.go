package memory

import (
	"context"
	"sync"

	"github.com/JakeFAU/mixtape-crawler/internal/crawler"
)

// RecordStore keeps the latest envelope per detail URL in insertion order.
type RecordStore struct {
	mu     sync.RWMutex
	order  []string
	byURL  map[string]crawler.RecordEnvelope
	closed bool
}

var _ crawler.EnvelopeWriter = (*RecordStore)(nil)

// NewRecordStore returns an empty RecordStore.
func NewRecordStore() *RecordStore {
	return &RecordStore{byURL: make(map[string]crawler.RecordEnvelope)}
}

// Write stores env, replacing any earlier envelope for the same detail URL.
func (s *RecordStore) Write(_ context.Context, env crawler.RecordEnvelope) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := env.Record.DetailURL
	if _, ok := s.byURL[key]; !ok {
		s.order = append(s.order, key)
	}
	s.byURL[key] = env
	return nil
}

// Envelopes returns the stored envelopes in first-write order.
func (s *RecordStore) Envelopes() []crawler.RecordEnvelope {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]crawler.RecordEnvelope, 0, len(s.order))
	for _, key := range s.order {
		out = append(out, s.byURL[key])
	}
	return out
}

// Closed reports whether Close was called.
func (s *RecordStore) Closed() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.closed
}

// Close marks the store closed. Stored envelopes stay readable.
func (s *RecordStore) Close(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}
