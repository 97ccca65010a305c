package sink

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/mixtape-crawler/internal/crawler"
	"github.com/JakeFAU/mixtape-crawler/internal/mixtape"
)

// Writer names an envelope writer for logs and errors.
type Writer struct {
	Name string
	crawler.EnvelopeWriter
}

// Stamped implements crawler.RecordSink. Each record is wrapped with the crawl
// ID, a stable key and the scrape time, then written to every writer.
type Stamped struct {
	crawlID string
	now     func() time.Time
	writers []Writer
	logger  *zap.Logger
}

var _ crawler.RecordSink = (*Stamped)(nil)

// Option customizes a Stamped sink.
type Option func(*Stamped)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Stamped) {
		s.now = now
	}
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Stamped) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewStamped builds a sink for one crawl.
func NewStamped(crawlID string, writers []Writer, opts ...Option) (*Stamped, error) {
	if crawlID == "" {
		return nil, errors.New("crawl id is required")
	}
	if len(writers) == 0 {
		return nil, errors.New("at least one writer is required")
	}
	s := &Stamped{
		crawlID: crawlID,
		now:     func() time.Time { return time.Now().UTC() },
		writers: writers,
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// CrawlID returns the ID stamped on every envelope.
func (s *Stamped) CrawlID() string {
	return s.crawlID
}

// Envelope stamps record without writing it.
func (s *Stamped) Envelope(record mixtape.CrawledRecord) crawler.RecordEnvelope {
	return crawler.RecordEnvelope{
		CrawlID:   s.crawlID,
		RecordKey: RecordKey(record.DetailURL),
		ScrapedAt: s.now(),
		Record:    record,
	}
}

// Put writes the stamped record to every writer. One failing writer does not
// stop the others; their errors are joined.
func (s *Stamped) Put(ctx context.Context, record mixtape.CrawledRecord) error {
	env := s.Envelope(record)
	var errs []error
	for _, w := range s.writers {
		if err := w.Write(ctx, env); err != nil {
			s.logger.Warn("writer rejected record",
				zap.String("writer", w.Name),
				zap.String("detail_url", record.DetailURL),
				zap.Error(err),
			)
			errs = append(errs, fmt.Errorf("writer %s: %w", w.Name, err))
		}
	}
	return errors.Join(errs...)
}

// Close closes every writer.
func (s *Stamped) Close(ctx context.Context) error {
	var errs []error
	for _, w := range s.writers {
		if err := w.Close(ctx); err != nil {
			errs = append(errs, fmt.Errorf("close writer %s: %w", w.Name, err))
		}
	}
	return errors.Join(errs...)
}

// RecordKey is the hex SHA-256 of the normalized detail URL.
func RecordKey(detailURL string) string {
	normalized, err := crawler.NormalizeURL(detailURL)
	if err != nil {
		normalized = detailURL
	}
	sum := sha256.Sum256([]byte(normalized))
	return hex.EncodeToString(sum[:])
}
