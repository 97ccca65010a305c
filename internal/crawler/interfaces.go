package crawler

import (
	"context"
	"io"

	"github.com/JakeFAU/mixtape-crawler/internal/mixtape"
)

// Fetcher fetches a URL and returns the body plus metadata.
type Fetcher interface {
	Fetch(ctx context.Context, request FetchRequest) (FetchResponse, error)
}

// Frontier holds pending requests. Dequeue blocks until a request arrives,
// the context ends, or the frontier is closed.
type Frontier interface {
	Enqueue(ctx context.Context, req Request) error
	Dequeue(ctx context.Context) (Request, error)
	Close()
}

// RecordSink receives every record the crawl produces.
type RecordSink interface {
	Put(ctx context.Context, record mixtape.CrawledRecord) error
	Close(ctx context.Context) error
}

// EnvelopeWriter persists stamped records to one destination.
type EnvelopeWriter interface {
	Write(ctx context.Context, env RecordEnvelope) error
	Close(ctx context.Context) error
}

// BlobStore writes raw artifacts and returns a URI.
type BlobStore interface {
	PutObject(ctx context.Context, path string, contentType string, data io.Reader) (string, error)
}

// Publisher pushes messages to Pub/Sub, Redis streams, or similar.
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) (string, error)
}
