package sink

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"path"
	"sync"

	"go.uber.org/zap"

	"github.com/JakeFAU/mixtape-crawler/internal/crawler"
)

const jsonlContentType = "application/x-ndjson"

// JSONL buffers one JSON line per envelope and uploads the export to a blob
// store when closed.
type JSONL struct {
	store  crawler.BlobStore
	path   string
	logger *zap.Logger

	mu     sync.Mutex
	buf    bytes.Buffer
	enc    *json.Encoder
	lines  int
	uri    string
	closed bool
}

var _ crawler.EnvelopeWriter = (*JSONL)(nil)

// NewJSONL writes <prefix>/<crawlID>.jsonl to store.
func NewJSONL(store crawler.BlobStore, prefix, crawlID string, logger *zap.Logger) *JSONL {
	if logger == nil {
		logger = zap.NewNop()
	}
	j := &JSONL{
		store:  store,
		path:   path.Join(prefix, crawlID+".jsonl"),
		logger: logger,
	}
	j.enc = json.NewEncoder(&j.buf)
	return j
}

// Write appends env as one line.
func (j *JSONL) Write(_ context.Context, env crawler.RecordEnvelope) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.closed {
		return fmt.Errorf("jsonl export %s already closed", j.path)
	}
	if err := j.enc.Encode(env); err != nil {
		return fmt.Errorf("encode envelope: %w", err)
	}
	j.lines++
	return nil
}

// Close uploads the buffered export. Closing twice uploads once.
func (j *JSONL) Close(ctx context.Context) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.closed {
		return nil
	}
	j.closed = true

	uri, err := j.store.PutObject(ctx, j.path, jsonlContentType, bytes.NewReader(j.buf.Bytes()))
	if err != nil {
		return fmt.Errorf("upload %s: %w", j.path, err)
	}
	j.uri = uri
	j.logger.Info("export uploaded", zap.String("uri", uri), zap.Int("records", j.lines))
	return nil
}

// URI returns where the export was uploaded, empty before Close.
func (j *JSONL) URI() string {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.uri
}
