package crawler

import (
	"fmt"
	"net/http"
	"time"

	"github.com/JakeFAU/mixtape-crawler/internal/mixtape"
)

// Stage names the handler a request is routed to.
type Stage string

// Request stages.
const (
	StageCatalog Stage = "catalog"
	StageDetail  Stage = "detail"
)

// Request is one unit of frontier work. Detail requests carry the listing
// extracted from the catalog page that produced them.
type Request struct {
	Stage   Stage
	URL     string
	Listing mixtape.PartialListing
}

// FetchRequest captures everything needed to fetch a URL.
type FetchRequest struct {
	Stage   Stage
	URL     string
	Headers http.Header
}

// FetchResponse is the result returned by a Fetcher implementation.
type FetchResponse struct {
	URL        string
	StatusCode int
	Headers    http.Header
	Body       []byte
	Duration   time.Duration
}

// StatusError reports a response outside the 2xx range.
type StatusError struct {
	StatusCode int
	Err        error
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("status %d: %v", e.StatusCode, e.Err)
}

func (e *StatusError) Unwrap() error {
	return e.Err
}

// RecordEnvelope wraps a record with the provenance writers persist.
type RecordEnvelope struct {
	CrawlID   string                `json:"crawl_id"`
	RecordKey string                `json:"record_key"`
	ScrapedAt time.Time             `json:"scraped_at"`
	Record    mixtape.CrawledRecord `json:"record"`
}

// Stats summarizes a crawl run.
type Stats struct {
	CatalogPages    int64 `json:"catalog_pages"`
	SkippedPages    int64 `json:"skipped_pages"`
	Listings        int64 `json:"listings"`
	DetailPages     int64 `json:"detail_pages"`
	Records         int64 `json:"records"`
	FetchErrors     int64 `json:"fetch_errors"`
	DroppedRequests int64 `json:"dropped_requests"`
	SinkErrors      int64 `json:"sink_errors"`
	Outstanding     int64 `json:"outstanding"`
}

// Attributes returns the envelope metadata as flat string pairs for
// transports that carry headers beside the payload.
func (e RecordEnvelope) Attributes() map[string]string {
	return map[string]string{
		"crawl_id":   e.CrawlID,
		"record_key": e.RecordKey,
		"detail_url": e.Record.DetailURL,
	}
}
