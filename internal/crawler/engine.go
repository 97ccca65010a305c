package crawler

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sync/atomic"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/JakeFAU/mixtape-crawler/internal/dom"
	"github.com/JakeFAU/mixtape-crawler/internal/metrics"
	"github.com/JakeFAU/mixtape-crawler/internal/mixtape"
)

// Drop reasons reported when a request never reaches the frontier.
const (
	DropHost         = "host"
	DropDuplicate    = "duplicate"
	DropCatalogLimit = "catalog_limit"
	DropInvalidURL   = "invalid_url"
)

// ErrAlreadyRun is returned when Run is called twice on one Engine.
var ErrAlreadyRun = errors.New("engine already ran")

// Dependencies are the collaborators an Engine drives.
type Dependencies struct {
	Fetcher  Fetcher
	Frontier Frontier
	Sink     RecordSink
	Listings *mixtape.ListingExtractor
	Details  *mixtape.DetailExtractor
	Logger   *zap.Logger
}

// Engine coordinates the catalog and detail stages. An Engine runs once.
type Engine struct {
	cfg      Config
	fetcher  Fetcher
	frontier Frontier
	sink     RecordSink
	listings *mixtape.ListingExtractor
	details  *mixtape.DetailExtractor
	logger   *zap.Logger

	allow  *hostAllowlist
	filter requestFilter

	started     atomic.Bool
	outstanding atomic.Int64
	catalogSent atomic.Int64
	counters    counters
}

type counters struct {
	catalogPages    atomic.Int64
	skippedPages    atomic.Int64
	listings        atomic.Int64
	detailPages     atomic.Int64
	records         atomic.Int64
	fetchErrors     atomic.Int64
	droppedRequests atomic.Int64
	sinkErrors      atomic.Int64
}

var _ Crawler = (*Engine)(nil)

// NewEngine validates cfg and wires the collaborators.
func NewEngine(cfg Config, deps Dependencies) (*Engine, error) {
	cfg = cfg.withDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if deps.Fetcher == nil {
		return nil, errors.New("engine requires a fetcher")
	}
	if deps.Frontier == nil {
		return nil, errors.New("engine requires a frontier")
	}
	if deps.Sink == nil {
		return nil, errors.New("engine requires a record sink")
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	if deps.Listings == nil {
		deps.Listings = mixtape.NewListingExtractor(nil, logger.Named("listing"))
	}
	if deps.Details == nil {
		deps.Details = mixtape.NewDetailExtractor(nil, logger.Named("detail"))
	}

	var filter requestFilter = passFilter{}
	if cfg.DedupeRequests {
		filter = newConcurrentRequestFilter()
	}

	return &Engine{
		cfg:      cfg,
		fetcher:  deps.Fetcher,
		frontier: deps.Frontier,
		sink:     deps.Sink,
		listings: deps.Listings,
		details:  deps.Details,
		logger:   logger,
		allow:    newHostAllowlist(cfg.AllowedDomains),
		filter:   filter,
	}, nil
}

// Run seeds the frontier with the first catalog page and processes requests
// until none is outstanding or ctx ends. Fetch, parse and sink failures are
// logged and counted but never abort the run.
func (e *Engine) Run(ctx context.Context) (Stats, error) {
	if !e.started.CompareAndSwap(false, true) {
		return e.Stats(), ErrAlreadyRun
	}

	seed := Request{Stage: StageCatalog, URL: e.cfg.SeedURL}
	if !e.enqueue(ctx, seed) {
		return e.Stats(), fmt.Errorf("%w: %s was not admitted", ErrInvalidSeed, e.cfg.SeedURL)
	}
	e.logger.Info("crawl started",
		zap.String("seed", e.cfg.SeedURL),
		zap.Int("concurrency", e.cfg.Concurrency),
		zap.Strings("allowed_domains", e.cfg.AllowedDomains),
	)

	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < e.cfg.Concurrency; i++ {
		id := i
		g.Go(func() error {
			return e.worker(gctx, id)
		})
	}
	err := g.Wait()

	stats := e.Stats()
	fields := []zap.Field{
		zap.Int64("catalog_pages", stats.CatalogPages),
		zap.Int64("detail_pages", stats.DetailPages),
		zap.Int64("records", stats.Records),
		zap.Int64("fetch_errors", stats.FetchErrors),
		zap.Int64("dropped_requests", stats.DroppedRequests),
	}
	if err != nil {
		e.logger.Warn("crawl interrupted", append(fields, zap.Error(err))...)
		return stats, fmt.Errorf("crawl interrupted: %w", err)
	}
	e.logger.Info("crawl finished", fields...)
	return stats, nil
}

// Stats returns a snapshot of the run counters. It is safe to call while the
// run is in progress.
func (e *Engine) Stats() Stats {
	return Stats{
		CatalogPages:    e.counters.catalogPages.Load(),
		SkippedPages:    e.counters.skippedPages.Load(),
		Listings:        e.counters.listings.Load(),
		DetailPages:     e.counters.detailPages.Load(),
		Records:         e.counters.records.Load(),
		FetchErrors:     e.counters.fetchErrors.Load(),
		DroppedRequests: e.counters.droppedRequests.Load(),
		SinkErrors:      e.counters.sinkErrors.Load(),
		Outstanding:     e.outstanding.Load(),
	}
}

func (e *Engine) worker(ctx context.Context, id int) error {
	logger := e.logger.With(zap.Int("worker", id))
	for {
		req, err := e.frontier.Dequeue(ctx)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return fmt.Errorf("worker %d: %w", id, ctxErr)
			}
			logger.Debug("frontier closed")
			return nil
		}
		switch req.Stage {
		case StageCatalog:
			e.handleCatalog(ctx, req, logger)
		case StageDetail:
			e.handleDetail(ctx, req, logger)
		default:
			logger.Error("unknown request stage", zap.String("stage", string(req.Stage)), zap.String("url", req.URL))
		}
		e.finish()
	}
}

// enqueue admits req to the frontier. The outstanding counter rises before the
// request becomes visible so the run cannot end while it is pending.
func (e *Engine) enqueue(ctx context.Context, req Request) bool {
	host, err := hostOf(req.URL)
	if err != nil {
		e.drop(req, DropInvalidURL, err)
		return false
	}
	if !e.allow.Allows(host) {
		e.drop(req, DropHost, nil)
		return false
	}
	if !e.filter.MarkIfNew(requestKey(req)) {
		e.drop(req, DropDuplicate, nil)
		return false
	}
	if req.Stage == StageCatalog && e.cfg.MaxCatalogPages > 0 &&
		e.catalogSent.Add(1) > int64(e.cfg.MaxCatalogPages) {
		e.drop(req, DropCatalogLimit, nil)
		return false
	}

	metrics.SetOutstanding(e.outstanding.Add(1))
	if err := e.frontier.Enqueue(ctx, req); err != nil {
		e.logger.Warn("enqueue failed", zap.String("stage", string(req.Stage)), zap.String("url", req.URL), zap.Error(err))
		e.finish()
		return false
	}
	return true
}

func (e *Engine) finish() {
	n := e.outstanding.Add(-1)
	metrics.SetOutstanding(n)
	if n == 0 {
		e.frontier.Close()
	}
}

func (e *Engine) drop(req Request, reason string, err error) {
	e.counters.droppedRequests.Add(1)
	metrics.ObserveDroppedRequest(reason)
	fields := []zap.Field{
		zap.String("stage", string(req.Stage)),
		zap.String("url", req.URL),
		zap.String("reason", reason),
	}
	if err != nil {
		fields = append(fields, zap.Error(err))
	}
	e.logger.Debug("request dropped", fields...)
}

// fetch makes one attempt. Retrying is the fetcher's concern; a failure here
// ends the branch.
func (e *Engine) fetch(ctx context.Context, req Request, logger *zap.Logger) (FetchResponse, bool) {
	resp, err := e.fetcher.Fetch(ctx, FetchRequest{Stage: req.Stage, URL: req.URL})
	if err != nil {
		e.counters.fetchErrors.Add(1)
		metrics.ObserveFetch(string(req.Stage), "error", req.URL, 0, resp.Duration)
		logger.Warn("fetch failed",
			zap.String("stage", string(req.Stage)),
			zap.String("url", req.URL),
			zap.Error(err),
		)
		return FetchResponse{}, false
	}
	metrics.ObserveFetch(string(req.Stage), "ok", req.URL, len(resp.Body), resp.Duration)
	return resp, true
}

func (e *Engine) handleCatalog(ctx context.Context, req Request, logger *zap.Logger) {
	resp, ok := e.fetch(ctx, req, logger)
	if !ok {
		return
	}
	e.counters.catalogPages.Add(1)
	logger = logger.With(zap.String("url", req.URL))

	base := responseBase(resp, req)
	page, err := dom.Parse(resp.Body)
	if err != nil {
		e.skipPage(logger, err)
		return
	}
	pagination, err := mixtape.ParsePagination(page, base)
	if err != nil {
		e.skipPage(logger, err)
		return
	}

	var listings int
	for listing := range e.listings.Extract(page, base) {
		listings++
		e.enqueue(ctx, Request{Stage: StageDetail, URL: listing.DetailURL, Listing: listing})
	}
	e.counters.listings.Add(int64(listings))

	if !pagination.HasNext() {
		metrics.ObserveCatalogPage("last")
		logger.Info("reached end of catalog",
			zap.Int("page", pagination.Current),
			zap.Int("next", pagination.Next),
			zap.Int("listings", listings),
		)
		return
	}
	metrics.ObserveCatalogPage("parsed")
	logger.Info("catalog page parsed",
		zap.Int("page", pagination.Current),
		zap.Int("next", pagination.Next),
		zap.Int("listings", listings),
	)
	e.enqueue(ctx, Request{Stage: StageCatalog, URL: pagination.NextURL})
}

func (e *Engine) skipPage(logger *zap.Logger, err error) {
	e.counters.skippedPages.Add(1)
	metrics.ObserveCatalogPage("skipped")
	logger.Warn("skipping catalog page", zap.Error(err))
}

func (e *Engine) handleDetail(ctx context.Context, req Request, logger *zap.Logger) {
	resp, ok := e.fetch(ctx, req, logger)
	if !ok {
		return
	}
	e.counters.detailPages.Add(1)

	page, err := dom.Parse(resp.Body)
	if err != nil {
		logger.Warn("detail page unparsable", zap.String("url", req.URL), zap.Error(err))
	}
	record := e.details.Extract(req.Listing, page)

	if err := e.sink.Put(ctx, record); err != nil {
		e.counters.sinkErrors.Add(1)
		metrics.ObserveSinkError()
		logger.Error("sink rejected record", zap.String("url", req.URL), zap.Error(err))
		return
	}
	e.counters.records.Add(1)
	metrics.ObserveRecord()
}

func responseBase(resp FetchResponse, req Request) *url.URL {
	for _, raw := range []string{resp.URL, req.URL} {
		if raw == "" {
			continue
		}
		if u, err := url.Parse(raw); err == nil {
			return u
		}
	}
	return nil
}
