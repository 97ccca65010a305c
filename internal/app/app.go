// Package app builds and holds the long-lived services a crawl needs: the
// fetcher, the frontier, the record writers and the engine that drives them.
package app

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"cloud.google.com/go/pubsub"
	"cloud.google.com/go/storage"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/JakeFAU/mixtape-crawler/internal/api"
	"github.com/JakeFAU/mixtape-crawler/internal/config"
	"github.com/JakeFAU/mixtape-crawler/internal/crawler"
	collyfetcher "github.com/JakeFAU/mixtape-crawler/internal/fetcher/colly"
	"github.com/JakeFAU/mixtape-crawler/internal/fetcher/retry"
	"github.com/JakeFAU/mixtape-crawler/internal/policy/ratelimit"
	gcppublisher "github.com/JakeFAU/mixtape-crawler/internal/publisher/pubsub"
	redispublisher "github.com/JakeFAU/mixtape-crawler/internal/publisher/redis"
	queueMemory "github.com/JakeFAU/mixtape-crawler/internal/queue/memory"
	"github.com/JakeFAU/mixtape-crawler/internal/sink"
	gcsstorage "github.com/JakeFAU/mixtape-crawler/internal/storage/gcs"
	localstorage "github.com/JakeFAU/mixtape-crawler/internal/storage/local"
	memoryStorage "github.com/JakeFAU/mixtape-crawler/internal/storage/memory"
	pgstore "github.com/JakeFAU/mixtape-crawler/internal/storage/postgres"
	sqlitestore "github.com/JakeFAU/mixtape-crawler/internal/storage/sqlite"
)

// App contains the services for one crawl run.
type App struct {
	cfg     config.Config
	logger  *zap.Logger
	crawlID string

	fetcher  crawler.Fetcher
	frontier *queueMemory.Queue
	sink     *sink.Stamped
	engine   *crawler.Engine
	server   *api.Server

	jsonl   *sink.JSONL
	records *memoryStorage.RecordStore
	closers []func() error
}

// Option customizes Build.
type Option func(*options)

type options struct {
	crawlID string
	fetcher crawler.Fetcher
}

// WithCrawlID fixes the crawl ID instead of generating a UUIDv7.
func WithCrawlID(id string) Option {
	return func(o *options) {
		o.crawlID = id
	}
}

// WithFetcher replaces the Colly fetcher.
func WithFetcher(f crawler.Fetcher) Option {
	return func(o *options) {
		o.fetcher = f
	}
}

// Build creates the application's dependencies. Anything opened before a
// failure is closed again.
func Build(ctx context.Context, cfg config.Config, logger *zap.Logger, opts ...Option) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	crawlID := o.crawlID
	if crawlID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return nil, fmt.Errorf("generate crawl id: %w", err)
		}
		crawlID = id.String()
	}

	a := &App{
		cfg:      cfg,
		logger:   logger.With(zap.String("crawl_id", crawlID)),
		crawlID:  crawlID,
		frontier: queueMemory.NewQueue(),
	}
	a.logger.Info("building application dependencies",
		zap.Strings("writers", cfg.Sink.Writers),
		zap.String("seed", cfg.Crawler.SeedURL),
	)

	if err := a.build(ctx, o); err != nil {
		a.abort()
		return nil, err
	}
	return a, nil
}

func (a *App) build(ctx context.Context, o options) error {
	a.fetcher = o.fetcher
	if a.fetcher == nil {
		f, err := a.setupFetcher()
		if err != nil {
			return err
		}
		a.fetcher = f
	}
	if a.cfg.Crawler.RequestsPerSecond > 0 {
		a.fetcher = ratelimit.Wrap(a.fetcher, ratelimit.New(ratelimit.Config{
			RequestsPerSecond: a.cfg.Crawler.RequestsPerSecond,
			Burst:             a.cfg.Crawler.Burst,
		}))
		a.logger.Info("per-host rate limit enabled",
			zap.Float64("rps", a.cfg.Crawler.RequestsPerSecond),
			zap.Int("burst", a.cfg.Crawler.Burst),
		)
	}
	// Retries wrap the limiter so every attempt is paced.
	if a.cfg.Crawler.FetchAttempts > 1 {
		a.fetcher = retry.Wrap(a.fetcher, retry.NewExponentialPolicy(a.cfg.Crawler.FetchAttempts), a.logger)
	}

	writers, err := a.setupWriters(ctx)
	if err != nil {
		closeWriters(writers, a.logger)
		return err
	}
	a.sink, err = sink.NewStamped(a.crawlID, writers, sink.WithLogger(a.logger.Named("sink")))
	if err != nil {
		closeWriters(writers, a.logger)
		return fmt.Errorf("sink init failed: %w", err)
	}

	a.engine, err = crawler.NewEngine(a.cfg.EngineConfig(), crawler.Dependencies{
		Fetcher:  a.fetcher,
		Frontier: a.frontier,
		Sink:     a.sink,
		Logger:   a.logger.Named("engine"),
	})
	if err != nil {
		if cerr := a.sink.Close(ctx); cerr != nil {
			a.logger.Warn("sink close failed", zap.Error(cerr))
		}
		return fmt.Errorf("engine init failed: %w", err)
	}

	if a.cfg.Server.Enabled {
		a.server = api.NewServer(a.engine, api.CrawlInfo{
			CrawlID: a.crawlID,
			SeedURL: a.cfg.Crawler.SeedURL,
		}, a.logger.Named("api"))
	}
	return nil
}

func (a *App) setupFetcher() (crawler.Fetcher, error) {
	f, err := collyfetcher.New(collyfetcher.Config{
		UserAgent:     a.cfg.Crawler.UserAgent,
		RespectRobots: a.cfg.Crawler.RespectRobots,
		Timeout:       a.cfg.RequestTimeout(),
		Parallelism:   a.cfg.Crawler.PerDomainMax,
		Delay:         time.Duration(a.cfg.Crawler.DelayMs) * time.Millisecond,
		RandomDelay:   time.Duration(a.cfg.Crawler.RandomDelayMs) * time.Millisecond,
		MaxBodySize:   a.cfg.HTTP.MaxBodyBytes,
	})
	if err != nil {
		return nil, fmt.Errorf("fetcher init failed: %w", err)
	}
	a.logger.Info("using colly fetcher",
		zap.String("user_agent", a.cfg.Crawler.UserAgent),
		zap.Bool("respect_robots", a.cfg.Crawler.RespectRobots),
		zap.Int("per_domain_max", a.cfg.Crawler.PerDomainMax),
	)
	return f, nil
}

func (a *App) setupWriters(ctx context.Context) ([]sink.Writer, error) {
	writers := make([]sink.Writer, 0, len(a.cfg.Sink.Writers))
	for _, name := range a.cfg.Sink.Writers {
		w, err := a.setupWriter(ctx, name)
		if err != nil {
			return writers, fmt.Errorf("%s writer init failed: %w", name, err)
		}
		writers = append(writers, sink.Writer{Name: name, EnvelopeWriter: w})
		a.logger.Info("record writer ready", zap.String("writer", name))
	}
	return writers, nil
}

func (a *App) setupWriter(ctx context.Context, name string) (crawler.EnvelopeWriter, error) {
	switch name {
	case config.WriterJSONL:
		store, err := a.setupBlobStore(ctx)
		if err != nil {
			return nil, err
		}
		a.jsonl = sink.NewJSONL(store, a.cfg.Storage.Prefix, a.crawlID, a.logger.Named("jsonl"))
		return a.jsonl, nil
	case config.WriterPostgres:
		store, err := pgstore.NewRecordStore(ctx, pgstore.RecordStoreConfig{
			DSN:             a.cfg.DB.DSN,
			Table:           a.cfg.DB.Table,
			MaxConns:        a.cfg.DB.MaxConns,
			MinConns:        a.cfg.DB.MinConns,
			MaxConnLifetime: time.Duration(a.cfg.DB.MaxConnLifetimeSeconds) * time.Second,
		})
		if err != nil {
			return nil, err
		}
		if a.cfg.DB.EnsureSchema {
			if err := store.EnsureSchema(ctx); err != nil {
				_ = store.Close(ctx)
				return nil, err
			}
		}
		return store, nil
	case config.WriterSQLite:
		return sqlitestore.Open(ctx, sqlitestore.Config{
			Path:      a.cfg.SQLite.Path,
			EnableWAL: a.cfg.SQLite.WAL,
		})
	case config.WriterPubSub:
		client, err := pubsub.NewClient(ctx, a.cfg.PubSub.ProjectID)
		if err != nil {
			return nil, fmt.Errorf("pubsub client init failed: %w", err)
		}
		a.closers = append(a.closers, client.Close)
		topic := client.Topic(a.cfg.PubSub.TopicName)
		a.logger.Info("Pub/Sub publisher initialized",
			zap.String("project", a.cfg.PubSub.ProjectID),
			zap.String("topic", a.cfg.PubSub.TopicName),
		)
		return sink.NewPublish(gcppublisher.New(topic), a.cfg.PubSub.TopicName), nil
	case config.WriterRedis:
		pub, err := redispublisher.New(redispublisher.Config{
			Addr:        a.cfg.Redis.Addr,
			Password:    a.cfg.Redis.Password,
			DB:          a.cfg.Redis.DB,
			Stream:      a.cfg.Redis.Stream,
			StreamCount: a.cfg.Redis.StreamCount,
			MaxLen:      a.cfg.Redis.MaxLen,
		})
		if err != nil {
			return nil, err
		}
		return sink.NewPublish(pub, ""), nil
	case config.WriterMemory:
		a.records = memoryStorage.NewRecordStore()
		return a.records, nil
	default:
		return nil, fmt.Errorf("unknown writer %q", name)
	}
}

func (a *App) setupBlobStore(ctx context.Context) (crawler.BlobStore, error) {
	switch a.cfg.Storage.Backend {
	case config.BackendGCS:
		client, err := storage.NewClient(ctx)
		if err != nil {
			return nil, fmt.Errorf("gcs client init failed: %w", err)
		}
		a.closers = append(a.closers, client.Close)
		store, err := gcsstorage.New(client, gcsstorage.Config{
			Bucket:   a.cfg.Storage.GCSBucket,
			Metadata: map[string]string{"crawl_id": a.crawlID},
		})
		if err != nil {
			return nil, fmt.Errorf("gcs blob store init failed: %w", err)
		}
		a.logger.Debug("GCS storage backend", zap.String("bucket", a.cfg.Storage.GCSBucket))
		return store, nil
	case config.BackendLocal:
		store, err := localstorage.New(localstorage.Config{BaseDir: a.cfg.Storage.LocalDir})
		if err != nil {
			return nil, fmt.Errorf("local blob store init failed: %w", err)
		}
		a.logger.Debug("local storage backend", zap.String("path", a.cfg.Storage.LocalDir))
		return store, nil
	default:
		a.logger.Info("using in-memory storage backend, the export is discarded on exit")
		return memoryStorage.NewBlobStore(), nil
	}
}

// CrawlID identifies this run in every record and export.
func (a *App) CrawlID() string {
	return a.crawlID
}

// Logger returns the application logger.
func (a *App) Logger() *zap.Logger {
	return a.logger
}

// Engine exposes the crawl engine.
func (a *App) Engine() *crawler.Engine {
	return a.engine
}

// Records returns the in-memory record store, or nil when the memory writer
// is not configured.
func (a *App) Records() *memoryStorage.RecordStore {
	return a.records
}

// ExportURI returns where the JSONL export was uploaded. It is empty until
// Close has run or when no jsonl writer is configured.
func (a *App) ExportURI() string {
	if a.jsonl == nil {
		return ""
	}
	return a.jsonl.URI()
}

// Run crawls until the frontier drains or ctx ends. When the status server is
// enabled it serves for the duration of the crawl.
func (a *App) Run(ctx context.Context) (crawler.Stats, error) {
	serverDone := make(chan error, 1)
	serverCtx, stopServer := context.WithCancel(ctx)
	defer stopServer()

	if a.server != nil {
		go func() {
			serverDone <- a.server.ListenAndServe(serverCtx, ":"+strconv.Itoa(a.cfg.Server.Port))
		}()
		a.server.SetReady(true)
	} else {
		close(serverDone)
	}

	start := time.Now()
	stats, err := a.engine.Run(ctx)
	if a.server != nil {
		a.server.SetReady(false)
	}
	stopServer()
	if serr := <-serverDone; serr != nil {
		a.logger.Warn("status server failed", zap.Error(serr))
	}

	a.logger.Info("crawl summary",
		zap.Duration("elapsed", time.Since(start)),
		zap.Int64("catalog_pages", stats.CatalogPages),
		zap.Int64("skipped_pages", stats.SkippedPages),
		zap.Int64("listings", stats.Listings),
		zap.Int64("records", stats.Records),
		zap.Int64("sink_errors", stats.SinkErrors),
	)
	return stats, err
}

// Close flushes every writer and releases clients.
func (a *App) Close(ctx context.Context) error {
	a.frontier.Close()
	var errs []error
	if a.sink != nil {
		if err := a.sink.Close(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	for _, c := range a.closers {
		if err := c(); err != nil {
			errs = append(errs, err)
		}
	}
	if err := errors.Join(errs...); err != nil {
		a.logger.Warn("shutdown finished with errors", zap.Error(err))
		return fmt.Errorf("close app: %w", err)
	}
	a.logger.Info("shutdown complete", zap.String("export", a.ExportURI()))
	return nil
}

func (a *App) abort() {
	a.frontier.Close()
	for _, c := range a.closers {
		if err := c(); err != nil {
			a.logger.Warn("client close failed", zap.Error(err))
		}
	}
}

func closeWriters(writers []sink.Writer, logger *zap.Logger) {
	for _, w := range writers {
		if err := w.Close(context.Background()); err != nil {
			logger.Warn("writer close failed", zap.String("writer", w.Name), zap.Error(err))
		}
	}
}
