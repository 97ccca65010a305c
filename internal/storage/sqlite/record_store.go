// Package sqlite stores crawled records in a local SQLite file.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/JakeFAU/mixtape-crawler/internal/crawler"
	"github.com/JakeFAU/mixtape-crawler/internal/mixtape"
)

// Config controls where the database lives.
type Config struct {
	Path string
	// EnableWAL turns on write-ahead logging.
	EnableWAL bool
}

// RecordStore upserts crawled records keyed by detail URL.
type RecordStore struct {
	db *sql.DB
}

var _ crawler.EnvelopeWriter = (*RecordStore)(nil)

// Open opens or creates the database at cfg.Path and its schema.
func Open(ctx context.Context, cfg Config) (*RecordStore, error) {
	if cfg.Path == "" {
		return nil, errors.New("sqlite.path is required")
	}
	if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o750); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	db, err := sql.Open("sqlite", cfg.Path+"?mode=rwc")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// SQLite only supports one writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	if cfg.EnableWAL {
		if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("enable WAL mode: %w", err)
		}
	}

	store := &RecordStore{db: db}
	if err := store.createTables(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

func (s *RecordStore) createTables(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS mixtapes (
		detail_url TEXT PRIMARY KEY,
		record_key TEXT NOT NULL,
		crawl_id   TEXT NOT NULL,
		scraped_at DATETIME NOT NULL,
		artist     TEXT NOT NULL,
		title      TEXT NOT NULL,
		banner     TEXT NOT NULL,
		record     TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_mixtapes_crawl ON mixtapes(crawl_id);
	CREATE INDEX IF NOT EXISTS idx_mixtapes_artist ON mixtapes(artist);
	`
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("create tables: %w", err)
	}
	return nil
}

// Write upserts the envelope's record.
func (s *RecordStore) Write(ctx context.Context, env crawler.RecordEnvelope) error {
	if env.Record.DetailURL == "" {
		return errors.New("record detail url is required")
	}
	body, err := json.Marshal(env.Record)
	if err != nil {
		return fmt.Errorf("marshal record: %w", err)
	}
	const query = `
	INSERT INTO mixtapes (detail_url, record_key, crawl_id, scraped_at, artist, title, banner, record)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(detail_url) DO UPDATE SET
		record_key = excluded.record_key,
		crawl_id = excluded.crawl_id,
		scraped_at = excluded.scraped_at,
		artist = excluded.artist,
		title = excluded.title,
		banner = excluded.banner,
		record = excluded.record`
	_, err = s.db.ExecContext(ctx, query,
		env.Record.DetailURL,
		env.RecordKey,
		env.CrawlID,
		env.ScrapedAt.UTC().Format(time.RFC3339Nano),
		env.Record.Artist,
		env.Record.Title,
		string(env.Record.Banner),
		string(body),
	)
	if err != nil {
		return fmt.Errorf("upsert record: %w", err)
	}
	return nil
}

// Get returns the stored record for detailURL.
func (s *RecordStore) Get(ctx context.Context, detailURL string) (mixtape.CrawledRecord, error) {
	var body string
	err := s.db.QueryRowContext(ctx, `SELECT record FROM mixtapes WHERE detail_url = ?`, detailURL).Scan(&body)
	if err != nil {
		return mixtape.CrawledRecord{}, fmt.Errorf("query record %s: %w", detailURL, err)
	}
	var rec mixtape.CrawledRecord
	if err := json.Unmarshal([]byte(body), &rec); err != nil {
		return mixtape.CrawledRecord{}, fmt.Errorf("decode record %s: %w", detailURL, err)
	}
	return rec, nil
}

// Count returns the number of stored records.
func (s *RecordStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM mixtapes`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count records: %w", err)
	}
	return n, nil
}

// Close closes the database connection.
func (s *RecordStore) Close(context.Context) error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close database: %w", err)
	}
	return nil
}
