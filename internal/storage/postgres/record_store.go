// Package postgres provides Postgres-backed persistence implementations.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JakeFAU/mixtape-crawler/internal/crawler"
)

const defaultTable = "mixtapes"

var validTableName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// RecordStoreConfig controls the Postgres connection pool used for mixtape rows.
type RecordStoreConfig struct {
	DSN             string
	Table           string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

type execCloser interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	Close()
}

// RecordStore upserts crawled records into Postgres, one row per detail URL.
type RecordStore struct {
	pool  execCloser
	table string
}

var _ crawler.EnvelopeWriter = (*RecordStore)(nil)

// NewRecordStore creates a Postgres-backed RecordStore using the provided config.
func NewRecordStore(ctx context.Context, cfg RecordStoreConfig) (*RecordStore, error) {
	if cfg.DSN == "" {
		return nil, errors.New("db.dsn is required")
	}
	table, err := tableName(cfg.Table)
	if err != nil {
		return nil, err
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return &RecordStore{pool: pool, table: table}, nil
}

// NewRecordStoreWithPool constructs a store from an existing pool (primarily for testing).
func NewRecordStoreWithPool(pool execCloser, table string) (*RecordStore, error) {
	if pool == nil {
		return nil, errors.New("pool is required")
	}
	name, err := tableName(table)
	if err != nil {
		return nil, err
	}
	return &RecordStore{pool: pool, table: name}, nil
}

func tableName(table string) (string, error) {
	if table == "" {
		table = defaultTable
	}
	if !validTableName.MatchString(table) {
		return "", fmt.Errorf("invalid table name %q", table)
	}
	return table, nil
}

// EnsureSchema creates the record table when it does not exist.
func (s *RecordStore) EnsureSchema(ctx context.Context) error {
	query := fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %s (
	detail_url TEXT PRIMARY KEY,
	record_key TEXT NOT NULL,
	crawl_id   TEXT NOT NULL,
	scraped_at TIMESTAMPTZ NOT NULL,
	artist     TEXT NOT NULL,
	title      TEXT NOT NULL,
	banner     TEXT NOT NULL,
	record     JSONB NOT NULL
)`, s.table)
	if _, err := s.pool.Exec(ctx, query); err != nil {
		return fmt.Errorf("create table %s: %w", s.table, err)
	}
	return nil
}

// Write upserts the envelope's record keyed by detail URL. A later crawl
// replaces the stored row.
func (s *RecordStore) Write(ctx context.Context, env crawler.RecordEnvelope) error {
	if s == nil || s.pool == nil {
		return errors.New("record store is not configured")
	}
	if env.Record.DetailURL == "" {
		return errors.New("record detail url is required")
	}
	body, err := json.Marshal(env.Record)
	if err != nil {
		return fmt.Errorf("marshal record: %w", err)
	}
	query := fmt.Sprintf(`
INSERT INTO %s (
	detail_url,
	record_key,
	crawl_id,
	scraped_at,
	artist,
	title,
	banner,
	record
) VALUES (
	$1,$2,$3,$4,$5,$6,$7,$8
)
ON CONFLICT (detail_url) DO UPDATE SET
	record_key = EXCLUDED.record_key,
	crawl_id = EXCLUDED.crawl_id,
	scraped_at = EXCLUDED.scraped_at,
	artist = EXCLUDED.artist,
	title = EXCLUDED.title,
	banner = EXCLUDED.banner,
	record = EXCLUDED.record`, s.table)

	args := []any{
		env.Record.DetailURL,
		env.RecordKey,
		env.CrawlID,
		env.ScrapedAt,
		env.Record.Artist,
		env.Record.Title,
		string(env.Record.Banner),
		body,
	}
	if _, err := s.pool.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("upsert record: %w", err)
	}
	return nil
}

// Close releases the underlying pool resources.
func (s *RecordStore) Close(context.Context) error {
	if s == nil || s.pool == nil {
		return nil
	}
	s.pool.Close()
	return nil
}
