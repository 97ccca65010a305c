package sqlite

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/mixtape-crawler/internal/crawler"
	"github.com/JakeFAU/mixtape-crawler/internal/extract"
	"github.com/JakeFAU/mixtape-crawler/internal/mixtape"
)

func openStore(t *testing.T) *RecordStore {
	t.Helper()
	store, err := Open(context.Background(), Config{Path: filepath.Join(t.TempDir(), "db", "mixtapes.db"), EnableWAL: true})
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close(context.Background()) })
	return store
}

func envelope(listens extract.Field[int]) crawler.RecordEnvelope {
	return crawler.RecordEnvelope{
		CrawlID:   "crawl-1",
		RecordKey: "key-1",
		ScrapedAt: time.Unix(1700000000, 0),
		Record: mixtape.CrawledRecord{
			Artist:    "Artist",
			Title:     "Title",
			Listens:   listens,
			Banner:    mixtape.BannerNone,
			DetailURL: "https://www.datpiff.com/Artist-Title.1.html",
			Views:     extract.Value("4321"),
			Downloads: extract.Failed[int](),
		},
	}
}

func TestRecordStoreRoundTrip(t *testing.T) {
	t.Parallel()

	store := openStore(t)
	ctx := context.Background()
	env := envelope(extract.Failed[int]())

	require.NoError(t, store.Write(ctx, env))

	got, err := store.Get(ctx, env.Record.DetailURL)
	require.NoError(t, err)
	assert.Equal(t, env.Record, got)
}

func TestRecordStoreUpsertsByDetailURL(t *testing.T) {
	t.Parallel()

	store := openStore(t)
	ctx := context.Background()

	require.NoError(t, store.Write(ctx, envelope(extract.Value(1))))
	require.NoError(t, store.Write(ctx, envelope(extract.Value(2))))

	n, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	got, err := store.Get(ctx, "https://www.datpiff.com/Artist-Title.1.html")
	require.NoError(t, err)
	assert.Equal(t, extract.Value(2), got.Listens)
}

func TestRecordStoreMissing(t *testing.T) {
	t.Parallel()

	_, err := openStore(t).Get(context.Background(), "https://nowhere.example/")
	require.ErrorIs(t, err, sql.ErrNoRows)
}

func TestRecordStoreRequiresPath(t *testing.T) {
	t.Parallel()

	_, err := Open(context.Background(), Config{})
	require.Error(t, err)

	store := openStore(t)
	env := envelope(extract.Value(1))
	env.Record.DetailURL = ""
	require.Error(t, store.Write(context.Background(), env))
}
