package mixtape

import (
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/JakeFAU/mixtape-crawler/internal/dom"
	"github.com/JakeFAU/mixtape-crawler/internal/extract"
)

const base = "https://www.datpiff.com/mixtapes.php?filter=all&p=1"

func TestListingKeepsOnlyOfficialEntries(t *testing.T) {
	t.Parallel()

	unofficial := officialEntry("B", "Two", "/two.html")
	unofficial.banners = []string{"banner sponsor"}
	page := dom.MustParse(catalogPage(1, 2,
		officialEntry("A", "One", "/one.html"),
		unofficial,
		officialEntry("C", "Three", "/three.html"),
	))

	got := slices.Collect(NewListingExtractor(nil, nil).Extract(page, mustURL(t, base)))
	require.Len(t, got, 2)
	assert.Equal(t, "A", got[0].Artist)
	assert.Equal(t, "C", got[1].Artist)
}

func TestListingBannerPrecedence(t *testing.T) {
	t.Parallel()

	page := dom.MustParse(catalogPage(1, 2,
		officialEntry("A", "Both", "/a.html", "banner exclusive", "banner sponsor"),
		officialEntry("B", "Exclusive", "/b.html", "banner exclusive"),
		officialEntry("C", "Plain", "/c.html"),
		officialEntry("D", "Padded", "/d.html", "  banner   sponsor "),
	))

	got := slices.Collect(NewListingExtractor(nil, nil).Extract(page, mustURL(t, base)))
	require.Len(t, got, 4)
	assert.Equal(t, BannerSponsored, got[0].Banner)
	assert.Equal(t, BannerExclusive, got[1].Banner)
	assert.Equal(t, BannerNone, got[2].Banner)
	assert.Equal(t, BannerSponsored, got[3].Banner)
}

func TestListingFields(t *testing.T) {
	t.Parallel()

	page := dom.MustParse(catalogPage(1, 2, officialEntry(" Artist ", "Title", "/Artist-Title.123.html")))

	got := slices.Collect(NewListingExtractor(nil, nil).Extract(page, mustURL(t, base)))
	require.Len(t, got, 1)
	assert.Equal(t, PartialListing{
		Artist:      "Artist",
		Title:       "Title",
		Listens:     extract.Value(12345),
		RatingScore: extract.Value(4),
		RatingCount: extract.Value(1024),
		Banner:      BannerNone,
		DetailURL:   "https://www.datpiff.com/Artist-Title.123.html",
	}, got[0])
}

func TestListingNumericFailuresAreFailed(t *testing.T) {
	t.Parallel()

	e := officialEntry("A", "One", "/one.html")
	e.listens = "n/a"
	e.alt = "unrated"
	e.votes = ""
	page := dom.MustParse(catalogPage(1, 2, e))

	got := slices.Collect(NewListingExtractor(nil, nil).Extract(page, mustURL(t, base)))
	require.Len(t, got, 1)
	assert.True(t, got[0].Listens.IsFailed())
	assert.True(t, got[0].RatingScore.IsFailed())
	assert.True(t, got[0].RatingCount.IsFailed())
}

func TestListingFormattedTitleMarkup(t *testing.T) {
	t.Parallel()

	entry := `<div class="contentItemInner"><a href="/m/1"><div class="banner official"></div></a>
  <div class="artist">X</div>
  <div class="title">
    <a href="/m/1">Y</a>
  </div>
  <div>Listens: <span>10</span></div>
  <div class="text"><img alt="3 stars" title="7 votes"/></div>
</div>`
	page := dom.MustParse(`<html><body><div id="leftColumnWide">` + entry + `</div></body></html>`)

	got := slices.Collect(NewListingExtractor(nil, nil).Extract(page, mustURL(t, base)))
	require.Len(t, got, 1)
	assert.Equal(t, "X", got[0].Artist)
	assert.Equal(t, "Y", got[0].Title)
	assert.Equal(t, "https://www.datpiff.com/m/1", got[0].DetailURL)
	assert.Equal(t, extract.Value(3), got[0].RatingScore)
}

func TestListingDecimalRatingScoreIsFailed(t *testing.T) {
	t.Parallel()

	e := officialEntry("A", "One", "/one.html")
	e.alt = "4.5 stars"
	page := dom.MustParse(catalogPage(1, 2, e))

	got := slices.Collect(NewListingExtractor(nil, nil).Extract(page, mustURL(t, base)))
	require.Len(t, got, 1)
	assert.True(t, got[0].RatingScore.IsFailed())
	assert.Equal(t, extract.Value(1024), got[0].RatingCount)
}

func TestListingSkipsEntryMissingRequiredField(t *testing.T) {
	t.Parallel()

	noArtist := officialEntry("", "One", "/one.html")
	noLink := officialEntry("B", "Two", "")
	page := dom.MustParse(catalogPage(1, 2, noArtist, noLink, officialEntry("C", "Three", "/three.html")))

	core, logs := observer.New(zap.WarnLevel)
	got := slices.Collect(NewListingExtractor(nil, zap.New(core)).Extract(page, mustURL(t, base)))
	require.Len(t, got, 1)
	assert.Equal(t, "C", got[0].Artist)
	assert.Equal(t, 2, logs.FilterMessage("skipping catalog entry").Len())
}

func TestListingStopsWhenConsumerStops(t *testing.T) {
	t.Parallel()

	page := dom.MustParse(catalogPage(1, 2,
		officialEntry("A", "One", "/one.html"),
		officialEntry("B", "Two", "/two.html"),
	))

	var seen int
	for range NewListingExtractor(nil, nil).Extract(page, mustURL(t, base)) {
		seen++
		break
	}
	assert.Equal(t, 1, seen)
}

func TestListingEmptyPage(t *testing.T) {
	t.Parallel()

	page := dom.MustParse(catalogPage(7, 8))
	got := slices.Collect(NewListingExtractor(nil, nil).Extract(page, mustURL(t, base)))
	assert.Empty(t, got)
}

func TestResolveURL(t *testing.T) {
	t.Parallel()

	got, err := ResolveURL(mustURL(t, base), "/x.html#top")
	require.NoError(t, err)
	assert.Equal(t, "https://www.datpiff.com/x.html", got)

	got, err = ResolveURL(nil, "https://example.com/a")
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/a", got)

	_, err = ResolveURL(nil, "/relative")
	require.Error(t, err)
}
