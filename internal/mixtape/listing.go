package mixtape

import (
	"errors"
	"fmt"
	"iter"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"github.com/JakeFAU/mixtape-crawler/internal/dom"
	"github.com/JakeFAU/mixtape-crawler/internal/extract"
	"github.com/JakeFAU/mixtape-crawler/internal/metrics"
)

// Skip reasons reported for catalog entries.
const (
	SkipUnofficial      = "unofficial"
	SkipMissingRequired = "missing_required"
)

// ErrMissingRequired reports an entry without artist, title or detail link.
var ErrMissingRequired = errors.New("required field missing")

// ListingExtractor turns one catalog page into partial listings.
type ListingExtractor struct {
	fields *extract.Extractor
	logger *zap.Logger
}

// NewListingExtractor builds a ListingExtractor.
func NewListingExtractor(fields *extract.Extractor, logger *zap.Logger) *ListingExtractor {
	if logger == nil {
		logger = zap.NewNop()
	}
	if fields == nil {
		fields = extract.New(logger)
	}
	return &ListingExtractor{fields: fields, logger: logger}
}

// Extract yields one PartialListing per official entry of page, in document
// order. Relative detail links are resolved against base. The sequence is
// lazy: entries are parsed as the caller ranges over it.
func (l *ListingExtractor) Extract(page dom.Node, base *url.URL) iter.Seq[PartialListing] {
	return func(yield func(PartialListing) bool) {
		for i, entry := range page.Select(pathEntries) {
			classes := bannerClasses(entry)
			if !hasMarker(classes, markerOfficial) {
				metrics.ObserveSkippedEntry(SkipUnofficial)
				l.logger.Debug("skipping unofficial entry", zap.Int("index", i))
				continue
			}
			listing, err := l.entry(entry, classes, base)
			if err != nil {
				metrics.ObserveSkippedEntry(SkipMissingRequired)
				l.logger.Warn("skipping catalog entry", zap.Int("index", i), zap.Error(err))
				continue
			}
			if !yield(listing) {
				return
			}
		}
	}
}

func (l *ListingExtractor) entry(entry dom.Node, classes []string, base *url.URL) (PartialListing, error) {
	artist, ok := l.fields.Text(entry, "artist", pathArtist).Get()
	if !ok {
		return PartialListing{}, fmt.Errorf("artist: %w", ErrMissingRequired)
	}
	title, ok := l.fields.Text(entry, "title", pathTitle).Get()
	if !ok {
		return PartialListing{}, fmt.Errorf("title for %q: %w", artist, ErrMissingRequired)
	}
	href, ok := entry.First(pathDetailLink)
	if !ok || strings.TrimSpace(href) == "" {
		return PartialListing{}, fmt.Errorf("detail link for %q: %w", title, ErrMissingRequired)
	}
	detailURL, err := ResolveURL(base, href)
	if err != nil {
		return PartialListing{}, fmt.Errorf("detail link for %q: %w", title, err)
	}

	return PartialListing{
		Artist:      artist,
		Title:       title,
		Listens:     l.fields.Int(entry, "listens", pathListens, extract.StateFailed),
		RatingScore: l.fields.IntToken(entry, "rating_score", pathRatingAlt, extract.StateFailed),
		RatingCount: l.fields.IntFunc(entry, "rating_count", pathRatingTitle, extract.StateFailed, extract.FirstToken),
		Banner:      classifyBanner(classes),
		DetailURL:   detailURL,
	}, nil
}

func bannerClasses(entry dom.Node) []string {
	raw := entry.Texts(pathBannerClasses)
	out := make([]string, 0, len(raw))
	for _, c := range raw {
		out = append(out, dom.NormalizeSpace(c))
	}
	return out
}

// classifyBanner checks sponsor before exclusive; the first match wins.
func classifyBanner(classes []string) Banner {
	switch {
	case hasMarker(classes, markerSponsor):
		return BannerSponsored
	case hasMarker(classes, markerExclusive):
		return BannerExclusive
	default:
		return BannerNone
	}
}

func hasMarker(classes []string, marker string) bool {
	for _, c := range classes {
		if c == marker {
			return true
		}
	}
	return false
}

// ResolveURL resolves ref against base. A nil base requires ref to be
// absolute.
func ResolveURL(base *url.URL, ref string) (string, error) {
	parsed, err := url.Parse(strings.TrimSpace(ref))
	if err != nil {
		return "", fmt.Errorf("parse link %q: %w", ref, err)
	}
	if base != nil {
		parsed = base.ResolveReference(parsed)
	}
	if !parsed.IsAbs() || parsed.Host == "" {
		return "", fmt.Errorf("link %q is not absolute", ref)
	}
	parsed.Fragment = ""
	return parsed.String(), nil
}
