package mixtape

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/JakeFAU/mixtape-crawler/internal/dom"
	"github.com/JakeFAU/mixtape-crawler/internal/extract"
)

var (
	// ErrStatsMissing reports a detail page without a statistics block.
	ErrStatsMissing = errors.New("statistics block missing")
	// ErrStatsMisaligned reports icon and count lists of different lengths.
	ErrStatsMisaligned = errors.New("statistics icons and counts misaligned")
	// ErrStatIcon reports an icon file name that yields no label.
	ErrStatIcon = errors.New("unusable statistics icon")
)

var iconSeparators = regexp.MustCompile(`[-.]`)

// DetailExtractor merges a detail page with the listing that led to it.
type DetailExtractor struct {
	fields *extract.Extractor
	logger *zap.Logger
}

// NewDetailExtractor builds a DetailExtractor.
func NewDetailExtractor(fields *extract.Extractor, logger *zap.Logger) *DetailExtractor {
	if logger == nil {
		logger = zap.NewNop()
	}
	if fields == nil {
		fields = extract.New(logger)
	}
	return &DetailExtractor{fields: fields, logger: logger}
}

// Extract builds the record for listing from its detail page. It never fails;
// fields that cannot be read fall back to their sentinels. The same inputs
// always produce an equal record.
func (d *DetailExtractor) Extract(listing PartialListing, page dom.Node) CrawledRecord {
	info := page.SelectOne(pathInfo)

	rec := CrawledRecord{
		Artist:      listing.Artist,
		Title:       listing.Title,
		Listens:     listing.Listens,
		RatingScore: listing.RatingScore,
		RatingCount: listing.RatingCount,
		Banner:      listing.Banner,
		DetailURL:   listing.DetailURL,

		Host:        d.fields.Text(info, "host", pathHost),
		Views:       d.fields.Digits(info, "views", pathViews),
		ReleaseDate: d.fields.Text(info, "release_date", pathReleaseDate),
		AddedBy:     d.fields.Text(info, "added_by", pathAddedBy),
		Description: d.fields.TextOr(info, "description", pathDescription, ""),
		Tracks:      page.Count(pathTrackNumber),
	}

	stats, err := ParseStats(info)
	if err != nil {
		d.fields.Fail("stats", err)
	}

	if listing.Listens.IsFailed() && stats != nil {
		if raw, ok := stats[statListens]; ok {
			rec.Listens = d.fields.Number("listens", raw, extract.StateFailed)
		} else {
			d.fields.Fail("listens", fmt.Errorf("stat %q: %w", statListens, extract.ErrNoMatch))
		}
	}

	if raw, ok := stats[statDownloads]; ok {
		rec.Downloads = d.fields.Number("downloads", raw, extract.StateAbsent)
	} else if stats != nil {
		d.fields.Fail("downloads", fmt.Errorf("stat %q: %w", statDownloads, extract.ErrNoMatch))
	}

	for _, text := range page.Texts(pathButtons) {
		switch strings.TrimSpace(text) {
		case labelStream:
			rec.StreamingEnabled = true
		case labelDownload:
			rec.DownloadEnabled = true
		case labelBuy:
			rec.BuyEnabled = true
		}
	}

	if degraded := rec.Degraded(); len(degraded) > 0 {
		d.logger.Info("record has degraded fields",
			zap.String("url", rec.DetailURL),
			zap.Strings("fields", degraded),
		)
	}
	return rec
}

// ParseStats zips the statistics icons of a detail info block with their
// counts. The label of an icon is the second-to-last token of its source
// after splitting on '-' and '.', so "/img/icon-listens.png" is "listens".
// The map is nil when the block is missing or cannot be aligned.
func ParseStats(info dom.Node) (map[string]string, error) {
	icons := info.Texts(pathStatIcons)
	if len(icons) == 0 {
		return nil, ErrStatsMissing
	}

	var counts []string
	for _, raw := range info.Texts(pathStatCounts) {
		if c := strings.TrimSpace(raw); c != "" {
			counts = append(counts, c)
		}
	}
	if len(icons) != len(counts) {
		return nil, fmt.Errorf("%w: %d icons, %d counts", ErrStatsMisaligned, len(icons), len(counts))
	}

	stats := make(map[string]string, len(icons))
	for i, src := range icons {
		label, err := statLabel(src)
		if err != nil {
			return nil, err
		}
		stats[label] = counts[i]
	}
	return stats, nil
}

func statLabel(src string) (string, error) {
	parts := iconSeparators.Split(strings.TrimSpace(src), -1)
	if len(parts) < 2 || parts[len(parts)-2] == "" {
		return "", fmt.Errorf("%w: %q", ErrStatIcon, src)
	}
	return parts[len(parts)-2], nil
}
