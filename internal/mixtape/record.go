package mixtape

import "github.com/JakeFAU/mixtape-crawler/internal/extract"

// Banner classifies the promotional banner of a catalog entry.
type Banner string

// Banner values.
const (
	BannerNone      Banner = "none"
	BannerSponsored Banner = "sponsored"
	BannerExclusive Banner = "exclusive"
)

// PartialListing is everything the catalog page reveals about an entry. It
// travels by value to the detail stage and is never modified there.
type PartialListing struct {
	Artist      string             `json:"artist"`
	Title       string             `json:"title"`
	Listens     extract.Field[int] `json:"listens"`
	RatingScore extract.Field[int] `json:"rating_score"`
	RatingCount extract.Field[int] `json:"rating_count"`
	Banner      Banner             `json:"banner"`
	DetailURL   string             `json:"detail_url"`
}

// CrawledRecord is the merged output of both stages.
type CrawledRecord struct {
	Artist      string             `json:"artist"`
	Title       string             `json:"title"`
	Listens     extract.Field[int] `json:"listens"`
	RatingScore extract.Field[int] `json:"rating_score"`
	RatingCount extract.Field[int] `json:"rating_count"`
	Banner      Banner             `json:"banner"`
	DetailURL   string             `json:"detail_url"`

	Host             extract.Field[string] `json:"host"`
	Views            extract.Field[string] `json:"views"`
	ReleaseDate      extract.Field[string] `json:"release_date"`
	AddedBy          extract.Field[string] `json:"added_by"`
	Description      string                `json:"description"`
	Downloads        extract.Field[int]    `json:"downloads"`
	Tracks           int                   `json:"tracks"`
	StreamingEnabled bool                  `json:"streaming_enabled"`
	DownloadEnabled  bool                  `json:"download_enabled"`
	BuyEnabled       bool                  `json:"buy_enabled"`
}

type sentinel interface {
	IsAbsent() bool
	IsFailed() bool
}

// Degraded lists the sentinel fields of r as "name=absent" or "name=failed",
// in field order. A fully populated record yields nil.
func (r CrawledRecord) Degraded() []string {
	fields := []struct {
		name  string
		field sentinel
	}{
		{"listens", r.Listens},
		{"rating_score", r.RatingScore},
		{"rating_count", r.RatingCount},
		{"host", r.Host},
		{"views", r.Views},
		{"release_date", r.ReleaseDate},
		{"added_by", r.AddedBy},
		{"downloads", r.Downloads},
	}
	var out []string
	for _, f := range fields {
		switch {
		case f.field.IsFailed():
			out = append(out, f.name+"=failed")
		case f.field.IsAbsent():
			out = append(out, f.name+"=absent")
		}
	}
	return out
}
