// Package mixtape holds the two parse stages of the catalog crawl: the
// listing stage that turns one catalog page into partial listings plus the
// pagination decision, and the detail stage that completes a listing into a
// CrawledRecord. Every function here is pure apart from diagnostic logging.
package mixtape
