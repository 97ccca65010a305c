package crawler

import (
	"context"
	"errors"
	"fmt"
	"net/url"
)

// DefaultSeedURL is the first catalog page.
const DefaultSeedURL = "https://www.datpiff.com/mixtapes.php?filter=all&p=1"

// DefaultAllowedDomains are the hosts the crawl may visit.
var DefaultAllowedDomains = []string{"www.datpiff.com", "datpiff.com"}

// ErrInvalidSeed reports a seed URL the engine cannot start from.
var ErrInvalidSeed = errors.New("invalid seed url")

// Config holds the settings for a crawl session.
// This struct is decoupled from Viper, making the engine and its configuration
// easier to test independently.
type Config struct {
	SeedURL        string
	AllowedDomains []string
	Concurrency    int
	// DedupeRequests drops a request whose stage and normalized URL were
	// already enqueued during the run.
	DedupeRequests bool
	// MaxCatalogPages caps catalog requests. Zero means unlimited.
	MaxCatalogPages int
}

// Crawler runs a crawl to completion.
type Crawler interface {
	Run(ctx context.Context) (Stats, error)
}

func (c Config) withDefaults() Config {
	if c.SeedURL == "" {
		c.SeedURL = DefaultSeedURL
	}
	if len(c.AllowedDomains) == 0 {
		c.AllowedDomains = DefaultAllowedDomains
	}
	if c.Concurrency <= 0 {
		c.Concurrency = 1
	}
	return c
}

func (c Config) validate() error {
	u, err := url.Parse(c.SeedURL)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidSeed, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%w: unsupported scheme %q", ErrInvalidSeed, u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("%w: missing host", ErrInvalidSeed)
	}
	if c.MaxCatalogPages < 0 {
		return fmt.Errorf("max catalog pages must be >= 0, got %d", c.MaxCatalogPages)
	}
	return nil
}
