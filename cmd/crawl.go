// Package cmd defines and implements the CLI commands for the crawler executable.
package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/mixtape-crawler/internal/config"
)

type crawlFlags struct {
	seed            string
	allowedDomains  []string
	concurrency     int
	maxCatalogPages int
	dryRun          bool
	serve           bool
	port            int
}

// newCrawlCmd creates and configures the 'crawl' subcommand.
func newCrawlCmd() *cobra.Command {
	var flags crawlFlags
	cmd := &cobra.Command{
		Use:   "crawl",
		Short: "Runs one crawl from the seed catalog page",
		Long: `Starts at the seed catalog page, follows pagination until the next link
points back at the current page, and writes one record per official mixtape.
Flags override the matching config keys for this run.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runCrawl(cmd, flags)
		},
	}

	f := cmd.Flags()
	f.StringVar(&flags.seed, "seed", "", "first catalog page (crawler.seed_url)")
	f.StringSliceVar(&flags.allowedDomains, "allowed-domains", nil, "hosts the crawl may visit (crawler.allowed_domains)")
	f.IntVar(&flags.concurrency, "concurrency", 0, "number of workers (crawler.concurrency)")
	f.IntVar(&flags.maxCatalogPages, "max-catalog-pages", 0, "stop paging after this many catalog pages, 0 for no limit")
	f.BoolVar(&flags.dryRun, "dry-run", false, "keep records in memory and print them as JSON lines instead of using the configured writers")
	f.BoolVar(&flags.serve, "serve", false, "run the status server during the crawl (server.enabled)")
	f.IntVar(&flags.port, "port", 0, "status server port (server.port)")
	return cmd
}

func runCrawl(cmd *cobra.Command, flags crawlFlags) error {
	rt, err := resolveRuntime(cmd.Context())
	if err != nil {
		return err
	}
	cfg, err := applyCrawlFlags(cmd, rt.cfg, flags)
	if err != nil {
		return err
	}

	a, err := newApp(cmd.Context(), cfg, rt.logger)
	if err != nil {
		return fmt.Errorf("failed to initialize application services: %w", err)
	}

	stats, runErr := a.Run(cmd.Context())

	// Writers flush on a fresh context so an interrupted crawl still exports.
	closeErr := a.Close(context.WithoutCancel(cmd.Context()))

	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		return fmt.Errorf("run crawler: %w", runErr)
	}
	if closeErr != nil {
		return closeErr
	}

	if flags.dryRun && a.Records() != nil {
		enc := json.NewEncoder(cmd.OutOrStdout())
		for _, env := range a.Records().Envelopes() {
			if err := enc.Encode(env); err != nil {
				return fmt.Errorf("print record: %w", err)
			}
		}
	}

	rt.logger.Info("crawl command finished",
		zap.String("crawl_id", a.CrawlID()),
		zap.Int64("records", stats.Records),
		zap.Bool("interrupted", runErr != nil),
	)
	return nil
}

func applyCrawlFlags(cmd *cobra.Command, cfg config.Config, flags crawlFlags) (config.Config, error) {
	f := cmd.Flags()
	if f.Changed("seed") {
		cfg.Crawler.SeedURL = flags.seed
	}
	if f.Changed("allowed-domains") {
		cfg.Crawler.AllowedDomains = flags.allowedDomains
	}
	if f.Changed("concurrency") {
		cfg.Crawler.Concurrency = flags.concurrency
	}
	if f.Changed("max-catalog-pages") {
		cfg.Crawler.MaxCatalogPages = flags.maxCatalogPages
	}
	if f.Changed("serve") {
		cfg.Server.Enabled = flags.serve
	}
	if f.Changed("port") {
		cfg.Server.Port = flags.port
	}
	if flags.dryRun {
		cfg.Sink.Writers = []string{config.WriterMemory}
	}
	if err := cfg.Validate(); err != nil {
		return config.Config{}, fmt.Errorf("invalid flags: %w", err)
	}
	return cfg, nil
}
