package main

import (
	"fmt"
	"log"

	"github.com/spf13/cobra"

	"katalog/internal/catalog"
	"katalog/internal/config"
	"katalog/internal/fetch"
	"katalog/internal/network"
	"katalog/internal/service"
)

func newRootCommand() *cobra.Command {
	var cfg *config.Config

	rootCmd := &cobra.Command{
		Use:           "katalog",
		Short:         "Scrape book metadata from shop pages into the catalog",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			loaded, err := config.Load()
			if err != nil {
				return fmt.Errorf("config: %w", err)
			}
			cfg = loaded
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	conf := func() *config.Config { return cfg }
	rootCmd.AddCommand(newServeCommand(conf))
	rootCmd.AddCommand(newScrapeCommand(conf))
	rootCmd.AddCommand(newGeoBackfillCommand(conf))
	return rootCmd
}

func newFetcher(cfg *config.Config) (fetch.Fetcher, error) {
	if cfg.FetchMode == config.FetchBrowser {
		log.Printf("fetch: headless browser")
		return fetch.NewBrowserFetcher(cfg.BrowserBin), nil
	}

	client, err := network.NewClient(cfg.SocksProxy, network.DefaultTimeout)
	if err != nil {
		return nil, err
	}
	if cfg.SocksProxy != "" {
		log.Printf("fetch: http via socks5 %s", cfg.SocksProxy)
	}
	if cfg.RelayURL != "" {
		log.Printf("fetch: http via relay %s", cfg.RelayURL)
	}
	return fetch.NewHTTPFetcher(client, fetch.WithRelay(cfg.RelayURL)), nil
}

func newScraper(cfg *config.Config, extra ...service.Option) (*service.Scraper, error) {
	f, err := newFetcher(cfg)
	if err != nil {
		return nil, err
	}
	opts := []service.Option{
		service.WithRetry(cfg.MaxRetries, cfg.RetryDelay),
		service.WithDefaults(catalog.Defaults{PlaceholderCover: cfg.PlaceholderCover}),
		service.WithDebugDir(cfg.DebugHTMLDir),
	}
	return service.NewScraper(f, append(opts, extra...)...), nil
}
