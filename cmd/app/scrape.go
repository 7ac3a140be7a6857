package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"katalog/internal/config"
	"katalog/internal/db"
	"katalog/internal/service"
)

func newScrapeCommand(conf func() *config.Config) *cobra.Command {
	var save bool
	cmd := &cobra.Command{
		Use:   "scrape <url>...",
		Short: "Scrape product pages and print the records as JSON",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := conf()
			var opts []service.Option
			if save {
				repo, err := db.Open(cmd.Context(), cfg.DSN())
				if err != nil {
					return err
				}
				defer repo.Close()
				opts = append(opts, service.WithRepository(repo))
			}

			scraper, err := newScraper(cfg, opts...)
			if err != nil {
				return err
			}

			var failed []error
			for _, u := range args {
				if err := scrapeOne(cmd, scraper, u, save); err != nil {
					fmt.Fprintf(cmd.ErrOrStderr(), "%s: %v\n", u, err)
					failed = append(failed, err)
				}
			}
			return errors.Join(failed...)
		},
	}
	cmd.Flags().BoolVar(&save, "save", false, "Store the records in the catalog")
	return cmd
}

type scrapeOutput struct {
	service.Result
	ID int64 `json:"id,omitempty"`
}

func scrapeOne(cmd *cobra.Command, scraper *service.Scraper, u string, save bool) error {
	var (
		out scrapeOutput
		err error
	)
	if save {
		out.Result, out.ID, err = scraper.Import(cmd.Context(), u)
	} else {
		out.Result, err = scraper.Scrape(cmd.Context(), u)
	}
	if err != nil {
		return err
	}
	return writeJSON(cmd.OutOrStdout(), out)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}
