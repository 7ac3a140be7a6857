package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"katalog/internal/config"
	"katalog/internal/db"
	"katalog/internal/geo"
)

func newGeoBackfillCommand(conf func() *config.Config) *cobra.Command {
	var pageSize int
	cmd := &cobra.Command{
		Use:   "geo-backfill",
		Short: "Resolve country codes for download logs that have none",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := conf()
			repo, err := db.Open(cmd.Context(), cfg.DSN())
			if err != nil {
				return err
			}
			defer repo.Close()

			client := geo.NewClient(cfg.GeoAPIBase, nil)
			stats, err := geo.NewBackfiller(repo, client, pageSize).Run(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "processed=%d updated=%d failed=%d\n", stats.Processed, stats.Updated, stats.Failed)
			return nil
		},
	}
	cmd.Flags().IntVar(&pageSize, "page-size", geo.DefaultPageSize, "Rows per page")
	return cmd
}
