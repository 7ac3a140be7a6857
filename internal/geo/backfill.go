package geo

import (
	"context"
	"fmt"
	"log"

	"katalog/internal/models"
)

const DefaultPageSize = 1000

// Store is the download-log side of the catalog database.
type Store interface {
	ListMissingCountry(ctx context.Context, afterID int64, limit int) ([]models.DownloadLog, error)
	SetCountry(ctx context.Context, id int64, code string) error
}

type Resolver interface {
	Lookup(ctx context.Context, ip string) (string, error)
}

type Stats struct {
	Processed int
	Updated   int
	Failed    int
}

// Backfiller fills in country codes for download logs, one row at a time.
// Rows whose lookup fails stay empty and are picked up by the next run.
type Backfiller struct {
	store    Store
	resolver Resolver
	pageSize int
}

func NewBackfiller(store Store, resolver Resolver, pageSize int) *Backfiller {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	return &Backfiller{store: store, resolver: resolver, pageSize: pageSize}
}

func (b *Backfiller) Run(ctx context.Context) (Stats, error) {
	var stats Stats
	var afterID int64

	for {
		page, err := b.store.ListMissingCountry(ctx, afterID, b.pageSize)
		if err != nil {
			return stats, fmt.Errorf("list page after %d: %w", afterID, err)
		}
		if len(page) == 0 {
			break
		}
		log.Printf("geo: page of %d rows after id %d", len(page), afterID)

		for _, row := range page {
			if err := ctx.Err(); err != nil {
				return stats, err
			}
			afterID = row.ID
			stats.Processed++

			code, err := b.resolver.Lookup(ctx, row.IPAddress)
			if err != nil {
				stats.Failed++
				log.Printf("geo: row %d (%s): %v", row.ID, row.IPAddress, err)
				continue
			}
			if err := b.store.SetCountry(ctx, row.ID, code); err != nil {
				stats.Failed++
				log.Printf("geo: row %d: save %s: %v", row.ID, code, err)
				continue
			}
			stats.Updated++
		}

		if len(page) < b.pageSize {
			break
		}
	}

	log.Printf("geo: done, processed=%d updated=%d failed=%d", stats.Processed, stats.Updated, stats.Failed)
	return stats, nil
}
