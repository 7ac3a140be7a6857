package db

import (
	"context"
	"errors"
	"strings"

	"katalog/internal/models"
)

var ErrNotFound = errors.New("not found")

// Repository is the catalog storage both backends implement.
type Repository interface {
	// UpsertBook inserts the book or updates the row with the same ASIN and
	// returns the row id.
	UpsertBook(ctx context.Context, b models.InternalBook) (int64, error)
	GetBookByASIN(ctx context.Context, asin string) (models.StoredBook, error)
	// ListBooks returns the most recently updated books first.
	ListBooks(ctx context.Context, limit int) ([]models.StoredBook, error)

	InsertDownloadLog(ctx context.Context, ip string) (int64, error)
	// ListMissingCountry pages through logs without a country code by
	// ascending id, starting after afterID.
	ListMissingCountry(ctx context.Context, afterID int64, limit int) ([]models.DownloadLog, error)
	SetCountry(ctx context.Context, id int64, code string) error

	Close() error
}

const (
	DefaultListLimit = 50
	MaxListLimit     = 500
)

// Open picks the backend from the DSN: postgres:// and postgresql:// go to
// Postgres, anything else is taken as a SQLite file path.
func Open(ctx context.Context, dsn string) (Repository, error) {
	if isPostgresDSN(dsn) {
		return OpenPostgres(ctx, dsn)
	}
	return OpenSQLite(dsn)
}

func isPostgresDSN(dsn string) bool {
	dsn = strings.ToLower(strings.TrimSpace(dsn))
	return strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://")
}

func clampLimit(limit int) int {
	switch {
	case limit <= 0:
		return DefaultListLimit
	case limit > MaxListLimit:
		return MaxListLimit
	}
	return limit
}

var (
	_ Repository = (*Store)(nil)
	_ Repository = (*PostgresStore)(nil)
)
