package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"katalog/internal/models"
)

const postgresTimeout = 5 * time.Second

// PostgresStore is the backend for a hosted catalog database.
type PostgresStore struct {
	pool    *pgxpool.Pool
	timeout time.Duration
}

func OpenPostgres(ctx context.Context, dsn string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, postgresTimeout)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	s := &PostgresStore{pool: pool, timeout: postgresTimeout}
	if err := s.migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

func (s *PostgresStore) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.timeout)
}

func (s *PostgresStore) Close() error {
	if s != nil && s.pool != nil {
		s.pool.Close()
	}
	return nil
}

func (s *PostgresStore) migrate(ctx context.Context) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	_, err := s.pool.Exec(ctx, `
CREATE TABLE IF NOT EXISTS books (
	id BIGSERIAL PRIMARY KEY,
	title TEXT NOT NULL,
	author TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	isbn TEXT NOT NULL DEFAULT '',
	publication_date TEXT NOT NULL DEFAULT '',
	publisher TEXT NOT NULL DEFAULT '',
	page_count INTEGER,
	cover_url TEXT NOT NULL DEFAULT '',
	price TEXT NOT NULL DEFAULT '',
	categories TEXT[] NOT NULL DEFAULT '{}',
	genre TEXT NOT NULL DEFAULT '',
	language TEXT NOT NULL DEFAULT '',
	type TEXT NOT NULL DEFAULT 'ebook',
	asin TEXT NOT NULL UNIQUE,
	source TEXT NOT NULL DEFAULT '',
	source_url TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS download_logs (
	id BIGSERIAL PRIMARY KEY,
	ip_address TEXT NOT NULL,
	country_code TEXT,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_download_logs_missing_country ON download_logs(id) WHERE country_code IS NULL;
`)
	if err != nil {
		return fmt.Errorf("migrate postgres: %w", err)
	}
	return nil
}

func (s *PostgresStore) UpsertBook(ctx context.Context, b models.InternalBook) (int64, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var id int64
	err := s.pool.QueryRow(ctx, `
INSERT INTO books (title, author, description, isbn, publication_date, publisher, page_count,
	cover_url, price, categories, genre, language, type, asin, source, source_url)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
ON CONFLICT (asin) DO UPDATE SET
	title = EXCLUDED.title,
	author = EXCLUDED.author,
	description = EXCLUDED.description,
	isbn = EXCLUDED.isbn,
	publication_date = EXCLUDED.publication_date,
	publisher = EXCLUDED.publisher,
	page_count = EXCLUDED.page_count,
	cover_url = EXCLUDED.cover_url,
	price = EXCLUDED.price,
	categories = EXCLUDED.categories,
	genre = EXCLUDED.genre,
	language = EXCLUDED.language,
	type = EXCLUDED.type,
	source = EXCLUDED.source,
	source_url = EXCLUDED.source_url,
	updated_at = now()
RETURNING id
`, b.Title, b.Author, b.Description, b.ISBN, b.PublicationDate, b.Publisher, b.PageCount,
		b.CoverURL, b.Price, nonNil(b.Categories), b.Genre, b.Language, b.Type, b.ASIN, b.Source, b.SourceURL).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("upsert book: %w", err)
	}
	return id, nil
}

func (s *PostgresStore) GetBookByASIN(ctx context.Context, asin string) (models.StoredBook, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	b, err := scanPgBook(s.pool.QueryRow(ctx, `SELECT `+bookColumns+` FROM books WHERE asin = $1`, asin))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.StoredBook{}, ErrNotFound
		}
		return models.StoredBook{}, fmt.Errorf("get book: %w", err)
	}
	return b, nil
}

func (s *PostgresStore) ListBooks(ctx context.Context, limit int) ([]models.StoredBook, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	rows, err := s.pool.Query(ctx, `SELECT `+bookColumns+` FROM books ORDER BY updated_at DESC, id DESC LIMIT $1`, clampLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("list books: %w", err)
	}
	defer rows.Close()

	books := []models.StoredBook{}
	for rows.Next() {
		b, err := scanPgBook(rows)
		if err != nil {
			return nil, fmt.Errorf("scan book: %w", err)
		}
		books = append(books, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	return books, nil
}

func scanPgBook(row pgx.Row) (models.StoredBook, error) {
	var b models.StoredBook
	var created, updated time.Time
	if err := row.Scan(&b.ID, &b.Title, &b.Author, &b.Description, &b.ISBN, &b.PublicationDate, &b.Publisher, &b.PageCount,
		&b.CoverURL, &b.Price, &b.Categories, &b.Genre, &b.Language, &b.Type, &b.ASIN, &b.Source, &b.SourceURL,
		&created, &updated); err != nil {
		return models.StoredBook{}, err
	}
	b.CreatedAt = created.UTC().Format(time.RFC3339)
	b.UpdatedAt = updated.UTC().Format(time.RFC3339)
	return b, nil
}

func (s *PostgresStore) InsertDownloadLog(ctx context.Context, ip string) (int64, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var id int64
	if err := s.pool.QueryRow(ctx, `INSERT INTO download_logs (ip_address) VALUES ($1) RETURNING id`, ip).Scan(&id); err != nil {
		return 0, fmt.Errorf("insert download log: %w", err)
	}
	return id, nil
}

func (s *PostgresStore) ListMissingCountry(ctx context.Context, afterID int64, limit int) ([]models.DownloadLog, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	rows, err := s.pool.Query(ctx, `
SELECT id, ip_address FROM download_logs
WHERE country_code IS NULL AND id > $1
ORDER BY id
LIMIT $2
`, afterID, limit)
	if err != nil {
		return nil, fmt.Errorf("list download logs: %w", err)
	}

	logs, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.DownloadLog, error) {
		var l models.DownloadLog
		err := row.Scan(&l.ID, &l.IPAddress)
		return l, err
	})
	if err != nil {
		return nil, fmt.Errorf("scan download logs: %w", err)
	}
	return logs, nil
}

func (s *PostgresStore) SetCountry(ctx context.Context, id int64, code string) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	tag, err := s.pool.Exec(ctx, `UPDATE download_logs SET country_code = $1 WHERE id = $2`, code, id)
	if err != nil {
		return fmt.Errorf("set country: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
