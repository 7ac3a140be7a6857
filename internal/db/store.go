package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	"katalog/internal/models"
)

// Store is the SQLite backend.
type Store struct {
	db *sql.DB
}

func OpenSQLite(path string) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("empty sqlite path")
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, err
	}

	if err := migrate(db); err != nil {
		db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func applyPragmas(db *sql.DB) error {
	pragma := []string{
		"PRAGMA journal_mode = WAL;",
		"PRAGMA foreign_keys = ON;",
		"PRAGMA busy_timeout = 5000;",
	}

	for _, stmt := range pragma {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("pragma: %w", err)
		}
	}
	return nil
}

func migrate(db *sql.DB) error {
	schema := `
CREATE TABLE IF NOT EXISTS books (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	title TEXT NOT NULL,
	author TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	isbn TEXT NOT NULL DEFAULT '',
	publication_date TEXT NOT NULL DEFAULT '',
	publisher TEXT NOT NULL DEFAULT '',
	page_count INTEGER,
	cover_url TEXT NOT NULL DEFAULT '',
	price TEXT NOT NULL DEFAULT '',
	categories TEXT NOT NULL DEFAULT '[]',
	genre TEXT NOT NULL DEFAULT '',
	language TEXT NOT NULL DEFAULT '',
	type TEXT NOT NULL DEFAULT 'ebook',
	asin TEXT NOT NULL,
	source TEXT NOT NULL DEFAULT '',
	source_url TEXT NOT NULL DEFAULT '',
	created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
	updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_books_asin ON books(asin);

CREATE TABLE IF NOT EXISTS download_logs (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	ip_address TEXT NOT NULL,
	country_code TEXT,
	created_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_download_logs_missing_country ON download_logs(id) WHERE country_code IS NULL;
`

	_, err := db.Exec(schema)
	if err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

const bookColumns = `id, title, author, description, isbn, publication_date, publisher, page_count,
	cover_url, price, categories, genre, language, type, asin, source, source_url, created_at, updated_at`

func (s *Store) UpsertBook(ctx context.Context, b models.InternalBook) (int64, error) {
	categories, err := json.Marshal(nonNil(b.Categories))
	if err != nil {
		return 0, fmt.Errorf("encode categories: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
INSERT INTO books (title, author, description, isbn, publication_date, publisher, page_count,
	cover_url, price, categories, genre, language, type, asin, source, source_url)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(asin) DO UPDATE SET
	title = excluded.title,
	author = excluded.author,
	description = excluded.description,
	isbn = excluded.isbn,
	publication_date = excluded.publication_date,
	publisher = excluded.publisher,
	page_count = excluded.page_count,
	cover_url = excluded.cover_url,
	price = excluded.price,
	categories = excluded.categories,
	genre = excluded.genre,
	language = excluded.language,
	type = excluded.type,
	source = excluded.source,
	source_url = excluded.source_url,
	updated_at = CURRENT_TIMESTAMP
`, b.Title, b.Author, b.Description, b.ISBN, b.PublicationDate, b.Publisher, b.PageCount,
		b.CoverURL, b.Price, string(categories), b.Genre, b.Language, b.Type, b.ASIN, b.Source, b.SourceURL)
	if err != nil {
		return 0, fmt.Errorf("upsert book: %w", err)
	}

	var id int64
	if err := s.db.QueryRowContext(ctx, `SELECT id FROM books WHERE asin = ?`, b.ASIN).Scan(&id); err != nil {
		return 0, fmt.Errorf("find book: %w", err)
	}
	return id, nil
}

func (s *Store) GetBookByASIN(ctx context.Context, asin string) (models.StoredBook, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+bookColumns+` FROM books WHERE asin = ?`, asin)
	b, err := scanBook(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.StoredBook{}, ErrNotFound
		}
		return models.StoredBook{}, fmt.Errorf("get book: %w", err)
	}
	return b, nil
}

func (s *Store) ListBooks(ctx context.Context, limit int) ([]models.StoredBook, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+bookColumns+` FROM books ORDER BY updated_at DESC, id DESC LIMIT ?`, clampLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("list books: %w", err)
	}
	defer rows.Close()

	books := []models.StoredBook{}
	for rows.Next() {
		b, err := scanBook(rows)
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

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBook(row rowScanner) (models.StoredBook, error) {
	var b models.StoredBook
	var pages sql.NullInt64
	var categories string
	var created, updated sql.NullString
	if err := row.Scan(&b.ID, &b.Title, &b.Author, &b.Description, &b.ISBN, &b.PublicationDate, &b.Publisher, &pages,
		&b.CoverURL, &b.Price, &categories, &b.Genre, &b.Language, &b.Type, &b.ASIN, &b.Source, &b.SourceURL,
		&created, &updated); err != nil {
		return models.StoredBook{}, err
	}
	if pages.Valid {
		n := int(pages.Int64)
		b.PageCount = &n
	}
	if err := json.Unmarshal([]byte(categories), &b.Categories); err != nil {
		return models.StoredBook{}, fmt.Errorf("decode categories: %w", err)
	}
	b.CreatedAt = created.String
	b.UpdatedAt = updated.String
	return b, nil
}

func (s *Store) InsertDownloadLog(ctx context.Context, ip string) (int64, error) {
	res, err := s.db.ExecContext(ctx, `INSERT INTO download_logs (ip_address) VALUES (?)`, ip)
	if err != nil {
		return 0, fmt.Errorf("insert download log: %w", err)
	}
	return res.LastInsertId()
}

func (s *Store) ListMissingCountry(ctx context.Context, afterID int64, limit int) ([]models.DownloadLog, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT id, ip_address FROM download_logs
WHERE country_code IS NULL AND id > ?
ORDER BY id
LIMIT ?
`, afterID, limit)
	if err != nil {
		return nil, fmt.Errorf("list download logs: %w", err)
	}
	defer rows.Close()

	var logs []models.DownloadLog
	for rows.Next() {
		var l models.DownloadLog
		if err := rows.Scan(&l.ID, &l.IPAddress); err != nil {
			return nil, fmt.Errorf("scan download log: %w", err)
		}
		logs = append(logs, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	return logs, nil
}

func (s *Store) SetCountry(ctx context.Context, id int64, code string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE download_logs SET country_code = ? WHERE id = ?`, code, id)
	if err != nil {
		return fmt.Errorf("set country: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
