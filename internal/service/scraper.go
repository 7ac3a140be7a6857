// Package service runs the scrape pipeline: URL check, fetch and extract
// with retries, mapping, repair and validation, and optionally saving.
package service

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"katalog/internal/catalog"
	"katalog/internal/fetch"
	"katalog/internal/models"
	"katalog/internal/parser"
	"katalog/internal/retry"
	"katalog/internal/storage"
)

// BookRepository stores catalog rows keyed by ASIN.
type BookRepository interface {
	UpsertBook(ctx context.Context, b models.InternalBook) (int64, error)
}

// CoverMirror copies a remote cover and returns the URL of the copy.
type CoverMirror interface {
	Mirror(ctx context.Context, coverURL string) (string, error)
}

// Result is one successful scrape: the record as extracted and the repaired
// catalog row.
type Result struct {
	Raw  models.ExternalBook `json:"rawData"`
	Book models.InternalBook `json:"bookData"`
}

type Scraper struct {
	fetcher  fetch.Fetcher
	repo     BookRepository
	covers   CoverMirror
	retry    retry.Options
	defaults catalog.Defaults
	debugDir string
}

type Option func(*Scraper)

func WithRepository(repo BookRepository) Option {
	return func(s *Scraper) { s.repo = repo }
}

func WithCoverMirror(m CoverMirror) Option {
	return func(s *Scraper) { s.covers = m }
}

func WithRetry(maxAttempts int, baseDelay time.Duration) Option {
	return func(s *Scraper) {
		s.retry.MaxAttempts = maxAttempts
		s.retry.BaseDelay = baseDelay
	}
}

func WithDefaults(d catalog.Defaults) Option {
	return func(s *Scraper) { s.defaults = d }
}

// WithDebugDir dumps every fetched page into dir.
func WithDebugDir(dir string) Option {
	return func(s *Scraper) { s.debugDir = dir }
}

func NewScraper(f fetch.Fetcher, opts ...Option) *Scraper {
	s := &Scraper{
		fetcher: f,
		retry: retry.Options{
			MaxAttempts: retry.DefaultMaxAttempts,
			BaseDelay:   retry.DefaultBaseDelay,
		},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// HasRepository reports whether Save and Import can work.
func (s *Scraper) HasRepository() bool { return s.repo != nil }

// Scrape fetches one product page and returns the validated record. On a
// validation error the partially filled Result is returned with it.
func (s *Scraper) Scrape(ctx context.Context, rawURL string) (Result, error) {
	rawURL = strings.TrimSpace(rawURL)
	src, id, ok := parser.Detect(rawURL)
	if !ok {
		return Result{}, fmt.Errorf("%w: %q", ErrInvalidURL, rawURL)
	}

	opts := s.retry
	opts.OnRetry = func(attempt int, wait time.Duration, err error) {
		log.Printf("scrape: %s attempt %d failed: %v (retry in %s)", rawURL, attempt, err, wait)
	}

	raw, err := retry.Do(ctx, opts, func(ctx context.Context) (models.ExternalBook, error) {
		html, err := s.fetcher.Fetch(ctx, rawURL)
		if err != nil {
			return models.ExternalBook{}, err
		}
		s.dump(src.Name(), id, html)
		return parser.ParsePage(strings.NewReader(html), src, id, rawURL)
	})
	if err != nil {
		return Result{}, &FetchError{URL: rawURL, Err: err}
	}

	book, err := catalog.Finalize(catalog.ToInternal(raw), s.defaults)
	res := Result{Raw: raw, Book: book}
	if err != nil {
		log.Printf("scrape: %s rejected: %v", rawURL, err)
		return res, err
	}
	log.Printf("scrape: %s ok: %s", rawURL, raw)
	return res, nil
}

// Import scrapes rawURL and saves the result.
func (s *Scraper) Import(ctx context.Context, rawURL string) (Result, int64, error) {
	if s.repo == nil {
		return Result{}, 0, ErrNoRepository
	}
	res, err := s.Scrape(ctx, rawURL)
	if err != nil {
		return res, 0, err
	}
	id, err := s.Save(ctx, res.Book)
	if err != nil {
		return res, 0, err
	}
	return res, id, nil
}

// Save repairs and validates b again, mirrors its cover when a mirror is
// configured and upserts it. A failed mirror keeps the remote cover URL.
func (s *Scraper) Save(ctx context.Context, b models.InternalBook) (int64, error) {
	if s.repo == nil {
		return 0, ErrNoRepository
	}
	b, err := catalog.Finalize(b, s.defaults)
	if err != nil {
		return 0, err
	}

	if s.covers != nil && s.shouldMirror(b.CoverURL) {
		local, err := s.covers.Mirror(ctx, b.CoverURL)
		if err != nil {
			log.Printf("scrape: mirror cover %s: %v", b.CoverURL, err)
		} else {
			b.CoverURL = local
		}
	}

	id, err := s.repo.UpsertBook(ctx, b)
	if err != nil {
		return 0, fmt.Errorf("save book %s: %w", b.ASIN, err)
	}
	log.Printf("scrape: saved %s as #%d", b.ASIN, id)
	return id, nil
}

func (s *Scraper) shouldMirror(coverURL string) bool {
	if coverURL == catalog.DefaultPlaceholderCover || coverURL == s.defaults.PlaceholderCover {
		return false
	}
	return strings.HasPrefix(coverURL, "http://") || strings.HasPrefix(coverURL, "https://")
}

func (s *Scraper) dump(source, id, html string) {
	if s.debugDir == "" {
		return
	}
	p, err := storage.DumpHTML(s.debugDir, source, id, html)
	if err != nil {
		log.Printf("scrape: dump html: %v", err)
		return
	}
	log.Printf("scrape: page saved to %s", p)
}
