package db

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"katalog/internal/models"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := OpenSQLite(filepath.Join(t.TempDir(), "nested", "katalog.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func sampleBook() models.InternalBook {
	pages := 1000
	return models.InternalBook{
		Title:           "Der Schwarm",
		Author:          "Frank Schätzing",
		Description:     "Ein Thriller über das Meer.",
		ISBN:            "9783462033779",
		PublicationDate: "2004-03-15",
		Publisher:       "Kiepenheuer & Witsch",
		PageCount:       &pages,
		CoverURL:        "https://m.media-amazon.com/images/I/81front.jpg",
		Price:           "9,99 €",
		Categories:      []string{"Bücher", "Krimis & Thriller"},
		Genre:           "Bücher, Krimis & Thriller",
		Language:        "Deutsch",
		Type:            "ebook",
		ASIN:            "3462033778",
		Source:          "amazon",
		SourceURL:       "https://www.amazon.de/dp/3462033778",
	}
}

func TestStoreUpsertAndGet(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	id, err := s.UpsertBook(ctx, sampleBook())
	require.NoError(t, err)
	assert.Positive(t, id)

	got, err := s.GetBookByASIN(ctx, "3462033778")
	require.NoError(t, err)
	assert.Equal(t, id, got.ID)
	assert.Equal(t, sampleBook(), got.InternalBook)
	assert.NotEmpty(t, got.CreatedAt)
}

func TestStoreUpsertUpdatesByASIN(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	first, err := s.UpsertBook(ctx, sampleBook())
	require.NoError(t, err)

	b := sampleBook()
	b.Title = "Der Schwarm (Neuausgabe)"
	b.PageCount = nil
	b.Categories = nil
	second, err := s.UpsertBook(ctx, b)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	got, err := s.GetBookByASIN(ctx, b.ASIN)
	require.NoError(t, err)
	assert.Equal(t, "Der Schwarm (Neuausgabe)", got.Title)
	assert.Nil(t, got.PageCount)
	assert.Empty(t, got.Categories)

	books, err := s.ListBooks(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, books, 1)
}

func TestStoreGetMissing(t *testing.T) {
	s := newTestStore(t)

	_, err := s.GetBookByASIN(context.Background(), "B000000000")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStoreListBooksNewestFirst(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for _, asin := range []string{"A000000001", "A000000002", "A000000003"} {
		b := sampleBook()
		b.ASIN = asin
		_, err := s.UpsertBook(ctx, b)
		require.NoError(t, err)
	}

	books, err := s.ListBooks(ctx, 2)
	require.NoError(t, err)
	require.Len(t, books, 2)
	assert.Equal(t, "A000000003", books[0].ASIN)
	assert.Equal(t, "A000000002", books[1].ASIN)

	empty := newTestStore(t)
	none, err := empty.ListBooks(ctx, 0)
	require.NoError(t, err)
	assert.NotNil(t, none)
	assert.Empty(t, none)
}

func TestStoreDownloadLogPaging(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	var ids []int64
	for _, ip := range []string{"1.1.1.1", "8.8.8.8", "9.9.9.9"} {
		id, err := s.InsertDownloadLog(ctx, ip)
		require.NoError(t, err)
		ids = append(ids, id)
	}
	require.NoError(t, s.SetCountry(ctx, ids[1], "US"))

	page, err := s.ListMissingCountry(ctx, 0, 10)
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, "1.1.1.1", page[0].IPAddress)
	assert.Equal(t, "9.9.9.9", page[1].IPAddress)

	page, err = s.ListMissingCountry(ctx, ids[0], 10)
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, ids[2], page[0].ID)

	page, err = s.ListMissingCountry(ctx, 0, 1)
	require.NoError(t, err)
	assert.Len(t, page, 1)

	assert.ErrorIs(t, s.SetCountry(ctx, 9999, "DE"), ErrNotFound)
}

func TestIsPostgresDSN(t *testing.T) {
	assert.True(t, isPostgresDSN("postgres://u:p@localhost/katalog"))
	assert.True(t, isPostgresDSN(" PostgreSQL://localhost/katalog"))
	assert.False(t, isPostgresDSN("data/katalog.db"))
	assert.False(t, isPostgresDSN("file:katalog.db?cache=shared"))
}

func TestClampLimit(t *testing.T) {
	assert.Equal(t, DefaultListLimit, clampLimit(0))
	assert.Equal(t, DefaultListLimit, clampLimit(-3))
	assert.Equal(t, 7, clampLimit(7))
	assert.Equal(t, MaxListLimit, clampLimit(10000))
}

func TestOpenFallsBackToSQLite(t *testing.T) {
	repo, err := Open(context.Background(), filepath.Join(t.TempDir(), "k.db"))
	require.NoError(t, err)
	defer repo.Close()

	_, ok := repo.(*Store)
	assert.True(t, ok)
}
