package service

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"katalog/internal/catalog"
	"katalog/internal/models"
)

const productURL = "https://www.amazon.de/Der-Schwarm/dp/3462033778"

const productPage = `<html><head><title>Der Schwarm : Schätzing, Frank: Amazon.de: Bücher</title></head><body>
<span id="productTitle">Der Schwarm</span>
<div id="bylineInfo"><span class="author"><a class="contributorNameID" href="/a">Frank Schätzing</a></span></div>
<img id="landingImage" src="https://m.media-amazon.com/images/I/81front.jpg">
<div id="detailBullets_feature_div"><ul>
  <li>Herausgeber : Kiepenheuer &amp; Witsch (15. März 2004)</li>
  <li>Seitenzahl der Print-Ausgabe : 1.000 Seiten</li>
</ul></div>
</body></html>`

const blockedPage = `<html><head><title>Amazon.de</title></head><body>
<form action="/errors/validateCaptcha"><input name="field-keywords"></form></body></html>`

type step struct {
	html string
	err  error
}

type fakeFetcher struct {
	mu    sync.Mutex
	steps []step
	calls int
}

func (f *fakeFetcher) Fetch(ctx context.Context, pageURL string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	i := f.calls
	f.calls++
	if i >= len(f.steps) {
		i = len(f.steps) - 1
	}
	return f.steps[i].html, f.steps[i].err
}

type fakeRepo struct {
	saved []models.InternalBook
	err   error
}

func (r *fakeRepo) UpsertBook(ctx context.Context, b models.InternalBook) (int64, error) {
	if r.err != nil {
		return 0, r.err
	}
	r.saved = append(r.saved, b)
	return int64(len(r.saved)), nil
}

type fakeMirror struct {
	got []string
	err error
}

func (m *fakeMirror) Mirror(ctx context.Context, coverURL string) (string, error) {
	m.got = append(m.got, coverURL)
	if m.err != nil {
		return "", m.err
	}
	return "/covers/local.jpg", nil
}

func newTestScraper(f *fakeFetcher, opts ...Option) *Scraper {
	return NewScraper(f, append([]Option{WithRetry(3, 0)}, opts...)...)
}

func TestScrapeSuccess(t *testing.T) {
	f := &fakeFetcher{steps: []step{{html: productPage}}}

	res, err := newTestScraper(f).Scrape(context.Background(), "  "+productURL+"  ")
	require.NoError(t, err)
	assert.Equal(t, 1, f.calls)

	assert.Equal(t, "Der Schwarm", res.Raw.Title)
	assert.Equal(t, productURL, res.Raw.URL)
	assert.Equal(t, "amazon", res.Raw.Source)

	b := res.Book
	assert.Equal(t, "Der Schwarm", b.Title)
	assert.Equal(t, "Frank Schätzing", b.Author)
	assert.Equal(t, "3462033778", b.ASIN)
	assert.Equal(t, "Kiepenheuer & Witsch", b.Publisher)
	assert.Equal(t, "2004-03-15", b.PublicationDate)
	require.NotNil(t, b.PageCount)
	assert.Equal(t, 1000, *b.PageCount)
	assert.Equal(t, "https://m.media-amazon.com/images/I/81front.jpg", b.CoverURL)
	assert.Equal(t, models.DefaultLanguage, b.Language)
	assert.Equal(t, "ebook", b.Type)
}

func TestScrapeRetriesUntilSuccess(t *testing.T) {
	f := &fakeFetcher{steps: []step{
		{err: errors.New("connection reset")},
		{html: blockedPage},
		{html: productPage},
	}}

	res, err := newTestScraper(f).Scrape(context.Background(), productURL)
	require.NoError(t, err)
	assert.Equal(t, 3, f.calls)
	assert.Equal(t, "Der Schwarm", res.Book.Title)
}

func TestScrapeFetchFailed(t *testing.T) {
	boom := errors.New("connection reset")
	f := &fakeFetcher{steps: []step{{err: boom}}}

	_, err := newTestScraper(f).Scrape(context.Background(), productURL)
	assert.ErrorIs(t, err, ErrFetchFailed)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 3, f.calls)

	var fe *FetchError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, productURL, fe.URL)
}

func TestScrapeInvalidURL(t *testing.T) {
	f := &fakeFetcher{steps: []step{{html: productPage}}}
	s := newTestScraper(f)

	for _, u := range []string{"", "not a url", "https://example.org/dp/3462033778", "https://www.amazon.de/gp/bestsellers"} {
		_, err := s.Scrape(context.Background(), u)
		assert.ErrorIs(t, err, ErrInvalidURL, u)
	}
	assert.Zero(t, f.calls)
}

func TestScrapeValidationFailed(t *testing.T) {
	f := &fakeFetcher{steps: []step{{html: "<html><body><p>leer</p></body></html>"}}}

	res, err := newTestScraper(f).Scrape(context.Background(), productURL)
	assert.ErrorIs(t, err, ErrValidationFailed)

	var ve *catalog.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, []string{"title"}, ve.Missing)
	assert.Equal(t, models.UnknownAuthor, res.Book.Author)
	assert.Equal(t, 1, f.calls, "an empty page is not retried")
}

func TestScrapeCanceled(t *testing.T) {
	f := &fakeFetcher{steps: []step{{html: productPage}}}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newTestScraper(f).Scrape(ctx, productURL)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, f.calls)
}

func TestImportSavesWithMirroredCover(t *testing.T) {
	f := &fakeFetcher{steps: []step{{html: productPage}}}
	repo := &fakeRepo{}
	mirror := &fakeMirror{}

	res, id, err := newTestScraper(f, WithRepository(repo), WithCoverMirror(mirror)).
		Import(context.Background(), productURL)
	require.NoError(t, err)
	assert.Equal(t, int64(1), id)
	assert.Equal(t, "Der Schwarm", res.Book.Title)

	require.Len(t, repo.saved, 1)
	assert.Equal(t, "/covers/local.jpg", repo.saved[0].CoverURL)
	assert.Equal(t, []string{"https://m.media-amazon.com/images/I/81front.jpg"}, mirror.got)
}

func TestSaveKeepsRemoteCoverWhenMirrorFails(t *testing.T) {
	repo := &fakeRepo{}
	s := newTestScraper(&fakeFetcher{}, WithRepository(repo), WithCoverMirror(&fakeMirror{err: errors.New("403")}))

	_, err := s.Save(context.Background(), models.InternalBook{
		Title: "Momo", Author: "Michael Ende", ASIN: "B00ZV9PXP2", CoverURL: "https://x/momo.jpg",
	})
	require.NoError(t, err)
	assert.Equal(t, "https://x/momo.jpg", repo.saved[0].CoverURL)
}

func TestSaveSkipsPlaceholderMirror(t *testing.T) {
	repo := &fakeRepo{}
	mirror := &fakeMirror{}
	s := newTestScraper(&fakeFetcher{}, WithRepository(repo), WithCoverMirror(mirror))

	_, err := s.Save(context.Background(), models.InternalBook{Title: "Momo", ASIN: "B00ZV9PXP2"})
	require.NoError(t, err)
	assert.Empty(t, mirror.got)
	assert.Equal(t, catalog.DefaultPlaceholderCover, repo.saved[0].CoverURL)
	assert.Equal(t, models.UnknownAuthor, repo.saved[0].Author)
}

func TestSaveRejectsInvalid(t *testing.T) {
	repo := &fakeRepo{}
	s := newTestScraper(&fakeFetcher{}, WithRepository(repo))

	_, err := s.Save(context.Background(), models.InternalBook{Title: "Momo"})
	assert.ErrorIs(t, err, ErrValidationFailed)
	assert.Empty(t, repo.saved)
}

func TestSaveWithoutRepository(t *testing.T) {
	s := newTestScraper(&fakeFetcher{})
	assert.False(t, s.HasRepository())

	_, err := s.Save(context.Background(), models.InternalBook{Title: "Momo", ASIN: "B00ZV9PXP2"})
	assert.ErrorIs(t, err, ErrNoRepository)

	_, _, err = s.Import(context.Background(), productURL)
	assert.ErrorIs(t, err, ErrNoRepository)
}

func TestScrapeDumpsHTML(t *testing.T) {
	dir := t.TempDir()
	f := &fakeFetcher{steps: []step{{html: productPage}}}

	_, err := newTestScraper(f, WithDebugDir(dir)).Scrape(context.Background(), productURL)
	require.NoError(t, err)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}
