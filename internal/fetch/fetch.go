package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"katalog/internal/network"
)

const (
	// DefaultMaxBody caps a product page; real ones stay well below.
	DefaultMaxBody = 5 << 20

	userAgent      = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36"
	acceptLanguage = "de-DE,de;q=0.9,en-US;q=0.7,en;q=0.6"
)

// Fetcher returns the HTML of a page. One call is one attempt; retrying is
// the caller's business.
type Fetcher interface {
	Fetch(ctx context.Context, pageURL string) (string, error)
}

var ErrBodyTooLarge = errors.New("response body too large")

// StatusError is a non-2xx answer.
type StatusError struct {
	Code int
	URL  string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("GET %s: status %d", e.URL, e.Code)
}

// HTTPFetcher fetches pages with a plain GET, optionally through a relay
// that takes the escaped target URL appended to its own URL
// (e.g. "https://corsproxy.io/?").
type HTTPFetcher struct {
	client  *http.Client
	relay   string
	maxBody int64
}

type HTTPOption func(*HTTPFetcher)

func WithRelay(relayURL string) HTTPOption {
	return func(f *HTTPFetcher) { f.relay = strings.TrimSpace(relayURL) }
}

func WithMaxBody(n int64) HTTPOption {
	return func(f *HTTPFetcher) { f.maxBody = n }
}

func NewHTTPFetcher(client *http.Client, opts ...HTTPOption) *HTTPFetcher {
	if client == nil {
		client = network.NewDirectClient(network.DefaultTimeout)
	}
	f := &HTTPFetcher{client: client, maxBody: DefaultMaxBody}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

func (f *HTTPFetcher) Fetch(ctx context.Context, pageURL string) (string, error) {
	target := f.requestURL(pageURL)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", acceptLanguage)

	resp, err := f.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("GET %s: %w", pageURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", &StatusError{Code: resp.StatusCode, URL: pageURL}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBody+1))
	if err != nil {
		return "", fmt.Errorf("read body: %w", err)
	}
	if int64(len(body)) > f.maxBody {
		return "", ErrBodyTooLarge
	}
	return string(body), nil
}

func (f *HTTPFetcher) requestURL(pageURL string) string {
	if f.relay == "" {
		return pageURL
	}
	return f.relay + url.QueryEscape(pageURL)
}
