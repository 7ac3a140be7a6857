package parser

import (
	"errors"
	"fmt"
	"io"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"katalog/internal/models"
)

// ErrBlocked means the shop answered with a bot check instead of the product
// page. It is worth retrying.
var ErrBlocked = errors.New("shop returned a bot-check page")

// Source knows one shop's URL scheme and page layout.
type Source interface {
	Name() string
	// Match reports whether u is on this shop's domain.
	Match(u *url.URL) bool
	// ExtractID returns the product ID from a product URL, or "".
	ExtractID(rawURL string) string
	// Parse runs every field extractor over doc. Missing data gives empty
	// fields, never an error.
	Parse(doc *goquery.Document, id string) (models.ExternalBook, error)
}

// Sources returns the supported shops in detection order.
func Sources() []Source {
	return []Source{Amazon{}, Thalia{}}
}

// Detect picks the source for a product URL. ok is false for foreign domains
// and for shop URLs that are not product pages.
func Detect(rawURL string) (src Source, id string, ok bool) {
	u, err := parseHTTPURL(rawURL)
	if err != nil {
		return nil, "", false
	}
	for _, s := range Sources() {
		if !s.Match(u) {
			continue
		}
		id = s.ExtractID(rawURL)
		return s, id, id != ""
	}
	return nil, "", false
}

// ParsePage reads an HTML document and hands it to src.
func ParsePage(body io.Reader, src Source, id string, pageURL string) (models.ExternalBook, error) {
	doc, err := goquery.NewDocumentFromReader(body)
	if err != nil {
		return models.ExternalBook{}, fmt.Errorf("read html: %w", err)
	}

	book, err := src.Parse(doc, id)
	if err != nil {
		return models.ExternalBook{}, err
	}
	book.Source = src.Name()
	book.URL = pageURL
	return book, nil
}

func parseHTTPURL(raw string) (*url.URL, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return nil, err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("missing host")
	}
	return u, nil
}

// hostWithout strips the usual sub-domains shops serve the same pages on.
func hostWithout(u *url.URL, prefixes ...string) string {
	host := strings.ToLower(u.Hostname())
	for _, p := range prefixes {
		host = strings.TrimPrefix(host, p)
	}
	return host
}

// strategy is one way of finding a value; ok=false moves on to the next one.
type strategy func(doc *goquery.Document) (string, bool)

func firstOf(doc *goquery.Document, strategies ...strategy) string {
	for _, s := range strategies {
		if v, ok := s(doc); ok {
			return v
		}
	}
	return ""
}

// textOf returns the collapsed text of the first element matching selector
// that has any.
func textOf(selector string) strategy {
	return func(doc *goquery.Document) (string, bool) {
		var out string
		doc.Find(selector).EachWithBreak(func(_ int, s *goquery.Selection) bool {
			out = cleanText(s.Text())
			return out == ""
		})
		return out, out != ""
	}
}

func attrOf(selector, attr string) strategy {
	return func(doc *goquery.Document) (string, bool) {
		var out string
		doc.Find(selector).EachWithBreak(func(_ int, s *goquery.Selection) bool {
			v, _ := s.Attr(attr)
			out = cleanText(v)
			return out == ""
		})
		return out, out != ""
	}
}

var spacesRe = regexp.MustCompile(`\s+`)

// cleanText drops bidi marks Amazon sprinkles into labels and collapses
// whitespace.
func cleanText(s string) string {
	s = strings.NewReplacer("\u200e", "", "\u200f", "", "\u00a0", " ").Replace(s)
	return strings.TrimSpace(spacesRe.ReplaceAllString(s, " "))
}

func dedupe(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, v := range in {
		v = cleanText(v)
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

func textsOf(doc *goquery.Document, selector string) []string {
	var out []string
	doc.Find(selector).Each(func(_ int, s *goquery.Selection) {
		out = append(out, s.Text())
	})
	return dedupe(out)
}
