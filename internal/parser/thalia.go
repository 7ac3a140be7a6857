package parser

import (
	"encoding/json"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"katalog/internal/catalog"
	"katalog/internal/models"
)

// Thalia handles thalia.de and its Austrian and Swiss shops. Product pages
// carry schema.org JSON-LD, which is read first; meta tags and the detail
// list fill the gaps.
type Thalia struct{}

var thaliaIDRe = regexp.MustCompile(`/artikeldetails/([A-Za-z0-9]{6,})(?:[/?#]|$)`)

func (Thalia) Name() string { return "thalia" }

func (Thalia) Match(u *url.URL) bool {
	switch hostWithout(u, "www.") {
	case "thalia.de", "thalia.at", "thalia.ch":
		return true
	}
	return false
}

func (Thalia) ExtractID(rawURL string) string {
	path := rawURL
	if u, err := url.Parse(strings.TrimSpace(rawURL)); err == nil {
		path = u.Path
	}
	m := thaliaIDRe.FindStringSubmatch(path)
	if len(m) != 2 {
		return ""
	}
	return m[1]
}

func (Thalia) Parse(doc *goquery.Document, id string) (models.ExternalBook, error) {
	ld := findLDBook(doc)
	details := scanDetails(doc, thaliaDetailLines)
	breadcrumbs := textsOf(doc, `nav[aria-label="Breadcrumb"] a, .breadcrumb a, ol.breadcrumb li`)

	book := models.ExternalBook{
		Title: firstNonEmpty(ld.str("name"),
			firstOf(doc, attrOf(`meta[property="og:title"]`, "content"), textOf("h1"))),
		Authors: ld.strs("author"),
		Description: firstNonEmpty(ld.str("description"),
			firstOf(doc, attrOf(`meta[property="og:description"]`, "content"), attrOf(`meta[name="description"]`, "content"))),
		CoverURL:        firstNonEmpty(ld.str("image"), firstOf(doc, attrOf(`meta[property="og:image"]`, "content"))),
		ISBN13:          firstNonEmpty(normalizeISBN(ld.str("isbn")), normalizeISBN(ld.str("gtin13")), details.ISBN13),
		ISBN:            details.ISBN,
		PublicationDate: firstNonEmpty(ld.str("datePublished"), details.PublicationDate),
		Publisher:       firstNonEmpty(ld.str("publisher"), details.Publisher),
		PageCount:       catalog.DigitsOnly(firstNonEmpty(ld.str("numberOfPages"), details.PageCount)),
		Price:           firstNonEmpty(ld.price(), firstOf(doc, attrOf(`meta[property="product:price:amount"]`, "content"))),
		Categories:      dedupe(append(ld.strs("genre"), breadcrumbs...)),
		Language:        firstNonEmpty(ld.str("inLanguage"), details.Language),
		ExternalID:      id,
	}
	if len(book.ISBN13) != 13 {
		book.ISBN13 = details.ISBN13
	}
	if len(book.Authors) == 0 {
		book.Authors = thaliaAuthors(doc)
	}
	if len(book.Authors) == 0 {
		book.Authors = []string{models.UnknownAuthor}
	}
	if book.Language == "" {
		book.Language = models.DefaultLanguage
	}
	book.Type = detectMediaType(book.Title, append(breadcrumbs, ld.str("bookFormat"))...)
	return book, nil
}

func thaliaAuthors(doc *goquery.Document) []string {
	var authors []string
	doc.Find(`a[href*="/autor/"], .autor a, [data-test="autor"] a`).Each(func(_ int, a *goquery.Selection) {
		if name := normalizeAuthor(a.Text()); name != "" {
			authors = append(authors, name)
		}
	})
	return dedupe(authors)
}

func thaliaDetailLines(doc *goquery.Document) []string {
	var lines []string
	doc.Find("dl dt").Each(func(_ int, dt *goquery.Selection) {
		lines = append(lines, dt.Text()+": "+dt.NextFiltered("dd").Text())
	})
	doc.Find(".artikeldetails li, .product-details li").Each(func(_ int, li *goquery.Selection) {
		lines = append(lines, li.Text())
	})
	return lines
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = cleanText(v); v != "" {
			return v
		}
	}
	return ""
}

// ldObject is a decoded JSON-LD node.
type ldObject map[string]any

// findLDBook returns the first Book or Product node of the page's JSON-LD,
// looking into arrays and @graph.
func findLDBook(doc *goquery.Document) ldObject {
	var found ldObject
	doc.Find(`script[type="application/ld+json"]`).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		var v any
		if err := json.Unmarshal([]byte(s.Text()), &v); err != nil {
			return true
		}
		found = searchLD(v)
		return found == nil
	})
	return found
}

func searchLD(v any) ldObject {
	switch t := v.(type) {
	case []any:
		for _, item := range t {
			if o := searchLD(item); o != nil {
				return o
			}
		}
	case map[string]any:
		if isLDType(t["@type"], "Book", "Product") {
			return ldObject(t)
		}
		if g, ok := t["@graph"]; ok {
			return searchLD(g)
		}
	}
	return nil
}

func isLDType(v any, want ...string) bool {
	switch t := v.(type) {
	case string:
		for _, w := range want {
			if t == w {
				return true
			}
		}
	case []any:
		for _, item := range t {
			if isLDType(item, want...) {
				return true
			}
		}
	}
	return false
}

func (o ldObject) str(key string) string {
	if o == nil {
		return ""
	}
	return ldText(o[key])
}

func (o ldObject) strs(key string) []string {
	if o == nil {
		return nil
	}
	switch t := o[key].(type) {
	case []any:
		var out []string
		for _, item := range t {
			out = append(out, ldText(item))
		}
		return dedupe(out)
	case string:
		return dedupe(strings.Split(t, ","))
	case nil:
		return nil
	default:
		// A single node names one entry, even when the name holds a comma.
		if s := ldText(t); s != "" {
			return []string{s}
		}
	}
	return nil
}

func (o ldObject) price() string {
	if o == nil {
		return ""
	}
	offers := o["offers"]
	if list, ok := offers.([]any); ok && len(list) > 0 {
		offers = list[0]
	}
	m, ok := offers.(map[string]any)
	if !ok {
		return ""
	}
	price := ldText(m["price"])
	if price == "" {
		return ""
	}
	if cur := ldText(m["priceCurrency"]); cur != "" {
		return price + " " + cur
	}
	return price
}

// ldText flattens the value shapes JSON-LD allows for a text property.
func ldText(v any) string {
	switch t := v.(type) {
	case string:
		return cleanText(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case map[string]any:
		for _, k := range []string{"name", "url", "@value"} {
			if s := ldText(t[k]); s != "" {
				return s
			}
		}
	case []any:
		for _, item := range t {
			if s := ldText(item); s != "" {
				return s
			}
		}
	}
	return ""
}
