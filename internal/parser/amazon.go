package parser

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"katalog/internal/models"
)

// Amazon handles the regional Amazon storefronts.
type Amazon struct{}

var amazonTLDs = map[string]bool{
	"de": true, "at": true, "com": true, "co.uk": true, "fr": true, "it": true,
	"es": true, "nl": true, "ca": true, "com.au": true, "ch": true,
}

// Product pages put the ASIN after one of these path prefixes.
var asinRe = regexp.MustCompile(`/(?:dp|gp/product|gp/aw/d|exec/obidos/ASIN|o/ASIN)/([A-Za-z0-9]{10})(?:[/?#]|$)`)

func (Amazon) Name() string { return "amazon" }

func (Amazon) Match(u *url.URL) bool {
	host := hostWithout(u, "www.", "smile.", "m.")
	tld, ok := strings.CutPrefix(host, "amazon.")
	return ok && amazonTLDs[tld]
}

// ExtractID returns the ASIN of an Amazon product URL.
func (Amazon) ExtractID(rawURL string) string {
	path := rawURL
	if u, err := url.Parse(strings.TrimSpace(rawURL)); err == nil {
		path = u.Path
	}
	m := asinRe.FindStringSubmatch(path)
	if len(m) != 2 {
		return ""
	}
	return m[1]
}

// IsValidURL reports whether raw is an Amazon product page URL.
func (a Amazon) IsValidURL(raw string) bool {
	u, err := parseHTTPURL(raw)
	if err != nil {
		return false
	}
	return a.Match(u) && a.ExtractID(raw) != ""
}

func (Amazon) Parse(doc *goquery.Document, id string) (models.ExternalBook, error) {
	if amazonBlocked(doc) {
		return models.ExternalBook{}, ErrBlocked
	}

	details := scanDetails(doc, amazonDetailLines)
	if id == "" {
		id = details.ASIN
	}

	book := models.ExternalBook{
		Title:           amazonTitle(doc),
		Authors:         amazonAuthors(doc),
		Description:     amazonDescription(doc),
		CoverURL:        amazonCover(doc, id),
		ISBN:            details.ISBN,
		ISBN13:          details.ISBN13,
		PublicationDate: details.PublicationDate,
		Publisher:       details.Publisher,
		PageCount:       details.PageCount,
		Price:           amazonPrice(doc),
		Categories:      amazonCategories(doc),
		Language:        details.Language,
		ExternalID:      id,
	}
	book.Type = detectMediaType(book.Title, book.Categories...)

	if len(book.Authors) == 0 {
		book.Authors = []string{models.UnknownAuthor}
	}
	if book.Language == "" {
		book.Language = models.DefaultLanguage
	}
	return book, nil
}

func amazonBlocked(doc *goquery.Document) bool {
	if doc.Find(`form[action*="validateCaptcha"]`).Length() > 0 {
		return true
	}
	title := strings.ToLower(doc.Find("title").First().Text())
	return strings.Contains(title, "robot check")
}

func amazonTitle(doc *goquery.Document) string {
	return firstOf(doc,
		textOf("#productTitle"),
		textOf("#ebooksProductTitle"),
		textOf("#title"),
		func(doc *goquery.Document) (string, bool) {
			v, _ := attrOf(`meta[name="title"]`, "content")(doc)
			v = trimAmazonTitle(v)
			return v, v != ""
		},
		func(doc *goquery.Document) (string, bool) {
			v := trimAmazonTitle(doc.Find("title").First().Text())
			return v, v != ""
		},
	)
}

// trimAmazonTitle turns "Amazon.de: Der Schwarm : Schätzing, Frank: Bücher"
// or "Der Schwarm : Schätzing, Frank: Amazon.de: Bücher" into "Der Schwarm".
func trimAmazonTitle(s string) string {
	s = cleanText(s)
	low := strings.ToLower(s)
	if strings.HasPrefix(low, "amazon.") {
		if i := strings.Index(s, ": "); i >= 0 {
			s = s[i+2:]
			low = strings.ToLower(s)
		}
	}
	if i := strings.Index(low, ": amazon."); i >= 0 {
		s = s[:i]
	}
	if i := strings.Index(s, " : "); i >= 0 {
		s = s[:i]
	}
	s = strings.TrimSpace(s)
	if strings.HasPrefix(strings.ToLower(s), "amazon.") {
		return ""
	}
	return s
}

func normalizeAuthor(text string) string {
	text = cleanText(text)
	text = strings.Trim(text, "[](),")
	text = strings.TrimSpace(text)
	if text == "" {
		return ""
	}

	switch strings.ToLower(text) {
	case "autor", "author", "folgen", "follow", "mehr", "more", "und", "and", "&":
		return ""
	}
	return text
}

func amazonAuthors(doc *goquery.Document) []string {
	selectors := []string{
		"#bylineInfo .author a.contributorNameID",
		"#bylineInfo .author > a",
		"#bylineInfo .author a",
		".author a.a-link-normal",
	}
	for _, sel := range selectors {
		var authors []string
		doc.Find(sel).Each(func(_ int, a *goquery.Selection) {
			if name := normalizeAuthor(a.Text()); name != "" {
				authors = append(authors, name)
			}
		})
		if authors = dedupe(authors); len(authors) > 0 {
			return authors
		}
	}
	return []string{}
}

func amazonDescription(doc *goquery.Document) string {
	return firstOf(doc,
		textOf("#bookDescription_feature_div .a-expander-content"),
		textOf("#bookDescription_feature_div"),
		textOf("#productDescription"),
		attrOf(`meta[name="description"]`, "content"),
	)
}

func amazonPrice(doc *goquery.Document) string {
	return firstOf(doc,
		textOf("#kindle-price"),
		textOf(".kindle-price .a-color-price"),
		textOf("#corePrice_feature_div .a-offscreen"),
		textOf("#price"),
		textOf(".a-price .a-offscreen"),
		textOf("#buyNewSection .a-color-price"),
	)
}

func amazonCategories(doc *goquery.Document) []string {
	return textsOf(doc, "#wayfinding-breadcrumbs_feature_div li a, #wayfinding-breadcrumbs_container li a")
}

func amazonDetailLines(doc *goquery.Document) []string {
	var lines []string
	doc.Find("#detailBullets_feature_div li, #detailBulletsWrapper_feature_div li, #productDetailsTable .content li, .detail-bullet-list li").
		Each(func(_ int, li *goquery.Selection) {
			lines = append(lines, li.Text())
		})
	doc.Find("#productDetailsTable tr, #productDetails_detailBullets_sections1 tr, #productDetails_techSpec_section_1 tr").
		Each(func(_ int, tr *goquery.Selection) {
			lines = append(lines, tr.Find("th").First().Text()+": "+tr.Find("td").First().Text())
		})
	doc.Find("#rich_product_information .rpi-attribute-content").Each(func(_ int, s *goquery.Selection) {
		lines = append(lines, s.Find(".rpi-attribute-label").Text()+": "+s.Find(".rpi-attribute-value").Text())
	})
	return lines
}
