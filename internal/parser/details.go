package parser

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"katalog/internal/catalog"
)

// detailFields are the values found in a shop's product detail list.
type detailFields struct {
	ISBN            string
	ISBN13          string
	ASIN            string
	Publisher       string
	PublicationDate string
	Language        string
	PageCount       string
}

type detailField int

const (
	fieldISBN13 detailField = iota
	fieldISBN
	fieldASIN
	fieldPublisher
	fieldDate
	fieldLanguage
	fieldPages
)

// Labels come in German or English depending on the shop locale and session.
// Rules are checked in order against the lower-cased label prefix, so the
// more specific ISBN-13 must precede ISBN.
var detailRules = []struct {
	prefixes []string
	field    detailField
}{
	{[]string{"isbn-13", "isbn13", "ean", "isbn/ean"}, fieldISBN13},
	{[]string{"isbn-10", "isbn10", "isbn"}, fieldISBN},
	{[]string{"asin"}, fieldASIN},
	{[]string{"verlag", "herausgeber", "publisher"}, fieldPublisher},
	{[]string{"erscheinungstermin", "erscheinungsdatum", "veröffentlichungsdatum", "publication date"}, fieldDate},
	{[]string{"sprache", "language"}, fieldLanguage},
	{[]string{"seitenzahl", "seitenanzahl", "print length", "taschenbuch", "gebundene ausgabe", "broschiert", "paperback", "hardcover", "umfang", "pages"}, fieldPages},
}

var (
	// "Rowohlt; 1. Edition (15. März 2023)"
	dateInParensRe = regexp.MustCompile(`\(([^)]+)\)\s*$`)
	isbnCharsRe    = regexp.MustCompile(`[^0-9Xx]`)
)

// scanDetails matches every "Label : Value" line against detailRules. The
// first line that yields a field wins.
func scanDetails(doc *goquery.Document, lines func(*goquery.Document) []string) detailFields {
	var d detailFields
	var parenDate string

	for _, line := range lines(doc) {
		label, value, ok := splitDetailLine(line)
		if !ok {
			continue
		}
		field, ok := matchDetailLabel(label)
		if !ok {
			continue
		}

		switch field {
		case fieldISBN13, fieldISBN:
			d.addISBN(value)
		case fieldASIN:
			if d.ASIN == "" {
				d.ASIN = value
			}
		case fieldPublisher:
			if d.Publisher != "" {
				continue
			}
			publisher, date := splitPublisherDate(value)
			d.Publisher = publisher
			parenDate = date
		case fieldDate:
			if d.PublicationDate == "" {
				d.PublicationDate = value
			}
		case fieldLanguage:
			if d.Language == "" {
				d.Language = value
			}
		case fieldPages:
			if d.PageCount == "" {
				d.PageCount = catalog.DigitsOnly(value)
			}
		}
	}

	if d.PublicationDate == "" {
		d.PublicationDate = parenDate
	}
	return d
}

func splitDetailLine(line string) (label, value string, ok bool) {
	line = cleanText(line)
	label, value, ok = strings.Cut(line, ":")
	if !ok {
		return "", "", false
	}
	label = strings.ToLower(strings.TrimSpace(label))
	value = strings.TrimSpace(value)
	return label, value, label != "" && value != ""
}

func matchDetailLabel(label string) (detailField, bool) {
	for _, rule := range detailRules {
		for _, p := range rule.prefixes {
			if strings.HasPrefix(label, p) {
				return rule.field, true
			}
		}
	}
	return 0, false
}

// splitPublisherDate moves a trailing parenthetical out of the publisher.
func splitPublisherDate(value string) (publisher, date string) {
	m := dateInParensRe.FindStringSubmatchIndex(value)
	if m == nil {
		return value, ""
	}
	date = strings.TrimSpace(value[m[2]:m[3]])
	publisher = strings.TrimSpace(value[:m[0]])
	publisher = strings.TrimSpace(strings.TrimRight(publisher, ";,"))
	return publisher, date
}

// addISBN files an ISBN under 10 or 13 digits by its length; shops label a
// 13-digit number "ISBN" often enough that the label is not trusted.
func (d *detailFields) addISBN(value string) {
	isbn := normalizeISBN(value)
	switch {
	case len(isbn) == 13 && d.ISBN13 == "":
		d.ISBN13 = isbn
	case len(isbn) == 10 && d.ISBN == "":
		d.ISBN = isbn
	}
}

// normalizeISBN keeps digits and the ISBN-10 check character X.
func normalizeISBN(value string) string {
	return strings.ToUpper(isbnCharsRe.ReplaceAllString(value, ""))
}
