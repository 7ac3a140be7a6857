// Package catalog turns scraped records into catalog rows and checks them
// before they are stored.
package catalog

import (
	"strconv"
	"strings"

	"katalog/internal/models"
)

const listSep = ", "

// ToInternal maps a scraped record onto the catalog schema. It has no side
// effects and never fails; unparseable numbers become nil.
func ToInternal(ext models.ExternalBook) models.InternalBook {
	categories := dedupe(ext.Categories)

	isbn := strings.TrimSpace(ext.ISBN13)
	if isbn == "" {
		isbn = strings.TrimSpace(ext.ISBN)
	}

	return models.InternalBook{
		Title:           strings.TrimSpace(ext.Title),
		Author:          strings.Join(dedupe(ext.Authors), listSep),
		Description:     strings.TrimSpace(ext.Description),
		ISBN:            isbn,
		PublicationDate: strings.TrimSpace(ext.PublicationDate),
		Publisher:       strings.TrimSpace(ext.Publisher),
		PageCount:       ParsePageCount(ext.PageCount),
		CoverURL:        strings.TrimSpace(ext.CoverURL),
		Price:           strings.TrimSpace(ext.Price),
		Categories:      categories,
		Genre:           strings.Join(categories, listSep),
		Language:        strings.TrimSpace(ext.Language),
		Type:            string(ext.Type),
		ASIN:            strings.TrimSpace(ext.ExternalID),
		Source:          ext.Source,
		SourceURL:       ext.URL,
	}
}

// FromInternal is the inverse projection. The joined author string stays one
// entry: names such as "Müller, Hans" carry commas of their own.
func FromInternal(b models.InternalBook) models.ExternalBook {
	ext := models.ExternalBook{
		Title:           b.Title,
		Description:     b.Description,
		CoverURL:        b.CoverURL,
		PublicationDate: b.PublicationDate,
		Publisher:       b.Publisher,
		Price:           b.Price,
		Categories:      append([]string(nil), b.Categories...),
		Language:        b.Language,
		Type:            models.MediaType(b.Type),
		ExternalID:      b.ASIN,
		Source:          b.Source,
		URL:             b.SourceURL,
	}
	if author := strings.TrimSpace(b.Author); author != "" {
		ext.Authors = []string{author}
	}
	if len(ext.Categories) == 0 {
		ext.Categories = splitList(b.Genre)
	}
	if len(b.ISBN) == 13 {
		ext.ISBN13 = b.ISBN
	} else {
		ext.ISBN = b.ISBN
	}
	if b.PageCount != nil {
		ext.PageCount = strconv.Itoa(*b.PageCount)
	}
	return ext
}

// ParsePageCount keeps the digits of s. "1.024 Seiten" gives 1024; anything
// without digits, or not positive, gives nil.
func ParsePageCount(s string) *int {
	digits := DigitsOnly(s)
	if digits == "" {
		return nil
	}
	n, err := strconv.Atoi(digits)
	if err != nil || n <= 0 {
		return nil
	}
	return &n
}

// DigitsOnly returns the first number in s with thousands separators removed.
func DigitsOnly(s string) string {
	var b strings.Builder
	started := false
	for i, r := range s {
		switch {
		case r >= '0' && r <= '9':
			b.WriteRune(r)
			started = true
		case started && (r == '.' || r == ',') && i+1 < len(s) && s[i+1] >= '0' && s[i+1] <= '9':
			// thousands separator inside a number
		case started:
			return b.String()
		}
	}
	return b.String()
}

func dedupe(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, v := range in {
		v = strings.TrimSpace(v)
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

func splitList(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	return dedupe(strings.Split(s, ","))
}
