package models

import (
	"fmt"
	"strings"
)

// MediaType distinguishes e-books from audiobooks in the catalog.
type MediaType string

const (
	MediaEbook     MediaType = "ebook"
	MediaAudiobook MediaType = "audiobook"
)

// UnknownAuthor is used when a product page names no author at all.
const UnknownAuthor = "Unbekannter Autor"

// DefaultLanguage is the catalog's primary audience language.
const DefaultLanguage = "German"

// ExternalBook is the site-shaped metadata bundle produced by one scrape.
// It is never persisted as-is; see InternalBook.
type ExternalBook struct {
	Title           string    `json:"title"`
	Authors         []string  `json:"authors"`
	Description     string    `json:"description"`
	CoverURL        string    `json:"coverUrl"`
	ISBN            string    `json:"isbn"`
	ISBN13          string    `json:"isbn13"`
	PublicationDate string    `json:"publicationDate"`
	Publisher       string    `json:"publisher"`
	PageCount       string    `json:"pageCount"`
	Price           string    `json:"price"`
	Categories      []string  `json:"categories"`
	Language        string    `json:"language"`
	Type            MediaType `json:"type"`
	ExternalID      string    `json:"externalId"`

	Source string `json:"source,omitempty"`
	URL    string `json:"url,omitempty"`
}

// String is the short form for logs and chat replies.
func (b ExternalBook) String() string {
	return fmt.Sprintf("%s - %s [%s]", b.Title, strings.Join(b.Authors, ", "), b.ExternalID)
}
