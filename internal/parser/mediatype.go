package parser

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"

	"katalog/internal/models"
)

var audiobookTokens = []string{"hörbuch", "audiobook"}

// detectMediaType defaults to ebook and switches to audiobook when the title
// or a breadcrumb names it.
func detectMediaType(title string, breadcrumbs ...string) models.MediaType {
	fold := cases.Fold()
	haystack := fold.String(norm.NFC.String(title + " " + strings.Join(breadcrumbs, " ")))
	for _, token := range audiobookTokens {
		if strings.Contains(haystack, fold.String(token)) {
			return models.MediaAudiobook
		}
	}
	return models.MediaEbook
}
