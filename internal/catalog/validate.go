package catalog

import (
	"errors"
	"fmt"
	"strings"

	"katalog/internal/models"
)

// DefaultPlaceholderCover is used when a record reaches the repair stage
// without any cover.
const DefaultPlaceholderCover = "https://placehold.co/300x450?text=Kein+Cover"

// ErrValidationFailed matches every *ValidationError.
var ErrValidationFailed = errors.New("validation failed")

// ValidationError lists every required field that is missing, not just the first.
type ValidationError struct {
	Missing []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed: missing %s", strings.Join(e.Missing, ", "))
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidationFailed }

// Defaults are the values the repair stage substitutes.
type Defaults struct {
	PlaceholderCover string
}

func (d Defaults) placeholder() string {
	if strings.TrimSpace(d.PlaceholderCover) == "" {
		return DefaultPlaceholderCover
	}
	return d.PlaceholderCover
}

// Repair fills optional fields that are missing or malformed. It never fails
// and never touches title or ASIN.
func Repair(b models.InternalBook, d Defaults) models.InternalBook {
	if strings.TrimSpace(b.CoverURL) == "" {
		b.CoverURL = d.placeholder()
	}
	if b.PageCount != nil && *b.PageCount <= 0 {
		b.PageCount = nil
	}
	if strings.TrimSpace(b.Language) == "" {
		b.Language = models.DefaultLanguage
	}
	if strings.TrimSpace(b.Type) == "" {
		b.Type = string(models.MediaEbook)
	}
	if strings.TrimSpace(b.Author) == "" {
		b.Author = models.UnknownAuthor
	}
	b.PublicationDate = NormalizeDate(b.PublicationDate)
	if b.Genre == "" && len(b.Categories) > 0 {
		b.Genre = strings.Join(b.Categories, listSep)
	}
	return b
}

// Validate checks the identity fields.
func Validate(b models.InternalBook) error {
	var missing []string
	if strings.TrimSpace(b.Title) == "" {
		missing = append(missing, "title")
	}
	if strings.TrimSpace(b.Author) == "" {
		missing = append(missing, "author")
	}
	if strings.TrimSpace(b.ASIN) == "" {
		missing = append(missing, "asin")
	}
	if len(missing) > 0 {
		return &ValidationError{Missing: missing}
	}
	return nil
}

// Finalize runs Repair and then Validate.
func Finalize(b models.InternalBook, d Defaults) (models.InternalBook, error) {
	b = Repair(b, d)
	if err := Validate(b); err != nil {
		return b, err
	}
	return b, nil
}
