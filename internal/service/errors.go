package service

import (
	"errors"
	"fmt"

	"katalog/internal/catalog"
)

var (
	// ErrInvalidURL: the URL is not a product page of a supported shop.
	ErrInvalidURL = errors.New("invalid product url")
	// ErrFetchFailed matches every *FetchError.
	ErrFetchFailed = errors.New("fetch failed")
	// ErrValidationFailed matches *catalog.ValidationError.
	ErrValidationFailed = catalog.ErrValidationFailed
	ErrNoRepository     = errors.New("no book repository configured")
)

// FetchError wraps the last error of an exhausted fetch-and-extract loop.
type FetchError struct {
	URL string
	Err error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

func (e *FetchError) Is(target error) bool { return target == ErrFetchFailed }
