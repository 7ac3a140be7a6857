package catalog

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"katalog/internal/models"
)

func TestRepairDefaults(t *testing.T) {
	zero := 0
	got := Repair(models.InternalBook{Title: "Momo", ASIN: "3522202600", PageCount: &zero}, Defaults{})

	assert.Equal(t, DefaultPlaceholderCover, got.CoverURL)
	assert.Nil(t, got.PageCount)
	assert.Equal(t, "German", got.Language)
	assert.Equal(t, "ebook", got.Type)
	assert.Equal(t, models.UnknownAuthor, got.Author)
}

func TestRepairCustomPlaceholder(t *testing.T) {
	got := Repair(models.InternalBook{}, Defaults{PlaceholderCover: "https://example.org/none.png"})
	assert.Equal(t, "https://example.org/none.png", got.CoverURL)
}

func TestRepairKeepsPresentValues(t *testing.T) {
	in := models.InternalBook{
		Title: "Momo", Author: "Michael Ende", ASIN: "3522202600",
		CoverURL: "https://img/x.jpg", Language: "Englisch", Type: "audiobook",
	}
	got := Repair(in, Defaults{})
	assert.Equal(t, in.CoverURL, got.CoverURL)
	assert.Equal(t, "Englisch", got.Language)
	assert.Equal(t, "audiobook", got.Type)
	assert.Equal(t, "Michael Ende", got.Author)
}

func TestValidateListsAllMissing(t *testing.T) {
	err := Validate(models.InternalBook{})

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, []string{"title", "author", "asin"}, verr.Missing)
	assert.True(t, errors.Is(err, ErrValidationFailed))
	assert.Contains(t, err.Error(), "title, author, asin")
}

func TestFinalizeRejectsOnlyIdentityFields(t *testing.T) {
	tests := []struct {
		name    string
		book    models.InternalBook
		missing []string
	}{
		{"only identity", models.InternalBook{Title: "Momo", ASIN: "3522202600"}, nil},
		{"no title", models.InternalBook{ASIN: "3522202600", Author: "Ende"}, []string{"title"}},
		{"no asin", models.InternalBook{Title: "Momo"}, []string{"asin"}},
		{"nothing", models.InternalBook{}, []string{"title", "asin"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Finalize(tt.book, Defaults{})
			if tt.missing == nil {
				assert.NoError(t, err)
				return
			}
			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tt.missing, verr.Missing)
		})
	}
}

func TestNormalizeDate(t *testing.T) {
	tests := map[string]string{
		"2023-03-15":           "2023-03-15",
		"15. März 2023":        "2023-03-15",
		"1. Okt. 2019":         "2019-10-01",
		"3. Mai 2021":          "2021-05-03",
		"March 15, 2023":       "2023-03-15",
		"15 March 2023":        "2023-03-15",
		"Jan. 2, 2020":         "2020-01-02",
		"15.03.2023":           "2023-03-15",
		"  24. Dezember 1999 ": "1999-12-24",
		"demnächst":            "demnächst",
		"Frühjahr 2024":        "Frühjahr 2024",
		"":                     "",
	}
	for in, want := range tests {
		t.Run(in, func(t *testing.T) {
			assert.Equal(t, want, NormalizeDate(in))
		})
	}
}
