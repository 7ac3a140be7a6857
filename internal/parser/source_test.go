package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDetect(t *testing.T) {
	tests := []struct {
		url    string
		source string
		id     string
		ok     bool
	}{
		{"https://www.amazon.de/dp/B00ZV9PXP2", "amazon", "B00ZV9PXP2", true},
		{"  https://amazon.com/Title/dp/3462033778?ref=x  ", "amazon", "3462033778", true},
		{"https://www.thalia.de/shop/home/artikeldetails/A1061956428", "thalia", "A1061956428", true},
		{"https://www.amazon.de/gp/bestsellers", "amazon", "", false},
		{"https://www.amazon.evil.com/dp/B00ZV9PXP2", "", "", false},
		{"https://example.org/dp/B00ZV9PXP2", "", "", false},
		{"ftp://www.amazon.de/dp/B00ZV9PXP2", "", "", false},
		{"not a url", "", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			src, id, ok := Detect(tt.url)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.id, id)
			if tt.source == "" {
				assert.Nil(t, src)
				return
			}
			if assert.NotNil(t, src) {
				assert.Equal(t, tt.source, src.Name())
			}
		})
	}
}

func TestCleanText(t *testing.T) {
	assert.Equal(t, "Sprache : Deutsch", cleanText("\n Sprache\u00a0\u200f:\u200e  Deutsch \t"))
	assert.Equal(t, "", cleanText(" \u200e "))
}

func TestDedupeDropsBlanks(t *testing.T) {
	assert.Equal(t, []string{"a", "b"}, dedupe([]string{" a", "", "b", "a ", "  "}))
	assert.NotNil(t, dedupe(nil))
}

func TestDetectMediaType(t *testing.T) {
	assert.Equal(t, "audiobook", string(detectMediaType("Momo", "Audible Hörbuch")))
	assert.Equal(t, "audiobook", string(detectMediaType("Momo (Audiobook)")))
	assert.Equal(t, "ebook", string(detectMediaType("Momo", "Kindle eBooks")))
	// decomposed umlaut
	assert.Equal(t, "audiobook", string(detectMediaType("Der Schwarm (Ho\u0308rbuch)")))
}
