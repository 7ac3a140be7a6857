package parser

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Cover images sit on one of these elements depending on the page template
// (print book, Kindle, audiobook, regional variants).
const amazonCoverSelector = "#imgBlkFront, #ebooksImgBlkFront, #landingImage, #main-image, #imgTagWrapperId img, #img-canvas img"

// Only the image blocks are searched for srcset to keep sprites and ads out.
const amazonSrcsetSelector = amazonCoverSelector + ", #imageBlock img[srcset], #ebooksImageBlock img[srcset], #booksImageBlock_feature_div img[srcset]"

// AmazonPlaceholderCover builds the image URL Amazon serves for any ASIN.
func AmazonPlaceholderCover(asin string) string {
	if asin == "" {
		return ""
	}
	return "https://m.media-amazon.com/images/P/" + asin + ".jpg"
}

func amazonCover(doc *goquery.Document, asin string) string {
	return firstOf(doc,
		coverFromSrc,
		coverFromDynamicImage,
		coverFromSrcset,
		func(*goquery.Document) (string, bool) {
			v := AmazonPlaceholderCover(asin)
			return v, v != ""
		},
	)
}

func coverFromSrc(doc *goquery.Document) (string, bool) {
	var out string
	doc.Find(amazonCoverSelector).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		src := strings.TrimSpace(s.AttrOr("src", ""))
		if src == "" || strings.HasPrefix(strings.ToLower(src), "data:") {
			return true
		}
		out = src
		return false
	})
	return out, out != ""
}

// coverFromDynamicImage reads data-a-dynamic-image, a JSON object of
// url -> [width, height], and picks the largest area.
func coverFromDynamicImage(doc *goquery.Document) (string, bool) {
	var out string
	doc.Find(amazonCoverSelector).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		raw, ok := s.Attr("data-a-dynamic-image")
		if !ok {
			return true
		}
		out = largestDynamicImage(raw)
		return out == ""
	})
	return out, out != ""
}

func largestDynamicImage(raw string) string {
	var candidates map[string][]float64
	if err := json.Unmarshal([]byte(raw), &candidates); err != nil {
		return ""
	}

	best, bestArea := "", -1.0
	for u, dims := range candidates {
		u = strings.TrimSpace(u)
		if u == "" {
			continue
		}
		area := 0.0
		if len(dims) >= 2 {
			area = dims[0] * dims[1]
		}
		// ties go to the smaller URL so map order does not matter
		if area > bestArea || (area == bestArea && u < best) {
			best, bestArea = u, area
		}
	}
	return best
}

func coverFromSrcset(doc *goquery.Document) (string, bool) {
	var out string
	doc.Find(amazonSrcsetSelector).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		out = lastSrcsetURL(s.AttrOr("srcset", ""))
		return out == ""
	})
	return out, out != ""
}

var srcsetDescriptorRe = regexp.MustCompile(`^\d+(?:\.\d+)?[wx],?$`)

// lastSrcsetURL returns the final candidate of a srcset list, which Amazon
// orders by ascending resolution. URLs may contain commas, so the list is
// split on whitespace and descriptors are skipped.
func lastSrcsetURL(srcset string) string {
	var last string
	for _, field := range strings.Fields(srcset) {
		if srcsetDescriptorRe.MatchString(field) {
			continue
		}
		if u := strings.TrimSuffix(field, ","); u != "" {
			last = u
		}
	}
	return last
}
