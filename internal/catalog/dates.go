package catalog

import (
	"strings"
	"time"
)

const isoDate = "2006-01-02"

// Month spellings seen on Amazon.de / Thalia pages, keyed lower-case without
// trailing dot, mapped to what the time package parses.
var monthNames = map[string]string{
	"januar": "January", "jänner": "January", "january": "January", "jan": "Jan",
	"februar": "February", "february": "February", "feb": "Feb",
	"märz": "March", "maerz": "March", "march": "March", "mär": "Mar", "mrz": "Mar", "mar": "Mar",
	"april": "April", "apr": "Apr",
	"mai": "May", "may": "May",
	"juni": "June", "june": "June", "jun": "Jun",
	"juli": "July", "july": "July", "jul": "Jul",
	"august": "August", "aug": "Aug",
	"september": "September", "sept": "Sep", "sep": "Sep",
	"oktober": "October", "october": "October", "okt": "Oct", "oct": "Oct",
	"november": "November", "nov": "Nov",
	"dezember": "December", "december": "December", "dez": "Dec", "dec": "Dec",
}

var dateLayouts = []string{
	isoDate,
	"2. January 2006",
	"2 January 2006",
	"January 2, 2006",
	"2. Jan 2006",
	"2 Jan 2006",
	"Jan 2, 2006",
	"02.01.2006",
	"2.1.2006",
	"2006/01/02",
	time.RFC3339,
}

// NormalizeDate rewrites s as YYYY-MM-DD when it is a recognisable calendar
// date. Anything else comes back unchanged.
func NormalizeDate(s string) string {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return s
	}

	candidate := englishMonths(trimmed)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, candidate); err == nil {
			return t.Format(isoDate)
		}
	}
	return s
}

func englishMonths(s string) string {
	fields := strings.Fields(s)
	for i, f := range fields {
		comma := strings.HasSuffix(f, ",")
		word := strings.TrimSuffix(f, ",")
		key := strings.ToLower(strings.TrimSuffix(word, "."))
		name, ok := monthNames[key]
		if !ok {
			continue
		}
		if comma {
			name += ","
		}
		fields[i] = name
	}
	return strings.Join(fields, " ")
}
