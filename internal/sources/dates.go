package sources

import (
	"strings"
	"time"
)

var dateLayouts = []string{
	"2006-01-02",
	"January 2, 2006",
	"January 2 2006",
	"Jan 2, 2006",
	"Jan. 2, 2006",
	"2 January 2006",
	"1/2/2006",
	"01/02/2006",
	"1/2/06",
	"1-2-2006",
	"2006/01/02",
	"January 2006",
}

// ISODate converts a human-written date to YYYY-MM-DD. The second result is
// false, and s is returned trimmed, when no known layout matches.
func ISODate(s string) (string, bool) {
	s = strings.Join(strings.Fields(s), " ")
	if s == "" {
		return "", false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format(time.DateOnly), true
		}
	}
	return s, false
}
