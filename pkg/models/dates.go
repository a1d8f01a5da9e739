package models

import (
	"strconv"
	"strings"
	"time"
)

// ReleaseDateLayout is the only accepted release_date format.
const ReleaseDateLayout = "2006-01-02"

// ParseReleaseDate parses a strict YYYY-MM-DD calendar date.
// Empty, partial or out-of-range values return ok=false.
func ParseReleaseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if len(s) != len(ReleaseDateLayout) {
		return time.Time{}, false
	}
	t, err := time.Parse(ReleaseDateLayout, s)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// ReleaseYear returns the year of the movie's release date.
func (m *MovieDocument) ReleaseYear() (int, bool) {
	t, ok := ParseReleaseDate(m.ReleaseDate)
	if !ok {
		return 0, false
	}
	return t.Year(), true
}

// Decade buckets a year: floor(year/10)*10.
func Decade(year int) int {
	d := year / 10
	if year < 0 && year%10 != 0 {
		d--
	}
	return d * 10
}

// DecadeLabel formats a decade bucket, e.g. 1990 -> "1990s".
func DecadeLabel(decade int) string {
	return strconv.Itoa(decade) + "s"
}
