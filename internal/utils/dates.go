package utils

import (
	"fmt"
	"strings"
	"time"
)

var monthNames = map[string][12]string{
	"en": {"January", "February", "March", "April", "May", "June",
		"July", "August", "September", "October", "November", "December"},
	"sl": {"januar", "februar", "marec", "april", "maj", "junij",
		"julij", "avgust", "september", "oktober", "november", "december"},
}

// SupportedLocale reports whether FormatMonthYear knows the month names of locale.
func SupportedLocale(locale string) bool {
	_, ok := monthNames[normalizeLocale(locale)]
	return ok
}

// FormatMonthYear renders the catalog's dateTime label, e.g. "avgust 2025" for
// locale "sl". The locale is always passed explicitly; "sl_SI.UTF-8" style
// names are reduced to their language part.
func FormatMonthYear(t time.Time, locale string) (string, error) {
	names, ok := monthNames[normalizeLocale(locale)]
	if !ok {
		return "", fmt.Errorf("unsupported date locale %q", locale)
	}
	return fmt.Sprintf("%s %d", names[t.Month()-1], t.Year()), nil
}

func normalizeLocale(locale string) string {
	l := strings.ToLower(strings.TrimSpace(locale))
	if i := strings.IndexAny(l, "_-."); i >= 0 {
		l = l[:i]
	}
	return l
}

// ParseTimestamp converts the timestamp formats produced by EXIF and exiftool.
// Supports ISO 8601 (2006-01-02T15:04:05Z), EXIF (2006:01:02 15:04:05) and
// exiftool's normalised "2006-01-02 15:04:05".
func ParseTimestamp(timestamp string) (time.Time, error) {
	var t time.Time
	var err error

	formats := []string{
		time.RFC3339,
		"2006:01:02 15:04:05",
		"2006-01-02T15:04:05",
		"2006-01-02 15:04:05",
	}

	timestamp = strings.TrimSpace(timestamp)
	for _, format := range formats {
		t, err = time.Parse(format, timestamp)
		if err == nil {
			return t, nil
		}
	}

	return time.Time{}, fmt.Errorf("failed to parse timestamp %q: %w", timestamp, err)
}
