package normalize

import (
	"regexp"
	"strings"
	"time"
)

// ============================================================================
// DATE DECODING — serial numbers, ISO strings, D/M/YYYY strings
// ============================================================================
// Every date in the pipeline is a calendar day pinned to UTC midnight, so
// two dates are equal iff they name the same (year, month, day). Decoding
// priority:
//   1. numeric within the plausible spreadsheet-serial window
//   2. "YYYY-MM-DD" prefix
//   3. "D/M/YYYY" or "DD/MM/YYYY"
//   4. a handful of generic layouts
// Anything else is absent. A numeric value outside the window is rejected
// rather than decoded into a bogus year.
// ============================================================================

// serialEpochOffset is the day count between the spreadsheet epoch
// (1899-12-30) and the Unix epoch.
const serialEpochOffset = 25569

// Plausible serial window, roughly calendar years 1900–2100.
const (
	serialMin = 1
	serialMax = 73050
)

var (
	isoPrefixRe = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}`)
	dmyRe       = regexp.MustCompile(`^(\d{1,2})/(\d{1,2})/(\d{4})`)
)

// Layouts tried as a last resort before giving up.
var genericLayouts = []string{
	"2006-01-02T15:04:05Z07:00",
	"2006-01-02 15:04:05",
	"2006/01/02",
	"Jan 2, 2006",
	"2 Jan 2006",
}

// ParseDate decodes a raw cell value into a UTC-midnight calendar date.
// Returns false for absent, unparseable, or out-of-window values.
func ParseDate(v any) (time.Time, bool) {
	if IsAbsent(v) {
		return time.Time{}, false
	}

	if f, ok := v.(float64); ok {
		return fromSerial(f)
	}
	if n, ok := v.(int); ok {
		return fromSerial(float64(n))
	}

	s, ok := v.(string)
	if !ok {
		return time.Time{}, false
	}
	s = strings.TrimSpace(s)

	if isoPrefixRe.MatchString(s) {
		t, err := time.Parse("2006-01-02", s[:10])
		if err != nil {
			return time.Time{}, false
		}
		return t.UTC(), true
	}

	if m := dmyRe.FindStringSubmatch(s); m != nil {
		t, err := time.Parse("2/1/2006", m[1]+"/"+m[2]+"/"+m[3])
		if err != nil {
			return time.Time{}, false
		}
		return t.UTC(), true
	}

	for _, layout := range genericLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return AtUTCMidnight(t), true
		}
	}

	return time.Time{}, false
}

// fromSerial converts a spreadsheet serial day count to a calendar date.
func fromSerial(serial float64) (time.Time, bool) {
	whole := int64(serial)
	if whole < serialMin || whole > serialMax {
		return time.Time{}, false
	}
	unixDays := whole - serialEpochOffset
	return time.Unix(unixDays*86400, 0).UTC(), true
}

// AtUTCMidnight truncates a time to the start of its UTC day.
func AtUTCMidnight(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// FormatISO renders a date as "YYYY-MM-DD", or "" for the zero time.
func FormatISO(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format("2006-01-02")
}

// FormatDisplay renders a date as "DD/MM/YYYY", the label format the
// dashboard shows, or "" for the zero time.
func FormatDisplay(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format("02/01/2006")
}
