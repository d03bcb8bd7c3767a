// Package normalize resolves the column-name and date-encoding chaos of
// the two source exports into canonical values.
//
// The tariffing and recharge files come from different systems and have
// drifted over time: the same concept shows up accented or unaccented,
// spaced or underscored, upper or lower case. Resolution is driven by
// explicit ordered synonym lists (declared by the consumer, see the
// correlate package) matched case-insensitively against whatever keys a
// row actually has. Anything that cannot be resolved or parsed is
// "absent" — never an error.
package normalize

import (
	"strconv"
	"strings"
)

// RawRow is one untyped row from a source file. Values are strings or
// float64 (numeric-looking cells are coerced at ingest so spreadsheet
// serial dates survive).
type RawRow map[string]any

// IsAbsent reports whether a raw value carries no information.
// Empty strings, the literal "-", and null-ish placeholders all count.
func IsAbsent(v any) bool {
	if v == nil {
		return true
	}
	s, ok := v.(string)
	if !ok {
		return false
	}
	s = strings.TrimSpace(s)
	switch s {
	case "", "-", "null", "NULL", "N/A", "n/a":
		return true
	}
	return false
}

// Lookup returns the first present, non-absent value for any of the
// given column synonyms. Matching is case-insensitive against the row's
// actual keys; synonym order defines priority.
func Lookup(row RawRow, synonyms ...string) (any, bool) {
	if len(row) == 0 {
		return nil, false
	}
	for _, name := range synonyms {
		if v, ok := row[name]; ok && !IsAbsent(v) {
			return v, true
		}
	}
	// Case-insensitive pass only when the exact names missed.
	lower := make(map[string]any, len(row))
	for k, v := range row {
		lower[strings.ToLower(strings.TrimSpace(k))] = v
	}
	for _, name := range synonyms {
		if v, ok := lower[strings.ToLower(name)]; ok && !IsAbsent(v) {
			return v, true
		}
	}
	return nil, false
}

// String resolves a field to its display string. Numeric cells are
// formatted without an exponent so identifiers like MSISDNs survive the
// float64 round-trip intact.
func String(row RawRow, synonyms ...string) string {
	v, ok := Lookup(row, synonyms...)
	if !ok {
		return ""
	}
	return Format(v)
}

// Float resolves a field to a numeric value. Strings with thousands
// separators parse; anything unparseable is absent.
func Float(row RawRow, synonyms ...string) (float64, bool) {
	v, ok := Lookup(row, synonyms...)
	if !ok {
		return 0, false
	}
	return AsFloat(v)
}

// AsFloat coerces a scalar cell to float64.
func AsFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case string:
		s := strings.TrimSpace(n)
		s = strings.ReplaceAll(s, ",", "")
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, false
		}
		return f, true
	}
	return 0, false
}

// Format renders a scalar cell as a string.
func Format(v any) string {
	switch n := v.(type) {
	case string:
		return strings.TrimSpace(n)
	case float64:
		return strconv.FormatFloat(n, 'f', -1, 64)
	case int:
		return strconv.Itoa(n)
	case int64:
		return strconv.FormatInt(n, 10)
	}
	return ""
}
