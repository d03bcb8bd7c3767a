// Package analyze computes derived metrics, aggregate summaries, and
// chart-ready series over a joined subscriber collection.
package analyze

import (
	"strconv"
	"strings"
	"time"

	"github.com/macroplay/insights/correlate"
	"github.com/macroplay/insights/normalize"
)

// ============================================================================
// RECENCY STATUS — the 5-level recharge-recency taxonomy
// ============================================================================

// Status labels, in display order. The ordering drives the bar chart and
// the default segmentation, so it is taxonomy order, never count order.
const (
	StatusActive         = "1-30 días (Activos)"
	StatusPotentialChurn = "31-60 días (Potencial Churn)"
	StatusSuspended      = "61-120 días (Suspendidos)"
	StatusPreDeactivated = "121-180 días (Pre-desactivados)"
	StatusDeactivated    = ">=181 días (Desactivados)"
	StatusUnknown        = "Sin datos"
)

// StatusOrder lists every status in its canonical display position.
var StatusOrder = []string{
	StatusActive,
	StatusPotentialChurn,
	StatusSuspended,
	StatusPreDeactivated,
	StatusDeactivated,
	StatusUnknown,
}

// DaysSince returns whole days elapsed from ref to today, both pinned to
// UTC midnight first. A zero ref or a ref in the future is absent —
// "days since" has no meaning for a date not yet reached.
func DaysSince(ref, today time.Time) (int, bool) {
	if ref.IsZero() {
		return 0, false
	}
	r := normalize.AtUTCMidnight(ref)
	t := normalize.AtUTCMidnight(today)
	days := int(t.Sub(r).Hours() / 24)
	if days < 0 {
		return 0, false
	}
	return days, true
}

// StatusForDays maps a day count to its recency status. Day zero counts
// as active so the mapping is total over non-negative values.
func StatusForDays(days int) string {
	switch {
	case days < 0:
		return StatusUnknown
	case days <= 30:
		return StatusActive
	case days <= 60:
		return StatusPotentialChurn
	case days <= 120:
		return StatusSuspended
	case days <= 180:
		return StatusPreDeactivated
	default:
		return StatusDeactivated
	}
}

// StatusForBracket maps a raw bracket value — either a pre-labeled range
// like "31-60" or a bare day count — to its recency status. Values that
// parse as neither are "Sin datos".
func StatusForBracket(bracket string) string {
	bracket = strings.TrimSpace(bracket)
	if bracket == "" {
		return StatusUnknown
	}

	if idx := strings.Index(bracket, "-"); idx > 0 {
		if start, err := strconv.Atoi(strings.TrimSpace(bracket[:idx])); err == nil {
			return StatusForDays(start)
		}
	}
	if n, err := strconv.Atoi(bracket); err == nil && n >= 0 {
		return StatusForDays(n)
	}
	if f, err := strconv.ParseFloat(bracket, 64); err == nil && f >= 0 {
		return StatusForDays(int(f))
	}
	return StatusUnknown
}

// ============================================================================
// ANNOTATION — computed fields layered over the immutable joined record
// ============================================================================

// Annotated is a joined record plus its computed fields. The base record
// is embedded untouched; annotation always allocates a new slice.
type Annotated struct {
	correlate.JoinedRecord

	// DaysSinceRecharge is -1 when the last-recharge date is unknown.
	DaysSinceRecharge int
	Status            string
}

// Annotate computes recency metrics for every record against the given
// reference day. Bracket codes carried by the recharge export win over
// the computed day count, matching how the export itself buckets.
func Annotate(records []correlate.JoinedRecord, today time.Time) []Annotated {
	out := make([]Annotated, 0, len(records))
	for _, r := range records {
		a := Annotated{JoinedRecord: r, DaysSinceRecharge: -1, Status: StatusUnknown}

		if days, ok := DaysSince(r.LastRecharge, today); ok {
			a.DaysSinceRecharge = days
		}

		switch {
		case r.BracketRecharge != "":
			a.Status = StatusForBracket(r.BracketRecharge)
		case r.BracketConsumption != "":
			a.Status = StatusForBracket(r.BracketConsumption)
		case a.DaysSinceRecharge >= 0:
			a.Status = StatusForDays(a.DaysSinceRecharge)
		}

		out = append(out, a)
	}
	return out
}
