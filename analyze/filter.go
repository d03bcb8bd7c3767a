package analyze

import (
	"time"

	"github.com/macroplay/insights/correlate"
	"github.com/macroplay/insights/normalize"
)

// ============================================================================
// DATE-RANGE REFILTER
// ============================================================================
// The dashboard lets the analyst narrow the correlated dataset to a date
// window. Filtering always starts from the retained original join and the
// whole downstream analysis is recomputed — filtered collections are new
// collections, never views into old ones.
// ============================================================================

// AvailableDateRange scans every date field of every record and returns
// the earliest and latest calendar days seen.
func AvailableDateRange(records []correlate.JoinedRecord) (min, max time.Time, ok bool) {
	for _, r := range records {
		for _, d := range []time.Time{
			r.PeriodStart, r.PeriodEnd, r.CutDate,
			r.LastConsumption, r.Activation, r.LastRecharge,
		} {
			if d.IsZero() {
				continue
			}
			if !ok || d.Before(min) {
				min = d
			}
			if !ok || d.After(max) {
				max = d
			}
			ok = true
		}
	}
	return min, max, ok
}

// primaryDate picks the date that positions a record on the calendar:
// period start first, then the recharge cut date, then period end.
func primaryDate(r correlate.JoinedRecord) (time.Time, bool) {
	for _, d := range []time.Time{r.PeriodStart, r.CutDate, r.PeriodEnd} {
		if !d.IsZero() {
			return d, true
		}
	}
	return time.Time{}, false
}

// FilterByDateRange returns the records whose primary date falls within
// [start, end], compared as UTC calendar days. Records without any
// primary date are excluded. A zero start or end disables the filter.
func FilterByDateRange(records []correlate.JoinedRecord, start, end time.Time) []correlate.JoinedRecord {
	if start.IsZero() || end.IsZero() {
		return append([]correlate.JoinedRecord(nil), records...)
	}
	lo := normalize.AtUTCMidnight(start)
	hi := normalize.AtUTCMidnight(end)

	out := make([]correlate.JoinedRecord, 0, len(records))
	for _, r := range records {
		d, ok := primaryDate(r)
		if !ok {
			continue
		}
		day := normalize.AtUTCMidnight(d)
		if day.Before(lo) || day.After(hi) {
			continue
		}
		out = append(out, r)
	}
	return out
}
