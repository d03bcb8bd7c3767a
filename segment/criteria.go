package segment

import (
	"regexp"
	"strconv"
	"strings"
)

// ============================================================================
// CRITERIA MATCHING — compiled once per plan, applied per record
// ============================================================================
// A plan's criteria arrive as free text ("Consumo MB > 7500 Y Días desde
// Última Recarga < 7"). Each segment's text is compiled into a rule up
// front; per-record assignment then evaluates only the compiled form.
// When no numeric threshold can be extracted the rule falls back to
// keyword buckets scaled off the collection mean.
// ============================================================================

var (
	usagePattern     = regexp.MustCompile(`(?i)consumo\s*mb\s*([><=]+)\s*(\d+)`)
	daysPattern      = regexp.MustCompile(`(?i)d[ií]as?\s*desde\s*[úu]ltima\s*recarga\s*([><=]+)\s*(\d+)`)
	daysLoosePattern = regexp.MustCompile(`(?i)recarga\s*([><=]+)\s*(\d+)`)
)

// Equality comparisons get a tolerance band; thresholds proposed by a
// model are round numbers, real usage values are not.
const (
	usageTolerance = 100 // MB
	daysTolerance  = 5   // days
)

// comparison is one extracted "op threshold" pair.
type comparison struct {
	op        string
	threshold float64
}

func (c comparison) matches(value, tolerance float64) bool {
	switch {
	case strings.Contains(c.op, ">"):
		return value > c.threshold
	case strings.Contains(c.op, "<"):
		return value < c.threshold
	case strings.Contains(c.op, "="):
		diff := value - c.threshold
		if diff < 0 {
			diff = -diff
		}
		return diff <= tolerance
	}
	return true
}

// rule is a segment's compiled matching criteria.
type rule struct {
	segment Segment

	usage *comparison
	days  *comparison

	// Lowercased description + conditions text, for keyword matching
	// when no numeric comparison was extracted.
	text string

	// A rule that mentions recharges (and not their absence) cannot
	// match a record whose recharge date is unknown.
	needsRechargeDate bool
}

// compileRules pairs every plan segment with its conditions text and
// extracts the comparisons once.
func compileRules(plan *plan) []rule {
	conditionsFor := make(map[string]string, len(plan.Rules))
	for _, r := range plan.Rules {
		conditionsFor[r.Segment] = r.Conditions
	}

	rules := make([]rule, 0, len(plan.Segments))
	for _, seg := range plan.Segments {
		conditions := conditionsFor[seg.Name]
		text := strings.ToLower(seg.Description + " " + conditions)

		r := rule{
			segment: seg,
			usage:   extractComparison(seg.Criteria, conditions, usagePattern),
			text:    text,
		}
		r.days = extractComparison(seg.Criteria, conditions, daysPattern)
		if r.days == nil {
			r.days = extractComparison(seg.Criteria, conditions, daysLoosePattern)
		}
		r.needsRechargeDate = strings.Contains(text, "recarga") &&
			!strings.Contains(text, "sin recarga")
		rules = append(rules, r)
	}
	return rules
}

func extractComparison(criteria, conditions string, pattern *regexp.Regexp) *comparison {
	m := pattern.FindStringSubmatch(criteria)
	if m == nil {
		m = pattern.FindStringSubmatch(conditions)
	}
	if m == nil {
		return nil
	}
	threshold, err := strconv.ParseFloat(m[2], 64)
	if err != nil {
		return nil
	}
	return &comparison{op: strings.TrimSpace(m[1]), threshold: threshold}
}

// matches evaluates the rule against one record's usage and day count.
// daysKnown is false when the record has no recharge date; a rule never
// guesses recency for such a record.
func (r rule) matches(usageMB float64, days int, daysKnown bool, t thresholds) bool {
	return r.matchesUsage(usageMB, t) && r.matchesDays(days, daysKnown)
}

func (r rule) matchesUsage(usageMB float64, t thresholds) bool {
	if r.usage != nil {
		return r.usage.matches(usageMB, usageTolerance)
	}
	switch {
	case strings.Contains(r.text, "alto consumo"):
		return usageMB >= t.high
	case strings.Contains(r.text, "bajo consumo"):
		return usageMB <= t.low
	case strings.Contains(r.text, "medio"):
		return usageMB >= t.low && usageMB <= t.high
	}
	return true
}

func (r rule) matchesDays(days int, daysKnown bool) bool {
	if !daysKnown {
		return !r.needsRechargeDate
	}
	if r.days != nil {
		return r.days.matches(float64(days), daysTolerance)
	}
	switch {
	case strings.Contains(r.text, "reciente"):
		return days <= 7
	case strings.Contains(r.text, "antigua"):
		return days > 30
	case strings.Contains(r.text, "media"):
		return days > 7 && days <= 30
	}
	return true
}

// assign picks the first rule that matches. A record matching nothing
// lands in the plan's first segment rather than being dropped.
func assign(rules []rule, usageMB float64, days int, daysKnown bool, t thresholds) Segment {
	for _, r := range rules {
		if r.matches(usageMB, days, daysKnown, t) {
			return r.segment
		}
	}
	if len(rules) > 0 {
		return rules[0].segment
	}
	return Segment{Name: "Sin Clasificar", Color: "#999999"}
}
