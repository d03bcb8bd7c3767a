// Package segment assigns every subscriber to a named customer segment,
// either from an AI-proposed segmentation plan or from a deterministic
// rule-based fallback. Assignment only ever looks at two signals: data
// usage in MB and days since the last recharge.
package segment

import (
	"sort"

	"github.com/macroplay/insights/analyze"
)

// Segment is one customer segment of a segmentation plan.
type Segment struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Criteria    string `json:"criteria,omitempty"`
	Color       string `json:"color"`
}

// Labeled is an annotated record plus its assigned segment.
type Labeled struct {
	analyze.Annotated

	Segment string `json:"segment"`
	Color   string `json:"color"`
}

// Outcome is the result of one segmentation run: every record labeled,
// plus the plan that produced the labels.
type Outcome struct {
	Records  []Labeled `json:"records"`
	Segments []Segment `json:"segments"`

	// Source is "ai" when a generated plan produced the labels,
	// "fallback" when the built-in taxonomy did.
	Source string `json:"source"`
}

// Stats summarizes one numeric signal across the collection.
type Stats struct {
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
	Mean   float64 `json:"mean"`
	Median float64 `json:"median"`
}

// UsageStats computes usage statistics over records with positive
// consumption. Zero-usage records would drag the mean toward zero and
// make every threshold meaningless, so they are excluded.
func UsageStats(records []analyze.Annotated) Stats {
	values := make([]float64, 0, len(records))
	for _, r := range records {
		if r.UsageMB > 0 {
			values = append(values, r.UsageMB)
		}
	}
	return computeStats(values)
}

// DaysStats computes statistics over the known day counts. Records
// without a recharge date carry -1 and are excluded.
func DaysStats(records []analyze.Annotated) Stats {
	values := make([]float64, 0, len(records))
	for _, r := range records {
		if r.DaysSinceRecharge >= 0 {
			values = append(values, float64(r.DaysSinceRecharge))
		}
	}
	return computeStats(values)
}

func computeStats(values []float64) Stats {
	if len(values) == 0 {
		return Stats{}
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)

	var total float64
	for _, v := range sorted {
		total += v
	}
	return Stats{
		Min:    sorted[0],
		Max:    sorted[len(sorted)-1],
		Mean:   analyze.Round2(total / float64(len(sorted))),
		Median: sorted[len(sorted)/2],
	}
}

// thresholds are the dynamic usage cut points derived from the mean.
// A collection with no usable consumption falls back to fixed defaults
// so keyword rules still partition somewhere sensible.
type thresholds struct {
	mean float64
	high float64 // mean * 1.5
	low  float64 // mean * 0.5
}

func thresholdsFrom(usage Stats) thresholds {
	mean := usage.Mean
	if mean == 0 {
		mean = 5000
	}
	return thresholds{mean: mean, high: mean * 1.5, low: mean * 0.5}
}
