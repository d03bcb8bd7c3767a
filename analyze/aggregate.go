package analyze

import (
	"math"
)

// ============================================================================
// AGGREGATION — fully recomputed snapshot, never patched
// ============================================================================
// A Result is derived from one pass over the collection and is immutable
// once built. Any change to the underlying records means calling Analyze
// again; nothing here updates a prior Result incrementally. That rule is
// what keeps stale-aggregate bugs out of the dashboard.
// ============================================================================

// FieldSummary holds the aggregate stats for one numeric field.
type FieldSummary struct {
	Total   float64 `json:"total"`
	Average float64 `json:"average"`
	Max     float64 `json:"max"`
	Min     float64 `json:"min"`
}

// Result is the analysis snapshot for one record collection.
type Result struct {
	TotalRecords int                     `json:"totalRecords"`
	Columns      []string                `json:"columns"`
	Summary      map[string]FieldSummary `json:"summary"`
	StatusChart  *CategorySeries         `json:"statusChart,omitempty"`
	DailyChart   *TimeSeries             `json:"dailyChart,omitempty"`
}

// Canonical column names in display order.
var columnNames = []string{
	"Fecha Inicial", "Fecha Fin", "MSISDN", "Oferta", "Consumo MB",
	"Tarificacion", "Altan_Usr_ID", "IMSI", "RGU", "Cliente",
	"Fecha", "Fecha Ultimo Consumo", "Fecha Activacion",
	"Fecha Ultima Recarga", "COMPANY_NAME", "F_PRODUCTO", "MODALIDAD",
	"BRACKET_RECARGA", "BRACKET_CONSUMO", "SURVIVAL",
	"Dias_Sin_Recarga", "Estado",
}

// Numeric fields and their accessors. Unknown day counts coerce to 0,
// uniformly across total, average, max and min — one policy everywhere.
var numericFields = []struct {
	name  string
	value func(Annotated) float64
}{
	{"Consumo MB", func(a Annotated) float64 { return a.UsageMB }},
	{"Tarificacion", func(a Annotated) float64 { return a.Tariff }},
	{"Dias_Sin_Recarga", func(a Annotated) float64 {
		if a.DaysSinceRecharge < 0 {
			return 0
		}
		return float64(a.DaysSinceRecharge)
	}},
}

// Analyze builds a fresh Result over the annotated collection. Every
// slice, map, and series it returns is newly allocated so presentation
// layers keyed on reference identity always see a change.
func Analyze(records []Annotated) *Result {
	res := &Result{
		TotalRecords: len(records),
		Columns:      append([]string(nil), columnNames...),
		Summary:      make(map[string]FieldSummary, len(numericFields)),
	}
	if len(records) == 0 {
		return res
	}

	for _, field := range numericFields {
		var total float64
		max := math.Inf(-1)
		min := math.Inf(1)
		for _, rec := range records {
			v := field.value(rec)
			total += v
			if v > max {
				max = v
			}
			if v < min {
				min = v
			}
		}
		res.Summary[field.name] = FieldSummary{
			Total:   total,
			Average: Round2(total / float64(len(records))),
			Max:     max,
			Min:     min,
		}
	}

	res.StatusChart = BuildStatusChart(records)
	res.DailyChart = BuildDailyRechargeChart(records)
	return res
}

// Round2 rounds to 2 decimal places.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}
