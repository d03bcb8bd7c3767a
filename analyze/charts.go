package analyze

import (
	"sort"
	"time"

	"github.com/macroplay/insights/normalize"
)

// ============================================================================
// CHART SERIES — category counts and daily time series
// ============================================================================
// Series are rebuilt from scratch on every call. The charting surface
// detects changes by reference identity, so handing it a previously
// returned slice would silently freeze the display.
// ============================================================================

// CategoryBucket is one bar of the status chart.
type CategoryBucket struct {
	Status  string  `json:"status"`
	Count   int     `json:"count"`
	UsageMB float64 `json:"usageMB"`
	Tariff  float64 `json:"tariff"`
}

// CategorySeries is the status-bucketed bar chart.
type CategorySeries struct {
	Title   string           `json:"title"`
	Buckets []CategoryBucket `json:"buckets"`
}

// TimePoint is one day of the recharge time series.
type TimePoint struct {
	Date  time.Time `json:"date"`
	Label string    `json:"label"` // DD/MM/YYYY
	Count int       `json:"count"`
}

// TimeSeries is the last-recharges-per-day line chart.
type TimeSeries struct {
	Title  string      `json:"title"`
	Points []TimePoint `json:"points"`
}

// BuildStatusChart counts records per recency status, summing usage and
// tariff per bucket. Buckets follow taxonomy order and only statuses
// actually present appear.
func BuildStatusChart(records []Annotated) *CategorySeries {
	type acc struct {
		count   int
		usage   float64
		tariff  float64
		present bool
	}
	byStatus := make(map[string]*acc, len(StatusOrder))
	for _, s := range StatusOrder {
		byStatus[s] = &acc{}
	}

	for _, r := range records {
		a, ok := byStatus[r.Status]
		if !ok {
			a = byStatus[StatusUnknown]
		}
		a.present = true
		a.count++
		a.usage += r.UsageMB
		a.tariff += r.Tariff
	}

	series := &CategorySeries{Title: "Segmentación de Clientes por Estado de Recarga"}
	for _, status := range StatusOrder {
		a := byStatus[status]
		if !a.present {
			continue
		}
		series.Buckets = append(series.Buckets, CategoryBucket{
			Status:  status,
			Count:   a.count,
			UsageMB: Round2(a.usage),
			Tariff:  Round2(a.tariff),
		})
	}
	return series
}

// BuildDailyRechargeChart counts records per last-recharge calendar day,
// sorted chronologically. Records without a parseable recharge date are
// left out entirely rather than piled into a fake day.
func BuildDailyRechargeChart(records []Annotated) *TimeSeries {
	counts := make(map[time.Time]int)
	for _, r := range records {
		if r.LastRecharge.IsZero() {
			continue
		}
		day := normalize.AtUTCMidnight(r.LastRecharge)
		counts[day]++
	}

	days := make([]time.Time, 0, len(counts))
	for day := range counts {
		days = append(days, day)
	}
	sort.Slice(days, func(i, j int) bool { return days[i].Before(days[j]) })

	series := &TimeSeries{Title: "Últimas Recargas por Día"}
	for _, day := range days {
		series.Points = append(series.Points, TimePoint{
			Date:  day,
			Label: normalize.FormatDisplay(day),
			Count: counts[day],
		})
	}
	return series
}
