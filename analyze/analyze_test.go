package analyze

import (
	"reflect"
	"testing"
	"time"

	"github.com/macroplay/insights/correlate"
)

var today = time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ============================================================================
// DAYS-SINCE TESTS
// ============================================================================

func TestDaysSince(t *testing.T) {
	days, ok := DaysSince(day(2024, 6, 1), today)
	if !ok || days != 30 {
		t.Errorf("DaysSince(2024-06-01, 2024-07-01) = %d (%v), want 30", days, ok)
	}

	days, ok = DaysSince(today, today)
	if !ok || days != 0 {
		t.Errorf("same day should be 0 days, got %d (%v)", days, ok)
	}
}

func TestDaysSinceIgnoresTimeOfDay(t *testing.T) {
	ref := time.Date(2024, 6, 30, 23, 59, 0, 0, time.UTC)
	now := time.Date(2024, 7, 1, 0, 1, 0, 0, time.UTC)
	days, ok := DaysSince(ref, now)
	if !ok || days != 1 {
		t.Errorf("midnight-normalized difference should be 1, got %d (%v)", days, ok)
	}
}

func TestDaysSinceFutureIsAbsent(t *testing.T) {
	if _, ok := DaysSince(day(2024, 8, 1), today); ok {
		t.Error("future reference date should be absent")
	}
	if _, ok := DaysSince(time.Time{}, today); ok {
		t.Error("zero reference date should be absent")
	}
}

// ============================================================================
// STATUS TAXONOMY TESTS
// ============================================================================

func TestStatusForDaysTotality(t *testing.T) {
	known := map[string]bool{
		StatusActive: true, StatusPotentialChurn: true, StatusSuspended: true,
		StatusPreDeactivated: true, StatusDeactivated: true,
	}
	for d := 0; d <= 400; d++ {
		if !known[StatusForDays(d)] {
			t.Fatalf("StatusForDays(%d) = %q, not one of the five labels", d, StatusForDays(d))
		}
	}
	if StatusForDays(-1) != StatusUnknown {
		t.Error("negative day count should be Sin datos")
	}
}

func TestStatusForDaysBoundaries(t *testing.T) {
	cases := map[int]string{
		0: StatusActive, 30: StatusActive,
		31: StatusPotentialChurn, 60: StatusPotentialChurn,
		61: StatusSuspended, 120: StatusSuspended,
		121: StatusPreDeactivated, 180: StatusPreDeactivated,
		181: StatusDeactivated, 999: StatusDeactivated,
	}
	for d, want := range cases {
		if got := StatusForDays(d); got != want {
			t.Errorf("StatusForDays(%d) = %q, want %q", d, got, want)
		}
	}
}

func TestStatusForBracket(t *testing.T) {
	cases := map[string]string{
		"1-30":    StatusActive,
		"31-60":   StatusPotentialChurn,
		"61-120":  StatusSuspended,
		"121-180": StatusPreDeactivated,
		"181-999": StatusDeactivated,
		"45":      StatusPotentialChurn,
		"200":     StatusDeactivated,
		"":        StatusUnknown,
		"x-y":     StatusUnknown,
		"basura":  StatusUnknown,
	}
	for in, want := range cases {
		if got := StatusForBracket(in); got != want {
			t.Errorf("StatusForBracket(%q) = %q, want %q", in, got, want)
		}
	}
}

// ============================================================================
// ANNOTATION TESTS
// ============================================================================

func TestAnnotateEndToEnd(t *testing.T) {
	joined := []correlate.JoinedRecord{
		{MSISDN: "5550001", UsageMB: 5.00, LastRecharge: day(2024, 6, 1)},
	}

	annotated := Annotate(joined, today)
	a := annotated[0]
	if a.DaysSinceRecharge != 30 {
		t.Errorf("DaysSinceRecharge = %d, want 30", a.DaysSinceRecharge)
	}
	if a.Status != StatusActive {
		t.Errorf("Status = %q, want %q (boundary-inclusive)", a.Status, StatusActive)
	}
	if a.UsageMB != 5.00 {
		t.Errorf("UsageMB = %v, want 5.00", a.UsageMB)
	}
}

func TestAnnotatePrefersBracketCode(t *testing.T) {
	joined := []correlate.JoinedRecord{
		{MSISDN: "1", BracketRecharge: "61-120", LastRecharge: day(2024, 6, 30)},
	}
	a := Annotate(joined, today)[0]
	if a.Status != StatusSuspended {
		t.Errorf("export bracket code should win, got %q", a.Status)
	}
	if a.DaysSinceRecharge != 1 {
		t.Errorf("day count still computed, got %d", a.DaysSinceRecharge)
	}
}

func TestAnnotateNoRecharge(t *testing.T) {
	a := Annotate([]correlate.JoinedRecord{{MSISDN: "1"}}, today)[0]
	if a.DaysSinceRecharge != -1 || a.Status != StatusUnknown {
		t.Errorf("missing recharge should be unknown, got %d / %q", a.DaysSinceRecharge, a.Status)
	}
}

// ============================================================================
// AGGREGATE TESTS
// ============================================================================

func testRecords() []Annotated {
	return Annotate([]correlate.JoinedRecord{
		{MSISDN: "1", UsageMB: 100, Tariff: 50, LastRecharge: day(2024, 6, 26)},
		{MSISDN: "2", UsageMB: 300, Tariff: 150, LastRecharge: day(2024, 6, 1)},
		{MSISDN: "3", UsageMB: 200, Tariff: 100},
	}, today)
}

func TestAnalyzeSummary(t *testing.T) {
	res := Analyze(testRecords())

	usage := res.Summary["Consumo MB"]
	if usage.Total != 600 || usage.Average != 200 || usage.Max != 300 || usage.Min != 100 {
		t.Errorf("usage summary = %+v", usage)
	}

	// Unknown day counts coerce to 0 uniformly.
	dias := res.Summary["Dias_Sin_Recarga"]
	if dias.Min != 0 || dias.Max != 30 {
		t.Errorf("days summary = %+v, want min 0 max 30", dias)
	}
	if res.TotalRecords != 3 {
		t.Errorf("TotalRecords = %d", res.TotalRecords)
	}
}

func TestAnalyzeFreshAllocation(t *testing.T) {
	records := testRecords()
	a := Analyze(records)
	b := Analyze(records)

	if !reflect.DeepEqual(a, b) {
		t.Error("two analyses of the same records should be value-equal")
	}
	if a == b {
		t.Error("results must be distinct objects")
	}
	if &a.StatusChart.Buckets[0] == &b.StatusChart.Buckets[0] {
		t.Error("chart series must be freshly allocated per call")
	}
	if reflect.ValueOf(a.Summary).Pointer() == reflect.ValueOf(b.Summary).Pointer() {
		t.Error("summary maps must not be shared")
	}
}

// ============================================================================
// CHART TESTS
// ============================================================================

func TestStatusChartOrderAndSums(t *testing.T) {
	records := Annotate([]correlate.JoinedRecord{
		{MSISDN: "1", UsageMB: 10, Tariff: 5, LastRecharge: day(2024, 5, 1)},   // 61 days → Suspendidos
		{MSISDN: "2", UsageMB: 20, Tariff: 10, LastRecharge: day(2024, 6, 30)}, // 1 day → Activos
		{MSISDN: "3", UsageMB: 30, Tariff: 15, LastRecharge: day(2024, 6, 25)}, // 6 days → Activos
		{MSISDN: "4"}, // Sin datos
	}, today)

	chart := BuildStatusChart(records)
	if len(chart.Buckets) != 3 {
		t.Fatalf("expected 3 present buckets, got %d", len(chart.Buckets))
	}
	// Taxonomy order, not count order.
	if chart.Buckets[0].Status != StatusActive ||
		chart.Buckets[1].Status != StatusSuspended ||
		chart.Buckets[2].Status != StatusUnknown {
		t.Errorf("bucket order wrong: %+v", chart.Buckets)
	}
	active := chart.Buckets[0]
	if active.Count != 2 || active.UsageMB != 50 || active.Tariff != 25 {
		t.Errorf("active bucket = %+v", active)
	}
}

func TestDailyChartChronologyAndExclusion(t *testing.T) {
	records := Annotate([]correlate.JoinedRecord{
		{MSISDN: "1", LastRecharge: day(2024, 6, 15)},
		{MSISDN: "2", LastRecharge: day(2024, 6, 1)},
		{MSISDN: "3", LastRecharge: day(2024, 6, 15)},
		{MSISDN: "4"}, // no date → excluded from the series
	}, today)

	chart := BuildDailyRechargeChart(records)
	if len(chart.Points) != 2 {
		t.Fatalf("expected 2 days, got %d", len(chart.Points))
	}
	if chart.Points[0].Label != "01/06/2024" || chart.Points[0].Count != 1 {
		t.Errorf("first point = %+v", chart.Points[0])
	}
	if chart.Points[1].Label != "15/06/2024" || chart.Points[1].Count != 2 {
		t.Errorf("second point = %+v", chart.Points[1])
	}
}

// ============================================================================
// DATE-RANGE FILTER TESTS
// ============================================================================

func TestFilterByDateRange(t *testing.T) {
	records := []correlate.JoinedRecord{
		{MSISDN: "1", PeriodStart: day(2024, 6, 1)},
		{MSISDN: "2", PeriodStart: day(2024, 6, 20)},
		{MSISDN: "3", CutDate: day(2024, 6, 10)}, // falls back to cut date
		{MSISDN: "4"},                            // no dates → excluded
	}

	got := FilterByDateRange(records, day(2024, 6, 5), day(2024, 6, 15))
	if len(got) != 1 || got[0].MSISDN != "3" {
		t.Errorf("filtered = %+v", got)
	}

	all := FilterByDateRange(records, time.Time{}, time.Time{})
	if len(all) != len(records) {
		t.Errorf("zero bounds should disable the filter, got %d", len(all))
	}
}

func TestAvailableDateRange(t *testing.T) {
	records := []correlate.JoinedRecord{
		{PeriodStart: day(2024, 6, 10), LastRecharge: day(2024, 6, 25)},
		{Activation: day(2023, 12, 1)},
	}
	min, max, ok := AvailableDateRange(records)
	if !ok || !min.Equal(day(2023, 12, 1)) || !max.Equal(day(2024, 6, 25)) {
		t.Errorf("range = %v..%v (%v)", min, max, ok)
	}

	if _, _, ok := AvailableDateRange([]correlate.JoinedRecord{{MSISDN: "1"}}); ok {
		t.Error("no dates anywhere should report ok=false")
	}
}
