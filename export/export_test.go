package export

import (
	"bytes"
	"encoding/csv"
	"testing"
	"time"

	"github.com/macroplay/insights/analyze"
	"github.com/macroplay/insights/correlate"
	"github.com/macroplay/insights/segment"
)

// The export surface reuses the analysis column names verbatim and only
// adds the two segmentation columns.
func TestHeadersMatchAnalysisColumns(t *testing.T) {
	exported := make(map[string]bool, len(Headers))
	for _, h := range Headers {
		exported[h] = true
	}

	cols := analyze.Analyze(nil).Columns
	for _, name := range cols {
		if !exported[name] {
			t.Errorf("analysis column %q missing from export headers", name)
		}
		delete(exported, name)
	}

	for _, extra := range []string{"Segmento_IA", "Segmento_Color"} {
		if !exported[extra] {
			t.Errorf("export headers missing %q", extra)
		}
		delete(exported, extra)
	}
	for h := range exported {
		t.Errorf("export header %q has no analysis column", h)
	}
}

func TestWriteCSVRoundTrip(t *testing.T) {
	records := []segment.Labeled{
		{
			Annotated: analyze.Annotated{
				JoinedRecord: correlate.JoinedRecord{
					MSISDN:       "5215550000001",
					Offer:        "Plan A, Premium", // comma must survive quoting
					UsageMB:      1024.5,
					Tariff:       150,
					LastRecharge: time.Date(2024, 6, 15, 0, 0, 0, 0, time.UTC),
				},
				DaysSinceRecharge: 16,
				Status:            analyze.StatusActive,
			},
			Segment: "VIP Activos",
			Color:   "#FFD700",
		},
		{
			Annotated: analyze.Annotated{
				JoinedRecord:      correlate.JoinedRecord{MSISDN: "5215550000002"},
				DaysSinceRecharge: -1,
				Status:            analyze.StatusUnknown,
			},
			Segment: "Clientes Regulares",
			Color:   "#FFA500",
		},
	}

	var buf bytes.Buffer
	if err := WriteCSV(&buf, records); err != nil {
		t.Fatal(err)
	}

	rows, err := csv.NewReader(&buf).ReadAll()
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 3 {
		t.Fatalf("rows = %d, want header + 2", len(rows))
	}

	col := make(map[string]int, len(Headers))
	for i, h := range rows[0] {
		col[h] = i
	}

	first := rows[1]
	if first[col["MSISDN"]] != "5215550000001" {
		t.Errorf("MSISDN = %q", first[col["MSISDN"]])
	}
	if first[col["Oferta"]] != "Plan A, Premium" {
		t.Errorf("comma value mangled: %q", first[col["Oferta"]])
	}
	if first[col["Consumo MB"]] != "1024.5" {
		t.Errorf("Consumo MB = %q", first[col["Consumo MB"]])
	}
	if first[col["Fecha Ultima Recarga"]] != "2024-06-15" {
		t.Errorf("recharge date = %q", first[col["Fecha Ultima Recarga"]])
	}
	if first[col["Segmento_IA"]] != "VIP Activos" || first[col["Segmento_Color"]] != "#FFD700" {
		t.Errorf("segment cells = %q/%q", first[col["Segmento_IA"]], first[col["Segmento_Color"]])
	}

	second := rows[2]
	if second[col["Dias_Sin_Recarga"]] != "" {
		t.Errorf("unknown day count should export empty, got %q", second[col["Dias_Sin_Recarga"]])
	}
	if second[col["Fecha Ultima Recarga"]] != "" {
		t.Errorf("zero date should export empty, got %q", second[col["Fecha Ultima Recarga"]])
	}
}
