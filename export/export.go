// Package export renders segmented subscriber collections as CSV.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/macroplay/insights/normalize"
	"github.com/macroplay/insights/segment"
)

// Headers is the canonical export column order.
var Headers = []string{
	"MSISDN", "Fecha Inicial", "Fecha Fin", "Oferta", "Consumo MB",
	"Tarificacion", "Altan_Usr_ID", "IMSI", "RGU", "Cliente",
	"Fecha", "Fecha Ultimo Consumo", "Fecha Activacion",
	"Fecha Ultima Recarga", "COMPANY_NAME", "F_PRODUCTO", "MODALIDAD",
	"BRACKET_RECARGA", "BRACKET_CONSUMO", "SURVIVAL",
	"Dias_Sin_Recarga", "Estado", "Segmento_IA", "Segmento_Color",
}

// WriteCSV writes the labeled collection with the canonical headers.
// Unknown dates and day counts export as empty cells, not sentinels.
func WriteCSV(w io.Writer, records []segment.Labeled) error {
	cw := csv.NewWriter(w)

	if err := cw.Write(Headers); err != nil {
		return fmt.Errorf("failed to write export header: %w", err)
	}

	for _, r := range records {
		days := ""
		if r.DaysSinceRecharge >= 0 {
			days = strconv.Itoa(r.DaysSinceRecharge)
		}
		row := []string{
			r.MSISDN,
			dateCell(r.PeriodStart),
			dateCell(r.PeriodEnd),
			r.Offer,
			floatCell(r.UsageMB),
			floatCell(r.Tariff),
			r.AltanUserID,
			r.IMSI,
			r.RGU,
			r.Client,
			dateCell(r.CutDate),
			dateCell(r.LastConsumption),
			dateCell(r.Activation),
			dateCell(r.LastRecharge),
			r.Company,
			r.Product,
			r.Modality,
			r.BracketRecharge,
			r.BracketConsumption,
			r.Survival,
			days,
			r.Status,
			r.Segment,
			r.Color,
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("failed to write export row: %w", err)
		}
	}

	cw.Flush()
	return cw.Error()
}

func dateCell(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return normalize.FormatISO(t)
}

func floatCell(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
