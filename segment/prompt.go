package segment

import (
	"fmt"
	"strings"
	"time"

	"github.com/macroplay/insights/analyze"
	"github.com/macroplay/insights/normalize"
)

// ============================================================================
// PROMPT BUILDER — compact metadata summary, never raw records
// ============================================================================
// The generator sees record counts, date ranges, and the two signal
// statistics. Keeping the summary small avoids blowing the output token
// budget on echoed input, which is what truncates segmentation plans.
// ============================================================================

// buildPrompt assembles the segmentation request for the plan generator.
// extraCriteria is optional analyst guidance appended verbatim.
func buildPrompt(records []analyze.Annotated, usage, days Stats, extraCriteria string) string {
	var b strings.Builder

	b.WriteString(`Eres un experto en segmentación de clientes para Macropay (telefonía móvil en México).

Analiza estos datos CORRELACIONADOS (Tarificación + Recargas) y define 4-6 segmentos claros de clientes basados ÚNICAMENTE en:
1. CONSUMO MB (Consumo MB): Cantidad de megabytes consumidos
2. FECHA ÚLTIMA RECARGA (Fecha Ultima Recarga): Días transcurridos desde la última recarga

CRITERIOS DE SEGMENTACIÓN:
- Combina rangos de Consumo MB (bajo, medio, alto) con antigüedad de última recarga (reciente, media, antigua)
- Ejemplos de segmentos:
  * Alto Consumo + Recarga Reciente = Clientes VIP Activos
  * Alto Consumo + Recarga Antigua = Clientes en Riesgo (alto valor pero inactivos)
  * Bajo Consumo + Recarga Reciente = Clientes Leales de Bajo Consumo
  * Bajo Consumo + Recarga Antigua = Clientes Inactivos

DATOS:
`)
	b.WriteString(fmt.Sprintf("Total registros: %d\n", len(records)))
	b.WriteString(dateContext(records))
	b.WriteString(fmt.Sprintf("Estadísticas Consumo MB: min=%.2f max=%.2f promedio=%.2f mediana=%.2f\n",
		usage.Min, usage.Max, usage.Mean, usage.Median))
	b.WriteString(fmt.Sprintf("Estadísticas Días desde Última Recarga: min=%.0f max=%.0f promedio=%.2f mediana=%.0f\n",
		days.Min, days.Max, days.Mean, days.Median))

	if extraCriteria != "" {
		b.WriteString("\nCRITERIOS ADICIONALES DEL ANALISTA:\n")
		b.WriteString(extraCriteria)
		b.WriteString("\n")
	}

	b.WriteString(`
IMPORTANTE: Responde SOLO con el JSON. NO agregues explicaciones ni texto adicional. Tu respuesta debe ser ÚNICAMENTE un JSON válido con este formato exacto:

{
  "segments": [
    {
      "name": "Clientes VIP Activos",
      "description": "Alto consumo MB y recarga reciente",
      "criteria": "Consumo MB > [valor] Y Días desde Última Recarga < [días]",
      "color": "#FFD700"
    }
  ],
  "rules": [
    {
      "segment": "Clientes VIP Activos",
      "conditions": "si campo 'Consumo MB' > [valor] y días desde 'Fecha Ultima Recarga' < [días]"
    }
  ]
}

Usa los valores de las estadísticas proporcionadas para definir los umbrales. Define 4-6 segmentos relevantes. RESPONDE SOLO CON EL JSON, SIN TEXTO ADICIONAL.`)

	return b.String()
}

// dateContext summarizes the calendar span of the collection, warning
// the generator when the data covers a single month.
func dateContext(records []analyze.Annotated) string {
	min, max, ok := dateRange(records)
	if !ok {
		return ""
	}

	span := int(max.Sub(min).Hours()/24) + 1
	months := (span + 29) / 30

	unit := "meses"
	if months == 1 {
		unit = "mes"
	}
	ctx := fmt.Sprintf("PERIODO DE DATOS: %s a %s (%d días, ~%d %s)\n",
		normalize.FormatISO(min), normalize.FormatISO(max), span, months, unit)
	if months <= 1 {
		ctx += "IMPORTANTE: Los datos cubren solo UN MES. Ajusta los criterios de segmentación en consecuencia.\n"
	}
	return ctx
}

func dateRange(records []analyze.Annotated) (min, max time.Time, ok bool) {
	for _, r := range records {
		for _, d := range []time.Time{r.PeriodStart, r.PeriodEnd, r.CutDate,
			r.LastConsumption, r.Activation, r.LastRecharge} {
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
