package gemini

import (
	"context"
	"fmt"
	"strings"

	"github.com/macroplay/insights/analyze"
	"github.com/macroplay/insights/normalize"
)

// ============================================================================
// STRATEGIC REPORT — free-form sales and retention recommendations
// ============================================================================
// The report prompt carries the aggregate analysis plus a five-record
// sample, never the full dataset.
// ============================================================================

const sampleSize = 5

// StrategicReport asks the model for a structured sales, retention and
// growth analysis over the correlated collection.
func (c *Client) StrategicReport(ctx context.Context, records []analyze.Annotated, res *analyze.Result) (string, error) {
	prompt := buildReportPrompt(records, res)

	text, err := c.GenerateContent(ctx, prompt, InsightsConfig())
	if err != nil {
		return "", fmt.Errorf("strategic report generation failed: %w", err)
	}
	return text, nil
}

func buildReportPrompt(records []analyze.Annotated, res *analyze.Result) string {
	var b strings.Builder

	b.WriteString(`Eres un experto analista de datos de telecomunicaciones y estratega de ventas para Macropay, una empresa de telefonía móvil en México.

Analiza los siguientes datos CORRELACIONADOS de tarificación y recargas de clientes y proporciona recomendaciones estratégicas.

Los datos combinan:
- Información de TARIFICACIÓN: Consumo MB, Tarificacion, Ofertas
- Información de RECARGAS: fechas de activación y última recarga
- Métricas CALCULADAS: Estado, Dias_Sin_Recarga

DATOS CORRELACIONADOS RESUMIDOS:
`)
	b.WriteString(dataSummary(records, res))
	b.WriteString(`

Por favor, proporciona un análisis detallado en formato estructurado con las siguientes secciones:

1. **INSIGHTS CLAVE**: 3-4 observaciones importantes sobre los patrones de consumo, recargas y estado de clientes

2. **OPORTUNIDADES DE VENTA**:
   - Identificación de clientes con potencial de upgrade (alto consumo, recargas frecuentes)
   - Clientes candidatos a migración de prepago a pospago
   - Productos o planes recomendados para cada segmento

3. **RETENCIÓN DE CLIENTES**:
   - Clientes en riesgo (días sin recarga > 30)
   - Acciones preventivas para reactivar clientes con baja actividad
   - Programas de fidelización sugeridos

4. **PROSPECCIÓN Y CRECIMIENTO**:
   - Segmentos de mercado desatendidos
   - Nuevas oportunidades de negocio

5. **RECOMENDACIONES ACCIONABLES**:
   - Top 5 acciones prioritarias a implementar
   - KPIs a monitorear

Sé específico, usa los números reales de los datos, y proporciona recomendaciones prácticas y accionables.`)

	return b.String()
}

// dataSummary condenses the analysis into prompt-sized text.
func dataSummary(records []analyze.Annotated, res *analyze.Result) string {
	var lines []string

	lines = append(lines,
		fmt.Sprintf("Total de registros correlacionados: %d", res.TotalRecords),
		"Datos combinados de Tarificación y Detalle Recargas por MSISDN",
		fmt.Sprintf("Columnas disponibles: %s", strings.Join(res.Columns, ", ")))

	if len(res.Summary) > 0 {
		lines = append(lines, "", "ESTADÍSTICAS NUMÉRICAS:")
		for _, name := range []string{"Consumo MB", "Tarificacion", "Dias_Sin_Recarga"} {
			stats, ok := res.Summary[name]
			if !ok {
				continue
			}
			lines = append(lines,
				fmt.Sprintf("- %s:", name),
				fmt.Sprintf("  Total: %.2f", stats.Total),
				fmt.Sprintf("  Promedio: %.2f", stats.Average),
				fmt.Sprintf("  Máximo: %.2f", stats.Max),
				fmt.Sprintf("  Mínimo: %.2f", stats.Min))
		}
	}

	if res.StatusChart != nil && len(res.StatusChart.Buckets) > 0 {
		lines = append(lines, "", "DISTRIBUCIÓN POR CATEGORÍA:")
		for _, bucket := range res.StatusChart.Buckets {
			lines = append(lines, fmt.Sprintf("- %s: %d registros", bucket.Status, bucket.Count))
		}
	}

	if res.DailyChart != nil && len(res.DailyChart.Points) > 0 {
		lines = append(lines, "", "TENDENCIA TEMPORAL:")
		for _, point := range res.DailyChart.Points {
			lines = append(lines, fmt.Sprintf("- %s: %d registros", point.Label, point.Count))
		}
	}

	n := len(records)
	if n > sampleSize {
		n = sampleSize
	}
	if n > 0 {
		lines = append(lines, "", fmt.Sprintf("MUESTRA DE DATOS (primeros %d registros):", n))
		for i := 0; i < n; i++ {
			r := records[i]
			recharge := "N/A"
			if !r.LastRecharge.IsZero() {
				recharge = normalize.FormatISO(r.LastRecharge)
			}
			lines = append(lines, fmt.Sprintf(
				"Registro %d: MSISDN=%s, Oferta=%s, Consumo MB=%.2f, Tarificacion=%.2f, Última recarga=%s, Estado=%s",
				i+1, r.MSISDN, r.Offer, r.UsageMB, r.Tariff, recharge, r.Status))
		}
	}

	return strings.Join(lines, "\n")
}
