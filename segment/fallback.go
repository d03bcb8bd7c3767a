package segment

import "fmt"

// ============================================================================
// RULE-BASED FALLBACK — deterministic six-segment taxonomy
// ============================================================================
// When no plan generator is configured, or generation fails, records are
// segmented by fixed rules scaled off the collection's mean usage. The
// branch order matters: a record takes the first segment it qualifies
// for, and a record with no recharge date never qualifies for a segment
// that requires one to be old.
// ============================================================================

// Fallback colors, one per taxonomy slot.
const (
	colorVIP      = "#FFD700"
	colorAtRisk   = "#FF4444"
	colorActive   = "#4CAF50"
	colorLoyal    = "#2196F3"
	colorInactive = "#999999"
	colorRegular  = "#FFA500"
)

// Canonical descriptions for the plan summary, keyed by segment name.
var fallbackDescriptions = map[string]string{
	"VIP Activos":            "Alto consumo MB y recarga reciente",
	"En Riesgo - Alto Valor": "Alto consumo MB pero recarga antigua",
	"Clientes Activos":       "Consumo medio MB y recarga reciente",
	"Clientes Leales":        "Bajo consumo MB pero recarga reciente",
	"Clientes Inactivos":     "Sin recarga reciente",
	"Clientes Regulares":     "Clientes regulares",
}

// fallbackSegment classifies one record by usage and recency.
func fallbackSegment(usageMB float64, days int, daysKnown bool, t thresholds) Segment {
	switch {
	case usageMB >= t.high && (!daysKnown || days <= 7):
		return Segment{
			Name:        "VIP Activos",
			Description: fmt.Sprintf("Alto consumo (%.0f MB) y recarga reciente", usageMB),
			Color:       colorVIP,
		}
	case usageMB >= t.high && daysKnown && days > 30:
		return Segment{
			Name:        "En Riesgo - Alto Valor",
			Description: fmt.Sprintf("Alto consumo (%.0f MB) pero sin recarga reciente (%d días)", usageMB, days),
			Color:       colorAtRisk,
		}
	case usageMB >= t.mean && (!daysKnown || days <= 15):
		return Segment{
			Name:        "Clientes Activos",
			Description: fmt.Sprintf("Consumo medio (%.0f MB) y recarga reciente", usageMB),
			Color:       colorActive,
		}
	case usageMB < t.low && (!daysKnown || days <= 7):
		return Segment{
			Name:        "Clientes Leales",
			Description: fmt.Sprintf("Bajo consumo (%.0f MB) pero recarga reciente", usageMB),
			Color:       colorLoyal,
		}
	case daysKnown && days > 30:
		return Segment{
			Name:        "Clientes Inactivos",
			Description: fmt.Sprintf("Sin recarga reciente (%d días)", days),
			Color:       colorInactive,
		}
	default:
		recency := "N/A"
		if daysKnown {
			recency = fmt.Sprintf("%d", days)
		}
		return Segment{
			Name:        "Clientes Regulares",
			Description: fmt.Sprintf("Consumo: %.0f MB, Días sin recarga: %s", usageMB, recency),
			Color:       colorRegular,
		}
	}
}

// applyFallback labels every record with the built-in taxonomy and
// collects the segments that actually occurred, in first-seen order.
func applyFallback(records []labelInput, t thresholds) *Outcome {
	out := &Outcome{Source: "fallback", Records: make([]Labeled, 0, len(records))}

	seen := make(map[string]bool)
	for _, in := range records {
		seg := fallbackSegment(in.usageMB, in.days, in.daysKnown, t)
		out.Records = append(out.Records, Labeled{
			Annotated: in.record,
			Segment:   seg.Name,
			Color:     seg.Color,
		})
		if !seen[seg.Name] {
			seen[seg.Name] = true
			out.Segments = append(out.Segments, Segment{
				Name:        seg.Name,
				Description: fallbackDescriptions[seg.Name],
				Color:       seg.Color,
			})
		}
	}
	return out
}
