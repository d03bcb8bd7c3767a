// Package correlate joins the tariffing and recharge-history row sets by
// MSISDN into one canonical record per tariff row.
package correlate

import (
	"errors"
	"math"
	"time"

	"github.com/macroplay/insights/normalize"
)

// ErrEmptyInput is returned when either row set is empty; no correlation
// is possible and the caller should surface a user-facing message.
var ErrEmptyInput = errors.New("correlate: both input files must have rows")

// JoinedRecord is the canonical per-subscriber-period record. Recharge
// fields stay at their zero values when the MSISDN has no recharge
// history — that is a valid terminal state, not an error.
type JoinedRecord struct {
	MSISDN      string
	PeriodStart time.Time
	PeriodEnd   time.Time
	Offer       string
	UsageMB     float64
	Tariff      float64

	AltanUserID string
	IMSI        string
	RGU         string
	Client      string

	// From the most recent recharge row, when one exists.
	CutDate            time.Time
	LastConsumption    time.Time
	Activation         time.Time
	LastRecharge       time.Time
	Company            string
	Product            string
	Modality           string
	BracketRecharge    string
	BracketConsumption string
	Survival           string
}

// HasRecharge reports whether any recharge row matched this subscriber.
func (r JoinedRecord) HasRecharge() bool {
	return !r.LastRecharge.IsZero() || !r.CutDate.IsZero() ||
		r.Company != "" || r.Product != "" || r.BracketRecharge != ""
}

// Correlate joins the two row sets by MSISDN. Output cardinality equals
// len(tariff): every tariff row yields exactly one record, with recharge
// fields taken from that subscriber's most recent recharge entry.
func Correlate(tariff, recharge []normalize.RawRow) ([]JoinedRecord, error) {
	if len(tariff) == 0 || len(recharge) == 0 {
		return nil, ErrEmptyInput
	}

	index := buildRechargeIndex(recharge)

	joined := make([]JoinedRecord, 0, len(tariff))
	for _, row := range tariff {
		joined = append(joined, joinRow(row, index))
	}
	return joined, nil
}

// buildRechargeIndex groups recharge rows by MSISDN. A subscriber may
// have zero, one, or many entries; uniqueness is not guaranteed.
func buildRechargeIndex(recharge []normalize.RawRow) map[string][]normalize.RawRow {
	index := make(map[string][]normalize.RawRow, len(recharge))
	for _, row := range recharge {
		msisdn := normalize.String(row, fieldMSISDN...)
		if msisdn == "" {
			continue
		}
		index[msisdn] = append(index[msisdn], row)
	}
	return index
}

func joinRow(tarif normalize.RawRow, index map[string][]normalize.RawRow) JoinedRecord {
	msisdn := normalize.String(tarif, fieldMSISDN...)

	rec := JoinedRecord{
		MSISDN:      msisdn,
		Offer:       normalize.String(tarif, fieldOffer...),
		UsageMB:     usageMB(tarif),
		AltanUserID: normalize.String(tarif, fieldAltanUserID...),
		IMSI:        normalize.String(tarif, fieldIMSI...),
		RGU:         normalize.String(tarif, fieldRGU...),
		Client:      normalize.String(tarif, fieldClient...),
	}
	rec.PeriodStart, _ = dateField(tarif, fieldPeriodStart)
	rec.PeriodEnd, _ = dateField(tarif, fieldPeriodEnd)
	if f, ok := normalize.Float(tarif, fieldTariff...); ok {
		rec.Tariff = f
	}

	latest, ok := latestRecharge(index[msisdn])
	if !ok {
		return rec
	}

	rec.CutDate, _ = dateField(latest, fieldCutDate)
	rec.LastConsumption, _ = dateField(latest, fieldLastConsumption)
	rec.Activation, _ = dateField(latest, fieldActivation)
	rec.LastRecharge, _ = dateField(latest, fieldLastRecharge)
	rec.Company = normalize.String(latest, fieldCompany...)
	rec.Product = normalize.String(latest, fieldProduct...)
	rec.Modality = normalize.String(latest, fieldModality...)
	rec.BracketRecharge = normalize.String(latest, fieldBracketRecharge...)
	rec.BracketConsumption = normalize.String(latest, fieldBracketConsumo...)
	rec.Survival = normalize.String(latest, fieldSurvival...)
	return rec
}

// latestRecharge picks the candidate with the chronologically latest
// last-recharge date (falling back to the generic date field via the
// synonym list). Strictly-greater comparison: on an exact date tie the
// first row encountered wins.
func latestRecharge(candidates []normalize.RawRow) (normalize.RawRow, bool) {
	if len(candidates) == 0 {
		return nil, false
	}
	best := candidates[0]
	bestDate, _ := dateField(best, fieldLastRecharge)
	for _, c := range candidates[1:] {
		d, ok := dateField(c, fieldLastRecharge)
		if ok && d.After(bestDate) {
			best = c
			bestDate = d
		}
	}
	return best, true
}

// usageMB derives usage in megabytes from the first usable source field.
// The exports disagree on both naming and units, so this walks a fixed
// priority chain:
//
//	Cuota_Datos_Bytes  — bytes, divided by 1 MiB
//	Tot_Units_Cumul    — KB when the magnitude exceeds 100000, MB below
//	Consumo_MB         — already MB
//
// The 100000 cutoff is a preserved approximation; the source schema
// carries no unit metadata to do better with.
func usageMB(tarif normalize.RawRow) float64 {
	if bytes, ok := normalize.Float(tarif, fieldQuotaBytes...); ok && bytes > 0 {
		return round2(bytes / (1024 * 1024))
	}
	if units, ok := normalize.Float(tarif, fieldTotalUnits...); ok && units > 0 {
		if units > 100000 {
			return round2(units / 1024)
		}
		return round2(units)
	}
	if mb, ok := normalize.Float(tarif, fieldUsageMB...); ok && mb > 0 {
		return round2(mb)
	}
	return 0
}

func dateField(row normalize.RawRow, synonyms []string) (time.Time, bool) {
	v, ok := normalize.Lookup(row, synonyms...)
	if !ok {
		return time.Time{}, false
	}
	return normalize.ParseDate(v)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
