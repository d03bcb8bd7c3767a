package correlate

// ============================================================================
// FIELD SYNONYMS — canonical field → ordered accepted column names
// ============================================================================
// The two exports renamed columns across system migrations. Each list is
// ordered by priority: the newest naming first, legacy spellings after.
// Resolution itself lives in normalize.Lookup.
// ============================================================================

// Tariffing file columns.
var (
	fieldMSISDN      = []string{"MSISDN"}
	fieldPeriodStart = []string{"Fecha_Inicio_PF", "Fecha Inicial", "Fecha_Inicial"}
	fieldPeriodEnd   = []string{"Fecha_Fin_PF", "Fecha Fin", "Fecha_Fin"}
	fieldOffer       = []string{"OfferId", "RGU", "Oferta"}
	fieldTariff      = []string{"Tarificacion_PF", "Tarificacion", "Tarificación", "Precio"}
	fieldQuotaBytes  = []string{"Cuota_Datos_Bytes"}
	fieldTotalUnits  = []string{"Tot_Units_Cumul"}
	fieldUsageMB     = []string{"Consumo_MB", "Consumo MB"}
	fieldAltanUserID = []string{"Altan_Usr_ID"}
	fieldIMSI        = []string{"IMSI"}
	fieldRGU         = []string{"RGU"}
	fieldClient      = []string{"Cliente"}
)

// Recharge-history file columns.
var (
	fieldLastRecharge    = []string{"FECHA_ULT_RECARGA", "Fecha Ultima Recarga", "Fecha Última Recarga", "Fecha"}
	fieldCutDate         = []string{"FECHA_CORTE", "Fecha"}
	fieldLastConsumption = []string{"FECHA_ULT_CONSUMO", "Fecha Ultimo Consumo", "Fecha Último Consumo"}
	fieldActivation      = []string{"FECHA_ACTIVACION", "Fecha Activacion", "Fecha Activación"}
	fieldCompany         = []string{"COMPANY_NAME"}
	fieldProduct         = []string{"F_PRODUCTO"}
	fieldModality        = []string{"MODALIDAD"}
	fieldBracketRecharge = []string{"BRACKET_RECARGA"}
	fieldBracketConsumo  = []string{"BRACKET_CONSUMO"}
	fieldSurvival        = []string{"SURVIVAL"}
)
