package domain

// Writeback field names, shared by the analysis output and the target schemas
const (
	FieldSummary  = "AI Summary"
	FieldHealth   = "Health 0-100"
	FieldNextStep = "AI Next Step"
	FieldVPDOK    = "VPD OK"
	FieldDLIOK    = "DLI OK"
	FieldCO2OK    = "CO2 OK"
	FieldTrend    = "Trend"
	FieldDLIMol   = "DLI mol"
	FieldVPDKPa   = "VPD kPa"
	FieldSeverity = "Sev"
)

// Next step values understood by the photos collection
const (
	NextStepNone       = "None"
	NextStepRHUp       = "RH up"
	NextStepRHDown     = "RH down"
	NextStepDim        = "Dim"
	NextStepRaiseLight = "Raise light"
	NextStepFeed       = "Feed"
	NextStepFlush      = "Flush"
	NextStepIPM        = "IPM"
	NextStepDefol      = "Defol"
	NextStepStake      = "Stake"
)

const (
	TrendImproving = "Improving"
	TrendStable    = "Stable"
	TrendDeclining = "Declining"
)

const (
	SeverityLow      = "Low"
	SeverityMedium   = "Medium"
	SeverityHigh     = "High"
	SeverityCritical = "Critical"
)

// Writeback is the flat analysis result for one job. Nil fields are absent.
type Writeback struct {
	Summary  *string  `json:"AI Summary,omitempty"`
	Health   *int     `json:"Health 0-100,omitempty"`
	NextStep *string  `json:"AI Next Step,omitempty"`
	VPDOK    *bool    `json:"VPD OK,omitempty"`
	DLIOK    *bool    `json:"DLI OK,omitempty"`
	CO2OK    *bool    `json:"CO2 OK,omitempty"`
	Trend    *string  `json:"Trend,omitempty"`
	DLIMol   *float64 `json:"DLI mol,omitempty"`
	VPDKPa   *float64 `json:"VPD kPa,omitempty"`
	Severity *string  `json:"Sev,omitempty"`
}

// Fields flattens the present fields into a name/value map
func (w Writeback) Fields() map[string]any {
	fields := make(map[string]any)
	if w.Summary != nil {
		fields[FieldSummary] = *w.Summary
	}
	if w.Health != nil {
		fields[FieldHealth] = *w.Health
	}
	if w.NextStep != nil {
		fields[FieldNextStep] = *w.NextStep
	}
	if w.VPDOK != nil {
		fields[FieldVPDOK] = *w.VPDOK
	}
	if w.DLIOK != nil {
		fields[FieldDLIOK] = *w.DLIOK
	}
	if w.CO2OK != nil {
		fields[FieldCO2OK] = *w.CO2OK
	}
	if w.Trend != nil {
		fields[FieldTrend] = *w.Trend
	}
	if w.DLIMol != nil {
		fields[FieldDLIMol] = *w.DLIMol
	}
	if w.VPDKPa != nil {
		fields[FieldVPDKPa] = *w.VPDKPa
	}
	if w.Severity != nil {
		fields[FieldSeverity] = *w.Severity
	}
	return fields
}
