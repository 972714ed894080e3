package analysis

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuongbtq/grow-sync/internal/domain"
)

func TestAnalyze_Defaults(t *testing.T) {
	wb := Analyze(domain.Job{Date: "2024-01-15"})

	require.NotNil(t, wb.Health)
	assert.Equal(t, 85, *wb.Health)
	assert.Equal(t, domain.SeverityLow, *wb.Severity)
	assert.Equal(t, domain.NextStepNone, *wb.NextStep)
	assert.Equal(t, domain.TrendImproving, *wb.Trend)
	assert.Equal(t, 31.0, *wb.DLIMol)
	assert.InDelta(t, 1.05, *wb.VPDKPa, 1e-9)
	assert.True(t, *wb.VPDOK)
	assert.True(t, *wb.DLIOK)
	assert.True(t, *wb.CO2OK)
	assert.Equal(t, "Vegetative growth looks strong. Health score at 85. DLI tracking at 31.0 mol with VPD 1.05 kPa.", *wb.Summary)
}

func TestAnalyze(t *testing.T) {
	tests := []struct {
		name         string
		job          domain.Job
		wantHealth   int
		wantSeverity string
		wantNext     string
		wantTrend    string
		wantDLIOK    bool
		wantVPDOK    bool
		wantCO2OK    bool
	}{
		{
			name:         "flower photoperiod under target",
			job:          domain.Job{Stage: "Flower", PhotoperiodH: ptr(12.0)},
			wantHealth:   73,
			wantSeverity: domain.SeverityMedium,
			wantNext:     domain.NextStepDim,
			wantTrend:    domain.TrendStable,
			wantDLIOK:    false,
			wantVPDOK:    true,
			wantCO2OK:    true,
		},
		{
			name:         "pests and deficiency",
			job:          domain.Job{Stage: "vegetative", Notes: "Spider mites found, leaves yellow"},
			wantHealth:   50,
			wantSeverity: domain.SeverityHigh,
			wantNext:     domain.NextStepDefol,
			wantTrend:    domain.TrendDeclining,
			wantDLIOK:    true,
			wantVPDOK:    true,
			wantCO2OK:    true,
		},
		{
			name:         "critical clone",
			job:          domain.Job{Stage: "clone", Notes: "thrips and aphids, deficiency, dry and crispy, light burn"},
			wantHealth:   34,
			wantSeverity: domain.SeverityCritical,
			wantNext:     domain.NextStepFlush,
			wantTrend:    domain.TrendDeclining,
			wantDLIOK:    false,
			wantVPDOK:    false,
			wantCO2OK:    true,
		},
		{
			name:         "raise note on seedling",
			job:          domain.Job{Stage: "seedling", Notes: "raise the lamp"},
			wantHealth:   85,
			wantSeverity: domain.SeverityLow,
			wantNext:     domain.NextStepRaiseLight,
			wantTrend:    domain.TrendImproving,
			wantDLIOK:    true,
			wantVPDOK:    true,
			wantCO2OK:    true,
		},
		{
			name:         "humid but improving",
			job:          domain.Job{Notes: "improving but humid"},
			wantHealth:   75,
			wantSeverity: domain.SeverityMedium,
			wantNext:     domain.NextStepFeed,
			wantTrend:    domain.TrendImproving,
			wantDLIOK:    true,
			wantVPDOK:    false,
			wantCO2OK:    true,
		},
		{
			name:         "vigorous with co2 issue",
			job:          domain.Job{Stage: "clone", Notes: "vigorous roots, co2 dropped overnight"},
			wantHealth:   90,
			wantSeverity: domain.SeverityLow,
			wantNext:     domain.NextStepIPM,
			wantTrend:    domain.TrendImproving,
			wantDLIOK:    true,
			wantVPDOK:    true,
			wantCO2OK:    false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wb := Analyze(tt.job)

			assert.Equal(t, tt.wantHealth, *wb.Health)
			assert.Equal(t, tt.wantSeverity, *wb.Severity)
			assert.Equal(t, tt.wantNext, *wb.NextStep)
			assert.Equal(t, tt.wantTrend, *wb.Trend)
			assert.Equal(t, tt.wantDLIOK, *wb.DLIOK)
			assert.Equal(t, tt.wantVPDOK, *wb.VPDOK)
			assert.Equal(t, tt.wantCO2OK, *wb.CO2OK)
		})
	}
}

func TestAnalyze_SummaryIncludesAngleAndNotes(t *testing.T) {
	wb := Analyze(domain.Job{Stage: "flower", Angle: "canopy", Notes: "  looks fine  "})

	assert.Contains(t, *wb.Summary, "Flower sites filling in.")
	assert.Contains(t, *wb.Summary, "Canopy height appears uniform.")
	assert.Contains(t, *wb.Summary, "Notes: looks fine")
}

func TestAnalyze_HealthWithinBounds(t *testing.T) {
	notes := []string{"", "mites", "yellow deficiency", "dry crispy", "wet", "excellent vigorous", "dim light burn", "stretch"}
	stages := []string{"", "vegetative", "flower", "clone", "seedling", "unknown"}

	for _, stage := range stages {
		for _, n := range notes {
			wb := Analyze(domain.Job{Stage: stage, Notes: n})
			assert.GreaterOrEqual(t, *wb.Health, 0)
			assert.LessOrEqual(t, *wb.Health, 100)
		}
	}
}

func TestAnalyze_Deterministic(t *testing.T) {
	job := domain.Job{Stage: "flower", Angle: "trichomes", Notes: "stretch", PhotoperiodH: ptr(12.0)}
	assert.Equal(t, Analyze(job), Analyze(job))
}
