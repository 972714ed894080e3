// Package analysis scores a photo job against stage targets for light and vapour pressure.
package analysis

import (
	"math"
	"strconv"
	"strings"

	"github.com/cuongbtq/grow-sync/internal/domain"
)

type stageTarget struct {
	dli     float64
	vpdMin  float64
	vpdMax  float64
	summary string
}

const defaultStage = "vegetative"

var stageTargets = map[string]stageTarget{
	"vegetative": {dli: 32, vpdMin: 0.9, vpdMax: 1.2, summary: "Vegetative growth looks strong."},
	"flower":     {dli: 38, vpdMin: 1.1, vpdMax: 1.4, summary: "Flower sites filling in."},
	"clone":      {dli: 20, vpdMin: 0.8, vpdMax: 1.0, summary: "Clones acclimating."},
	"seedling":   {dli: 22, vpdMin: 0.8, vpdMax: 1.0, summary: "Seedlings establishing."},
}

var angleNotes = map[string]string{
	"under-canopy": "Under-canopy airflow looks clear.",
	"trichomes":    "Trichome development is on track.",
	"bud-site":     "Bud site spacing is even across the canopy.",
	"canopy":       "Canopy height appears uniform.",
	"full-plant":   "Full plant posture is upright and healthy.",
}

var stageNextStep = map[string]string{
	"vegetative": domain.NextStepRaiseLight,
	"flower":     domain.NextStepDim,
	"clone":      domain.NextStepIPM,
	"seedling":   domain.NextStepFeed,
}

var (
	lowHumidityWords = []string{"dry", "crispy", "low humidity"}
	pestWords        = []string{"mite", "pest", "thrip", "aphid"}
)

const (
	baseHealth = 85
	minHealth  = 10
	maxHealth  = 100
)

// Analyze derives the writeback for a job from its stage, photoperiod and notes.
// It is deterministic and performs no I/O.
func Analyze(job domain.Job) domain.Writeback {
	stage := strings.ToLower(strings.TrimSpace(job.Stage))
	notes := strings.ToLower(job.Notes)

	target, ok := stageTargets[stage]
	if !ok {
		target = stageTargets[defaultStage]
	}

	dli := computeDLI(job.PhotoperiodH, stage, notes, target)
	vpd := computeVPD(notes, target)
	health := computeHealth(notes, dli, vpd, target)
	severity := severityFor(health)

	summary := buildSummary(job, health, dli, vpd, target)
	nextStep := nextStepFor(stage, notes, health, severity)
	trend := trendFor(notes, health)

	vpdOK := vpd >= target.vpdMin && vpd <= target.vpdMax
	dliOK := math.Abs(dli-target.dli) <= 4
	co2OK := !strings.Contains(notes, "co2")

	return domain.Writeback{
		Summary:  &summary,
		Health:   &health,
		NextStep: &nextStep,
		VPDOK:    &vpdOK,
		DLIOK:    &dliOK,
		CO2OK:    &co2OK,
		Trend:    &trend,
		DLIMol:   ptr(round(dli, 1)),
		VPDKPa:   ptr(round(vpd, 2)),
		Severity: &severity,
	}
}

func computeDLI(photoperiod *float64, stage, notes string, target stageTarget) float64 {
	if photoperiod != nil {
		intensity := 1.8
		if stage == "flower" {
			intensity = 2.2
		}
		return *photoperiod * intensity
	}

	switch {
	case strings.Contains(notes, "dim"), strings.Contains(notes, "light burn"):
		return target.dli - 6
	case strings.Contains(notes, "stretch"), strings.Contains(notes, "lagging"):
		return target.dli + 5
	}

	return target.dli - 1
}

func computeVPD(notes string, target stageTarget) float64 {
	switch {
	case containsAny(notes, lowHumidityWords):
		return target.vpdMax + 0.2
	case strings.Contains(notes, "humid"), strings.Contains(notes, "wet"):
		return math.Max(target.vpdMin-0.2, 0.5)
	}
	return (target.vpdMin + target.vpdMax) / 2
}

func computeHealth(notes string, dli, vpd float64, target stageTarget) int {
	score := baseHealth

	diff := math.Abs(dli - target.dli)
	if diff > 8 {
		score -= 12
	} else if diff > 4 {
		score -= 6
	}

	if vpd < target.vpdMin-0.15 || vpd > target.vpdMax+0.15 {
		score -= 10
	}

	if containsAny(notes, pestWords) {
		score -= 20
	}
	if strings.Contains(notes, "deficiency") || strings.Contains(notes, "yellow") {
		score -= 15
	}
	if strings.Contains(notes, "excellent") || strings.Contains(notes, "vigorous") {
		score += 5
	}

	return min(max(score, minHealth), maxHealth)
}

func severityFor(health int) string {
	switch {
	case health >= 80:
		return domain.SeverityLow
	case health >= 60:
		return domain.SeverityMedium
	case health >= 40:
		return domain.SeverityHigh
	default:
		return domain.SeverityCritical
	}
}

func nextStepFor(stage, notes string, health int, severity string) string {
	switch severity {
	case domain.SeverityCritical:
		return domain.NextStepFlush
	case domain.SeverityHigh:
		return domain.NextStepDefol
	}

	if strings.Contains(notes, "raise") {
		return domain.NextStepRaiseLight
	}
	if step, ok := stageNextStep[stage]; ok {
		return step
	}
	if health >= baseHealth {
		return domain.NextStepNone
	}
	return domain.NextStepFeed
}

func trendFor(notes string, health int) string {
	switch {
	case strings.Contains(notes, "improv"):
		return domain.TrendImproving
	case strings.Contains(notes, "wors"):
		return domain.TrendDeclining
	case health >= 80:
		return domain.TrendImproving
	case health <= 55:
		return domain.TrendDeclining
	default:
		return domain.TrendStable
	}
}

func buildSummary(job domain.Job, health int, dli, vpd float64, target stageTarget) string {
	parts := []string{target.summary}

	if note, ok := angleNotes[job.Angle]; ok {
		parts = append(parts, note)
	}

	parts = append(parts,
		"Health score at "+strconv.Itoa(health)+".",
		"DLI tracking at "+strconv.FormatFloat(dli, 'f', 1, 64)+" mol with VPD "+strconv.FormatFloat(vpd, 'f', 2, 64)+" kPa.",
	)

	if note := strings.TrimSpace(job.Notes); note != "" {
		parts = append(parts, "Notes: "+note)
	}

	return strings.Join(parts, " ")
}

func containsAny(s string, words []string) bool {
	for _, w := range words {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}

func ptr[T any](v T) *T {
	return &v
}
