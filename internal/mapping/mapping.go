// Package mapping turns flat analysis results into typed store properties.
package mapping

import (
	"time"

	"github.com/cuongbtq/grow-sync/internal/domain"
	"github.com/cuongbtq/grow-sync/internal/notion"
)

// Schema fixes the property kind for known field names
type Schema map[string]notion.Kind

// Field names that only exist on the target collections
const (
	FieldNextStepSelect  = "AI Next Step (sel)"
	FieldAIStatus        = "AI Status"
	FieldReviewedAt      = "Reviewed at"
	FieldName            = "Name"
	FieldDate            = "Date"
	FieldRelatedPhoto    = "Related Photo"
	FieldRelatedLogEntry = "Related Log Entry"
	FieldSubjectID       = "userDefined:ID"
	FieldIdempotencyKey  = "Idempotency Key"
	FieldStatus          = "Status"

	StatusReviewed = "Reviewed"
	StatusComplete = "Complete"
)

// PhotoSchema describes the photos collection
var PhotoSchema = Schema{
	domain.FieldSummary:  notion.KindRichText,
	domain.FieldNextStep: notion.KindRichText,
	FieldNextStepSelect:  notion.KindSelect,
	domain.FieldTrend:    notion.KindSelect,
	domain.FieldSeverity: notion.KindSelect,
	domain.FieldHealth:   notion.KindNumber,
	domain.FieldDLIMol:   notion.KindNumber,
	domain.FieldVPDKPa:   notion.KindNumber,
	domain.FieldVPDOK:    notion.KindCheckbox,
	domain.FieldDLIOK:    notion.KindCheckbox,
	domain.FieldCO2OK:    notion.KindCheckbox,
	FieldReviewedAt:      notion.KindDate,
	FieldAIStatus:        notion.KindStatus,
}

// HistorySchema describes the history collection
var HistorySchema = Schema{
	FieldName:            notion.KindTitle,
	FieldDate:            notion.KindDate,
	FieldRelatedPhoto:    notion.KindRelation,
	FieldRelatedLogEntry: notion.KindRelation,
	FieldSubjectID:       notion.KindRichText,
	FieldIdempotencyKey:  notion.KindRichText,
	domain.FieldSummary:  notion.KindRichText,
	domain.FieldHealth:   notion.KindNumber,
	domain.FieldDLIMol:   notion.KindNumber,
	domain.FieldVPDKPa:   notion.KindNumber,
	domain.FieldVPDOK:    notion.KindCheckbox,
	domain.FieldDLIOK:    notion.KindCheckbox,
	domain.FieldCO2OK:    notion.KindCheckbox,
	domain.FieldSeverity: notion.KindSelect,
	FieldStatus:          notion.KindStatus,
}

// PhotoContext carries the values stamped on every reviewed photo
type PhotoContext struct {
	ReviewedAt time.Time
}

// PhotoFields flattens a writeback into photo collection fields.
// The next step is written both as a select and as text.
func PhotoFields(wb domain.Writeback, pc PhotoContext) map[string]any {
	fields := wb.Fields()
	if step, ok := fields[domain.FieldNextStep]; ok {
		fields[FieldNextStepSelect] = step
	}
	fields[FieldAIStatus] = StatusReviewed
	fields[FieldReviewedAt] = pc.ReviewedAt.UTC().Format(time.RFC3339)
	return fields
}

// PhotoProperties maps a writeback onto the photos collection
func PhotoProperties(wb domain.Writeback, pc PhotoContext) (notion.Properties, error) {
	return Map(PhotoFields(wb, pc), PhotoSchema)
}

// HistoryFields builds the history record fields for a job and its writeback
func HistoryFields(job domain.Job, wb domain.Writeback) map[string]any {
	fields := map[string]any{
		FieldName:         DisplayName(job),
		FieldRelatedPhoto: []string{job.PhotoPageURL},
		FieldDate:         job.Date,
		FieldStatus:       StatusComplete,
	}
	if job.LogEntryURL != "" {
		fields[FieldRelatedLogEntry] = []string{job.LogEntryURL}
	}
	if job.PlantID != "" {
		fields[FieldSubjectID] = job.PlantID
	}

	for name, value := range wb.Fields() {
		switch name {
		case domain.FieldNextStep, domain.FieldTrend:
			// photos only
		default:
			fields[name] = value
		}
	}

	return fields
}

// HistoryProperties maps a job and its writeback onto the history collection
func HistoryProperties(job domain.Job, wb domain.Writeback) (notion.Properties, error) {
	return Map(HistoryFields(job, wb), HistorySchema)
}

// DisplayName joins the present subject id, date and angle with " - "
func DisplayName(job domain.Job) string {
	name := ""
	for _, part := range []string{job.PlantID, job.Date, job.Angle} {
		if part == "" {
			continue
		}
		if name != "" {
			name += " - "
		}
		name += part
	}
	return name
}
