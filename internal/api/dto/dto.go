package dto

import "github.com/cuongbtq/grow-sync/internal/domain"

// Envelope literals accepted on POST /analyze
const (
	ActionAnalyzePhotos = "analyze_photos"
	ScopePhotoPageDate  = "photo_page_url+date"
)

// AnalyzeRequest is the signed webhook body. Envelope fields are optional but
// must carry the expected literal when present; jobs are validated by the
// batch orchestrator.
type AnalyzeRequest struct {
	Action             string       `json:"action" binding:"omitempty,eq=analyze_photos"`
	Source             string       `json:"source,omitempty"`
	IdempotencyScope   string       `json:"idempotency_scope" binding:"omitempty,eq=photo_page_url+date"`
	RequestedFieldsOut []string     `json:"requested_fields_out,omitempty"`
	Jobs               []domain.Job `json:"jobs"`
}

// ErrorResponse is returned for every non-200 status
type ErrorResponse struct {
	Error string `json:"error"`
}

// HealthResponse is returned by /health and /ready
type HealthResponse struct {
	Status  string            `json:"status"`
	Service string            `json:"service"`
	Version string            `json:"version,omitempty"`
	Checks  map[string]string `json:"checks,omitempty"`
}

// ListSyncRunsRequest holds the query parameters of GET /sync-runs
type ListSyncRunsRequest struct {
	BatchID      string `form:"batch_id" binding:"omitempty,uuid"`
	PhotoPageURL string `form:"photo_page_url" binding:"omitempty,url"`
	Status       string `form:"status" binding:"omitempty,oneof=ok error"`
	PageSize     int    `form:"page_size" binding:"omitempty,min=1,max=100"`
	Cursor       string `form:"cursor"`
}

type ListSyncRunsResponse struct {
	Runs       []SyncRunDTO `json:"runs"`
	NextCursor string       `json:"next_cursor,omitempty"`
}

type SyncRunDTO struct {
	BatchID         string `json:"batch_id"`
	PhotoPageURL    string `json:"photo_page_url"`
	Date            string `json:"date"`
	IdempotencyKey  string `json:"idempotency_key"`
	Status          string `json:"status"`
	Error           string `json:"error,omitempty"`
	Health          *int   `json:"health,omitempty"`
	HistoryRecordID string `json:"history_record_id,omitempty"`
	ProcessedAt     string `json:"processed_at"`
}
