package domain

import "time"

// Job result statuses
const (
	JobStatusOK    = "ok"
	JobStatusError = "error"
)

// JobResult is the outcome of one job, echoed back to the caller
type JobResult struct {
	PhotoPageURL string     `json:"photo_page_url"`
	Status       string     `json:"status"`
	Error        string     `json:"error,omitempty"`
	Writeback    *Writeback `json:"writebacks,omitempty"`
}

// BatchResponse aggregates one result per input job, in input order
type BatchResponse struct {
	Results []JobResult `json:"results"`
	Errors  []string    `json:"errors"`
}

// SyncRecord is the per-job outcome handed to the ledger and event publisher
type SyncRecord struct {
	PhotoPageURL    string
	Date            string
	IdempotencyKey  string
	Status          string
	ErrorMessage    string
	Health          *int
	HistoryRecordID string
	ProcessedAt     time.Time
}
