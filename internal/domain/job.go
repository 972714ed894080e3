package domain

import (
	"crypto/sha256"
	"encoding/hex"
)

// Job is one photo to analyze, as received in an inbound batch.
// Validation tags are evaluated by the batch orchestrator before any job runs.
type Job struct {
	PhotoPageURL  string   `json:"photo_page_url" validate:"required,url"`
	PhotoFileURLs []string `json:"photo_file_urls" validate:"required,min=1,dive,url"`
	PhotoTitle    string   `json:"photo_title,omitempty"`
	Date          string   `json:"date" validate:"required,datetime=2006-01-02"`
	Angle         string   `json:"angle,omitempty" validate:"omitempty,oneof=top close under-canopy trichomes canopy bud-site full-plant deficiency tent stem roots other"`
	PlantID       string   `json:"plant_id,omitempty" validate:"omitempty,oneof=BLUE GREEN OUTDOOR-A OUTDOOR-B"`
	LogEntryURL   string   `json:"log_entry_url,omitempty" validate:"omitempty,url"`
	Stage         string   `json:"stage,omitempty"`
	RoomName      string   `json:"room_name,omitempty"`
	Fixture       string   `json:"fixture,omitempty"`
	PhotoperiodH  *float64 `json:"photoperiod_h,omitempty" validate:"omitempty,gt=0,lte=24"`
	Notes         string   `json:"notes,omitempty"`
}

// IdempotencyKey returns the history key for this job's natural key (photo page, date)
func (j Job) IdempotencyKey() string {
	return IdempotencyKey(j.PhotoPageURL, j.Date)
}

// IdempotencyKey hashes a record URL and a logical date into a stable hex key
func IdempotencyKey(recordURL, date string) string {
	sum := sha256.Sum256([]byte(recordURL + "|" + date))
	return hex.EncodeToString(sum[:])
}
