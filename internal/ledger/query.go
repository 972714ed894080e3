package ledger

import (
	"context"
	"fmt"
	"time"
)

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// Run is one stored sync outcome as returned to readers
type Run struct {
	ID              int64     `db:"id"`
	BatchID         string    `db:"batch_id"`
	PhotoPageURL    string    `db:"photo_page_url"`
	SyncDate        string    `db:"sync_date"`
	IdempotencyKey  string    `db:"idempotency_key"`
	Status          string    `db:"status"`
	ErrorMessage    *string   `db:"error_message"`
	Health          *int      `db:"health"`
	HistoryRecordID *string   `db:"history_record_id"`
	ProcessedAt     time.Time `db:"processed_at"`
}

// RunCursor marks the last row of a page, newest first
type RunCursor struct {
	ProcessedAt time.Time
	ID          int64
}

// RunFilter narrows ListRuns; empty fields are ignored
type RunFilter struct {
	BatchID      string
	PhotoPageURL string
	Status       string
	PageSize     int
	Cursor       *RunCursor
}

// ListRuns returns up to PageSize+1 runs ordered by processed_at DESC, id DESC.
// The extra row tells the caller whether another page exists.
func (s *Storage) ListRuns(ctx context.Context, filter RunFilter) ([]Run, error) {
	pageSize := filter.PageSize
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	if pageSize > MaxPageSize {
		pageSize = MaxPageSize
	}

	query := `
		SELECT
			id, batch_id, photo_page_url, sync_date::text AS sync_date, idempotency_key,
			status, error_message, health, history_record_id, processed_at
		FROM sync_runs
		WHERE 1=1
	`
	args := []any{}
	argIdx := 1

	if filter.BatchID != "" {
		query += fmt.Sprintf(" AND batch_id = $%d", argIdx)
		args = append(args, filter.BatchID)
		argIdx++
	}

	if filter.PhotoPageURL != "" {
		query += fmt.Sprintf(" AND photo_page_url = $%d", argIdx)
		args = append(args, filter.PhotoPageURL)
		argIdx++
	}

	if filter.Status != "" {
		query += fmt.Sprintf(" AND status = $%d", argIdx)
		args = append(args, filter.Status)
		argIdx++
	}

	if filter.Cursor != nil {
		query += fmt.Sprintf(" AND (processed_at, id) < ($%d, $%d)", argIdx, argIdx+1)
		args = append(args, filter.Cursor.ProcessedAt, filter.Cursor.ID)
		argIdx += 2
	}

	query += " ORDER BY processed_at DESC, id DESC"
	query += fmt.Sprintf(" LIMIT $%d", argIdx)
	args = append(args, pageSize+1)

	var runs []Run
	if err := s.db.SelectContext(ctx, &runs, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list sync runs: %w", err)
	}

	return runs, nil
}
