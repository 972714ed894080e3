// Package ledger keeps a Postgres audit trail of per-job sync outcomes.
package ledger

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"log/slog"
	"sort"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/cuongbtq/grow-sync/internal/domain"
	"github.com/cuongbtq/grow-sync/shared/postgresql"
)

//go:embed migrations/*.sql
var migrations embed.FS

// syncRun is one row of sync_runs
type syncRun struct {
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

const insertSyncRun = `
	INSERT INTO sync_runs (
		batch_id, photo_page_url, sync_date, idempotency_key,
		status, error_message, health, history_record_id, processed_at
	) VALUES (
		:batch_id, :photo_page_url, :sync_date, :idempotency_key,
		:status, :error_message, :health, :history_record_id, :processed_at
	)
`

type Storage struct {
	db     *sqlx.DB
	logger *slog.Logger
}

func NewStorage(pg *postgresql.Client, logger *slog.Logger) *Storage {
	return &Storage{
		db:     pg.GetDB(),
		logger: logger,
	}
}

// Migrate applies the embedded schema files in name order
func (s *Storage) Migrate(ctx context.Context) error {
	names, err := fs.Glob(migrations, "migrations/*.sql")
	if err != nil {
		return fmt.Errorf("failed to list migrations: %w", err)
	}
	sort.Strings(names)

	for _, name := range names {
		script, err := migrations.ReadFile(name)
		if err != nil {
			return fmt.Errorf("failed to read migration %s: %w", name, err)
		}
		if _, err := s.db.ExecContext(ctx, string(script)); err != nil {
			return fmt.Errorf("failed to apply migration %s: %w", name, err)
		}
		s.logger.Debug("Migration applied", slog.String("name", name))
	}

	return nil
}

// RecordResults stores every job outcome of a batch in one transaction
func (s *Storage) RecordResults(ctx context.Context, batchID string, records []domain.SyncRecord) error {
	if len(records) == 0 {
		return nil
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, r := range records {
		if _, err := tx.NamedExecContext(ctx, insertSyncRun, toRow(batchID, r)); err != nil {
			return fmt.Errorf("failed to insert sync run for %s: %w", r.PhotoPageURL, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit sync runs: %w", err)
	}

	return nil
}

func toRow(batchID string, r domain.SyncRecord) syncRun {
	return syncRun{
		BatchID:         batchID,
		PhotoPageURL:    r.PhotoPageURL,
		SyncDate:        r.Date,
		IdempotencyKey:  r.IdempotencyKey,
		Status:          r.Status,
		ErrorMessage:    nullable(r.ErrorMessage),
		Health:          r.Health,
		HistoryRecordID: nullable(r.HistoryRecordID),
		ProcessedAt:     r.ProcessedAt,
	}
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
