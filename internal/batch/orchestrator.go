// Package batch runs the analyze-and-sync pipeline for every job in a request.
package batch

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/cuongbtq/grow-sync/internal/analysis"
	"github.com/cuongbtq/grow-sync/internal/domain"
	"github.com/cuongbtq/grow-sync/internal/mapping"
	"github.com/cuongbtq/grow-sync/internal/notion"
	"github.com/cuongbtq/grow-sync/internal/upsert"
)

const (
	DefaultTimeout       = 120 * time.Second
	DefaultMaxJobs       = 100
	DefaultReportTimeout = 10 * time.Second

	// CallsPerJob is the number of paced store calls one job makes:
	// photo update, history lookup, history create or update
	CallsPerJob = 3
)

// MinTimeout is the shortest batch deadline under which maxJobs jobs can all
// finish when every store call waits minInterval for its slot. It adds a fifth
// of the paced time as headroom for latency and the odd retry.
func MinTimeout(maxJobs int, minInterval time.Duration) time.Duration {
	paced := time.Duration(maxJobs*CallsPerJob) * minInterval
	return paced + paced/5
}

// Upserter writes the primary record and the history record for a job
type Upserter interface {
	UpdateRecord(ctx context.Context, recordURL string, props notion.Properties) (notion.RecordID, error)
	UpsertRecord(ctx context.Context, req upsert.Request) (notion.RecordID, error)
}

// Recorder persists per-job outcomes
type Recorder interface {
	RecordResults(ctx context.Context, batchID string, records []domain.SyncRecord) error
}

// Notifier announces per-job outcomes
type Notifier interface {
	PublishResults(ctx context.Context, batchID string, records []domain.SyncRecord) error
}

// Config holds orchestrator settings
type Config struct {
	Timeout             time.Duration
	HistoryCollectionID string
	MaxJobs             int
	// ReportTimeout bounds each of the ledger write and the event publish
	ReportTimeout time.Duration
}

// Option customises an Orchestrator
type Option func(*Orchestrator)

func WithRecorder(r Recorder) Option {
	return func(o *Orchestrator) { o.recorder = r }
}

func WithNotifier(n Notifier) Option {
	return func(o *Orchestrator) { o.notifier = n }
}

// WithAnalyzer replaces the heuristic that produces each writeback
func WithAnalyzer(fn func(domain.Job) domain.Writeback) Option {
	return func(o *Orchestrator) { o.analyze = fn }
}

func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) { o.now = now }
}

// Orchestrator validates a batch and processes its jobs concurrently
type Orchestrator struct {
	cfg      Config
	upserter Upserter
	recorder Recorder
	notifier Notifier
	analyze  func(domain.Job) domain.Writeback
	now      func() time.Time
	validate *validator.Validate
	logger   *slog.Logger
}

// NewOrchestrator creates a new batch orchestrator
func NewOrchestrator(cfg Config, upserter Upserter, logger *slog.Logger, opts ...Option) *Orchestrator {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.MaxJobs <= 0 || cfg.MaxJobs > DefaultMaxJobs {
		cfg.MaxJobs = DefaultMaxJobs
	}
	if cfg.ReportTimeout <= 0 {
		cfg.ReportTimeout = DefaultReportTimeout
	}

	o := &Orchestrator{
		cfg:      cfg,
		upserter: upserter,
		analyze:  analysis.Analyze,
		now:      time.Now,
		validate: newValidator(),
		logger:   logger,
	}
	for _, opt := range opts {
		opt(o)
	}

	return o
}

// ProcessBatch validates jobs, then runs each one independently.
// Only validation and configuration problems are returned as errors;
// per-job failures are reported in the response.
func (o *Orchestrator) ProcessBatch(ctx context.Context, jobs []domain.Job) (*domain.BatchResponse, error) {
	if err := o.validateJobs(jobs); err != nil {
		return nil, err
	}

	if o.cfg.HistoryCollectionID == "" {
		return nil, fmt.Errorf("%w: history collection id is not set", domain.ErrConfiguration)
	}

	batchID := uuid.NewString()
	o.logger.Info("Processing batch",
		slog.String("batch_id", batchID),
		slog.Int("jobs", len(jobs)),
	)

	batchCtx, cancel := context.WithTimeout(ctx, o.cfg.Timeout)
	defer cancel()

	results := make([]domain.JobResult, len(jobs))
	records := make([]domain.SyncRecord, len(jobs))

	var g errgroup.Group
	for i, job := range jobs {
		g.Go(func() error {
			results[i], records[i] = o.processJob(batchCtx, job)
			return nil
		})
	}
	_ = g.Wait()

	resp := &domain.BatchResponse{
		Results: results,
		Errors:  []string{},
	}
	for _, r := range results {
		if r.Status == domain.JobStatusError {
			resp.Errors = append(resp.Errors, r.Error)
		}
	}

	o.logger.Info("Batch processed",
		slog.String("batch_id", batchID),
		slog.Int("jobs", len(jobs)),
		slog.Int("failed", len(resp.Errors)),
	)

	o.report(context.WithoutCancel(ctx), batchID, records)

	return resp, nil
}

// processJob runs analysis, mapping and both store writes for one job
func (o *Orchestrator) processJob(ctx context.Context, job domain.Job) (domain.JobResult, domain.SyncRecord) {
	record := domain.SyncRecord{
		PhotoPageURL:   job.PhotoPageURL,
		Date:           job.Date,
		IdempotencyKey: job.IdempotencyKey(),
	}

	historyID, wb, err := o.syncJob(ctx, job)
	record.ProcessedAt = o.now().UTC()

	if err != nil {
		o.logger.Error("Job failed",
			slog.String("photo_page_url", job.PhotoPageURL),
			slog.String("date", job.Date),
			slog.String("error", err.Error()),
		)

		record.Status = domain.JobStatusError
		record.ErrorMessage = err.Error()
		return domain.JobResult{
			PhotoPageURL: job.PhotoPageURL,
			Status:       domain.JobStatusError,
			Error:        err.Error(),
		}, record
	}

	record.Status = domain.JobStatusOK
	record.Health = wb.Health
	record.HistoryRecordID = historyID.String()

	return domain.JobResult{
		PhotoPageURL: job.PhotoPageURL,
		Status:       domain.JobStatusOK,
		Writeback:    &wb,
	}, record
}

func (o *Orchestrator) syncJob(ctx context.Context, job domain.Job) (notion.RecordID, domain.Writeback, error) {
	// Step 1: Analyze
	wb := o.analyze(job)

	// Step 2: Map to both collections
	photoProps, err := mapping.PhotoProperties(wb, mapping.PhotoContext{ReviewedAt: o.now()})
	if err != nil {
		return "", wb, fmt.Errorf("failed to map photo properties: %w", err)
	}

	historyProps, err := mapping.HistoryProperties(job, wb)
	if err != nil {
		return "", wb, fmt.Errorf("failed to map history properties: %w", err)
	}

	// Step 3: Update the photo record
	if _, err := o.upserter.UpdateRecord(ctx, job.PhotoPageURL, photoProps); err != nil {
		return "", wb, err
	}

	// Step 4: Upsert the history record keyed by (photo, date)
	historyID, err := o.upserter.UpsertRecord(ctx, upsert.Request{
		Key:        job.IdempotencyKey(),
		SourceURL:  job.PhotoPageURL,
		Properties: historyProps,
	})
	if err != nil {
		return "", wb, err
	}

	return historyID, wb, nil
}

// report hands outcomes to the ledger and the event feed; failures are only logged.
// ctx is detached from the request, so each side effect gets its own deadline.
func (o *Orchestrator) report(ctx context.Context, batchID string, records []domain.SyncRecord) {
	if o.recorder != nil {
		recordCtx, cancel := context.WithTimeout(ctx, o.cfg.ReportTimeout)
		err := o.recorder.RecordResults(recordCtx, batchID, records)
		cancel()
		if err != nil {
			o.logger.Warn("Failed to record batch results",
				slog.String("batch_id", batchID),
				slog.String("error", err.Error()),
			)
		}
	}

	if o.notifier != nil {
		publishCtx, cancel := context.WithTimeout(ctx, o.cfg.ReportTimeout)
		err := o.notifier.PublishResults(publishCtx, batchID, records)
		cancel()
		if err != nil {
			o.logger.Warn("Failed to publish batch results",
				slog.String("batch_id", batchID),
				slog.String("error", err.Error()),
			)
		}
	}
}
