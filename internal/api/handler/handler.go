package handler

import (
	"context"
	"log/slog"

	"github.com/cuongbtq/grow-sync/internal/domain"
	"github.com/cuongbtq/grow-sync/internal/ledger"
)

// BatchProcessor runs a validated batch of jobs
type BatchProcessor interface {
	ProcessBatch(ctx context.Context, jobs []domain.Job) (*domain.BatchResponse, error)
}

// HealthChecker reports whether a dependency is usable
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// RunLister reads stored sync outcomes
type RunLister interface {
	ListRuns(ctx context.Context, filter ledger.RunFilter) ([]ledger.Run, error)
}

// RateLimitConfig controls the inbound webhook limiter
type RateLimitConfig struct {
	RPS         float64
	Burst       int
	BypassToken string
}

// DefaultMaxBodyBytes is used when Dependencies.MaxBodyBytes is unset
const DefaultMaxBodyBytes = 1 << 20

// Dependencies holds all dependencies needed by handlers
type Dependencies struct {
	Logger       *slog.Logger
	ServiceName  string
	Version      string
	HMACSecret   string
	MaxBodyBytes int64
	Processor    BatchProcessor
	// Checks are run by /ready, keyed by dependency name
	Checks map[string]HealthChecker
	// Runs is nil when the ledger is disabled
	Runs      RunLister
	RateLimit RateLimitConfig
}

// AnalyzeHandler handles the signed analyze webhook
type AnalyzeHandler struct {
	logger    *slog.Logger
	secret    string
	maxBody   int64
	processor BatchProcessor
}

// NewAnalyzeHandler creates a new AnalyzeHandler instance
func NewAnalyzeHandler(deps *Dependencies) *AnalyzeHandler {
	maxBody := deps.MaxBodyBytes
	if maxBody <= 0 {
		maxBody = DefaultMaxBodyBytes
	}

	return &AnalyzeHandler{
		logger:    deps.Logger,
		secret:    deps.HMACSecret,
		maxBody:   maxBody,
		processor: deps.Processor,
	}
}

// HealthHandler serves liveness and readiness checks
type HealthHandler struct {
	service string
	version string
	checks  map[string]HealthChecker
}

// NewHealthHandler creates a new HealthHandler instance
func NewHealthHandler(deps *Dependencies) *HealthHandler {
	return &HealthHandler{
		service: deps.ServiceName,
		version: deps.Version,
		checks:  deps.Checks,
	}
}

// SyncRunHandler serves the ledger read endpoint
type SyncRunHandler struct {
	logger *slog.Logger
	secret string
	runs   RunLister
}

// NewSyncRunHandler creates a new SyncRunHandler instance
func NewSyncRunHandler(deps *Dependencies) *SyncRunHandler {
	return &SyncRunHandler{
		logger: deps.Logger,
		secret: deps.HMACSecret,
		runs:   deps.Runs,
	}
}
