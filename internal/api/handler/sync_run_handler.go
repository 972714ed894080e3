package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/cuongbtq/grow-sync/internal/api/dto"
	"github.com/cuongbtq/grow-sync/internal/ledger"
	"github.com/cuongbtq/grow-sync/internal/security"
)

// ListSyncRuns handles GET /sync-runs
// The signature covers the raw query string, empty for an unfiltered first page
func (h *SyncRunHandler) ListSyncRuns(c *gin.Context) {
	// 1. Authenticate
	if err := security.Authenticate([]byte(c.Request.URL.RawQuery), h.secret, c.GetHeader(SignatureHeader)); err != nil {
		h.logger.Warn("Rejected ledger read",
			slog.String("reason", err.Error()),
			slog.String("ip", c.ClientIP()),
		)
		c.JSON(http.StatusUnauthorized, dto.ErrorResponse{Error: err.Error()})
		return
	}

	// 2. Parse query parameters
	var req dto.ListSyncRunsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		h.logger.Warn("Invalid query parameters", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "invalid query parameters: " + err.Error()})
		return
	}

	if req.PageSize <= 0 {
		req.PageSize = ledger.DefaultPageSize
	}

	// 3. Decode cursor for pagination
	cursor, err := DecodeRunCursor(req.Cursor)
	if err != nil {
		h.logger.Warn("Invalid cursor", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "invalid cursor"})
		return
	}

	// 4. Query the ledger
	runs, err := h.runs.ListRuns(c.Request.Context(), ledger.RunFilter{
		BatchID:      req.BatchID,
		PhotoPageURL: req.PhotoPageURL,
		Status:       req.Status,
		PageSize:     req.PageSize,
		Cursor:       cursor,
	})
	if err != nil {
		h.logger.Error("Failed to list sync runs", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, dto.ErrorResponse{Error: "failed to list sync runs"})
		return
	}

	// 5. Trim the look-ahead row and emit the next cursor
	hasMore := len(runs) > req.PageSize
	if hasMore {
		runs = runs[:req.PageSize]
	}

	resp := dto.ListSyncRunsResponse{Runs: make([]dto.SyncRunDTO, len(runs))}
	for i, run := range runs {
		resp.Runs[i] = toSyncRunDTO(run)
	}

	if hasMore {
		last := runs[len(runs)-1]
		resp.NextCursor = EncodeRunCursor(ledger.RunCursor{ProcessedAt: last.ProcessedAt, ID: last.ID})
	}

	c.JSON(http.StatusOK, resp)
}

func toSyncRunDTO(run ledger.Run) dto.SyncRunDTO {
	out := dto.SyncRunDTO{
		BatchID:        run.BatchID,
		PhotoPageURL:   run.PhotoPageURL,
		Date:           run.SyncDate,
		IdempotencyKey: run.IdempotencyKey,
		Status:         run.Status,
		Health:         run.Health,
		ProcessedAt:    run.ProcessedAt.UTC().Format(time.RFC3339),
	}
	if run.ErrorMessage != nil {
		out.Error = *run.ErrorMessage
	}
	if run.HistoryRecordID != nil {
		out.HistoryRecordID = *run.HistoryRecordID
	}
	return out
}
