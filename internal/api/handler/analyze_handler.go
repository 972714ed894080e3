package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"

	"github.com/cuongbtq/grow-sync/internal/api/dto"
	"github.com/cuongbtq/grow-sync/internal/domain"
	"github.com/cuongbtq/grow-sync/internal/security"
)

// SignatureHeader carries the hex HMAC-SHA256 of the raw request body
const SignatureHeader = "X-Signature"

// Analyze handles POST /analyze
// Verifies the body signature, decodes the batch and runs it
func (h *AnalyzeHandler) Analyze(c *gin.Context) {
	// 1. Read the raw body once, bounded; the signature covers these exact bytes
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxBody)
	body, err := c.GetRawData()
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.logger.Warn("Request body too large",
				slog.Int64("limit", tooLarge.Limit),
				slog.String("ip", c.ClientIP()),
			)
			c.JSON(http.StatusRequestEntityTooLarge, dto.ErrorResponse{Error: "request body too large"})
			return
		}
		h.logger.Error("Failed to read request body", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "failed to read request body"})
		return
	}

	// 2. Authenticate
	if err := security.Authenticate(body, h.secret, c.GetHeader(SignatureHeader)); err != nil {
		h.logger.Warn("Rejected webhook",
			slog.String("reason", err.Error()),
			slog.String("ip", c.ClientIP()),
		)
		c.JSON(http.StatusUnauthorized, dto.ErrorResponse{Error: err.Error()})
		return
	}

	// 3. Decode and check the envelope
	var req dto.AnalyzeRequest
	if err := binding.JSON.BindBody(body, &req); err != nil {
		h.logger.Warn("Invalid request body", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "invalid request body: " + err.Error()})
		return
	}

	// 4. Run the batch
	resp, err := h.processor.ProcessBatch(c.Request.Context(), req.Jobs)
	if err != nil {
		var verr *domain.ValidationError
		switch {
		case errors.As(err, &verr):
			c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: verr.Error()})
		case errors.Is(err, domain.ErrConfiguration):
			h.logger.Error("Batch aborted", slog.String("error", err.Error()))
			c.JSON(http.StatusInternalServerError, dto.ErrorResponse{Error: domain.ErrConfiguration.Error()})
		default:
			h.logger.Error("Batch failed", slog.String("error", err.Error()))
			c.JSON(http.StatusInternalServerError, dto.ErrorResponse{Error: "internal error"})
		}
		return
	}

	c.JSON(http.StatusOK, resp)
}
