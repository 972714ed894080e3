package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/cuongbtq/grow-sync/internal/api/dto"
	"github.com/cuongbtq/grow-sync/internal/domain"
	"github.com/cuongbtq/grow-sync/internal/security"
)

const testSecret = "0123456789abcdef0123456789abcdef"

type mockProcessor struct {
	mock.Mock
}

func (m *mockProcessor) ProcessBatch(ctx context.Context, jobs []domain.Job) (*domain.BatchResponse, error) {
	args := m.Called(ctx, jobs)
	resp, _ := args.Get(0).(*domain.BatchResponse)
	return resp, args.Error(1)
}

type checkFunc func(ctx context.Context) error

func (f checkFunc) HealthCheck(ctx context.Context) error { return f(ctx) }

func init() {
	gin.SetMode(gin.TestMode)
}

func newEngine(proc BatchProcessor, checks map[string]HealthChecker) *gin.Engine {
	return newEngineWithLimit(proc, checks, 0)
}

func newEngineWithLimit(proc BatchProcessor, checks map[string]HealthChecker, maxBody int64) *gin.Engine {
	deps := &Dependencies{
		Logger:       slog.New(slog.NewTextHandler(io.Discard, nil)),
		ServiceName:  "grow-sync",
		Version:      "test",
		HMACSecret:   testSecret,
		MaxBodyBytes: maxBody,
		Processor:    proc,
		Checks:       checks,
	}

	r := gin.New()
	r.POST("/analyze", NewAnalyzeHandler(deps).Analyze)
	health := NewHealthHandler(deps)
	r.GET("/health", health.Health)
	r.GET("/ready", health.Ready)
	return r
}

func signedRequest(t *testing.T, body []byte, signature string) *http.Request {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/analyze", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if signature != "" {
		req.Header.Set("x-signature", signature)
	}
	return req
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var resp dto.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp.Error
}

const validBody = `{"action":"analyze_photos","idempotency_scope":"photo_page_url+date","jobs":[{"photo_page_url":"https://store/photo-0123456789abcdef0123456789abcdef","photo_file_urls":["https://files/a.jpg"],"date":"2024-01-15"}]}`

func TestAnalyze_Success(t *testing.T) {
	proc := &mockProcessor{}
	health := 85
	proc.On("ProcessBatch", mock.Anything, mock.MatchedBy(func(jobs []domain.Job) bool {
		return len(jobs) == 1 && jobs[0].Date == "2024-01-15"
	})).Return(&domain.BatchResponse{
		Results: []domain.JobResult{{
			PhotoPageURL: "https://store/photo-0123456789abcdef0123456789abcdef",
			Status:       domain.JobStatusOK,
			Writeback:    &domain.Writeback{Health: &health},
		}},
		Errors: []string{},
	}, nil)

	body := []byte(validBody)
	w := httptest.NewRecorder()
	newEngine(proc, nil).ServeHTTP(w, signedRequest(t, body, security.Sign(body, testSecret)))

	require.Equal(t, http.StatusOK, w.Code)

	var resp domain.BatchResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Results, 1)
	assert.Equal(t, domain.JobStatusOK, resp.Results[0].Status)
	assert.NotNil(t, resp.Errors)
	assert.Contains(t, w.Body.String(), `"errors":[]`)
	proc.AssertExpectations(t)
}

func TestAnalyze_Authentication(t *testing.T) {
	body := []byte(validBody)
	tampered := append([]byte{}, body...)
	tampered[len(tampered)-3] = ' '

	tests := []struct {
		name      string
		body      []byte
		signature string
		wantError string
	}{
		{name: "missing signature", body: body, signature: "", wantError: "unauthorized"},
		{name: "wrong secret", body: body, signature: security.Sign(body, "another-secret-another-secret-xx"), wantError: "bad signature"},
		{name: "tampered body", body: tampered, signature: security.Sign(body, testSecret), wantError: "bad signature"},
		{name: "non hex signature", body: body, signature: "zz", wantError: "bad signature"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			proc := &mockProcessor{}
			w := httptest.NewRecorder()
			newEngine(proc, nil).ServeHTTP(w, signedRequest(t, tt.body, tt.signature))

			assert.Equal(t, http.StatusUnauthorized, w.Code)
			assert.Equal(t, tt.wantError, decodeError(t, w))
			proc.AssertNotCalled(t, "ProcessBatch", mock.Anything, mock.Anything)
		})
	}
}

func TestAnalyze_BodyLimit(t *testing.T) {
	oversized := []byte(`{"jobs":[],"padding":"` + strings.Repeat("x", DefaultMaxBodyBytes) + `"}`)

	tests := []struct {
		name    string
		maxBody int64
		body    []byte
	}{
		{name: "configured limit", maxBody: 64, body: []byte(validBody)},
		{name: "default limit", maxBody: 0, body: oversized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			proc := &mockProcessor{}
			w := httptest.NewRecorder()
			newEngineWithLimit(proc, nil, tt.maxBody).ServeHTTP(w, signedRequest(t, tt.body, security.Sign(tt.body, testSecret)))

			assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
			assert.Equal(t, "request body too large", decodeError(t, w))
			proc.AssertNotCalled(t, "ProcessBatch", mock.Anything, mock.Anything)
		})
	}
}

func TestAnalyze_BodyAtLimitIsAccepted(t *testing.T) {
	proc := &mockProcessor{}
	proc.On("ProcessBatch", mock.Anything, mock.Anything).Return(&domain.BatchResponse{Results: []domain.JobResult{}, Errors: []string{}}, nil)

	body := []byte(validBody)
	w := httptest.NewRecorder()
	newEngineWithLimit(proc, nil, int64(len(body))).ServeHTTP(w, signedRequest(t, body, security.Sign(body, testSecret)))

	assert.Equal(t, http.StatusOK, w.Code)
	proc.AssertExpectations(t)
}

func TestAnalyze_BadEnvelope(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{name: "malformed json", body: `{"jobs":[`},
		{name: "wrong action", body: `{"action":"delete_everything","jobs":[]}`},
		{name: "wrong idempotency scope", body: `{"idempotency_scope":"photo_page_url","jobs":[]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			proc := &mockProcessor{}
			body := []byte(tt.body)
			w := httptest.NewRecorder()
			newEngine(proc, nil).ServeHTTP(w, signedRequest(t, body, security.Sign(body, testSecret)))

			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.NotEmpty(t, decodeError(t, w))
			proc.AssertNotCalled(t, "ProcessBatch", mock.Anything, mock.Anything)
		})
	}
}

func TestAnalyze_ProcessorErrors(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantError  string
	}{
		{
			name:       "validation",
			err:        domain.NewValidationError("jobs: at least 1 job is required"),
			wantStatus: http.StatusBadRequest,
			wantError:  "jobs: at least 1 job is required",
		},
		{
			name:       "configuration",
			err:        fmt.Errorf("history collection id is not set: %w", domain.ErrConfiguration),
			wantStatus: http.StatusInternalServerError,
			wantError:  "configuration error",
		},
		{
			name:       "unexpected",
			err:        errors.New("boom"),
			wantStatus: http.StatusInternalServerError,
			wantError:  "internal error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			proc := &mockProcessor{}
			proc.On("ProcessBatch", mock.Anything, mock.Anything).Return(nil, tt.err)

			body := []byte(validBody)
			w := httptest.NewRecorder()
			newEngine(proc, nil).ServeHTTP(w, signedRequest(t, body, security.Sign(body, testSecret)))

			assert.Equal(t, tt.wantStatus, w.Code)
			assert.Equal(t, tt.wantError, decodeError(t, w))
		})
	}
}

func TestHealth(t *testing.T) {
	w := httptest.NewRecorder()
	newEngine(&mockProcessor{}, nil).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	require.Equal(t, http.StatusOK, w.Code)

	var resp dto.HealthResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "healthy", resp.Status)
	assert.Equal(t, "grow-sync", resp.Service)
}

func TestReady(t *testing.T) {
	ok := checkFunc(func(context.Context) error { return nil })
	down := checkFunc(func(context.Context) error { return errors.New("connection refused") })

	tests := []struct {
		name       string
		checks     map[string]HealthChecker
		wantStatus int
		wantChecks map[string]string
	}{
		{
			name:       "no checks",
			wantStatus: http.StatusOK,
			wantChecks: nil,
		},
		{
			name:       "all healthy",
			checks:     map[string]HealthChecker{"database": ok, "rabbitmq": ok},
			wantStatus: http.StatusOK,
			wantChecks: map[string]string{"database": "ok", "rabbitmq": "ok"},
		},
		{
			name:       "one failing",
			checks:     map[string]HealthChecker{"database": down, "rabbitmq": ok},
			wantStatus: http.StatusServiceUnavailable,
			wantChecks: map[string]string{"database": "connection refused", "rabbitmq": "ok"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			newEngine(&mockProcessor{}, tt.checks).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ready", nil))

			require.Equal(t, tt.wantStatus, w.Code)

			var resp dto.HealthResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			if tt.wantChecks == nil {
				assert.Empty(t, resp.Checks)
			} else {
				assert.Equal(t, tt.wantChecks, resp.Checks)
			}
		})
	}
}
