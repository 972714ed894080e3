package router

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMiddlewareEngine(mw ...gin.HandlerFunc) *gin.Engine {
	r := gin.New()
	r.Use(mw...)
	r.GET("/ping", func(c *gin.Context) {
		c.String(http.StatusOK, c.GetString(requestIDKey))
	})
	return r
}

func TestRequestIDMiddleware(t *testing.T) {
	r := newMiddlewareEngine(RequestIDMiddleware())

	t.Run("generates id", func(t *testing.T) {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ping", nil))

		id := w.Header().Get(RequestIDHeader)
		_, err := uuid.Parse(id)
		require.NoError(t, err)
		assert.Equal(t, id, w.Body.String())
	})

	t.Run("propagates caller id", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/ping", nil)
		req.Header.Set(RequestIDHeader, "abc-123")
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)

		assert.Equal(t, "abc-123", w.Header().Get(RequestIDHeader))
		assert.Equal(t, "abc-123", w.Body.String())
	})
}

func TestRateLimitMiddleware(t *testing.T) {
	tests := []struct {
		name        string
		rps         float64
		burst       int
		bypass      string
		header      string
		requests    int
		wantLimited int
	}{
		{name: "within burst", rps: 1, burst: 3, requests: 3, wantLimited: 0},
		{name: "over burst", rps: 1, burst: 2, requests: 5, wantLimited: 3},
		{name: "bypass token", rps: 1, burst: 1, bypass: "let-me-in", header: "let-me-in", requests: 5, wantLimited: 0},
		{name: "wrong bypass token", rps: 1, burst: 1, bypass: "let-me-in", header: "nope", requests: 3, wantLimited: 2},
		{name: "disabled", rps: 0, burst: 0, requests: 10, wantLimited: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newMiddlewareEngine(RateLimitMiddleware(tt.rps, tt.burst, tt.bypass))

			limited := 0
			for i := 0; i < tt.requests; i++ {
				req := httptest.NewRequest(http.MethodGet, "/ping", nil)
				if tt.header != "" {
					req.Header.Set(BypassHeader, tt.header)
				}
				w := httptest.NewRecorder()
				r.ServeHTTP(w, req)
				if w.Code == http.StatusTooManyRequests {
					limited++
					assert.JSONEq(t, `{"error":"rate limit exceeded"}`, w.Body.String())
				}
			}

			assert.Equal(t, tt.wantLimited, limited)
		})
	}
}
