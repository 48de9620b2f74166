package logger

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	obscontext "github.com/smallbiznis/invoicer/internal/observability/context"
	"github.com/smallbiznis/invoicer/pkg/telemetry/correlation"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap/zapcore"
)

func TestGinMiddlewareAssignsIDs(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(GinMiddleware(MiddlewareConfig{}))

	var requestID, correlationID string
	r.GET("/ping", func(c *gin.Context) {
		requestID = obscontext.RequestIDFromContext(c.Request.Context())
		correlationID = correlation.ExtractCorrelationID(c.Request.Context())
		c.Status(http.StatusNoContent)
	})

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set(correlation.HeaderName, "corr-1")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.NotEmpty(t, requestID)
	assert.Equal(t, requestID, w.Header().Get(requestIDHeader))
	assert.Equal(t, "corr-1", correlationID)
	assert.Equal(t, "corr-1", w.Header().Get(correlation.HeaderName))
}

func TestGinMiddlewareKeepsInboundRequestID(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(GinMiddleware(MiddlewareConfig{}))
	r.GET("/ping", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set(requestIDHeader, "req-42")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, "req-42", w.Header().Get(requestIDHeader))
	assert.NotEmpty(t, w.Header().Get(correlation.HeaderName))
}

func TestRequestLevel(t *testing.T) {
	assert.Equal(t, zapcore.DebugLevel, requestLevel("/health", http.StatusOK, ""))
	assert.Equal(t, zapcore.ErrorLevel, requestLevel("/health", http.StatusServiceUnavailable, ""))
	assert.Equal(t, zapcore.DebugLevel, requestLevel("/metrics", http.StatusInternalServerError, ""))
	assert.Equal(t, zapcore.WarnLevel, requestLevel("/api/invoices", http.StatusBadRequest, "validation_error"))
	assert.Equal(t, zapcore.InfoLevel, requestLevel("/api/invoices/:id", http.StatusNotFound, "not_found"))
	assert.Equal(t, zapcore.ErrorLevel, requestLevel("/api/invoices", http.StatusInternalServerError, "internal_error"))
}
