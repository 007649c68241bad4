package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/fatflowers/storepay/pkg/config"
	"github.com/fatflowers/storepay/pkg/logctx"
	"github.com/fatflowers/storepay/pkg/response"
)

func TestTraceAndRequestLogger(t *testing.T) {
	gin.SetMode(gin.TestMode)
	core, logs := observer.New(zapcore.InfoLevel)
	base := zap.New(core).Sugar()

	r := gin.New()
	r.Use(TraceMiddleware(), RequestLoggerMiddleware(base), AccessLogMiddleware(base))
	r.GET("/ping", func(c *gin.Context) {
		require.Equal(t, "req-1", logctx.TraceID(c.Request.Context()))
		c.Status(http.StatusNoContent)
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set("X-Request-ID", "req-1")
	r.ServeHTTP(w, req)

	require.Equal(t, "req-1", w.Header().Get("X-Request-ID"))
	entries := logs.FilterMessage("http_access").AllUntimed()
	require.Len(t, entries, 1)
	require.Equal(t, "req-1", entries[0].ContextMap()["trace_id"])
	require.EqualValues(t, http.StatusNoContent, entries[0].ContextMap()["status"])
}

func TestTraceMiddlewareGeneratesID(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(TraceMiddleware(), RequestLoggerMiddleware(zap.NewNop().Sugar()))
	r.GET("/ping", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ping", nil))
	require.NotEmpty(t, w.Header().Get("X-Request-ID"))
}

func TestRateLimitMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.POST("/pay", RateLimitMiddleware(NewIPRateLimiter(config.RateLimitConfig{RPS: 0.001, Burst: 2})), func(c *gin.Context) {
		c.JSON(http.StatusOK, response.OKT("ok"))
	})

	codes := make([]response.APIResponseCode, 0, 3)
	for i := 0; i < 3; i++ {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/pay", nil)
		req.RemoteAddr = "10.0.0.1:1234"
		r.ServeHTTP(w, req)
		var env response.APIResponse[any]
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
		codes = append(codes, env.Code)
	}
	require.Equal(t, []response.APIResponseCode{response.APIResponseCodeOK, response.APIResponseCodeOK, response.APIResponseCodeTooMany}, codes)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/pay", nil)
	req.RemoteAddr = "10.0.0.2:1234"
	r.ServeHTTP(w, req)
	require.Contains(t, w.Body.String(), `"code":0`)
}

func TestRateLimitDisabled(t *testing.T) {
	l := NewIPRateLimiter(config.RateLimitConfig{})
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.POST("/pay", RateLimitMiddleware(l), func(c *gin.Context) { c.Status(http.StatusOK) })
	for i := 0; i < 5; i++ {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/pay", nil))
		require.Equal(t, http.StatusOK, w.Code)
	}
}
