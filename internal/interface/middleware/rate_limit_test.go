package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platformlab/auth-service/pkg/ratelimit"
)

func limitedRouter(limiter *ratelimit.Limiter, keyFn KeyFunc, allow AllowFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RealIP())
	r.POST("/login", RateLimit(limiter, keyFn, allow), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})
	return r
}

func doPost(r *gin.Engine, ip string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/login", nil)
	req.RemoteAddr = ip + ":12345"
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestRateLimitRejectsOverBudget(t *testing.T) {
	limiter := ratelimit.New(ratelimit.NewMemoryStore(), 3, time.Minute)
	r := limitedRouter(limiter, KeyByRoute("login"), nil)

	for i := 0; i < 3; i++ {
		w := doPost(r, "1.2.3.4")
		require.Equal(t, http.StatusOK, w.Code, "request %d", i+1)
	}
	w := doPost(r, "1.2.3.4")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.NotEmpty(t, w.Header().Get("Retry-After"))
	assert.Equal(t, "3", w.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, "0", w.Header().Get("X-RateLimit-Remaining"))
}

func TestRateLimitSeparatesClients(t *testing.T) {
	limiter := ratelimit.New(ratelimit.NewMemoryStore(), 1, time.Minute)
	r := limitedRouter(limiter, KeyByRoute("login"), nil)

	require.Equal(t, http.StatusOK, doPost(r, "1.2.3.4").Code)
	assert.Equal(t, http.StatusTooManyRequests, doPost(r, "1.2.3.4").Code)
	assert.Equal(t, http.StatusOK, doPost(r, "5.6.7.8").Code, "other client has its own budget")
}

func TestRateLimitAllowBypass(t *testing.T) {
	limiter := ratelimit.New(ratelimit.NewMemoryStore(), 1, time.Minute)
	r := limitedRouter(limiter, KeyByRoute("login"), AllowPrivateIP())

	// Private addresses bypass the limit entirely.
	for i := 0; i < 5; i++ {
		assert.Equal(t, http.StatusOK, doPost(r, "10.0.0.1").Code)
	}
}

func TestRateLimitSkipsPreflight(t *testing.T) {
	limiter := ratelimit.New(ratelimit.NewMemoryStore(), 1, time.Minute)
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.OPTIONS("/login", RateLimit(limiter, KeyByRoute("login"), nil), func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})

	for i := 0; i < 5; i++ {
		req := httptest.NewRequest(http.MethodOptions, "/login", nil)
		req.RemoteAddr = "1.2.3.4:12345"
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		assert.Equal(t, http.StatusNoContent, w.Code)
	}
}
