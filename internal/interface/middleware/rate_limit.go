package middleware

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/platformlab/auth-service/pkg/ratelimit"
	"github.com/platformlab/auth-service/pkg/response"
)

// ipFromCtx extracts the client IP from Gin context, falling back to "unknown"
func ipFromCtx(c *gin.Context) string {
	if ip := c.GetString("real_ip"); ip != "" {
		return ip
	}
	if ip := c.ClientIP(); ip != "" {
		return ip
	}
	return "unknown"
}

// KeyFunc builds a rate-limit key from the request. Keys combine a route
// class with the client IP so abuse of one endpoint does not exhaust the
// budget of another.
type KeyFunc func(c *gin.Context) string

// KeyByRoute returns a key function scoped to a named route class plus
// client IP.
func KeyByRoute(class string) KeyFunc {
	return func(c *gin.Context) string {
		return "rl:" + class + ":ip:" + ipFromCtx(c)
	}
}

// KeyByIP returns a key function that limits by client IP only
func KeyByIP() KeyFunc {
	return func(c *gin.Context) string {
		return "rl:ip:" + ipFromCtx(c)
	}
}

type AllowFunc func(*gin.Context) bool // return true to bypass the limit

// RateLimit guards a route with the given limiter:
// - atomic increment-then-compare (store-side)
// - standard headers (limit/remaining/reset)
// - optional allowlist bypass & OPTIONS skip
func RateLimit(limiter *ratelimit.Limiter, keyFn KeyFunc, allow AllowFunc) gin.HandlerFunc {
	if limiter == nil || keyFn == nil {
		return func(c *gin.Context) { c.Next() }
	}
	return func(c *gin.Context) {
		if allow != nil && allow(c) {
			c.Next()
			return
		}
		if strings.EqualFold(c.Request.Method, http.MethodOptions) {
			c.Next()
			return
		}

		res := limiter.Allow(c.Request.Context(), keyFn(c))

		c.Header("X-RateLimit-Limit", strconv.Itoa(res.Limit))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(res.Remaining))

		if !res.Allowed {
			retry := int(res.RetryAfter.Seconds())
			if retry < 1 {
				retry = 1
			}
			c.Header("Retry-After", strconv.Itoa(retry))
			response.Error[any](c, http.StatusTooManyRequests, "rate limit exceeded", map[string]any{"retry_after_seconds": retry})
			c.Abort()
			return
		}
		c.Next()
	}
}
