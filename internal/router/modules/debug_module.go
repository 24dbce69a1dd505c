package modules

import (
	"expvar"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/platformlab/auth-service/internal/container"
	"github.com/platformlab/auth-service/internal/interface/middleware"
	"github.com/platformlab/auth-service/pkg/ratelimit"
)

type DebugModule struct{}

func NewDebugModule() *DebugModule { return &DebugModule{} }

func (m *DebugModule) Register(rg *gin.RouterGroup) {
	// Public metrics endpoint (expvar), rate-limited per IP with a bypass
	// for internal addresses.
	rl := ratelimit.New(container.GetRateLimitStore(), 120, time.Minute)
	rg.GET("/debug/vars", middleware.RateLimit(rl, middleware.KeyByIP(), middleware.AllowPrivateIP()), gin.WrapH(expvar.Handler()))
}
