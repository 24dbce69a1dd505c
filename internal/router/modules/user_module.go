package modules

import (
	"github.com/gin-gonic/gin"

	"github.com/platformlab/auth-service/internal/container"
	handlers "github.com/platformlab/auth-service/internal/interface/http"
	"github.com/platformlab/auth-service/internal/interface/middleware"
	"github.com/platformlab/auth-service/pkg/ratelimit"
)

// UserModule wires the auth HTTP surface into routes.
// Public: POST /api/users/signup, POST /api/users/login,
// POST /api/users/logout, GET /api/users/token/verify,
// GET /api/users/oauth/google(/callback).
// Abuse-prone routes share the default budget (10 req / 5 min per IP and
// route class); token verification runs on a larger budget since client
// apps hit it on every protected request.
type UserModule struct {
	Handler *handlers.UserHandler
	OAuth   *handlers.OAuthHandler
}

func NewUserModule(h *handlers.UserHandler, o *handlers.OAuthHandler) *UserModule {
	return &UserModule{Handler: h, OAuth: o}
}

func (m *UserModule) Register(rg *gin.RouterGroup) {
	cfg := container.GetConfig()
	store := container.GetRateLimitStore()

	authLimiter := ratelimit.New(store, cfg.RateLimitMax, cfg.RateLimitWindow)
	verifyLimiter := ratelimit.New(store, cfg.RateLimitMax*30, cfg.RateLimitWindow)

	users := rg.Group("/users")
	{
		users.POST("/signup", middleware.RateLimit(authLimiter, middleware.KeyByRoute("signup"), nil), m.Handler.Signup)
		users.POST("/login", middleware.RateLimit(authLimiter, middleware.KeyByRoute("login"), nil), m.Handler.Login)
		users.POST("/logout", m.Handler.Logout)

		users.GET("/oauth/google", middleware.RateLimit(authLimiter, middleware.KeyByRoute("oauth"), nil), m.OAuth.GoogleRedirect)
		users.GET("/oauth/google/callback", middleware.RateLimit(authLimiter, middleware.KeyByRoute("oauth"), nil), m.OAuth.GoogleCallback)

		users.GET("/token/verify", middleware.RateLimit(verifyLimiter, middleware.KeyByRoute("verify"), nil), m.Handler.VerifyToken)
	}
}
