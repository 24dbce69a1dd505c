package router

import (
	userapp "github.com/platformlab/auth-service/internal/application"
	"github.com/platformlab/auth-service/internal/container"
	pginfra "github.com/platformlab/auth-service/internal/infrastructure/postgres"
	handlers "github.com/platformlab/auth-service/internal/interface/http"
	"github.com/platformlab/auth-service/internal/router/modules"
	"github.com/platformlab/auth-service/pkg/helpers"
)

func buildUserModule() *modules.UserModule {
	cfg := container.GetConfig()

	repo := pginfra.NewUserRepository(container.GetPGPool())
	audit := pginfra.NewAuditRepository(container.GetPGPool())

	service := userapp.NewService(
		repo,
		container.GetSigner(),
		container.GetDispatcher(),
		container.GetLogger(),
		cfg.LoginEventEnabled,
		cfg.BcryptCost,
	)

	cookies := helpers.NewCookieManager(cfg.CookieDomain, cfg.CookieSecure, cfg.SessionTTL)

	userHandler := handlers.NewUserHandler(service, container.GetVerifier(), audit, container.GetLogger(), cookies)
	oauthHandler := handlers.NewOAuthHandler(service, cfg, container.GetLogger(), cookies)

	return modules.NewUserModule(userHandler, oauthHandler)
}

// InitModules initializes all application modules and registers them with
// the router registry. Called once during startup.
func InitModules(r *Registry) {
	r.Add(buildUserModule())
	if container.GetConfig().DebugMetricsEnabled {
		r.Add(modules.NewDebugModule())
	}
}
