package routes

import (
	"log/slog"

	"github.com/go-chi/chi/v5"
	"github.com/nkuznetsov/vaultgate/internal/auth"
	"github.com/nkuznetsov/vaultgate/internal/config"
	"github.com/nkuznetsov/vaultgate/internal/handlers"
	"github.com/nkuznetsov/vaultgate/internal/middleware"
	"github.com/nkuznetsov/vaultgate/internal/repositories"
	pkghttp "github.com/nkuznetsov/vaultgate/pkg/http"
)

// RegisterRoutes registers all application routes
func RegisterRoutes(
	router chi.Router,
	authHandler *handlers.AuthHandler,
	auditHandler *handlers.AuditHandler,
	tokenManager *auth.TokenManager,
	userRepo *repositories.UserRepository,
	rateCfg *config.RateLimitConfig,
	ipConfig *pkghttp.IPConfig,
	logger *slog.Logger,
) {
	// Authentication endpoints carry a stricter rate-limit class on top of
	// the router-wide general limiter.
	authLimiter := middleware.RateLimitByIP(
		middleware.AuthRateLimit(rateCfg.AuthLimit, rateCfg.AuthWindow), ipConfig, logger)

	router.With(authLimiter).Post("/auth/login", authHandler.Login)
	router.With(authLimiter).Post("/auth/register", authHandler.Register)

	// Audit trail queries, admin only
	router.Group(func(r chi.Router) {
		r.Use(auth.Middleware(tokenManager))
		r.Use(auth.RequireRole(userRepo, "admin"))

		r.Get("/audit/logs", auditHandler.ListLogs)
		r.Get("/audit/users/{id}/logs", auditHandler.GetUserTrail)
	})
}
