package router

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"go-account-auth/internal/config"
	"go-account-auth/internal/handler"
	"go-account-auth/internal/middleware"
)

const authPrefix = "/api/v1/auth"

type Handlers struct {
	Auth   *handler.AuthHandler
	Audit  *handler.AuditHandler
	Health *handler.HealthHandler
	Docs   *handler.DocsHandler
}

func New(cfg *config.Config, logger *slog.Logger, authMiddleware *middleware.AuthMiddleware, h Handlers) http.Handler {
	r := chi.NewRouter()
	rateLimitMiddleware := middleware.NewRateLimitMiddleware(cfg.RateLimitRPM, cfg.AuthRateLimitRPM, authPrefix+"/", cfg.TrustProxy)

	r.Use(middleware.Recovery)
	r.Use(middleware.Logging(logger, cfg.TrustProxy))
	r.Use(middleware.SecurityHeaders)
	r.Use(middleware.CORS(cfg.CORSOrigins))
	r.Use(rateLimitMiddleware.Handler)

	r.Get("/health", h.Health.Health)
	r.Get("/openapi.yaml", h.Docs.OpenAPI)
	r.Get("/swagger", h.Docs.SwaggerUI)

	r.Route(authPrefix, func(auth chi.Router) {
		auth.Use(middleware.Timeout(cfg.RequestTimeout))

		auth.Post("/signup", h.Auth.Signup)
		auth.Post("/signin", h.Auth.Signin)
		auth.Post("/signout", h.Auth.Signout)
		auth.Post("/verify-token/{reason}", h.Auth.VerifyToken)
		auth.Post("/recover-password", h.Auth.RecoverPassword)
		auth.Post("/reset-password", h.Auth.ResetPassword)
		auth.Post("/refresh-token", h.Auth.RefreshToken)
		auth.Post("/generate-token/{reason}", h.Auth.GenerateToken)

		auth.With(authMiddleware.RequireSession).Get("/me", h.Auth.Me)
		auth.With(authMiddleware.RequireSession).Get("/activity", h.Audit.Activity)
	})

	return r
}
