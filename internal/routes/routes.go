package routes

import (
	"github.com/go-chi/chi/v5"
	"github.com/palisadeauth/palisade/internal/auth"
	"github.com/palisadeauth/palisade/internal/handlers"
	"github.com/palisadeauth/palisade/internal/middleware"
)

// RegisterRoutes registers all application routes
func RegisterRoutes(
	router chi.Router,
	loginHandler *handlers.LoginHandler,
	adminHandler *handlers.AdminHandler,
	tokenManager *auth.TokenManager,
	adminKeyHash string,
) {
	edgeLimit := middleware.DefaultEdgeRateLimit()

	// Assessment endpoints, called by the login service with a bearer token
	router.Group(func(r chi.Router) {
		r.Use(middleware.RateLimitByIP(edgeLimit))
		r.Use(auth.ServiceAuthMiddleware(tokenManager))

		r.Post("/v1/login/precheck", loginHandler.Precheck)
		r.Post("/v1/login/attempts", loginHandler.RecordAttempt)
	})

	// Operator endpoints, guarded by the pre-shared admin key
	router.Group(func(r chi.Router) {
		r.Use(auth.AdminKeyMiddleware(adminKeyHash))

		r.Get("/v1/admin/accounts/{accountID}/lockout", adminHandler.GetLockout)
		r.Post("/v1/admin/accounts/{accountID}/unlock", adminHandler.Unlock)
		r.Get("/v1/admin/accounts/{accountID}/assessments", adminHandler.ListAssessments)
		r.Get("/v1/admin/high-risk", adminHandler.ListHighRisk)
		r.Get("/v1/admin/sources/high-failure", adminHandler.ListHighFailureSources)
	})
}
