// Package routes configures the HTTP router and its middleware chain.
package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/upb/llm-dispatch/app"
	"github.com/upb/llm-dispatch/middleware"
	"github.com/upb/llm-dispatch/utils"
)

// SetupRoutes configures all application routes and middleware
func SetupRoutes(deps *app.Dependencies) http.Handler {
	r := chi.NewRouter()

	// Core middleware
	r.Use(middleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)

	// CORS middleware
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:*", "https://*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Health check endpoints
	r.Get("/health", deps.HealthHandler.HandleHealth)
	r.Get("/health/ready", deps.HealthHandler.HandleReadiness)

	// API v1 routes
	r.Route("/v1", func(r chi.Router) {
		r.Use(deps.AuthMiddleware.RequireAuth)

		r.Post("/invoke", deps.DispatchHandler.HandleInvoke)

		r.Route("/providers", func(r chi.Router) {
			r.Get("/", deps.ProviderHandler.HandleList)
			r.Delete("/{capability}/{name}", deps.ProviderHandler.HandleUnregister)
		})

		r.Route("/agents/{agentID}/settings", func(r chi.Router) {
			r.Get("/", deps.SettingsHandler.HandleGet)
			r.Put("/", deps.SettingsHandler.HandleUpdate)
		})
	})

	// 404 handler
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		_ = utils.WriteNotFound(w, "Route not found")
	})

	return r
}
