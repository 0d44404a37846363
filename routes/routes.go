package routes

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/keyruu/ruscalimat/app"
	"github.com/keyruu/ruscalimat/auth"
	"github.com/keyruu/ruscalimat/handlers"
	"github.com/keyruu/ruscalimat/internal/observability"
)

// SetupRoutes configures all application routes and middleware
func SetupRoutes(deps *app.Dependencies) http.Handler {
	r := chi.NewRouter()

	// Core middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(observability.RequestLogger(deps.Logger))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   deps.Config.Server.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"WWW-Authenticate", "X-Request-ID"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	var db handlers.HealthChecker
	if deps.DB != nil {
		db = deps.DB
	}
	health := handlers.NewHealthHandler(db, deps.Logger)
	status := handlers.NewStatusHandler(app.Version, deps.Config.Environment)
	accounts := handlers.NewAccountHandler(deps.AccountService, deps.Logger)
	pinLogin := auth.NewHandler(deps.AccountService, deps.Logger)
	authn := deps.AuthMiddleware

	// Health check endpoints
	r.Get("/healthz", health.HandleHealth)
	r.Get("/readyz", health.HandleReadiness)

	r.Route("/api/v1", func(r chi.Router) {
		// Optional identity: anonymous requests pass, presented credentials must verify
		r.Group(func(r chi.Router) {
			r.Use(authn.Authenticate)
			r.Get("/status", status.HandleStatus)
			r.Post("/auth/pin", pinLogin.HandlePinLogin)
		})

		// Mandatory identity
		r.Route("/accounts", func(r chi.Router) {
			r.Use(authn.RequireAuth)
			r.Get("/me", accounts.HandleMe)

			r.Group(func(r chi.Router) {
				r.Use(authn.RequireUser)
				r.Post("/signup", accounts.HandleSignup)
				r.Put("/me/pin", accounts.HandleSetPin)
			})

			r.Group(func(r chi.Router) {
				r.Use(authn.RequireAdmin)
				r.Get("/", accounts.HandleList)
				r.Get("/deleted", accounts.HandleListDeleted)
				r.Delete("/{id}", accounts.HandleDelete)
			})
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":"endpoint not found"}`))
	})

	return r
}
