package router

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	httpmiddleware "github.com/ayursutra/therapy-portal/internal/http/middleware"
	"github.com/ayursutra/therapy-portal/internal/sessions"
	"github.com/ayursutra/therapy-portal/internal/users"
	"github.com/ayursutra/therapy-portal/pkg/logging"
)

// Config holds router configuration
type Config struct {
	Logger             *logging.Logger
	SessionsHandler    *sessions.Handler
	UsersHandler       *users.Handler
	AuthSecret         string
	CORSAllowedOrigins []string
	MetricsHandler     http.Handler
}

// New creates a new Chi router with all routes configured
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))
	if len(cfg.CORSAllowedOrigins) > 0 {
		r.Use(httpmiddleware.CORS(cfg.CORSAllowedOrigins))
	}
	if cfg.Logger != nil {
		r.Use(httpmiddleware.RequestLogger(cfg.Logger))
	}

	// Public endpoints
	r.Group(func(public chi.Router) {
		public.Get("/health", healthCheck)
		if cfg.MetricsHandler != nil {
			public.Handle("/metrics", cfg.MetricsHandler)
		}
	})

	// Everything under /api requires an identity-provider session token.
	r.Route("/api", func(api chi.Router) {
		api.Use(httpmiddleware.Auth(cfg.AuthSecret))

		api.Route("/schedules", func(s chi.Router) {
			s.With(httpmiddleware.RequireRole(sessions.RolePatient)).Get("/", cfg.SessionsHandler.ListMine)
			s.With(httpmiddleware.RequireRole(sessions.RoleDoctor)).Get("/for-doctor", cfg.SessionsHandler.ListForDoctor)
			s.Post("/", cfg.SessionsHandler.Create)
			s.With(httpmiddleware.RequireRole(sessions.RoleDoctor)).Post("/{id}/complete", cfg.SessionsHandler.Complete)
			// Either owning party may cancel; ownership is matched inside
			// the service by the caller's role.
			s.Post("/{id}/cancel", cfg.SessionsHandler.Cancel)
			s.With(httpmiddleware.RequireRole(sessions.RoleDoctor)).Post("/{id}/progress", cfg.SessionsHandler.UpdateProgress)
		})

		if cfg.UsersHandler != nil {
			api.Route("/users", func(u chi.Router) {
				u.Get("/me", cfg.UsersHandler.Me)
				u.With(httpmiddleware.RequireRole(sessions.RoleDoctor)).Get("/patients", cfg.UsersHandler.ListPatients)
				u.Post("/role", cfg.UsersHandler.SetRole)
			})
		}
	})

	return r
}

func healthCheck(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]bool{"ok": true})
}
