package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"civilregistry/internal/metrics"
	"civilregistry/internal/middleware"
)

// Routes bundles everything the HTTP surface is built from.
type Routes struct {
	Auth     *AuthHandler
	Users    *UserHandler
	Citizens *CitizenHandler
	Logs     *LogHandler
	Proxy    *ProxyHandler
	Health   *HealthHandler

	Gate    *middleware.AuthMiddleware
	Logger  *zap.Logger
	Metrics *metrics.Metrics
	// MetricsHandler serves /metrics when set.
	MetricsHandler http.Handler
}

func NewRouter(rt Routes) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.ClientMetadata)
	r.Use(middleware.RequestLogger(rt.Logger, rt.Metrics))
	r.Use(chimiddleware.Recoverer)

	// Public routes
	r.Get("/health", rt.Health.Health)
	if rt.MetricsHandler != nil {
		r.Handle("/metrics", rt.MetricsHandler)
	}
	r.Post("/auth/login", rt.Auth.Login)

	// Protected routes
	r.Group(func(r chi.Router) {
		r.Use(rt.Gate.RequireAuth)

		r.Post("/auth/logout", rt.Auth.Logout)
		r.Get("/auth/me", rt.Auth.Me)
		r.Put("/auth/profile", rt.Auth.UpdateProfile)
		r.Put("/auth/password", rt.Auth.ChangePassword)

		r.Get("/citizens/search", rt.Citizens.Search)
		r.Get("/citizens/{nationalId}/phone", rt.Citizens.Phone)

		r.Post("/logs", rt.Logs.Create)

		r.Route("/external-proxy/citizen", func(r chi.Router) {
			r.Get("/by-id2019/{id}", rt.Proxy.CitizenByID2019)
			r.Get("/by-name2019", rt.Proxy.CitizenByName2019)
			r.Get("/by-id/{id}", rt.Proxy.CitizenByID)
			r.Get("/by-name", rt.Proxy.CitizenByName)
		})
		r.Post("/phone-proxy/login", rt.Proxy.PhoneLogin)
		r.Get("/phone-proxy/fetch-by-id/{id}", rt.Proxy.PhoneFetchByID)

		// Admin-only routes
		r.Group(func(r chi.Router) {
			r.Use(rt.Gate.RequireAdmin)

			r.Get("/users", rt.Users.List)
			r.Post("/users", rt.Users.Create)
			r.Get("/users/{id}", rt.Users.Get)
			r.Patch("/users/{id}/status", rt.Users.UpdateStatus)

			r.Post("/citizens", rt.Citizens.Create)

			r.Get("/logs", rt.Logs.List)
			r.Get("/logs/users", rt.Logs.CountsPerUser)
			r.Get("/logs/searches", rt.Logs.GlobalSearches)
			r.Get("/logs/user/{id}", rt.Logs.UserLogs)
			r.Get("/logs/user/{id}/searches", rt.Logs.UserSearches)
		})
	})

	return r
}
