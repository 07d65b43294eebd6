package handler

import (
	"net/http"

	"github.com/spaceko/resource-status-service/internal/adapters/middleware"
	"github.com/spaceko/resource-status-service/internal/core/domain"
)

// Router binds the handlers to their routes. Reads of resource state are
// public; every write and account operation needs a session.
type Router struct {
	Resources *ResourceHandler
	Events    *EventsHandler
	Auth      *AuthHandler
	Users     *UserHandler
	Board     *BoardHandler
	Health    *HealthHandler

	AuthMiddleware *middleware.AuthMiddleware
	// LoginLimit guards the credential endpoints. Optional.
	LoginLimit func(http.Handler) http.Handler
	// Metrics serves the Prometheus exposition. Optional.
	Metrics http.Handler
}

func (rt Router) Register(mux *http.ServeMux) {
	session := rt.AuthMiddleware.RequireSession
	limited := func(h http.HandlerFunc) http.Handler {
		if rt.LoginLimit == nil {
			return h
		}
		return rt.LoginLimit(h)
	}

	// Health endpoints (OpenShift compatible)
	mux.HandleFunc("GET /health", rt.Health.Health)
	mux.HandleFunc("GET /health/ready", rt.Health.Ready)
	mux.HandleFunc("GET /health/live", rt.Health.Live)
	if rt.Metrics != nil {
		mux.Handle("GET /metrics", rt.Metrics)
	}

	mux.Handle("POST /auth/login", limited(rt.Auth.Login))
	mux.Handle("POST /auth/refresh", limited(rt.Auth.Refresh))
	mux.Handle("POST /auth/logout", session(http.HandlerFunc(rt.Auth.Logout)))
	mux.Handle("GET /auth/me", session(http.HandlerFunc(rt.Auth.Me)))

	mux.HandleFunc("GET /resources", rt.Resources.List)
	mux.HandleFunc("GET /resources/{id}", rt.Resources.Get)
	mux.HandleFunc("POST /resources/sync", rt.Resources.Sync)
	mux.HandleFunc("GET /snapshot", rt.Resources.Snapshot)
	mux.HandleFunc("GET /events", rt.Events.Stream)
	mux.Handle("POST /resources", rt.AuthMiddleware.RequireRole(
		[]domain.UserType{domain.UserAdmin, domain.UserSuperAdmin},
		http.HandlerFunc(rt.Resources.Create),
	))
	mux.Handle("PUT /resources/{id}", session(http.HandlerFunc(rt.Resources.UpdateByID)))
	mux.Handle("PATCH /resources/{name}/status", session(http.HandlerFunc(rt.Resources.UpdateByName)))
	mux.Handle("POST /resources/{id}/verify", session(http.HandlerFunc(rt.Resources.Verify)))

	mux.Handle("POST /users", session(http.HandlerFunc(rt.Users.Create)))
	mux.Handle("GET /users", session(http.HandlerFunc(rt.Users.List)))
	mux.Handle("PATCH /users/{code}/active", session(http.HandlerFunc(rt.Users.SetActive)))

	mux.HandleFunc("GET /contributors", rt.Board.Contributors)
	mux.Handle("GET /audit", session(http.HandlerFunc(rt.Board.Audit)))
}
