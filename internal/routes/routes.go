package routes

import (
	"github.com/AnshRaj112/kokoro-journal/internal/handlers"
	"github.com/AnshRaj112/kokoro-journal/internal/middleware"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

func SetupRoutes(r chi.Router, h *handlers.Handler, lookup middleware.IdentityLookup, log *zap.Logger) {
	requireIdentity := middleware.RequireIdentity(lookup, log)
	requirePageIdentity := middleware.RequirePageIdentity(lookup, log)

	// Pages
	r.Handle("/static/*", handlers.Static())
	r.Get("/login", h.LoginPage)
	r.Post("/login", h.Login)
	r.Post("/logout", h.Logout)
	r.With(requirePageIdentity).Get("/", h.Home)

	// Auth API
	r.Post("/api/auth/signin", h.SignIn)
	r.Post("/api/auth/signout", h.SignOut)
	r.With(requireIdentity).Get("/api/auth/me", h.Me)

	// Journal entries
	r.With(requireIdentity, middleware.SubmitRateLimit).Post("/api/records", h.CreateRecord)

	// Live history; authenticates itself before the upgrade
	r.Get("/ws/records", h.RecordsWebSocket)
}
