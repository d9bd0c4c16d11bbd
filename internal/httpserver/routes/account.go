package routes

import (
	"github.com/go-chi/chi/v5"

	"github.com/MrSnakeDoc/marksync/internal/httpserver/deps"
	"github.com/MrSnakeDoc/marksync/internal/httpserver/handlers"
)

func init() { Register(registerAccount) }

func registerAccount(r chi.Router, d deps.Deps) {
	api := r.With(guard(d)...)
	api.Post("/api/register", handlers.Register(d))
	api.Post("/api/login", handlers.Login(d))
	api.Post("/api/logout", handlers.Logout(d))
	api.Get("/api/status", handlers.Status(d))
	api.Put("/api/settings/auto-sync", handlers.SetAutoSync(d))
}
