package routes

import (
	"github.com/go-chi/chi/v5"

	"github.com/MrSnakeDoc/marksync/internal/httpserver/deps"
	"github.com/MrSnakeDoc/marksync/internal/httpserver/handlers"
)

func init() { Register(registerBackups) }

func registerBackups(r chi.Router, d deps.Deps) {
	api := r.With(guard(d)...)
	api.Get("/api/backups", handlers.ListBackups(d))
	api.Post("/api/backups", handlers.CreateBackup(d))
	api.Post("/api/backups/import", handlers.ImportBackups(d))
	api.Delete("/api/backups/{id}", handlers.DeleteBackup(d))
	api.Post("/api/backups/{id}/restore", handlers.RestoreBackup(d))
	api.Get("/api/backups/{id}/export", handlers.ExportBackup(d))
}
