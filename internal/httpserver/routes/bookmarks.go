package routes

import (
	"github.com/go-chi/chi/v5"

	"github.com/MrSnakeDoc/marksync/internal/httpserver/deps"
	"github.com/MrSnakeDoc/marksync/internal/httpserver/handlers"
)

func init() { Register(registerBookmarks) }

func registerBookmarks(r chi.Router, d deps.Deps) {
	api := r.With(guard(d)...)
	api.Get("/api/bookmarks", handlers.Bookmarks(d))
	api.Post("/api/bookmarks", handlers.CreateBookmark(d))
	api.Patch("/api/bookmarks/{id}", handlers.UpdateBookmark(d))
	api.Post("/api/bookmarks/{id}/move", handlers.MoveBookmark(d))
	api.Delete("/api/bookmarks/{id}", handlers.DeleteBookmark(d))
	api.Get("/api/folders", handlers.Folders(d))
	api.Post("/api/import/homepage", handlers.TriggerHomepageImport(d))
}
