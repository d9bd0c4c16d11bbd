package handlers

import (
	"net/http"

	"github.com/MrSnakeDoc/marksync/internal/domain"
	"github.com/MrSnakeDoc/marksync/internal/httpserver/deps"
)

type credentialsRequest struct {
	ServerURL string `json:"serverUrl"`
	Email     string `json:"email"`
	Password  string `json:"password"`
}

// sessionResponse never carries the token.
type sessionResponse struct {
	LoggedIn  bool   `json:"logged_in"`
	Email     string `json:"email,omitempty"`
	ServerURL string `json:"server_url"`
	AutoSync  bool   `json:"auto_sync"`
}

func newSessionResponse(cfg domain.SyncConfig) sessionResponse {
	return sessionResponse{
		LoggedIn:  cfg.LoggedIn(),
		Email:     cfg.Email,
		ServerURL: cfg.ServerURL,
		AutoSync:  cfg.AutoSync,
	}
}

func Register(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req credentialsRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, r, d, err)
			return
		}
		cfg, err := d.Engine.Register(r.Context(), req.ServerURL, req.Email, req.Password)
		if err != nil {
			writeError(w, r, d, err)
			return
		}
		writeJSON(w, http.StatusCreated, newSessionResponse(cfg))
	}
}

func Login(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req credentialsRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, r, d, err)
			return
		}
		cfg, err := d.Engine.Login(r.Context(), req.ServerURL, req.Email, req.Password)
		if err != nil {
			writeError(w, r, d, err)
			return
		}
		writeJSON(w, http.StatusOK, newSessionResponse(cfg))
	}
}

func Logout(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := d.Engine.Logout(r.Context()); err != nil {
			writeError(w, r, d, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func Status(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		st, err := d.Engine.Status(r.Context())
		if err != nil {
			writeError(w, r, d, err)
			return
		}
		writeJSON(w, http.StatusOK, st)
	}
}

type autoSyncRequest struct {
	Enabled *bool `json:"enabled"`
}

func SetAutoSync(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req autoSyncRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, r, d, err)
			return
		}
		if req.Enabled == nil {
			writeDetail(w, http.StatusBadRequest, "enabled is required")
			return
		}
		cfg, err := d.Engine.SetAutoSync(r.Context(), *req.Enabled)
		if err != nil {
			writeError(w, r, d, err)
			return
		}
		writeJSON(w, http.StatusOK, newSessionResponse(cfg))
	}
}
