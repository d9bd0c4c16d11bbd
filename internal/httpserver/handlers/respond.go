package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/MrSnakeDoc/marksync/internal/backup"
	"github.com/MrSnakeDoc/marksync/internal/client"
	"github.com/MrSnakeDoc/marksync/internal/httpserver/deps"
	"github.com/MrSnakeDoc/marksync/internal/logger"
	"github.com/MrSnakeDoc/marksync/internal/store"
	"github.com/MrSnakeDoc/marksync/internal/syncer"
)

// maxBody caps JSON request bodies. Backup imports carry whole trees.
const maxBody = 8 << 20

type errorResponse struct {
	Detail string `json:"detail"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeDetail(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, errorResponse{Detail: detail})
}

// writeError maps an error to its status code and writes it as {"detail": ...}.
func writeError(w http.ResponseWriter, r *http.Request, d deps.Deps, err error) {
	status := http.StatusInternalServerError
	detail := err.Error()

	var syncErr *syncer.SyncFailedError
	var apiErr *client.APIError
	var urlErr *url.Error
	switch {
	case errors.Is(err, syncer.ErrNotAuthenticated), errors.Is(err, syncer.ErrSessionExpired):
		status = http.StatusUnauthorized
	case errors.As(err, &syncErr):
		status = http.StatusBadGateway
	case errors.Is(err, syncer.ErrInvalidInput), errors.Is(err, backup.ErrInvalid):
		status = http.StatusBadRequest
	case errors.Is(err, backup.ErrNotFound), errors.Is(err, store.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, store.ErrImmutable), errors.Is(err, store.ErrNotFolder), errors.Is(err, store.ErrInvalidMove):
		status = http.StatusConflict
	case errors.As(err, &apiErr):
		// the server's answer to register or login is passed through
		status = apiErr.StatusCode
		if status < http.StatusBadRequest {
			status = http.StatusBadGateway
		}
	case errors.As(err, &urlErr):
		status = http.StatusBadGateway
		detail = "sync server unreachable"
	case errors.Is(err, errBadRequest):
		status = http.StatusBadRequest
	}

	if status >= http.StatusInternalServerError {
		d.Logger.Error("request failed",
			logger.String("path", r.URL.Path),
			logger.Int("status", status),
			logger.Error(err))
	}
	writeDetail(w, status, detail)
}

var errBadRequest = errors.New("bad request")

// decodeJSON reads a JSON body into v. Unknown fields are ignored.
func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBody))
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: invalid JSON body: %v", errBadRequest, err)
	}
	return nil
}
