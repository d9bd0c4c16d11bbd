package handlers

import (
	"bytes"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/MrSnakeDoc/marksync/internal/backup"
	"github.com/MrSnakeDoc/marksync/internal/httpserver/deps"
	"github.com/MrSnakeDoc/marksync/internal/logger"
)

type backupsResponse struct {
	Backups []backup.Backup `json:"backups"`
}

type createBackupRequest struct {
	Name string `json:"name"`
}

type restoreResponse struct {
	Restored int `json:"restored"`
}

type importResponse struct {
	Imported int `json:"imported"`
}

func ListBackups(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		list, err := d.Backups.List(r.Context())
		if err != nil {
			writeError(w, r, d, err)
			return
		}
		if list == nil {
			list = []backup.Backup{}
		}
		writeJSON(w, http.StatusOK, backupsResponse{Backups: list})
	}
}

// CreateBackup snapshots the local tree. The body is optional.
func CreateBackup(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req createBackupRequest
		if r.ContentLength != 0 {
			if err := decodeJSON(r, &req); err != nil {
				writeError(w, r, d, err)
				return
			}
		}
		b, err := d.Backups.Create(r.Context(), req.Name, false)
		if err != nil {
			writeError(w, r, d, err)
			return
		}
		writeJSON(w, http.StatusCreated, b.Summary())
	}
}

func DeleteBackup(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := d.Backups.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
			writeError(w, r, d, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func RestoreBackup(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		n, err := d.Backups.Restore(r.Context(), id)
		if err != nil {
			writeError(w, r, d, err)
			return
		}
		d.Logger.Info("backup restored via endpoint", logger.String("id", id), logger.Int("restored", n))
		writeJSON(w, http.StatusOK, restoreResponse{Restored: n})
	}
}

// ExportBackup serves one backup as a JSON download.
func ExportBackup(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		var buf bytes.Buffer
		if err := d.Backups.Export(r.Context(), id, &buf); err != nil {
			writeError(w, r, d, err)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="marksync-backup-%s.json"`, id))
		w.WriteHeader(http.StatusOK)
		_, _ = buf.WriteTo(w)
	}
}

// ImportBackups stores the backups found in the body, a single object or an array.
func ImportBackups(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		n, err := d.Backups.Import(r.Context(), http.MaxBytesReader(w, r.Body, maxBody))
		if err != nil {
			writeError(w, r, d, err)
			return
		}
		writeJSON(w, http.StatusOK, importResponse{Imported: n})
	}
}
