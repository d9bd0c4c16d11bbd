package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/MrSnakeDoc/marksync/internal/domain"
	"github.com/MrSnakeDoc/marksync/internal/httpserver/deps"
	"github.com/MrSnakeDoc/marksync/internal/store"
	"github.com/MrSnakeDoc/marksync/internal/tree"
)

var errInvalidLimit = errors.New("limit must be a non-negative integer")

type bookmarkResult struct {
	domain.Bookmark
	Score float64 `json:"score,omitempty"`
}

type bookmarksResponse struct {
	Query     string           `json:"query,omitempty"`
	Total     int              `json:"total"`
	Bookmarks []bookmarkResult `json:"bookmarks"`
}

// Bookmarks lists the flattened local tree. With ?q= the results are ranked
// by match score and non-matches are dropped; ?limit= caps the list.
func Bookmarks(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		query := strings.TrimSpace(r.URL.Query().Get("q"))
		limit, err := parseLimit(r.URL.Query().Get("limit"))
		if err != nil {
			writeDetail(w, http.StatusBadRequest, err.Error())
			return
		}

		local, err := d.Engine.LocalBookmarks(r.Context())
		if err != nil {
			writeError(w, r, d, err)
			return
		}

		results := make([]bookmarkResult, 0, len(local))
		if query == "" {
			for _, b := range local {
				results = append(results, bookmarkResult{Bookmark: b})
			}
		} else {
			for _, c := range domain.RankBookmarkCandidates(query, local) {
				results = append(results, bookmarkResult{Bookmark: c.Bookmark, Score: c.Score})
			}
		}
		total := len(results)
		if limit > 0 && len(results) > limit {
			results = results[:limit]
		}

		writeJSON(w, http.StatusOK, bookmarksResponse{Query: query, Total: total, Bookmarks: results})
	}
}

func parseLimit(raw string) (int, error) {
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, errInvalidLimit
	}
	return n, nil
}

type foldersResponse struct {
	Folders []tree.Folder `json:"folders"`
}

// Folders lists every folder of the local tree.
func Folders(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		root, err := d.Store.GetTree(r.Context())
		if err != nil {
			writeError(w, r, d, err)
			return
		}
		folders := tree.Folders(root)
		if folders == nil {
			folders = []tree.Folder{}
		}
		writeJSON(w, http.StatusOK, foldersResponse{Folders: folders})
	}
}

type createBookmarkRequest struct {
	ParentID string `json:"parentId"`
	Title    string `json:"title"`
	URL      string `json:"url"`
}

// CreateBookmark adds a bookmark, or a folder when url is empty. parentId
// defaults to the bookmarks bar.
func CreateBookmark(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req createBookmarkRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, r, d, err)
			return
		}
		req.Title = strings.TrimSpace(req.Title)
		req.URL = strings.TrimSpace(req.URL)
		if req.URL == "" && req.Title == "" {
			writeDetail(w, http.StatusBadRequest, "a folder needs a title")
			return
		}
		if req.URL != "" {
			if err := validateURL(req.URL); err != nil {
				writeError(w, r, d, err)
				return
			}
		}
		if req.ParentID == "" {
			req.ParentID = domain.DefaultContainerID
		}

		n, err := d.Store.Create(r.Context(), store.CreateParams{ParentID: req.ParentID, Title: req.Title, URL: req.URL})
		if err != nil {
			writeError(w, r, d, err)
			return
		}
		writeJSON(w, http.StatusCreated, n)
	}
}

type updateBookmarkRequest struct {
	Title *string `json:"title"`
}

// UpdateBookmark renames a bookmark or folder.
func UpdateBookmark(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req updateBookmarkRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, r, d, err)
			return
		}
		if req.Title == nil {
			writeDetail(w, http.StatusBadRequest, "nothing to update")
			return
		}
		n, err := d.Store.Update(r.Context(), chi.URLParam(r, "id"), store.UpdateParams{Title: req.Title})
		if err != nil {
			writeError(w, r, d, err)
			return
		}
		writeJSON(w, http.StatusOK, n)
	}
}

type moveBookmarkRequest struct {
	ParentID string `json:"parentId"`
}

// MoveBookmark reparents a bookmark or folder under parentId.
func MoveBookmark(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req moveBookmarkRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, r, d, err)
			return
		}
		if req.ParentID == "" {
			writeDetail(w, http.StatusBadRequest, "parentId is required")
			return
		}
		n, err := d.Store.Move(r.Context(), chi.URLParam(r, "id"), req.ParentID)
		if err != nil {
			writeError(w, r, d, err)
			return
		}
		writeJSON(w, http.StatusOK, n)
	}
}

// DeleteBookmark removes a bookmark, or a folder with everything in it.
func DeleteBookmark(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := d.Store.Remove(r.Context(), chi.URLParam(r, "id")); err != nil {
			writeError(w, r, d, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func validateURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" && u.Opaque == "" {
		return fmt.Errorf("%w: invalid url %q", errBadRequest, raw)
	}
	return nil
}
