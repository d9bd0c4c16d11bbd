package handlers

import (
	"net/http"

	"github.com/MrSnakeDoc/marksync/internal/httpserver/deps"
	"github.com/MrSnakeDoc/marksync/internal/logger"
	"github.com/MrSnakeDoc/marksync/internal/utils"
)

// Sync runs a sync and relays the server response. A sync already in
// flight is joined.
func Sync(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp, err := d.Engine.PerformSync(r.Context())
		if err != nil {
			writeError(w, r, d, err)
			return
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

type triggerResponse struct {
	Triggered bool   `json:"triggered"`
	Detail    string `json:"detail"`
}

// TriggerSync queues a sync on the auto syncer and returns immediately.
func TriggerSync(d deps.Deps) http.HandlerFunc {
	return trigger(d, d.SyncTrigger, "sync")
}

// TriggerHomepageImport queues a homepage import.
func TriggerHomepageImport(d deps.Deps) http.HandlerFunc {
	return trigger(d, d.ImportTrigger, "homepage import")
}

func trigger(d deps.Deps, ch chan struct{}, name string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if ch == nil {
			writeDetail(w, http.StatusNotFound, name+" is not configured")
			return
		}

		clientIP := utils.ClientIP(r, d.TrustProxy)
		select {
		case ch <- struct{}{}:
			d.Logger.Info("manual "+name+" triggered via endpoint", logger.String("client_ip", clientIP))
			writeJSON(w, http.StatusAccepted, triggerResponse{Triggered: true, Detail: name + " triggered"})
		default:
			d.Logger.Warn(name+" already queued", logger.String("client_ip", clientIP))
			writeJSON(w, http.StatusTooManyRequests, triggerResponse{Detail: name + " already queued, please wait"})
		}
	}
}
