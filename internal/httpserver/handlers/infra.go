package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/MrSnakeDoc/marksync/internal/httpserver/deps"
	redisconn "github.com/MrSnakeDoc/marksync/internal/redis"
	"github.com/MrSnakeDoc/marksync/internal/tree"
)

type componentStatus struct {
	OK        bool   `json:"ok"`
	Bookmarks *int   `json:"bookmarks,omitempty"`
	LastSync  string `json:"last_sync,omitempty"`
	State     string `json:"state,omitempty"`
	Mode      string `json:"mode,omitempty"`
	Impact    string `json:"impact,omitempty"`
	Error     string `json:"error,omitempty"`
}

type infraResponse struct {
	Status     string                     `json:"status"`
	Components map[string]componentStatus `json:"components"`
}

func Infra(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		components := map[string]componentStatus{
			"store": checkStore(r.Context(), d),
			"sync":  checkSync(d),
		}
		if d.RedisClient != nil {
			components["redis"] = checkRedis(r.Context(), d)
		}

		writeJSON(w, http.StatusOK, infraResponse{
			Status:     determineStatus(components),
			Components: components,
		})
	}
}

func determineStatus(components map[string]componentStatus) string {
	// Without a readable tree nothing works
	if st, exists := components["store"]; exists && !st.OK {
		return "critical"
	}

	for _, name := range []string{"redis", "sync"} {
		if c, exists := components[name]; exists && !c.OK {
			return "degraded"
		}
	}

	return "ok"
}

func checkStore(ctx context.Context, d deps.Deps) componentStatus {
	ctx, cancel := context.WithTimeout(ctx, readinessTimeout)
	defer cancel()

	root, err := d.Store.GetTree(ctx)
	if err != nil {
		return componentStatus{OK: false, Mode: d.StoreKind, Error: err.Error()}
	}
	count := len(tree.Flatten(root))
	return componentStatus{OK: true, Mode: d.StoreKind, Bookmarks: &count}
}

func checkSync(d deps.Deps) componentStatus {
	status := componentStatus{OK: true, State: d.Engine.Phase().String(), LastSync: "never"}

	outcome, ok := d.Engine.LastOutcome()
	if !ok {
		return status
	}
	status.LastSync = outcome.At.Format(time.RFC3339)
	if outcome.Err != "" {
		status.OK = false
		status.Impact = "local changes not uploaded"
		status.Error = outcome.Err
	}
	return status
}

func checkRedis(ctx context.Context, d deps.Deps) componentStatus {
	if err := redisconn.Ping(ctx, d.RedisClient, readinessTimeout); err != nil {
		return componentStatus{
			OK:     false,
			Mode:   "degraded",
			Impact: "bookmark tree unavailable",
			Error:  err.Error(),
		}
	}

	return componentStatus{
		OK:   true,
		Mode: "optimal",
	}
}
