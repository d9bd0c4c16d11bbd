package routes

import (
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/MrSnakeDoc/marksync/internal/httpserver/deps"
	"github.com/MrSnakeDoc/marksync/internal/httpserver/handlers"
	"github.com/MrSnakeDoc/marksync/internal/httpserver/mw"
)

func init() { Register(registerSync) }

func registerSync(r chi.Router, d deps.Deps) {
	// one bucket per client and sync session, shared by both sync routes
	limit := mw.RateLimit(mw.RateLimitConfig{
		Burst:        d.SyncBurst,
		RefillPerMin: d.SyncRefillPerMin,
		MaxEntries:   d.RateLimitPeers,
		IdleTTL:      15 * time.Minute,
		TrustProxy:   d.TrustProxy,
		Key:          sessionKey(d),
		Now:          d.TimeNow,
	})

	api := r.With(guard(d)...).With(limit)
	api.Post("/api/sync", handlers.Sync(d))
	api.Post("/api/sync/trigger", handlers.TriggerSync(d))
}

// sessionKey identifies the stored sync session by a digest of its token.
func sessionKey(d deps.Deps) mw.KeyFunc {
	return func(r *http.Request) string {
		cfg, err := d.Engine.Config(r.Context())
		if err != nil || !cfg.LoggedIn() {
			return "anonymous"
		}
		sum := sha256.Sum256([]byte(cfg.Token))
		return hex.EncodeToString(sum[:8])
	}
}
