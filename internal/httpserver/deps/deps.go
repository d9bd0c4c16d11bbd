package deps

import (
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/MrSnakeDoc/marksync/internal/backup"
	"github.com/MrSnakeDoc/marksync/internal/logger"
	"github.com/MrSnakeDoc/marksync/internal/store"
	"github.com/MrSnakeDoc/marksync/internal/syncer"
)

type Deps struct {
	Logger       logger.Logger
	StartTime    time.Time
	Version      string
	Commit       string
	BuildDate    string
	GoVersion    string
	TimeNow      func() time.Time // for testing, defaults to time.Now
	AllowedHosts []string         // Host headers allowed to reach the API
	AllowedCIDRS []string         // client networks allowed to reach the API
	TrustProxy   bool             // true if running behind a trusted reverse proxy

	SyncBurst        int // sync route bucket size per client
	SyncRefillPerMin int // sync route tokens regained per minute
	RateLimitPeers   int // tracked clients before eviction

	Engine      *syncer.Engine  // sync engine and account operations
	Store       store.Store     // local bookmark tree
	StoreKind   string          // "file" | "memory" | "redis"
	Backups     *backup.Manager // backup snapshots
	RedisClient *redis.Client   // nil unless the redis store is used

	SyncTrigger   chan struct{} // queues a sync on the auto syncer
	ImportTrigger chan struct{} // queues a homepage import (nil if homepage import is disabled)
}

// Now returns the configured clock.
func (d Deps) Now() time.Time {
	if d.TimeNow != nil {
		return d.TimeNow()
	}
	return time.Now()
}
