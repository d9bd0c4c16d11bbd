package config

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Store backends selectable with MARKSYNC_STORE.
const (
	StoreFile   = "file"
	StoreMemory = "memory"
	StoreRedis  = "redis"
)

type Config struct {
	ListenPort      string        // ex: "127.0.0.1:7878"
	ShutdownTimeout time.Duration // ex: 5s
	RequestTimeout  time.Duration // per request, must exceed SyncTimeout

	LogLevel  string // "debug" | "info" | "warn" | "error"
	PrettyLog bool   // true => zap dev (color), false => zap prod (JSON)
	LogFile   string // optional, rotated JSON log file

	// Local storage
	DataDir    string // default: ~/.marksync
	Store      string // "file" | "memory" | "redis"
	TreeFile   string // bookmark tree snapshot (file store)
	StateFile  string // sync config + baseline (file and memory stores)
	BackupFile string // backup snapshots (file store)

	// Sync
	ServerURL            string        // default remote server
	SyncTimeout          time.Duration // sync round trip
	AutoSyncCooldown     time.Duration // minimum spacing between automatic syncs
	AutoSyncInterval     time.Duration // how often the auto-sync policy runs
	PreserveLocalDeletes bool          // don't recreate bookmarks deleted locally

	// Backups
	BackupMax       int           // snapshots kept, newest first
	BackupInterval  time.Duration // automatic snapshot interval, 0 = disabled
	BackupRetention time.Duration // automatic snapshots older than this are pruned

	// Homepage import
	HomepageBookmarkFile   string        // optional, path to homepage bookmarks.yaml
	HomepageServiceFile    string        // optional, path to homepage services.yaml
	HomepageImportInterval time.Duration // periodic import
	HomepageWatch          bool          // re-import when the files change

	// Redis (MARKSYNC_STORE=redis)
	RedisAddr             string        // ex: "localhost:6379"
	RedisUser             string        // optional
	RedisPassword         string        // optional
	RedisPasswordRequired bool          // true => require password, false => allow empty password
	RedisDB               int           // Redis DB number
	RedisDT               time.Duration // Redis dial timeout (ex: 5s)
	RedisRT               time.Duration // Redis read timeout (ex: 3s)
	RedisWT               time.Duration // Redis write timeout (ex: 3s)
	RedisMaxWait          time.Duration // max wait between retries (ex: 10s)
	RedisPingTimeout      time.Duration // timeout for each ping attempt (ex: 5s)
	RedisPoolSize         int           // Redis connection pool size
	RedisConnectTimeout   time.Duration // Total time to retry connecting (ex: 30s)
	RedisRetryInterval    time.Duration // Initial wait between retries (ex: 2s, grows exponentially)
	RedisWarnThreshold    int           // warn after this many attempts

	// Sync route rate limit
	SyncBurst         int // tokens per client
	SyncRefillPerMin  int // tokens regained per minute
	RateLimitMaxPeers int // tracked clients before eviction

	AllowedHosts []string // optional, restrict access to specific Host headers
	AllowedCIDRS []string // restrict access to specific networks (default: loopback)
	TrustProxy   bool     // true => trust X-Forwarded-For headers
}

func Load() *Config {
	dataDir := getenv("MARKSYNC_DATA_DIR", defaultDataDir())
	syncTimeout := mustDuration("MARKSYNC_SYNC_TIMEOUT", 30*time.Second)

	cfg := &Config{
		// Server settings
		ListenPort:      getenv("MARKSYNC_LISTEN_PORT", "127.0.0.1:7878"),
		ShutdownTimeout: mustDuration("MARKSYNC_SHUTDOWN_TIMEOUT", 5*time.Second),
		RequestTimeout:  mustDuration("MARKSYNC_REQUEST_TIMEOUT", syncTimeout+15*time.Second),

		// Logging
		LogLevel:  getenv("MARKSYNC_LOG_LEVEL", "info"),
		PrettyLog: mustBool("MARKSYNC_PRETTY_LOG", true),
		LogFile:   getenv("MARKSYNC_LOG_FILE", ""),

		// Storage
		DataDir:    dataDir,
		Store:      strings.ToLower(getenv("MARKSYNC_STORE", StoreFile)),
		TreeFile:   getenv("MARKSYNC_TREE_FILE", filepath.Join(dataDir, "bookmarks.json")),
		StateFile:  getenv("MARKSYNC_STATE_FILE", filepath.Join(dataDir, "state.toml")),
		BackupFile: getenv("MARKSYNC_BACKUP_FILE", filepath.Join(dataDir, "backups.json")),

		// Sync
		ServerURL:            getenv("MARKSYNC_SERVER_URL", "http://localhost:8000"),
		SyncTimeout:          syncTimeout,
		AutoSyncCooldown:     mustDuration("MARKSYNC_AUTO_SYNC_COOLDOWN", 20*time.Hour),
		AutoSyncInterval:     mustDuration("MARKSYNC_AUTO_SYNC_INTERVAL", time.Hour),
		PreserveLocalDeletes: mustBool("MARKSYNC_PRESERVE_LOCAL_DELETES", true),

		// Backups
		BackupMax:       getenvInt("MARKSYNC_BACKUP_MAX", 20),
		BackupInterval:  mustDuration("MARKSYNC_BACKUP_INTERVAL", 24*time.Hour),
		BackupRetention: mustDuration("MARKSYNC_BACKUP_RETENTION", 30*24*time.Hour),

		// Homepage import
		HomepageBookmarkFile:   getenv("MARKSYNC_HOMEPAGE_BOOKMARK_FILE", ""),
		HomepageServiceFile:    getenv("MARKSYNC_HOMEPAGE_SERVICE_FILE", ""),
		HomepageImportInterval: mustDuration("MARKSYNC_HOMEPAGE_IMPORT_INTERVAL", 10*time.Minute),
		HomepageWatch:          mustBool("MARKSYNC_HOMEPAGE_WATCH", true),

		// Rate limit
		SyncBurst:         getenvInt("MARKSYNC_SYNC_BURST", 5),
		SyncRefillPerMin:  getenvInt("MARKSYNC_SYNC_REFILL_PER_MIN", 6),
		RateLimitMaxPeers: getenvInt("MARKSYNC_RATE_LIMIT_MAX_PEERS", 1024),

		// Access restrictions
		AllowedHosts: splitAndTrim(getenv("MARKSYNC_ALLOWED_HOSTS", "")),
		AllowedCIDRS: parseAllowedIPs(getenv("MARKSYNC_ALLOWED_CIDRS", "127.0.0.0/8,::1/128")),
		TrustProxy:   mustBool("MARKSYNC_TRUST_PROXY", false),
	}

	switch cfg.Store {
	case StoreFile, StoreMemory:
	case StoreRedis:
		loadRedis(cfg)
	default:
		panic(fmt.Sprintf("❌ FATAL: MARKSYNC_STORE must be one of file, memory, redis (got %q)", cfg.Store))
	}

	if cfg.RequestTimeout <= cfg.SyncTimeout {
		panic("❌ FATAL: MARKSYNC_REQUEST_TIMEOUT must be greater than MARKSYNC_SYNC_TIMEOUT")
	}

	// Log config only in debug mode with redacted sensitive fields
	if cfg.LogLevel == "debug" {
		cfgCopy := *cfg
		if cfg.RedisPassword != "" {
			cfgCopy.RedisPassword = "***REDACTED***"
		}
		log.Printf("[DEBUG] cfg: %+v\n", cfgCopy)
	}

	return cfg
}

// HomepageEnabled reports whether a homepage file is configured.
func (c *Config) HomepageEnabled() bool {
	return c.HomepageBookmarkFile != "" || c.HomepageServiceFile != ""
}

func loadRedis(cfg *Config) {
	cfg.RedisAddr = requireEnv("MARKSYNC_REDIS_ADDR")
	cfg.RedisUser = getenv("MARKSYNC_REDIS_USERNAME", "default")
	cfg.RedisPasswordRequired = mustBool("MARKSYNC_REDIS_PASSWORD_REQUIRED", true)
	cfg.RedisPassword = getenv("MARKSYNC_REDIS_PASSWORD", "")
	cfg.RedisDB = requireEnvInt("MARKSYNC_REDIS_DB")
	cfg.RedisDT = mustDuration("MARKSYNC_REDIS_DIAL_TIMEOUT", 5*time.Second)
	cfg.RedisRT = mustDuration("MARKSYNC_REDIS_READ_TIMEOUT", 3*time.Second)
	cfg.RedisWT = mustDuration("MARKSYNC_REDIS_WRITE_TIMEOUT", 3*time.Second)
	cfg.RedisMaxWait = mustDuration("MARKSYNC_REDIS_MAX_WAIT", 10*time.Second)
	cfg.RedisPingTimeout = mustDuration("MARKSYNC_REDIS_PING_TIMEOUT", 5*time.Second)
	cfg.RedisPoolSize = getenvInt("MARKSYNC_REDIS_POOL_SIZE", 10)
	cfg.RedisConnectTimeout = mustDuration("MARKSYNC_REDIS_CONNECT_TIMEOUT", 30*time.Second)
	cfg.RedisRetryInterval = mustDuration("MARKSYNC_REDIS_RETRY_INTERVAL", 2*time.Second)
	cfg.RedisWarnThreshold = getenvInt("MARKSYNC_REDIS_WARN_THRESHOLD", 3)

	if cfg.RedisPasswordRequired && cfg.RedisPassword == "" {
		panic("❌ FATAL: MARKSYNC_REDIS_PASSWORD is required when MARKSYNC_REDIS_PASSWORD_REQUIRED=true")
	}
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return ".marksync"
	}
	return filepath.Join(home, ".marksync")
}

// helpers
func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func requireEnv(key string) string {
	v := os.Getenv(key)
	if v == "" {
		panic(fmt.Sprintf("❌ FATAL: Required environment variable %s is not set", key))
	}
	return v
}

func requireEnvInt(key string) int {
	v := os.Getenv(key)
	if v == "" {
		panic(fmt.Sprintf("❌ FATAL: Required environment variable %s is not set", key))
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		panic(fmt.Sprintf("❌ FATAL: Invalid integer value for %s: %s", key, v))
	}
	return i
}

func getenvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func mustBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err == nil {
			return b
		}
	}
	return def
}

func mustDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func parseAllowedIPs(allowed string) []string {
	if allowed == "" {
		return nil
	}
	ips := make([]string, 0, 4)
	for _, ip := range splitAndTrim(allowed) {
		if ip != "" {
			ips = append(ips, ip)
		}
	}
	return ips
}

func splitAndTrim(s string) []string {
	if s == "" {
		return nil
	}
	raw := strings.Split(s, ",")
	parts := make([]string, 0, len(raw))
	for _, part := range raw {
		trimmed := strings.TrimSpace(part)
		// Remove surrounding quotes if present
		trimmed = strings.Trim(trimmed, `"'`)
		if trimmed != "" {
			parts = append(parts, trimmed)
		}
	}
	return parts
}
