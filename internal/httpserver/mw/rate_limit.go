package mw

import (
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/MrSnakeDoc/marksync/internal/utils"
)

// KeyFunc names the quota a request draws from, on top of its client IP.
type KeyFunc func(r *http.Request) string

// RateLimitConfig configures a token bucket per client IP and key.
type RateLimitConfig struct {
	Burst        int           // bucket capacity
	RefillPerMin int           // tokens regained per minute
	MaxEntries   int           // tracked buckets before idle ones are evicted, 0 = unbounded
	IdleTTL      time.Duration // buckets unused for this long are dropped
	TrustProxy   bool          // resolve the client IP from proxy headers
	Key          KeyFunc       // nil keys on the client IP alone
	Now          func() time.Time
}

// quota is one token bucket. tokens are refilled lazily on take.
type quota struct {
	mu      sync.Mutex
	tokens  float64
	updated time.Time
}

// take spends one token. When none is left it returns how long until one is.
func (q *quota) take(now time.Time, capacity, perSec float64) (remaining int, wait time.Duration, ok bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if dt := now.Sub(q.updated).Seconds(); dt > 0 {
		q.tokens = math.Min(capacity, q.tokens+dt*perSec)
		q.updated = now
	}
	if q.tokens < 1 {
		return 0, time.Duration((1 - q.tokens) / perSec * float64(time.Second)), false
	}
	q.tokens--
	return int(q.tokens), 0, true
}

func (q *quota) idleSince() time.Time {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.updated
}

type quotas struct {
	cfg      RateLimitConfig
	capacity float64
	perSec   float64

	mu        sync.Mutex
	byKey     map[string]*quota
	lastEvict time.Time
}

func newQuotas(cfg RateLimitConfig) *quotas {
	cfg.Burst = max(cfg.Burst, 1)
	cfg.RefillPerMin = max(cfg.RefillPerMin, 1)
	if cfg.IdleTTL <= 0 {
		cfg.IdleTTL = 15 * time.Minute
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &quotas{
		cfg:       cfg,
		capacity:  float64(cfg.Burst),
		perSec:    float64(cfg.RefillPerMin) / 60,
		byKey:     make(map[string]*quota, 64),
		lastEvict: cfg.Now(),
	}
}

// get returns the bucket for key, evicting idle buckets once per IdleTTL or
// whenever the table is full.
func (qs *quotas) get(key string, now time.Time) *quota {
	qs.mu.Lock()
	defer qs.mu.Unlock()

	full := qs.cfg.MaxEntries > 0 && len(qs.byKey) >= qs.cfg.MaxEntries
	if full || now.Sub(qs.lastEvict) >= qs.cfg.IdleTTL {
		for k, q := range qs.byKey {
			if now.Sub(q.idleSince()) > qs.cfg.IdleTTL {
				delete(qs.byKey, k)
			}
		}
		qs.lastEvict = now
	}

	q, ok := qs.byKey[key]
	if !ok {
		q = &quota{tokens: qs.capacity, updated: now}
		qs.byKey[key] = q
	}
	return q
}

func (qs *quotas) key(r *http.Request) string {
	ip := utils.ClientIP(r, qs.cfg.TrustProxy)
	if qs.cfg.Key == nil {
		return ip
	}
	return ip + "|" + qs.cfg.Key(r)
}

// RateLimit answers 429 with Retry-After once a client's bucket is empty.
func RateLimit(cfg RateLimitConfig) func(http.Handler) http.Handler {
	qs := newQuotas(cfg)
	limit := strconv.Itoa(qs.cfg.Burst)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			now := qs.cfg.Now()
			remaining, wait, ok := qs.get(qs.key(r), now).take(now, qs.capacity, qs.perSec)

			w.Header().Set("X-RateLimit-Limit", limit)
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
			if !ok {
				w.Header().Set("Retry-After", strconv.Itoa(max(int(math.Ceil(wait.Seconds())), 1)))
				deny(w, http.StatusTooManyRequests)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
