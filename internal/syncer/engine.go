// Package syncer runs the sync protocol against the remote server: snapshot
// the local tree, upload it, merge the canonical list back, record lastSyncAt.
package syncer

import (
	"context"
	"errors"
	"net/http/httptrace"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/MrSnakeDoc/marksync/internal/client"
	"github.com/MrSnakeDoc/marksync/internal/domain"
	"github.com/MrSnakeDoc/marksync/internal/logger"
	"github.com/MrSnakeDoc/marksync/internal/merge"
	"github.com/MrSnakeDoc/marksync/internal/state"
	"github.com/MrSnakeDoc/marksync/internal/store"
	"github.com/MrSnakeDoc/marksync/internal/tree"
)

const (
	// DefaultTimeout bounds the sync round trip.
	DefaultTimeout = 30 * time.Second
	// DefaultCooldown is the minimum time between two automatic syncs.
	DefaultCooldown = 20 * time.Hour
)

// Phase is the position of the engine in the sync state machine.
type Phase int32

const (
	Idle Phase = iota
	Uploading
	AwaitingResponse
	Merging
)

func (p Phase) String() string {
	switch p {
	case Idle:
		return "idle"
	case Uploading:
		return "uploading"
	case AwaitingResponse:
		return "awaiting_response"
	case Merging:
		return "merging"
	default:
		return "unknown"
	}
}

// Remote is the sync server API.
type Remote interface {
	Register(ctx context.Context, creds client.Credentials) (*client.AuthResponse, error)
	Login(ctx context.Context, creds client.Credentials) (*client.AuthResponse, error)
	Sync(ctx context.Context, token string, bookmarks []domain.Bookmark) (*client.SyncResponse, error)
	Status(ctx context.Context, token string) (*client.StatusResponse, error)
}

// RemoteFactory returns a Remote for a server URL.
type RemoteFactory func(serverURL string) Remote

// Outcome describes the most recent sync attempt.
type Outcome struct {
	At       time.Time `json:"at"`
	Err      string    `json:"error,omitempty"`
	Added    int       `json:"added"`
	Updated  int       `json:"updated"`
	Deleted  int       `json:"deleted"`
	Created  int       `json:"created"`
	Skipped  int       `json:"skipped"`
	Failed   int       `json:"failed"`
	Duration string    `json:"duration"`
}

// Options configures an Engine.
type Options struct {
	Timeout  time.Duration // sync round trip; DefaultTimeout when zero
	Cooldown time.Duration // auto-sync spacing; DefaultCooldown when zero

	// PreserveLocalDeletes keeps bookmarks deleted locally since the last
	// successful sync from being recreated out of the canonical list.
	PreserveLocalDeletes bool

	// Resolver serializes merges into the store. Writers that resolve folder
	// paths on the same store must share it; defaults to a private one.
	Resolver *merge.Resolver

	NewRemote RemoteFactory    // defaults to an HTTP client per server URL
	Now       func() time.Time // defaults to time.Now
}

// Engine runs syncs. At most one sync is in flight; concurrent callers
// join it and receive its result.
type Engine struct {
	store    store.Store
	config   *state.Manager
	resolver *merge.Resolver
	logger   logger.Logger
	opts     Options

	flight singleflight.Group
	phase  atomic.Int32

	mu      sync.Mutex
	outcome *Outcome
}

func New(s store.Store, cfg *state.Manager, log logger.Logger, opts Options) *Engine {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.Cooldown <= 0 {
		opts.Cooldown = DefaultCooldown
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.NewRemote == nil {
		timeout := opts.Timeout
		opts.NewRemote = func(serverURL string) Remote {
			return client.New(serverURL, client.WithTimeout(timeout))
		}
	}
	if opts.Resolver == nil {
		opts.Resolver = merge.NewResolver(s, log)
	}
	return &Engine{
		store:    s,
		config:   cfg,
		resolver: opts.Resolver,
		logger:   log,
		opts:     opts,
	}
}

// Phase returns the current state machine position.
func (e *Engine) Phase() Phase {
	return Phase(e.phase.Load())
}

func (e *Engine) setPhase(p Phase) {
	e.phase.Store(int32(p))
}

// LastOutcome returns the most recent sync attempt, if any.
func (e *Engine) LastOutcome() (Outcome, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.outcome == nil {
		return Outcome{}, false
	}
	return *e.outcome, true
}

// PerformSync uploads the local snapshot, merges the canonical list back
// and records lastSyncAt. The response counts are relayed from the server.
//
// Errors: ErrNotAuthenticated, ErrSessionExpired or *SyncFailedError.
// Per-item merge failures are logged and do not fail the sync.
//
// A call made while another sync is running waits for that sync and shares
// its result. The running sync uses the context of the call that started it.
func (e *Engine) PerformSync(ctx context.Context) (*client.SyncResponse, error) {
	ch := e.flight.DoChan("sync", func() (interface{}, error) {
		return e.performSync(ctx)
	})
	select {
	case res := <-ch:
		if res.Shared {
			e.logger.Debug("joined in-flight sync")
		}
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*client.SyncResponse), nil
	case <-ctx.Done():
		return nil, syncFailed("cancelled", ctx.Err())
	}
}

func (e *Engine) performSync(ctx context.Context) (resp *client.SyncResponse, err error) {
	started := e.opts.Now()
	outcome := Outcome{At: started}
	defer func() {
		e.setPhase(Idle)
		if err != nil {
			outcome.Err = err.Error()
		}
		outcome.Duration = e.opts.Now().Sub(started).String()
		e.mu.Lock()
		e.outcome = &outcome
		e.mu.Unlock()
	}()

	cfg, err := e.config.Load(ctx)
	if err != nil {
		return nil, syncFailed("cannot read sync config", err)
	}
	if !cfg.LoggedIn() {
		return nil, ErrNotAuthenticated
	}

	e.setPhase(Uploading)
	root, err := e.store.GetTree(ctx)
	if err != nil {
		return nil, syncFailed("cannot read local bookmarks", err)
	}
	local := tree.Flatten(root)

	e.logger.Info("sync started",
		logger.String("server", cfg.ServerURL),
		logger.Int("local_bookmarks", len(local)))

	resp, err = e.upload(ctx, cfg, local)
	if err != nil {
		return nil, err
	}
	outcome.Added, outcome.Updated, outcome.Deleted = resp.Added, resp.Updated, resp.Deleted

	e.setPhase(Merging)
	var mergeOpts []merge.Option
	if e.opts.PreserveLocalDeletes {
		baseline, err := e.config.Baseline(ctx)
		if err != nil {
			e.logger.Warn("sync baseline unavailable, local deletions may be restored", logger.Error(err))
		} else {
			mergeOpts = append(mergeOpts, merge.WithSkip(baseline))
		}
	}

	report, err := e.resolver.MergeCloudOnly(ctx, resp.Bookmarks, local, mergeOpts...)
	outcome.Created, outcome.Skipped, outcome.Failed = report.Created, report.Skipped, len(report.Failed)
	if err != nil {
		return nil, syncFailed("merge aborted", err)
	}

	if err := e.recordSuccess(ctx, cfg.Token, resp.LastSyncAt, report.SkippedURLs); err != nil {
		return nil, err
	}

	e.logger.Info("sync completed",
		logger.String("last_sync_at", resp.LastSyncAt),
		logger.Int("added", resp.Added),
		logger.Int("updated", resp.Updated),
		logger.Int("deleted", resp.Deleted),
		logger.Int("created_locally", report.Created),
		logger.Int("merge_failures", len(report.Failed)))

	return resp, nil
}

// upload performs the round trip and maps failures onto the error taxonomy.
func (e *Engine) upload(ctx context.Context, cfg domain.SyncConfig, local []domain.Bookmark) (*client.SyncResponse, error) {
	callCtx, cancel := context.WithTimeout(ctx, e.opts.Timeout)
	defer cancel()
	callCtx = httptrace.WithClientTrace(callCtx, &httptrace.ClientTrace{
		WroteRequest: func(httptrace.WroteRequestInfo) { e.setPhase(AwaitingResponse) },
	})

	resp, err := e.opts.NewRemote(cfg.ServerURL).Sync(callCtx, cfg.Token, local)
	if err == nil {
		return resp, nil
	}

	if errors.Is(err, client.ErrUnauthorized) {
		if _, resetErr := e.config.ResetIfToken(context.WithoutCancel(ctx), cfg.Token); resetErr != nil {
			e.logger.Error("failed to clear expired session", logger.Error(resetErr))
		}
		e.logger.Warn("sync rejected, session expired")
		return nil, ErrSessionExpired
	}

	var apiErr *client.APIError
	switch {
	case errors.As(err, &apiErr):
		e.logger.Warn("sync rejected by server",
			logger.Int("status", apiErr.StatusCode),
			logger.String("detail", apiErr.Error()))
		return nil, syncFailed(apiErr.Error(), err)
	case ctx.Err() != nil:
		return nil, syncFailed("cancelled", err)
	default:
		e.logger.Warn("sync request failed", logger.Error(err))
		return nil, syncFailed("network error", err)
	}
}

// recordSuccess stores lastSyncAt and the new baseline, unless the session
// changed while the sync was running. The baseline is every local URL plus
// the canonical URLs withheld as local deletions, so a deletion stays
// withheld for as long as the server keeps returning it.
func (e *Engine) recordSuccess(ctx context.Context, token, lastSyncAt string, withheld []string) error {
	_, err := e.config.Update(ctx, func(cfg *domain.SyncConfig) error {
		if cfg.Token != token {
			return errSessionChanged
		}
		cfg.LastSyncAt = lastSyncAt
		return nil
	})
	if errors.Is(err, errSessionChanged) {
		e.logger.Warn("session changed during sync, lastSyncAt not recorded")
		return nil
	}
	if err != nil {
		return syncFailed("cannot save sync config", err)
	}

	if !e.opts.PreserveLocalDeletes {
		return nil
	}
	root, err := e.store.GetTree(ctx)
	if err != nil {
		e.logger.Warn("failed to snapshot sync baseline", logger.Error(err))
		return nil
	}
	local := tree.Flatten(root)
	urls := make([]string, 0, len(local)+len(withheld))
	for _, b := range local {
		urls = append(urls, b.URL)
	}
	urls = append(urls, withheld...)
	if err := e.config.SetBaseline(ctx, urls); err != nil {
		e.logger.Warn("failed to save sync baseline", logger.Error(err))
	}
	return nil
}

var errSessionChanged = errors.New("session changed during sync")

// LocalBookmarks returns the flattened local tree.
func (e *Engine) LocalBookmarks(ctx context.Context) ([]domain.Bookmark, error) {
	root, err := e.store.GetTree(ctx)
	if err != nil {
		return nil, err
	}
	return tree.Flatten(root), nil
}
