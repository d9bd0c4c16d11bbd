package syncer

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/MrSnakeDoc/marksync/internal/client"
	"github.com/MrSnakeDoc/marksync/internal/domain"
	"github.com/MrSnakeDoc/marksync/internal/logger"
	"github.com/MrSnakeDoc/marksync/internal/tree"
)

// MinPasswordLength applies to registration only.
const MinPasswordLength = 6

// Status is the combined local and server view of the sync account.
type Status struct {
	LoggedIn      bool   `json:"logged_in"`
	Email         string `json:"email,omitempty"`
	ServerURL     string `json:"server_url"`
	AutoSync      bool   `json:"auto_sync"`
	LastSyncAt    string `json:"last_sync_at,omitempty"`
	BookmarkCount int    `json:"bookmark_count"`
	SyncCount     int    `json:"sync_count"`
	LocalCount    int    `json:"local_count"`
	State         string `json:"state"`
	Error         string `json:"error,omitempty"`
}

// Register creates an account on serverURL and stores the session.
// An empty serverURL keeps the configured one.
func (e *Engine) Register(ctx context.Context, serverURL, email, password string) (domain.SyncConfig, error) {
	if len(password) < MinPasswordLength {
		return domain.SyncConfig{}, fmt.Errorf("%w: password must be at least %d characters", ErrInvalidInput, MinPasswordLength)
	}
	return e.authenticate(ctx, serverURL, email, password, Remote.Register)
}

// Login authenticates against serverURL and stores the session.
// An empty serverURL keeps the configured one.
func (e *Engine) Login(ctx context.Context, serverURL, email, password string) (domain.SyncConfig, error) {
	return e.authenticate(ctx, serverURL, email, password, Remote.Login)
}

type authFunc func(Remote, context.Context, client.Credentials) (*client.AuthResponse, error)

func (e *Engine) authenticate(ctx context.Context, serverURL, email, password string, call authFunc) (domain.SyncConfig, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return domain.SyncConfig{}, fmt.Errorf("%w: email and password are required", ErrInvalidInput)
	}

	if strings.TrimSpace(serverURL) == "" {
		current, err := e.config.Load(ctx)
		if err != nil {
			return domain.SyncConfig{}, err
		}
		serverURL = current.ServerURL
	}
	serverURL = client.NormalizeBaseURL(serverURL)

	resp, err := call(e.opts.NewRemote(serverURL), ctx, client.Credentials{Email: email, Password: password})
	if err != nil {
		e.logger.Warn("authentication failed",
			logger.String("server", serverURL),
			logger.String("email", email),
			logger.Error(err))
		return domain.SyncConfig{}, err
	}
	if resp.Token == "" {
		return domain.SyncConfig{}, fmt.Errorf("server %s returned no token", serverURL)
	}
	if resp.Email != "" {
		email = resp.Email
	}

	cfg := domain.SyncConfig{
		ServerURL: serverURL,
		Token:     resp.Token,
		Email:     email,
		AutoSync:  true,
	}
	if err := e.config.StartSession(ctx, cfg); err != nil {
		return domain.SyncConfig{}, err
	}

	e.logger.Info("logged in", logger.String("server", serverURL), logger.String("email", email))
	return cfg, nil
}

// Logout forgets the session. The server URL returns to the default.
func (e *Engine) Logout(ctx context.Context) error {
	if err := e.config.Reset(ctx); err != nil {
		return err
	}
	e.logger.Info("logged out")
	return nil
}

// SetAutoSync toggles automatic syncing.
func (e *Engine) SetAutoSync(ctx context.Context, enabled bool) (domain.SyncConfig, error) {
	return e.config.Update(ctx, func(cfg *domain.SyncConfig) error {
		cfg.AutoSync = enabled
		return nil
	})
}

// Config returns the stored sync config.
func (e *Engine) Config(ctx context.Context) (domain.SyncConfig, error) {
	return e.config.Load(ctx)
}

// Status reports the account state. A rejected token is cleared and reported
// as logged out; other server failures are reported in Error.
func (e *Engine) Status(ctx context.Context) (Status, error) {
	cfg, err := e.config.Load(ctx)
	if err != nil {
		return Status{}, err
	}

	st := Status{
		ServerURL:  cfg.ServerURL,
		AutoSync:   cfg.AutoSync,
		LastSyncAt: cfg.LastSyncAt,
		State:      e.Phase().String(),
	}
	if root, err := e.store.GetTree(ctx); err == nil {
		st.LocalCount = len(tree.Flatten(root))
	}
	if !cfg.LoggedIn() {
		return st, nil
	}

	st.LoggedIn = true
	st.Email = cfg.Email

	remote, err := e.opts.NewRemote(cfg.ServerURL).Status(ctx, cfg.Token)
	switch {
	case errors.Is(err, client.ErrUnauthorized):
		if _, err := e.config.ResetIfToken(context.WithoutCancel(ctx), cfg.Token); err != nil {
			return Status{}, err
		}
		e.logger.Warn("status rejected, session expired")
		defaults := e.config.Defaults()
		st.LoggedIn, st.Email, st.LastSyncAt = false, "", ""
		st.ServerURL, st.AutoSync = defaults.ServerURL, defaults.AutoSync
		return st, nil
	case err != nil:
		st.Error = err.Error()
		return st, nil
	}

	st.BookmarkCount = remote.BookmarkCount
	st.SyncCount = remote.SyncCount
	if st.LastSyncAt == "" {
		st.LastSyncAt = remote.LastSyncAt
	}
	return st, nil
}

// AutoSync runs a sync when logged in, auto-sync is enabled and the cooldown
// since lastSyncAt has elapsed. ran reports whether a sync was attempted.
func (e *Engine) AutoSync(ctx context.Context) (ran bool, err error) {
	cfg, err := e.config.Load(ctx)
	if err != nil {
		return false, err
	}
	if !cfg.LoggedIn() || !cfg.AutoSync {
		return false, nil
	}
	if last, err := domain.ParseSyncTime(cfg.LastSyncAt); err == nil {
		if since := e.opts.Now().Sub(last); since < e.opts.Cooldown {
			e.logger.Debug("auto-sync skipped, cooldown active",
				logger.Duration("since_last_sync", since),
				logger.Duration("cooldown", e.opts.Cooldown))
			return false, nil
		}
	}
	_, err = e.PerformSync(ctx)
	return true, err
}
