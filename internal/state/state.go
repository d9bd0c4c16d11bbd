// Package state owns the persisted SyncConfig. Every reader and writer goes
// through Manager, which persists the config as one whole object.
package state

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/MrSnakeDoc/marksync/internal/domain"
)

// Backend persists the sync config and the sync baseline.
type Backend interface {
	// LoadConfig returns found=false when nothing has been saved yet.
	LoadConfig(ctx context.Context) (cfg domain.SyncConfig, found bool, err error)
	SaveConfig(ctx context.Context, cfg domain.SyncConfig) error

	// LoadBaseline returns the URLs present locally after the last successful sync.
	LoadBaseline(ctx context.Context) ([]string, error)
	SaveBaseline(ctx context.Context, urls []string) error
}

// Manager serializes access to the sync config.
type Manager struct {
	mu               sync.Mutex
	backend          Backend
	defaultServerURL string
}

// NewManager returns a Manager over backend. defaultServerURL seeds the
// logged-out configuration.
func NewManager(backend Backend, defaultServerURL string) *Manager {
	return &Manager{backend: backend, defaultServerURL: defaultServerURL}
}

// Defaults returns the logged-out configuration.
func (m *Manager) Defaults() domain.SyncConfig {
	return domain.DefaultSyncConfig(m.defaultServerURL)
}

// Load returns the stored config, or the defaults when none is stored.
func (m *Manager) Load(ctx context.Context) (domain.SyncConfig, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.loadLocked(ctx)
}

func (m *Manager) loadLocked(ctx context.Context) (domain.SyncConfig, error) {
	cfg, found, err := m.backend.LoadConfig(ctx)
	if err != nil {
		return domain.SyncConfig{}, fmt.Errorf("failed to load sync config: %w", err)
	}
	if !found {
		return m.Defaults(), nil
	}
	if cfg.ServerURL == "" {
		cfg.ServerURL = m.Defaults().ServerURL
	}
	return cfg, nil
}

// Save replaces the stored config.
func (m *Manager) Save(ctx context.Context, cfg domain.SyncConfig) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.backend.SaveConfig(ctx, cfg); err != nil {
		return fmt.Errorf("failed to save sync config: %w", err)
	}
	return nil
}

// Update applies fn to the stored config and saves the result, all under one
// lock. When fn returns an error nothing is saved.
func (m *Manager) Update(ctx context.Context, fn func(cfg *domain.SyncConfig) error) (domain.SyncConfig, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	cfg, err := m.loadLocked(ctx)
	if err != nil {
		return domain.SyncConfig{}, err
	}
	if err := fn(&cfg); err != nil {
		return domain.SyncConfig{}, err
	}
	if err := m.backend.SaveConfig(ctx, cfg); err != nil {
		return domain.SyncConfig{}, fmt.Errorf("failed to save sync config: %w", err)
	}
	return cfg, nil
}

// Reset stores the logged-out defaults and forgets the sync baseline.
func (m *Manager) Reset(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.backend.SaveConfig(ctx, m.Defaults()); err != nil {
		return fmt.Errorf("failed to reset sync config: %w", err)
	}
	if err := m.backend.SaveBaseline(ctx, nil); err != nil {
		return fmt.Errorf("failed to clear sync baseline: %w", err)
	}
	return nil
}

// StartSession stores cfg as a fresh session with an empty baseline, under
// one lock. The baseline is cleared first; if cfg then cannot be saved the
// previous baseline is put back and the previous session stays in place.
func (m *Manager) StartSession(ctx context.Context, cfg domain.SyncConfig) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	previous, err := m.backend.LoadBaseline(ctx)
	if err != nil {
		return fmt.Errorf("failed to load sync baseline: %w", err)
	}
	if err := m.backend.SaveBaseline(ctx, nil); err != nil {
		return fmt.Errorf("failed to clear sync baseline: %w", err)
	}
	if err := m.backend.SaveConfig(ctx, cfg); err != nil {
		if restoreErr := m.backend.SaveBaseline(ctx, previous); restoreErr != nil {
			err = errors.Join(err, restoreErr)
		}
		return fmt.Errorf("failed to save sync config: %w", err)
	}
	return nil
}

// ResetIfToken resets the state only while token is still the stored one, so
// a rejected stale token never logs out a newer session.
func (m *Manager) ResetIfToken(ctx context.Context, token string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	cfg, err := m.loadLocked(ctx)
	if err != nil {
		return false, err
	}
	if cfg.Token != token {
		return false, nil
	}
	if err := m.backend.SaveConfig(ctx, m.Defaults()); err != nil {
		return false, fmt.Errorf("failed to reset sync config: %w", err)
	}
	if err := m.backend.SaveBaseline(ctx, nil); err != nil {
		return false, fmt.Errorf("failed to clear sync baseline: %w", err)
	}
	return true, nil
}

// Baseline returns the URLs recorded after the last successful sync.
func (m *Manager) Baseline(ctx context.Context) (map[string]struct{}, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	urls, err := m.backend.LoadBaseline(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load sync baseline: %w", err)
	}
	set := make(map[string]struct{}, len(urls))
	for _, u := range urls {
		set[u] = struct{}{}
	}
	return set, nil
}

// SetBaseline records the URLs present locally after a successful sync.
func (m *Manager) SetBaseline(ctx context.Context, urls []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	sorted := slices.Clone(urls)
	slices.Sort(sorted)
	sorted = slices.Compact(sorted)
	if err := m.backend.SaveBaseline(ctx, sorted); err != nil {
		return fmt.Errorf("failed to save sync baseline: %w", err)
	}
	return nil
}
