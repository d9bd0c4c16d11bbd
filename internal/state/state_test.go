package state

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrSnakeDoc/marksync/internal/domain"
)

func backends(t *testing.T) map[string]Backend {
	return map[string]Backend{
		"memory": NewMemoryBackend(),
		"file":   NewFileBackend(filepath.Join(t.TempDir(), "state.toml")),
	}
}

func TestManager_LoadDefaults(t *testing.T) {
	for name, backend := range backends(t) {
		t.Run(name, func(t *testing.T) {
			m := NewManager(backend, "https://sync.example.com")

			cfg, err := m.Load(context.Background())
			require.NoError(t, err)
			assert.Equal(t, domain.SyncConfig{ServerURL: "https://sync.example.com", AutoSync: true}, cfg)
			assert.False(t, cfg.LoggedIn())
		})
	}
}

func TestManager_SaveLoadWholeObject(t *testing.T) {
	for name, backend := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			m := NewManager(backend, "")

			want := domain.SyncConfig{
				ServerURL:  "https://sync.example.com",
				Token:      "tok",
				Email:      "me@example.com",
				LastSyncAt: "2024-01-01T00:00:00",
				AutoSync:   false,
			}
			require.NoError(t, m.Save(ctx, want))

			got, err := m.Load(ctx)
			require.NoError(t, err)
			assert.Equal(t, want, got)
		})
	}
}

func TestManager_Update(t *testing.T) {
	ctx := context.Background()
	m := NewManager(NewMemoryBackend(), "")
	require.NoError(t, m.Save(ctx, domain.SyncConfig{ServerURL: "s", Token: "tok", AutoSync: true}))

	cfg, err := m.Update(ctx, func(cfg *domain.SyncConfig) error {
		cfg.LastSyncAt = "2024-01-01T00:00:00"
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, "tok", cfg.Token)
	assert.Equal(t, "2024-01-01T00:00:00", cfg.LastSyncAt)

	boom := errors.New("boom")
	_, err = m.Update(ctx, func(cfg *domain.SyncConfig) error {
		cfg.Token = "changed"
		return boom
	})
	assert.ErrorIs(t, err, boom)

	stored, err := m.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, "tok", stored.Token, "failed update must not be saved")
}

func TestManager_ConcurrentUpdatesAreNotLost(t *testing.T) {
	ctx := context.Background()
	m := NewManager(NewMemoryBackend(), "")

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = m.Update(ctx, func(cfg *domain.SyncConfig) error {
				cfg.Email += "x"
				return nil
			})
		}()
	}
	wg.Wait()

	cfg, err := m.Load(ctx)
	require.NoError(t, err)
	assert.Len(t, cfg.Email, 20)
}

func TestManager_ResetClearsBaseline(t *testing.T) {
	for name, backend := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			m := NewManager(backend, "https://default.example")

			require.NoError(t, m.Save(ctx, domain.SyncConfig{ServerURL: "https://other.example", Token: "tok"}))
			require.NoError(t, m.SetBaseline(ctx, []string{"https://b.com", "https://a.com", "https://a.com"}))

			baseline, err := m.Baseline(ctx)
			require.NoError(t, err)
			assert.Len(t, baseline, 2)

			require.NoError(t, m.Reset(ctx))

			cfg, err := m.Load(ctx)
			require.NoError(t, err)
			assert.Equal(t, m.Defaults(), cfg)

			baseline, err = m.Baseline(ctx)
			require.NoError(t, err)
			assert.Empty(t, baseline)
		})
	}
}

func TestManager_ResetIfToken(t *testing.T) {
	ctx := context.Background()
	m := NewManager(NewMemoryBackend(), "")
	require.NoError(t, m.Save(ctx, domain.SyncConfig{ServerURL: "s", Token: "new"}))

	reset, err := m.ResetIfToken(ctx, "old")
	require.NoError(t, err)
	assert.False(t, reset)
	cfg, _ := m.Load(ctx)
	assert.Equal(t, "new", cfg.Token)

	reset, err = m.ResetIfToken(ctx, "new")
	require.NoError(t, err)
	assert.True(t, reset)
	cfg, _ = m.Load(ctx)
	assert.False(t, cfg.LoggedIn())
}

// failingConfigBackend rejects config writes once armed.
type failingConfigBackend struct {
	*MemoryBackend
	failSave bool
}

func (b *failingConfigBackend) SaveConfig(ctx context.Context, cfg domain.SyncConfig) error {
	if b.failSave {
		return errors.New("disk full")
	}
	return b.MemoryBackend.SaveConfig(ctx, cfg)
}

func TestManager_StartSession(t *testing.T) {
	ctx := context.Background()
	backend := &failingConfigBackend{MemoryBackend: NewMemoryBackend()}
	m := NewManager(backend, "https://default.example")

	require.NoError(t, m.Save(ctx, domain.SyncConfig{ServerURL: "s", Token: "old", Email: "old@example.com"}))
	require.NoError(t, m.SetBaseline(ctx, []string{"https://a.com"}))

	backend.failSave = true
	err := m.StartSession(ctx, domain.SyncConfig{ServerURL: "s", Token: "new"})
	require.Error(t, err)

	cfg, err := m.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, "old", cfg.Token, "previous session kept")
	baseline, err := m.Baseline(ctx)
	require.NoError(t, err)
	assert.Contains(t, baseline, "https://a.com", "previous baseline kept")

	backend.failSave = false
	require.NoError(t, m.StartSession(ctx, domain.SyncConfig{ServerURL: "s", Token: "new"}))

	cfg, err = m.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, "new", cfg.Token)
	baseline, err = m.Baseline(ctx)
	require.NoError(t, err)
	assert.Empty(t, baseline)
}

func TestFileBackend_Permissions(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.toml")
	m := NewManager(NewFileBackend(path), "")

	require.NoError(t, m.Save(context.Background(), domain.SyncConfig{Token: "secret"}))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "[sync_config]")
}

func TestFileBackend_CorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.toml")
	require.NoError(t, os.WriteFile(path, []byte("not = [valid"), 0o600))

	_, err := NewManager(NewFileBackend(path), "").Load(context.Background())
	assert.Error(t, err)
}
