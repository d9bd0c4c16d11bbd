package state

import (
	"context"
	"slices"
	"sync"

	"github.com/MrSnakeDoc/marksync/internal/domain"
)

// MemoryBackend keeps state in process memory.
type MemoryBackend struct {
	mu       sync.Mutex
	cfg      *domain.SyncConfig
	baseline []string
}

func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{}
}

func (b *MemoryBackend) LoadConfig(ctx context.Context) (domain.SyncConfig, bool, error) {
	if err := ctx.Err(); err != nil {
		return domain.SyncConfig{}, false, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.cfg == nil {
		return domain.SyncConfig{}, false, nil
	}
	return *b.cfg, true, nil
}

func (b *MemoryBackend) SaveConfig(ctx context.Context, cfg domain.SyncConfig) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.cfg = &cfg
	return nil
}

func (b *MemoryBackend) LoadBaseline(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return slices.Clone(b.baseline), nil
}

func (b *MemoryBackend) SaveBaseline(ctx context.Context, urls []string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.baseline = slices.Clone(urls)
	return nil
}

var _ Backend = (*MemoryBackend)(nil)
