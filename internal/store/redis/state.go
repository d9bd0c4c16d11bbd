package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/MrSnakeDoc/marksync/internal/domain"
	"github.com/MrSnakeDoc/marksync/internal/state"
)

// StateBackend persists the sync config as one JSON value and the sync
// baseline as a set.
type StateBackend struct {
	client *redis.Client
}

func NewStateBackend(client *redis.Client) *StateBackend {
	return &StateBackend{client: client}
}

func (b *StateBackend) LoadConfig(ctx context.Context) (domain.SyncConfig, bool, error) {
	data, err := b.client.Get(ctx, KeySyncConfig).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domain.SyncConfig{}, false, nil
		}
		return domain.SyncConfig{}, false, fmt.Errorf("failed to get sync config: %w", err)
	}
	var cfg domain.SyncConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return domain.SyncConfig{}, false, fmt.Errorf("failed to unmarshal sync config: %w", err)
	}
	return cfg, true, nil
}

func (b *StateBackend) SaveConfig(ctx context.Context, cfg domain.SyncConfig) error {
	data, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal sync config: %w", err)
	}
	if err := b.client.Set(ctx, KeySyncConfig, data, 0).Err(); err != nil {
		return fmt.Errorf("failed to save sync config: %w", err)
	}
	return nil
}

func (b *StateBackend) LoadBaseline(ctx context.Context) ([]string, error) {
	urls, err := b.client.SMembers(ctx, KeyBaseline).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get sync baseline: %w", err)
	}
	return urls, nil
}

func (b *StateBackend) SaveBaseline(ctx context.Context, urls []string) error {
	_, err := b.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, KeyBaseline)
		if len(urls) > 0 {
			members := make([]interface{}, len(urls))
			for i, u := range urls {
				members[i] = u
			}
			pipe.SAdd(ctx, KeyBaseline, members...)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to save sync baseline: %w", err)
	}
	return nil
}

var _ state.Backend = (*StateBackend)(nil)
