package redis

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/MrSnakeDoc/marksync/internal/backup"
)

// BackupRepository keeps backups in a Redis list, newest at the head.
type BackupRepository struct {
	client *redis.Client
}

func NewBackupRepository(client *redis.Client) *BackupRepository {
	return &BackupRepository{client: client}
}

func (r *BackupRepository) Put(ctx context.Context, b backup.Backup, max int) error {
	data, err := json.Marshal(b)
	if err != nil {
		return fmt.Errorf("failed to marshal backup: %w", err)
	}
	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.LPush(ctx, KeyBackups, data)
		if max > 0 {
			pipe.LTrim(ctx, KeyBackups, 0, int64(max-1))
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to save backup: %w", err)
	}
	return nil
}

func (r *BackupRepository) List(ctx context.Context) ([]backup.Backup, error) {
	raw, err := r.client.LRange(ctx, KeyBackups, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list backups: %w", err)
	}
	backups := make([]backup.Backup, 0, len(raw))
	for _, item := range raw {
		var b backup.Backup
		if err := json.Unmarshal([]byte(item), &b); err != nil {
			// Skip entries that couldn't be decoded
			continue
		}
		backups = append(backups, b)
	}
	return backups, nil
}

func (r *BackupRepository) Get(ctx context.Context, id string) (backup.Backup, error) {
	b, _, err := r.find(ctx, id)
	return b, err
}

func (r *BackupRepository) Delete(ctx context.Context, id string) error {
	_, raw, err := r.find(ctx, id)
	if err != nil {
		return err
	}
	if err := r.client.LRem(ctx, KeyBackups, 1, raw).Err(); err != nil {
		return fmt.Errorf("failed to delete backup: %w", err)
	}
	return nil
}

// find returns the backup with id and its stored encoding.
func (r *BackupRepository) find(ctx context.Context, id string) (backup.Backup, string, error) {
	raw, err := r.client.LRange(ctx, KeyBackups, 0, -1).Result()
	if err != nil {
		return backup.Backup{}, "", fmt.Errorf("failed to list backups: %w", err)
	}
	for _, item := range raw {
		var b backup.Backup
		if err := json.Unmarshal([]byte(item), &b); err != nil {
			continue
		}
		if b.ID == id {
			return b, item, nil
		}
	}
	return backup.Backup{}, "", backup.ErrNotFound
}

var _ backup.Repository = (*BackupRepository)(nil)
