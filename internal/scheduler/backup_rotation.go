package scheduler

import (
	"context"
	"time"

	"github.com/MrSnakeDoc/marksync/internal/backup"
	"github.com/MrSnakeDoc/marksync/internal/logger"
)

const (
	// DefaultBackupRetention is the age after which automatic backups are deleted
	DefaultBackupRetention = 30 * 24 * time.Hour // 30 days
)

// Backups is the part of the backup manager the rotation uses.
type Backups interface {
	Create(ctx context.Context, name string, auto bool) (backup.Backup, error)
	Prune(ctx context.Context, cutoff time.Time) (int, error)
}

// BackupRotation takes an automatic backup on every tick and deletes
// automatic backups older than the retention. Manual backups are never pruned.
type BackupRotation struct {
	backups   Backups
	logger    logger.Logger
	interval  time.Duration
	retention time.Duration
	now       func() time.Time
	stopCh    chan struct{}
	done      chan struct{}
}

// NewBackupRotation creates a new backup rotation
func NewBackupRotation(backups Backups, log logger.Logger, interval, retention time.Duration) *BackupRotation {
	if retention == 0 {
		retention = DefaultBackupRetention
	}
	return &BackupRotation{
		backups:   backups,
		logger:    log,
		interval:  interval,
		retention: retention,
		now:       time.Now,
		stopCh:    make(chan struct{}),
		done:      make(chan struct{}),
	}
}

// Start prunes once, then rotates on every tick.
func (br *BackupRotation) Start(ctx context.Context) {
	if err := br.Prune(ctx); err != nil {
		br.logger.Warn("initial backup pruning failed", logger.Error(err))
	}

	ticker := time.NewTicker(br.interval)
	go func() {
		defer close(br.done)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if err := br.Rotate(ctx); err != nil {
					br.logger.Error("backup rotation failed", logger.Error(err))
				}
			case <-br.stopCh:
				return
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop stops the rotation
func (br *BackupRotation) Stop() {
	close(br.stopCh)
	<-br.done
}

// Rotate takes an automatic backup, then prunes.
func (br *BackupRotation) Rotate(ctx context.Context) error {
	if _, err := br.backups.Create(ctx, "", true); err != nil {
		return err
	}
	return br.Prune(ctx)
}

// Prune removes automatic backups older than the retention.
func (br *BackupRotation) Prune(ctx context.Context) error {
	deleted, err := br.backups.Prune(ctx, br.now().Add(-br.retention))
	if err != nil {
		return err
	}
	if deleted > 0 {
		br.logger.Info("pruned automatic backups",
			logger.Int("deleted", deleted),
			logger.Duration("retention", br.retention))
	} else {
		br.logger.Debug("no backups to prune")
	}
	return nil
}
