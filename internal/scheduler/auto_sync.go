package scheduler

import (
	"context"
	"errors"
	"time"

	"github.com/MrSnakeDoc/marksync/internal/client"
	"github.com/MrSnakeDoc/marksync/internal/logger"
	"github.com/MrSnakeDoc/marksync/internal/syncer"
)

// DefaultAutoSyncInterval is how often the auto-sync policy is evaluated.
const DefaultAutoSyncInterval = time.Hour

// Syncer is the part of the sync engine the scheduler drives.
type Syncer interface {
	AutoSync(ctx context.Context) (bool, error)
	PerformSync(ctx context.Context) (*client.SyncResponse, error)
}

// AutoSyncer evaluates the auto-sync policy on start and on every tick, and
// runs an unconditional sync on each manual trigger.
type AutoSyncer struct {
	engine        Syncer
	logger        logger.Logger
	interval      time.Duration
	stopCh        chan struct{}
	manualTrigger chan struct{}
	done          chan struct{}
}

// NewAutoSyncer creates a new auto syncer
func NewAutoSyncer(engine Syncer, log logger.Logger, interval time.Duration, manualTrigger chan struct{}) *AutoSyncer {
	if interval <= 0 {
		interval = DefaultAutoSyncInterval
	}
	return &AutoSyncer{
		engine:        engine,
		logger:        log,
		interval:      interval,
		stopCh:        make(chan struct{}),
		manualTrigger: manualTrigger,
		done:          make(chan struct{}),
	}
}

// Start runs the policy once, then keeps evaluating it in the background.
func (a *AutoSyncer) Start(ctx context.Context) {
	a.runPolicy(ctx)

	ticker := time.NewTicker(a.interval)
	go func() {
		defer close(a.done)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				a.runPolicy(ctx)
			case <-a.manualTrigger:
				a.logger.Info("manual sync triggered")
				a.runSync(ctx)
			case <-a.stopCh:
				return
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop stops the auto syncer and waits for a running sync to return.
func (a *AutoSyncer) Stop() {
	close(a.stopCh)
	<-a.done
}

func (a *AutoSyncer) runPolicy(ctx context.Context) {
	ran, err := a.engine.AutoSync(ctx)
	if !ran && err == nil {
		return
	}
	a.report(err)
}

func (a *AutoSyncer) runSync(ctx context.Context) {
	_, err := a.engine.PerformSync(ctx)
	a.report(err)
}

func (a *AutoSyncer) report(err error) {
	switch {
	case err == nil:
	case errors.Is(err, syncer.ErrNotAuthenticated):
		a.logger.Debug("sync skipped, not logged in")
	case errors.Is(err, syncer.ErrSessionExpired):
		a.logger.Warn("auto-sync stopped, session expired")
	default:
		a.logger.Error("auto-sync failed", logger.Error(err))
	}
}
