package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/MrSnakeDoc/marksync/internal/config"
	"github.com/MrSnakeDoc/marksync/internal/httpserver"
	"github.com/MrSnakeDoc/marksync/internal/httpserver/deps"
	"github.com/MrSnakeDoc/marksync/internal/logger"
	"github.com/MrSnakeDoc/marksync/internal/scheduler"
	"github.com/MrSnakeDoc/marksync/internal/version"
)

// App is the long-running sync agent: the local control API plus the
// background schedulers.
type App struct {
	cfg        *config.Config
	logger     logger.Logger
	core       *Core
	server     *httpserver.Server
	autoSyncer *scheduler.AutoSyncer
	importer   *scheduler.HomepageImporter
	rotation   *scheduler.BackupRotation
}

func New(core *Core) *App {
	cfg, loggerClient := core.Config, core.Logger

	// Create manual trigger channels
	syncTrigger := make(chan struct{}, 1)
	var importTrigger chan struct{}

	autoSyncer := scheduler.NewAutoSyncer(core.Engine, loggerClient, cfg.AutoSyncInterval, syncTrigger)

	var importer *scheduler.HomepageImporter
	if cfg.HomepageEnabled() {
		loggerClient.Info("homepage files configured, initializing importer",
			logger.Strings("files", core.Homepage.Files()))
		importTrigger = make(chan struct{}, 1)
		importer = scheduler.NewHomepageImporter(
			core.Homepage,
			core.Store,
			core.Resolver,
			loggerClient,
			cfg.HomepageImportInterval,
			cfg.HomepageWatch,
			importTrigger,
		)
	} else {
		loggerClient.Info("homepage files not configured, homepage import disabled")
	}

	var rotation *scheduler.BackupRotation
	if cfg.BackupInterval > 0 {
		rotation = scheduler.NewBackupRotation(core.Backups, loggerClient, cfg.BackupInterval, cfg.BackupRetention)
	}

	d := deps.Deps{
		Logger:           loggerClient,
		StartTime:        time.Now(),
		Version:          version.Version,
		Commit:           version.Commit,
		BuildDate:        version.BuildDate,
		GoVersion:        version.GoVersion,
		TimeNow:          time.Now,
		AllowedHosts:     cfg.AllowedHosts,
		AllowedCIDRS:     cfg.AllowedCIDRS,
		TrustProxy:       cfg.TrustProxy,
		SyncBurst:        cfg.SyncBurst,
		SyncRefillPerMin: cfg.SyncRefillPerMin,
		RateLimitPeers:   cfg.RateLimitMaxPeers,
		Engine:           core.Engine,
		Store:            core.Store,
		StoreKind:        cfg.Store,
		Backups:          core.Backups,
		RedisClient:      core.RedisClient,
		SyncTrigger:      syncTrigger,
		ImportTrigger:    importTrigger,
	}

	return &App{
		cfg:        cfg,
		logger:     loggerClient,
		core:       core,
		server:     httpserver.New(cfg, loggerClient, d),
		autoSyncer: autoSyncer,
		importer:   importer,
		rotation:   rotation,
	}
}

// Run starts the schedulers and the API, and blocks until ctx is cancelled,
// SIGINT/SIGTERM is received or the server fails.
func (a *App) Run(ctx context.Context) error {
	a.logger.Infof("🚀 Starting marksync %s on %s", version.Version, a.cfg.ListenPort)
	a.logger.Infof("marksync %s (commit=%s, built=%s, go=%s)",
		version.Version, version.Commit, version.BuildDate, version.GoVersion)

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		if err := a.server.Start(); err != nil {
			errCh <- fmt.Errorf("http server error: %w", err)
		}
	}()

	// Start homepage importer (imports once, then watches)
	if a.importer != nil {
		if err := a.importer.Start(ctx); err != nil {
			_ = a.shutdown()
			_ = a.core.Close()
			return fmt.Errorf("failed to start homepage importer: %w", err)
		}
		a.logger.Info("homepage importer started",
			logger.Duration("interval", a.cfg.HomepageImportInterval),
			logger.Bool("watch", a.cfg.HomepageWatch))
	}

	// Start backup rotation
	if a.rotation != nil {
		a.rotation.Start(ctx)
		a.logger.Info("backup rotation started",
			logger.Duration("interval", a.cfg.BackupInterval),
			logger.Duration("retention", a.cfg.BackupRetention))
	}

	// Start auto syncer (evaluates the policy right away)
	a.autoSyncer.Start(ctx)
	a.logger.Info("auto syncer started",
		logger.Duration("interval", a.cfg.AutoSyncInterval),
		logger.Duration("cooldown", a.cfg.AutoSyncCooldown))

	var runErr error
	select {
	case <-ctx.Done():
		a.logger.Info("⏳ Shutting down gracefully...")
	case runErr = <-errCh:
	}

	if err := a.shutdown(); err != nil && runErr == nil {
		runErr = err
	}

	a.autoSyncer.Stop()
	if a.importer != nil {
		a.importer.Stop()
	}
	if a.rotation != nil {
		a.rotation.Stop()
	}

	if err := a.core.Close(); err != nil {
		a.logger.Warnf("failed to close storage: %v", err)
	}

	if runErr != nil {
		return runErr
	}
	a.logger.Info("✅ marksync stopped cleanly")
	return nil
}

func (a *App) shutdown() error {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
	defer cancel()
	if err := a.server.Stop(shutdownCtx); err != nil {
		return fmt.Errorf("failed to stop server: %w", err)
	}
	return nil
}
