package app

import (
	"context"
	"errors"
	"fmt"
	"os"

	goredis "github.com/redis/go-redis/v9"

	"github.com/MrSnakeDoc/marksync/internal/backup"
	"github.com/MrSnakeDoc/marksync/internal/config"
	"github.com/MrSnakeDoc/marksync/internal/logger"
	"github.com/MrSnakeDoc/marksync/internal/merge"
	"github.com/MrSnakeDoc/marksync/internal/redis"
	"github.com/MrSnakeDoc/marksync/internal/sources/homepage"
	"github.com/MrSnakeDoc/marksync/internal/state"
	"github.com/MrSnakeDoc/marksync/internal/store"
	"github.com/MrSnakeDoc/marksync/internal/store/file"
	"github.com/MrSnakeDoc/marksync/internal/store/memory"
	redisstore "github.com/MrSnakeDoc/marksync/internal/store/redis"
	"github.com/MrSnakeDoc/marksync/internal/syncer"
)

// Core holds the components shared by the agent and the one-shot commands.
type Core struct {
	Config      *config.Config
	Logger      logger.Logger
	Store       store.Store
	State       *state.Manager
	Engine      *syncer.Engine
	Resolver    *merge.Resolver // shared by every writer that creates folders
	Backups     *backup.Manager
	Homepage    *homepage.Source
	RedisClient *goredis.Client // nil unless MARKSYNC_STORE=redis
}

// NewLogger builds the process logger from cfg.
func NewLogger(cfg *config.Config) logger.Logger {
	return logger.New(logger.Options{
		Level:  cfg.LogLevel,
		Pretty: cfg.PrettyLog,
		File:   cfg.LogFile,
	})
}

// NewCore opens the configured storage and builds the sync engine on top of it.
func NewCore(ctx context.Context, cfg *config.Config, log logger.Logger) (*Core, error) {
	c := &Core{
		Config:   cfg,
		Logger:   log,
		Homepage: homepage.NewSource(cfg.HomepageBookmarkFile, cfg.HomepageServiceFile),
	}

	var (
		stateBackend state.Backend
		backupRepo   backup.Repository
	)
	switch cfg.Store {
	case config.StoreRedis:
		log.Infof("Connecting to Redis at %s", cfg.RedisAddr)
		rc, err := redis.New(ctx, redis.ConnectOptions{
			Addr:           cfg.RedisAddr,
			User:           cfg.RedisUser,
			Password:       cfg.RedisPassword,
			RedisDB:        cfg.RedisDB,
			DialTimeout:    cfg.RedisDT,
			ReadTimeout:    cfg.RedisRT,
			WriteTimeout:   cfg.RedisWT,
			PoolSize:       cfg.RedisPoolSize,
			ConnectTimeout: cfg.RedisConnectTimeout,
			RetryInterval:  cfg.RedisRetryInterval,
			MaxWait:        cfg.RedisMaxWait,
			PingTimeout:    cfg.RedisPingTimeout,
			WarnThreshold:  cfg.RedisWarnThreshold,
		}, log)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		c.RedisClient = rc

		s, err := redisstore.NewStore(ctx, rc)
		if err != nil {
			_ = rc.Close()
			return nil, fmt.Errorf("failed to open redis bookmark store: %w", err)
		}
		c.Store = s
		stateBackend = redisstore.NewStateBackend(rc)
		backupRepo = redisstore.NewBackupRepository(rc)

	case config.StoreMemory:
		log.Warn("using in-memory bookmark store, the tree is lost on exit")
		c.Store = memory.New()
		stateBackend = state.NewFileBackend(cfg.StateFile)
		backupRepo = backup.NewMemoryRepository()

	default:
		if err := os.MkdirAll(cfg.DataDir, 0o700); err != nil {
			return nil, fmt.Errorf("failed to create data dir: %w", err)
		}
		s, err := file.Open(cfg.TreeFile, log)
		if err != nil {
			return nil, err
		}
		repo, err := backup.OpenFileRepository(cfg.BackupFile)
		if err != nil {
			return nil, err
		}
		c.Store = s
		stateBackend = state.NewFileBackend(cfg.StateFile)
		backupRepo = repo
	}

	c.State = state.NewManager(stateBackend, cfg.ServerURL)
	c.Resolver = merge.NewResolver(c.Store, log)
	c.Engine = syncer.New(c.Store, c.State, log, syncer.Options{
		Resolver:             c.Resolver,
		Timeout:              cfg.SyncTimeout,
		Cooldown:             cfg.AutoSyncCooldown,
		PreserveLocalDeletes: cfg.PreserveLocalDeletes,
	})
	c.Backups = backup.NewManager(c.Store, backupRepo, log, backup.WithMax(cfg.BackupMax))

	log.Debug("core initialized",
		logger.String("store", cfg.Store),
		logger.Bool("preserve_local_deletes", cfg.PreserveLocalDeletes))
	return c, nil
}

// Close releases the storage connections.
func (c *Core) Close() error {
	var errs []error
	if c.RedisClient != nil {
		if err := c.RedisClient.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close redis: %w", err))
		}
	}
	if err := c.Logger.Sync(); err != nil {
		errs = append(errs, fmt.Errorf("failed to flush logs: %w", err))
	}
	return errors.Join(errs...)
}
