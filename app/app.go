// Package app wires the engine, its stores and the HTTP surface together.
// Every dependency is built here once and passed down through constructors.
package app

import (
	"context"
	"errors"
	"log"
	"net/http"
	"time"

	"gorm.io/gorm"

	"github.com/Web2Bizz/atom-dbro-backend-sub000/cache"
	"github.com/Web2Bizz/atom-dbro-backend-sub000/config"
	"github.com/Web2Bizz/atom-dbro-backend-sub000/controllers"
	"github.com/Web2Bizz/atom-dbro-backend-sub000/database"
	"github.com/Web2Bizz/atom-dbro-backend-sub000/events"
	"github.com/Web2Bizz/atom-dbro-backend-sub000/leveling"
	"github.com/Web2Bizz/atom-dbro-backend-sub000/middleware"
	"github.com/Web2Bizz/atom-dbro-backend-sub000/orchestrator"
	"github.com/Web2Bizz/atom-dbro-backend-sub000/progress"
	"github.com/Web2Bizz/atom-dbro-backend-sub000/repository"
	"github.com/Web2Bizz/atom-dbro-backend-sub000/routes"
	"github.com/Web2Bizz/atom-dbro-backend-sub000/utils"
)

type Options struct {
	Config config.Config
	Logger *log.Logger
	// DB overrides the connection normally opened from Config.Database.
	DB *gorm.DB
	// KV overrides the cache backend normally chosen from Config.Redis.
	KV cache.KV
}

type App struct {
	Config config.Config
	Logger *log.Logger

	DB             *gorm.DB
	Stores         repository.Stores
	KV             cache.KV
	QuestBus       *events.Bus
	AchievementBus *events.Bus
	Progress       *progress.Aggregator
	Cache          *cache.QuestCache
	Leveling       *leveling.Service
	Orchestrator   *orchestrator.Orchestrator
	Tokens         *utils.TokenIssuer
	Handler        http.Handler

	limiter *middleware.RateLimiter
	redis   *cache.RedisStore
}

// Build constructs the application and starts the event subscribers.
func Build(ctx context.Context, opts Options) (*App, error) {
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}
	cfg := opts.Config
	a := &App{Config: cfg, Logger: opts.Logger}

	stores, db, err := openStores(ctx, cfg, opts.DB, opts.Logger)
	if err != nil {
		return nil, err
	}
	a.DB, a.Stores = db, stores

	a.KV = opts.KV
	if a.KV == nil {
		a.KV = a.openKV(ctx)
	}

	a.QuestBus = events.NewBus("quest", opts.Logger)
	a.AchievementBus = events.NewBus("achievement", opts.Logger)

	a.Progress = progress.NewAggregator(stores.Quests, stores.Contributers, stores.Contributions, a.QuestBus, opts.Logger)
	a.Cache = cache.NewQuestCache(a.KV, stores.Quests, a.Progress, cfg.Cache.DefaultTTL(), opts.Logger)
	a.Leveling = leveling.NewService(stores.Users, opts.Logger)
	a.Orchestrator = orchestrator.New(orchestrator.Deps{
		QuestBus:       a.QuestBus,
		AchievementBus: a.AchievementBus,
		Achievements:   stores.Achievements,
		Progress:       a.Progress,
		Cache:          a.Cache,
		Experience:     a.Leveling,
		Logger:         opts.Logger,
	})
	a.Orchestrator.Start()

	a.Tokens = utils.NewTokenIssuer(cfg.Auth, a.KV)
	if cfg.HTTP.WriteRateLimit > 0 {
		a.limiter = middleware.NewRateLimiter(cfg.HTTP.WriteRateLimit, time.Duration(cfg.HTTP.RateWindowSec)*time.Second, cfg.HTTP.TrustedProxies)
	}
	a.Handler = routes.InitRouter(routes.Deps{
		Config:       cfg,
		Quests:       controllers.NewQuestController(stores, a.Cache, a.Progress, a.QuestBus, opts.Logger),
		Users:        controllers.NewUserController(stores.Achievements, a.Leveling, opts.Logger),
		Achievements: controllers.NewAchievementController(stores.Achievements, opts.Logger),
		Tokens:       a.Tokens,
		WriteLimiter: a.limiter,
		Logger:       opts.Logger,
	})
	return a, nil
}

func openStores(ctx context.Context, cfg config.Config, db *gorm.DB, logger *log.Logger) (repository.Stores, *gorm.DB, error) {
	if db == nil && cfg.Database.Driver == "memory" {
		logger.Printf("[database] DB_DRIVER=memory: using in-process stores, data is not persisted")
		return repository.NewMemoryStores(), nil, nil
	}
	if db == nil {
		var err error
		db, err = database.Connect(ctx, cfg.Database, cfg.Env, logger)
		if err != nil {
			return repository.Stores{}, nil, err
		}
	}
	if cfg.Database.AutoMigrate {
		if err := database.Migrate(db); err != nil {
			return repository.Stores{}, nil, err
		}
		logger.Printf("[database] migrations applied")
	}
	return repository.NewGormStores(db), db, nil
}

// openKV prefers Redis and falls back to an in-process store so a Redis
// outage never blocks startup.
func (a *App) openKV(ctx context.Context) cache.KV {
	if a.Config.Redis.Addr == "" {
		return cache.NewMemoryStore()
	}
	rs, err := cache.NewRedisStore(ctx, a.Config.Redis)
	if err != nil {
		a.Logger.Printf("[warn] [cache] %v; using in-memory cache", err)
		return cache.NewMemoryStore()
	}
	a.redis = rs
	a.Logger.Printf("[cache] using redis at %s", a.Config.Redis.Addr)
	return rs
}

// Close stops the subscribers after draining queued events and releases
// the connections.
func (a *App) Close() error {
	a.QuestBus.Close()
	a.AchievementBus.Close()
	a.Orchestrator.Stop()
	if a.limiter != nil {
		a.limiter.Close()
	}

	var errs []error
	if a.redis != nil {
		errs = append(errs, a.redis.Close())
	}
	if a.DB != nil {
		if sqlDB, err := a.DB.DB(); err == nil {
			errs = append(errs, sqlDB.Close())
		}
	}
	return errors.Join(errs...)
}
