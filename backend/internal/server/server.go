// Package server assembles the task tracker: storage, services, cache,
// middleware and routes, and runs the HTTP server with graceful shutdown.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"task-tracker/backend/internal/cache"
	"task-tracker/backend/internal/config"
	"task-tracker/backend/internal/database"
	"task-tracker/backend/internal/handlers"
	"task-tracker/backend/internal/middleware"
	"task-tracker/backend/internal/monitoring"
	"task-tracker/backend/internal/repositories"
	"task-tracker/backend/internal/services"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Application holds all application dependencies and state
type Application struct {
	Config  *config.Config
	Logger  *zap.Logger
	DB      *gorm.DB
	Redis   *redis.Client
	Cache   cache.Cache
	Metrics *monitoring.Metrics
	Health  *monitoring.HealthChecker

	TaskService  services.TaskService
	DueByService services.DueByService

	Router *gin.Engine
	Server *http.Server

	pool *database.DatabasePool
}

// New wires services and routes on top of an open database. redisClient may
// be nil, in which case the cache stays in memory and rate limiting is local.
func New(cfg *config.Config, log *zap.Logger, db *gorm.DB, redisClient *redis.Client) *Application {
	if log == nil {
		log = zap.NewNop()
	}

	app := &Application{
		Config:  cfg,
		Logger:  log,
		DB:      db,
		Redis:   redisClient,
		Metrics: monitoring.NewMetrics(),
		Health:  monitoring.NewHealthChecker(2 * time.Second),
	}

	app.initServices()
	app.initHealthChecks()
	app.setupRoutes()

	return app
}

func (app *Application) initServices() {
	dueByRepo := repositories.NewDueByRepository(app.DB)
	taskRepo := repositories.NewTaskRepository(app.DB, dueByRepo)

	app.DueByService = services.NewDueByService(taskRepo, dueByRepo, app.Metrics)

	taskService := services.NewTaskService(taskRepo)
	if !app.Config.Cache.Enabled {
		app.TaskService = taskService
		app.Logger.Info("✅ Task service initialized")
		return
	}

	var l2 *cache.RedisCache
	if app.Redis != nil {
		l2 = cache.NewRedisCache(app.Redis, app.Config.Cache.KeyPrefix)
	}
	app.Cache = cache.NewMultiLevelCache(
		cache.NewMemoryCache(time.Minute),
		l2,
		cache.WithL1TTL(app.Config.Cache.L1TTL),
		cache.WithRecorder(app.Metrics),
		cache.WithTombstoneTTL(app.Config.Cache.TTL),
	)
	app.TaskService = services.NewCachedTaskService(taskService, app.Cache, app.Config.Cache.TTL, app.Logger)

	if l2 != nil {
		app.Logger.Info("✅ Cached task service initialized (memory L1 + redis L2)")
	} else {
		app.Logger.Info("✅ Cached task service initialized (memory only)")
	}
}

func (app *Application) initHealthChecks() {
	app.Health.Register("database", func(ctx context.Context) error {
		sqlDB, err := app.DB.DB()
		if err != nil {
			return err
		}
		return sqlDB.PingContext(ctx)
	})

	if app.Redis != nil {
		app.Health.RegisterOptional("redis", func(ctx context.Context) error {
			return app.Redis.Ping(ctx).Err()
		})
	}
}

func (app *Application) setupRoutes() {
	r := gin.New()

	// Global middleware stack (order matters!)
	r.Use(middleware.RequestID())
	r.Use(middleware.RecoveryWithLog(app.Logger))
	r.Use(middleware.RequestLogger(app.Logger))
	r.Use(app.Metrics.Middleware())
	r.Use(middleware.SecureHeader())

	r.Use(cors.New(cors.Config{
		AllowOrigins:     app.Config.Server.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "X-Request-ID"},
		ExposeHeaders:    []string{"Content-Length", "X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	if limiter := app.rateLimiter(); limiter != nil {
		r.Use(limiter)
	}

	// Health and monitoring endpoints
	r.GET("/health", app.Health.HealthHandler())
	r.GET("/ready", app.Health.ReadinessHandler())
	r.GET("/metrics", app.Metrics.Handler())

	taskHandler := handlers.NewTaskHandler(app.TaskService, app.Logger)
	dueByHandler := handlers.NewDueByHandler(app.DueByService, app.Logger)

	handlers.RegisterTaskRoutes(r, taskHandler, dueByHandler)
	v1 := r.Group("/api/v1")
	handlers.RegisterTaskRoutes(v1, taskHandler, dueByHandler)

	if app.Cache != nil {
		cacheHandler := handlers.NewCacheHandler(app.Cache)
		handlers.RegisterCacheRoutes(r, cacheHandler)
		handlers.RegisterCacheRoutes(v1, cacheHandler)
	}

	app.Router = r
}

func (app *Application) rateLimiter() gin.HandlerFunc {
	rl := app.Config.RateLimit
	if !rl.Enabled {
		return nil
	}

	if rl.Distributed && app.Redis != nil {
		app.Logger.Info("✅ Distributed rate limiting enabled", zap.Int("requests_per_min", rl.RequestsPerMin))
		limiter := middleware.NewDistributedRateLimiter(app.Redis, app.Logger)
		return limiter.CreateMiddleware("api", &middleware.RateLimit{
			Rate:    rl.RequestsPerMin,
			Window:  time.Minute,
			KeyFunc: middleware.IPKeyFunc,
		})
	}

	if rl.Distributed {
		app.Logger.Warn("⚠️  Redis unavailable, falling back to in-memory rate limiting")
	}
	return middleware.RateLimiter(rate.Limit(float64(rl.RequestsPerMin)/60.0), rl.BurstSize)
}

// Bootstrap opens the database pool, applies migrations when configured and
// connects to redis. A redis that cannot be reached is logged and skipped.
func Bootstrap(ctx context.Context, cfg *config.Config, log *zap.Logger) (*Application, error) {
	log.Info("🚀 Initializing Task Tracker Backend...")
	log.Info("📋 Environment", zap.String("environment", cfg.Server.Environment))

	pool, err := OpenDatabase(cfg, log)
	if err != nil {
		return nil, fmt.Errorf("database connection failed: %w", err)
	}

	if cfg.Migrations.AutoMigrate {
		if err := repositories.RunMigrations(pool.DB, MigrationConfig(cfg), log); err != nil {
			_ = pool.Close()
			return nil, fmt.Errorf("database migration failed: %w", err)
		}
	}

	redisClient := connectRedis(ctx, cfg, log)

	app := New(cfg, log, pool.DB, redisClient)
	app.pool = pool
	return app, nil
}

func OpenDatabase(cfg *config.Config, log *zap.Logger) (*database.DatabasePool, error) {
	poolCfg := database.DefaultPoolConfig()
	poolCfg.DSN = cfg.Database.DSN()
	poolCfg.MaxOpenConns = cfg.Database.MaxOpenConns
	poolCfg.MaxIdleConns = cfg.Database.MaxIdleConns
	poolCfg.ConnMaxLifetime = cfg.Database.ConnMaxLifetime
	poolCfg.ConnMaxIdleTime = cfg.Database.ConnMaxIdleTime
	poolCfg.SlowThreshold = cfg.Database.SlowThreshold
	if cfg.IsProduction() {
		poolCfg.LogLevel = logger.Error
	}
	return database.NewDatabasePool(poolCfg, log)
}

func MigrationConfig(cfg *config.Config) *repositories.MigrationConfig {
	migrationCfg := &repositories.MigrationConfig{
		DBName:     cfg.Database.Name,
		MaxRetries: cfg.Migrations.MaxRetries,
		RetryDelay: cfg.Migrations.RetryDelay,
	}
	if cfg.Migrations.Path != "" {
		migrationCfg.MigrationsPath = "file://" + cfg.Migrations.Path
	}
	return migrationCfg
}

func connectRedis(ctx context.Context, cfg *config.Config, log *zap.Logger) *redis.Client {
	if !cfg.Cache.Enabled && !cfg.RateLimit.Distributed {
		return nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:         cfg.GetRedisAddr(),
		Password:     cfg.Redis.Password,
		DB:           cfg.Redis.DB,
		PoolSize:     cfg.Redis.PoolSize,
		MinIdleConns: cfg.Redis.MinIdleConns,
		MaxRetries:   cfg.Redis.MaxRetries,
		DialTimeout:  cfg.Redis.DialTimeout,
		ReadTimeout:  cfg.Redis.ReadTimeout,
		WriteTimeout: cfg.Redis.WriteTimeout,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		log.Warn("⚠️  Redis unavailable, continuing without it", zap.String("addr", cfg.GetRedisAddr()), zap.Error(err))
		_ = client.Close()
		return nil
	}

	log.Info("✅ Redis connected", zap.String("addr", cfg.GetRedisAddr()))
	return client
}

// Run serves until ctx is cancelled, then drains in-flight requests within
// the configured shutdown timeout.
func (app *Application) Run(ctx context.Context) error {
	addr := app.Config.GetServerAddr()

	app.Server = &http.Server{
		Addr:         addr,
		Handler:      app.Router,
		ReadTimeout:  app.Config.Server.ReadTimeout,
		WriteTimeout: app.Config.Server.WriteTimeout,
		IdleTimeout:  app.Config.Server.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		app.Logger.Info("🚀 Server starting", zap.String("addr", addr))
		app.Logger.Info("📊 Metrics available", zap.String("url", "http://"+addr+"/metrics"))
		app.Logger.Info("💚 Health check", zap.String("url", "http://"+addr+"/health"))

		if err := app.Server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("server failed to start: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	app.Logger.Info("🛑 Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), app.Config.Server.ShutdownTimeout)
	defer cancel()

	if err := app.Server.Shutdown(shutdownCtx); err != nil {
		app.Logger.Error("❌ Server forced to shutdown", zap.Error(err))
		return err
	}

	app.Logger.Info("✅ Server stopped gracefully")
	return nil
}

func (app *Application) Close() {
	app.Logger.Info("🧹 Cleaning up resources...")

	if app.Cache != nil {
		if err := app.Cache.Close(); err != nil {
			app.Logger.Warn("⚠️  Error closing cache", zap.Error(err))
		}
	}

	if app.Redis != nil {
		if err := app.Redis.Close(); err != nil {
			app.Logger.Warn("⚠️  Error closing Redis", zap.Error(err))
		}
	}

	if app.pool != nil {
		if err := app.pool.Close(); err != nil {
			app.Logger.Warn("⚠️  Error closing database", zap.Error(err))
		}
	}

	app.Logger.Info("✅ Cleanup complete")
	_ = app.Logger.Sync()
}
