package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"github.com/sungreong/TaskWeaver/internal/config"
	"github.com/sungreong/TaskWeaver/internal/middleware"
	"github.com/sungreong/TaskWeaver/internal/tracker/entity"
	"github.com/sungreong/TaskWeaver/internal/tracker/handler"
	"github.com/sungreong/TaskWeaver/internal/tracker/repository"
	"github.com/sungreong/TaskWeaver/internal/tracker/service"
	"github.com/sungreong/TaskWeaver/internal/tracker/sse"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const eventsPath = "/api/v1/events"

func runServe(cmd *cobra.Command, args []string) error {
	cfg, zapLogger, err := bootstrap()
	if err != nil {
		log.Printf("%v", err)
		return err
	}
	defer zapLogger.Sync()

	zapLogger.Info("Starting taskweaver service",
		zap.String("version", Version),
		zap.String("build_time", BuildTime),
	)

	// 初始化数据库
	db, err := initDatabase(cfg.Database)
	if err != nil {
		zapLogger.Error("Failed to connect to database", zap.Error(err))
		return err
	}
	if err := db.AutoMigrate(entity.AllModels()...); err != nil {
		zapLogger.Error("AutoMigrate failed", zap.Error(err))
		return err
	}

	// Redis 可选，仅用于汇总缓存
	var rdb *redis.Client
	if cfg.Redis.Enabled() {
		rdb = initRedis(cfg.Redis)
		if err := rdb.Ping(cmd.Context()).Err(); err != nil {
			zapLogger.Warn("Redis unavailable, summary cache will miss until it recovers", zap.Error(err))
		}
		defer rdb.Close()
	}

	hub := sse.NewHub(zapLogger)
	repos := repository.NewRepositories(db)
	services := service.NewServices(repos, rdb, cfg, zapLogger, hub)
	if err := services.Archive.EnsureBucket(cmd.Context()); err != nil {
		zapLogger.Warn("Archive bucket unavailable", zap.Error(err))
	}
	handlers := handler.NewHandlers(services, hub, cfg)

	// 设置Gin模式
	if cfg.Server.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	// 创建路由
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestID())
	router.Use(middleware.Logger(zapLogger))
	router.Use(middleware.CORS(cfg.CORS.Origins))
	router.Use(gzip.Gzip(gzip.DefaultCompression, gzip.WithExcludedPaths([]string{eventsPath})))

	registerRoutes(router, handlers, db, rdb, cfg)

	// 创建HTTP服务器
	srv := &http.Server{
		Addr:        fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:     router,
		ReadTimeout: cfg.Server.ReadTimeout,
		// SSE 长连接不设写超时
		WriteTimeout: 0,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		zapLogger.Info("Server starting", zap.Int("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		zapLogger.Error("Failed to start server", zap.Error(err))
		return err
	case <-ctx.Done():
	}

	zapLogger.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		zapLogger.Error("Server forced to shutdown", zap.Error(err))
	}

	zapLogger.Info("Server exited")
	return nil
}

func initLogger(cfg config.LogConfig) (*zap.Logger, error) {
	var zapCfg zap.Config

	if cfg.Format == "json" {
		zapCfg = zap.NewProductionConfig()
	} else {
		zapCfg = zap.NewDevelopmentConfig()
	}

	switch cfg.Level {
	case "debug":
		zapCfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	case "info":
		zapCfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	case "warn":
		zapCfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	case "error":
		zapCfg.Level = zap.NewAtomicLevelAt(zap.ErrorLevel)
	}

	return zapCfg.Build()
}

func initDatabase(cfg config.DatabaseConfig) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch cfg.Driver {
	case "postgres", "":
		dialector = postgres.Open(cfg.PostgresDSN())
	case "sqlite":
		dsn := cfg.DSN
		if dsn == "" {
			dsn = "taskweaver.db"
		}
		dialector = sqlite.Open(dsn)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}

	gormConfig := &gorm.Config{
		Logger: logger.Default.LogMode(gormLogLevel(cfg.LogLevel)),
	}

	db, err := gorm.Open(dialector, gormConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database instance: %w", err)
	}

	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	sqlDB.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)
	if cfg.Driver == "sqlite" {
		// sqlite 单写
		sqlDB.SetMaxOpenConns(1)
	}

	return db, nil
}

func gormLogLevel(level string) logger.LogLevel {
	switch level {
	case "silent":
		return logger.Silent
	case "error":
		return logger.Error
	case "info":
		return logger.Info
	default:
		return logger.Warn
	}
}

func initRedis(cfg config.RedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	})
}

func registerRoutes(r *gin.Engine, h *handler.Handlers, db *gorm.DB, rdb *redis.Client, cfg *config.Config) {
	// 健康检查
	r.GET("/health/live", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/health/ready", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		checks := gin.H{"database": "ok"}
		status := http.StatusOK
		if sqlDB, err := db.DB(); err != nil || sqlDB.PingContext(ctx) != nil {
			checks["database"] = "unavailable"
			status = http.StatusServiceUnavailable
		}
		// redis 不可用时只降级缓存
		if rdb != nil {
			checks["redis"] = "ok"
			if err := rdb.Ping(ctx).Err(); err != nil {
				checks["redis"] = "unavailable"
			}
		}
		checks["status"] = "ok"
		if status != http.StatusOK {
			checks["status"] = "unavailable"
		}
		c.JSON(status, checks)
	})

	// 版本信息
	r.GET("/version", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"version":    Version,
			"build_time": BuildTime,
		})
	})

	api := r.Group("/api/v1")
	if cfg.JWT.Secret != "" {
		api.Use(middleware.JWTAuth(cfg.JWT.Secret))
	}
	h.RegisterRoutes(api)
}
