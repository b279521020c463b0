package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/schedura/console-gateway/api/swagger"
	"github.com/schedura/console-gateway/internal/handler"
	"github.com/schedura/console-gateway/internal/layout"
	internalmw "github.com/schedura/console-gateway/internal/middleware"
	"github.com/schedura/console-gateway/internal/repository"
	"github.com/schedura/console-gateway/internal/service"
	"github.com/schedura/console-gateway/internal/upstream"
	"github.com/schedura/console-gateway/pkg/cache"
	"github.com/schedura/console-gateway/pkg/config"
	"github.com/schedura/console-gateway/pkg/database"
	"github.com/schedura/console-gateway/pkg/logger"
	corsmiddleware "github.com/schedura/console-gateway/pkg/middleware/cors"
	reqidmiddleware "github.com/schedura/console-gateway/pkg/middleware/requestid"
	"github.com/schedura/console-gateway/pkg/storage"
)

// @title Schedura Console Gateway
// @version 0.1.0
// @description Admin console gateway for the timetable platform
// @BasePath /
// @schemes http

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close() //nolint:errcheck

	var redisClient *redis.Client
	if cfg.Upstream.CacheSchedules {
		redisClient, err = cache.NewRedis(cfg.Redis)
		if err != nil {
			logr.Sugar().Warnw("redis unavailable, continuing without schedule cache", "error", err)
		} else {
			defer redisClient.Close() //nolint:errcheck
		}
	}

	sessionRepo := repository.NewSessionRepository(db)
	snapshotRepo := repository.NewScheduleSnapshotRepository(db)

	startupCtx, cancelStartup := context.WithTimeout(context.Background(), 10*time.Second)
	if err := repository.EnsureSchema(startupCtx, db); err != nil {
		logr.Sugar().Fatalw("failed to ensure database schema", "error", err)
	}

	sessionState := service.NewSessionState(sessionRepo, logr)
	if err := sessionState.Restore(startupCtx); err != nil {
		logr.Sugar().Warnw("could not restore session snapshot", "error", err)
	}

	metricsSvc := service.NewMetricsService()

	client := upstream.NewClient(upstream.Config{
		BaseURL:        cfg.Upstream.BaseURL,
		RefreshPath:    cfg.Upstream.RefreshPath,
		Timeout:        cfg.Upstream.Timeout,
		ObserveRequest: metricsSvc.ObserveUpstream,
		ObserveRefresh: metricsSvc.RecordTokenRefresh,
	}, sessionState, logr)

	files, err := storage.NewLocalStorage(cfg.Exports.StorageDir)
	if err != nil {
		logr.Sugar().Fatalw("failed to prepare export storage", "error", err)
	}
	signer := storage.NewSignedURLSigner(cfg.Exports.SignedURLSecret, cfg.Exports.SignedURLTTL)

	layoutCfg, err := layout.ConfigFromWindow(cfg.Calendar.DayStart, cfg.Calendar.DayEnd, cfg.Calendar.SlotHeightPct, cfg.Calendar.StackOffsetPct)
	if err != nil {
		logr.Sugar().Fatalw("invalid calendar window", "error", err)
	}

	authSvc := service.NewAuthService(client, sessionState, cfg.JWT.Secret, nil, logr)
	ingestSvc := service.NewIngestService(client, service.IngestConfig{
		PollInterval:     cfg.Ingest.PollInterval,
		UploadDelay:      cfg.Ingest.UploadDelay,
		MaxFileSizeBytes: cfg.Ingest.MaxFileSizeBytes,
	}, metricsSvc, logr)
	scheduleSvc := service.NewScheduleService(service.ScheduleServiceDeps{
		Client:   client,
		Snapshot: snapshotRepo,
		Redis:    redisClient,
		CacheTTL: cfg.Upstream.CacheTTL,
		Engine:   layout.NewEngine(layoutCfg),
		Files:    files,
		Signer:   signer,
		Metrics:  metricsSvc,
		Logger:   logr,
	})
	if err := scheduleSvc.Restore(startupCtx); err != nil {
		logr.Sugar().Warnw("could not restore schedule snapshot", "error", err)
	}
	cancelStartup()

	runCtx, stop := context.WithCancel(context.Background())
	defer stop()
	ingestSvc.Start(runCtx)
	ingestSvc.StartPolling(runCtx)
	defer ingestSvc.Stop()

	go func() {
		ticker := time.NewTicker(time.Hour)
		defer ticker.Stop()
		for {
			select {
			case <-runCtx.Done():
				return
			case <-ticker.C:
				if removed, err := files.CleanupOlderThan(cfg.Exports.SignedURLTTL); err != nil {
					logr.Sugar().Warnw("export cleanup failed", "error", err)
				} else if len(removed) > 0 {
					logr.Sugar().Infow("stale exports removed", "count", len(removed))
				}
			}
		}
	}()

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(internalmw.Metrics(metricsSvc))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	r.GET("/ready", func(c *gin.Context) {
		if err := db.Ping(); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "database": err.Error()})
			return
		}
		if redisClient != nil {
			if err := redisClient.Ping(c.Request.Context()).Err(); err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "cache": err.Error()})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	handler.RegisterRoutes(r, cfg.APIPrefix, handler.Handlers{
		Auth:     handler.NewAuthHandler(authSvc, sessionState, logr),
		Upload:   handler.NewUploadHandler(ingestSvc),
		Schedule: handler.NewScheduleHandler(scheduleSvc, files, signer, logr),
		Metrics:  metricsSvc,
		AuthSvc:  authSvc,
	})

	addr := fmt.Sprintf(":%d", cfg.Port)
	logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env, "upstream", cfg.Upstream.BaseURL)
	if err := r.Run(addr); err != nil {
		logr.Sugar().Fatalw("server failed", "error", err)
	}
}
