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

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/vikarapp/vikar-api/api/swagger"
	"github.com/vikarapp/vikar-api/internal/directory"
	"github.com/vikarapp/vikar-api/internal/handler"
	"github.com/vikarapp/vikar-api/internal/middleware"
	"github.com/vikarapp/vikar-api/internal/repository"
	"github.com/vikarapp/vikar-api/internal/scheduler"
	"github.com/vikarapp/vikar-api/internal/service"
	"github.com/vikarapp/vikar-api/pkg/cache"
	"github.com/vikarapp/vikar-api/pkg/config"
	"github.com/vikarapp/vikar-api/pkg/database"
	"github.com/vikarapp/vikar-api/pkg/logger"
	corsmiddleware "github.com/vikarapp/vikar-api/pkg/middleware/cors"
	reqidmiddleware "github.com/vikarapp/vikar-api/pkg/middleware/requestid"
)

// @title Vikar API
// @version 1.0.0
// @description Temporary class-team access grants for substitute teachers
// @BasePath /api/v1
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

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to database", "error", err)
	}
	defer db.Close()

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to redis", "error", err)
	}

	directoryClient := directory.New(cfg.Directory, logr)

	substitutionRepo := repository.NewSubstitutionRepository(db)
	schoolRepo := repository.NewSchoolRepository(db)
	auditRepo := repository.NewAuditRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)
	defer cacheRepo.Close()

	metrics := service.NewMetricsService()
	auditService := service.NewAuditService(auditRepo, logr)
	statsService := service.NewStatsService(cfg.Statistics, logr)
	locationService := service.NewLocationService(schoolRepo, cacheRepo, cfg.Scheduler.LocationCacheTTL, nil, logr)
	authService := service.NewAuthService(cfg.Auth, directoryClient, logr)
	teacherService := service.NewTeacherService(directoryClient, locationService, cfg.Directory.SearchGroupID, logr)
	substitutionService := service.NewSubstitutionService(
		substitutionRepo,
		directoryClient,
		locationService,
		auditService,
		statsService,
		metrics,
		cacheRepo,
		cfg.Directory.UserCacheTTL,
		cfg.Scheduler.ExpirationOffsetDays,
		cfg.Scheduler.ExpirationHour,
		nil,
		logr,
	)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metrics))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/ready", func(c *gin.Context) {
		if err := db.Ping(); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", gin.WrapH(metrics.Handler()))

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)
	api.Use(middleware.Auth(authService, logr))
	handler.NewSubstitutionHandler(substitutionService, logr).RegisterRoutes(api)
	handler.NewTeacherHandler(teacherService, logr).RegisterRoutes(api)
	handler.NewSchoolHandler(locationService, logr).RegisterRoutes(api)
	handler.NewLogHandler(auditService, logr).RegisterRoutes(api)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	statsService.Start(ctx)

	sched := scheduler.New(cfg.Scheduler, substitutionService, logr)
	sched.Start(ctx)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: r,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Info("shutting down")

	sched.Stop()
	statsService.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Errorw("graceful shutdown failed", "error", err)
	}
}
