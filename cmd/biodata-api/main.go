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
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/biodata-api/api/swagger"
	"github.com/noah-isme/biodata-api/internal/handler"
	"github.com/noah-isme/biodata-api/internal/middleware"
	"github.com/noah-isme/biodata-api/internal/repository"
	"github.com/noah-isme/biodata-api/internal/service"
	"github.com/noah-isme/biodata-api/pkg/cache"
	"github.com/noah-isme/biodata-api/pkg/config"
	"github.com/noah-isme/biodata-api/pkg/database"
	"github.com/noah-isme/biodata-api/pkg/jobs"
	"github.com/noah-isme/biodata-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/biodata-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/biodata-api/pkg/middleware/requestid"
)

// @title Biodata API
// @version 1.0.0
// @description Biodata drafts, profile lifecycle and moderation
// @BasePath /api/v1
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

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

	db, err := database.NewPostgres(cfg.Database, logr)
	if err != nil {
		logr.Fatal("failed to connect database", zap.Error(err))
	}
	defer db.Close()

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Warn("redis unavailable, public listing cache disabled", zap.Error(err))
		redisClient = nil
	}
	cacheRepo := repository.NewCacheRepository(redisClient, logr)
	defer cacheRepo.Close() //nolint:errcheck

	metrics := service.NewMetricsService()
	validate := validator.New()

	userRepo := repository.NewUserRepository(db)
	draftRepo := repository.NewDraftRepository(db)
	profileRepo := repository.NewProfileRepository(db)
	moderationRepo := repository.NewModerationRepository(db)
	reportRepo := repository.NewReportRepository(db)
	creditRepo := repository.NewCreditTransactionRepository(db)
	settingRepo := repository.NewSettingRepository(db)

	cacheSvc := service.NewCacheService(cacheRepo, metrics, cfg.Profiles.PublicCacheTTL, logr, cfg.Profiles.PublicCacheEnabled)
	notifier := service.NewLifecycleNotifier(cacheSvc, metrics, logr, jobs.QueueConfig{
		Workers:    cfg.Notifications.Workers,
		MaxRetries: cfg.Notifications.Retries,
		RetryDelay: cfg.Notifications.RetryDelay,
		Logger:     logr,
	})

	authSvc := service.NewAuthService(service.AuthConfig{
		AccessTokenSecret: cfg.JWT.Secret,
		AccessTokenExpiry: cfg.JWT.Expiration,
		Issuer:            cfg.JWT.Issuer,
	}, logr)
	draftSvc := service.NewDraftService(draftRepo, userRepo, validate, metrics, logr, service.DraftServiceConfig{
		MaxStep:         cfg.Drafts.MaxStep,
		MaxPayloadBytes: cfg.Drafts.MaxPayloadBytes,
	})
	profileSvc := service.NewProfileService(profileRepo, draftRepo, userRepo, service.NewBiodataValidator(), cacheSvc, notifier, metrics, logr, service.ProfileServiceConfig{
		PublicCacheTTL:  cfg.Profiles.PublicCacheTTL,
		DefaultPageSize: cfg.Profiles.DefaultPageSize,
	})
	moderationSvc := service.NewModerationService(profileRepo, userRepo, moderationRepo, notifier, metrics, logr, service.ModerationServiceConfig{
		ExportEnabled: cfg.Moderation.ExportEnabled,
		ExportLimit:   cfg.Moderation.ExportLimit,
	})
	reviewSvc := service.NewReviewService(reportRepo, creditRepo, profileRepo, validate, metrics, logr)
	settingsSvc := service.NewSettingsService(settingRepo, logr)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	notifier.Start(ctx)
	defer notifier.Stop()

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr, "/health", "/ready", "/metrics"))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metrics))

	router := &handler.Router{
		Drafts:     handler.NewDraftHandler(draftSvc),
		Profiles:   handler.NewProfileHandler(profileSvc),
		Moderation: handler.NewModerationHandler(moderationSvc),
		Reviews:    handler.NewReviewHandler(reviewSvc),
		Settings:   handler.NewSettingsHandler(settingsSvc),
		Metrics: handler.NewMetricsHandler(metrics, map[string]handler.Pinger{
			"postgres": db,
			"redis":    handler.PingerFunc(cacheRepo.Ping),
		}),
		Auth:   authSvc,
		Audit:  userRepo,
		Logger: logr,
	}
	router.Register(r, cfg.APIPrefix)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Warn("graceful shutdown failed", zap.Error(err))
	}
}
