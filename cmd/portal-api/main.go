package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/sma-portal-api/api/swagger"
	"github.com/noah-isme/sma-portal-api/internal/handler"
	"github.com/noah-isme/sma-portal-api/internal/middleware"
	"github.com/noah-isme/sma-portal-api/internal/repository"
	"github.com/noah-isme/sma-portal-api/internal/service"
	"github.com/noah-isme/sma-portal-api/pkg/cache"
	"github.com/noah-isme/sma-portal-api/pkg/config"
	"github.com/noah-isme/sma-portal-api/pkg/database"
	"github.com/noah-isme/sma-portal-api/pkg/jobs"
	"github.com/noah-isme/sma-portal-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/sma-portal-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/sma-portal-api/pkg/middleware/requestid"
	"github.com/noah-isme/sma-portal-api/pkg/notify"
)

const (
	startupTimeout  = 10 * time.Second
	shutdownTimeout = 15 * time.Second
	notifyDrain     = 5 * time.Second
)

// @title SMA Portal API
// @version 1.0.0
// @description Content submissions, article publishing and admissions workflow
// @BasePath /
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

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	startCtx, cancel := context.WithTimeout(ctx, startupTimeout)
	db, err := database.NewPostgres(startCtx, cfg.Database)
	cancel()
	if err != nil {
		logr.Fatal("failed to connect to postgres", zap.Error(err))
	}
	defer db.Close()

	metrics := service.NewMetricsService()
	validate := validator.New()

	var cacheRepo *repository.CacheRepository
	if cfg.Articles.CacheEnabled {
		cacheRepo = connectCache(ctx, cfg.Redis, logr)
	}
	var cacheSvc *service.CacheService
	if cacheRepo != nil {
		defer cacheRepo.Close()
		cacheSvc = service.NewCacheService(cacheRepo, metrics, cfg.Articles.CacheTTL, logr, true)
	}

	var notifier notify.Notifier = notify.Nop{}
	if cfg.Notifications.Enabled {
		dispatcher := notify.NewDispatcher(notify.NewMailer(cfg.Notifications, logr), jobs.QueueConfig{
			Workers:    cfg.Notifications.Workers,
			MaxRetries: cfg.Notifications.Retries,
			RetryDelay: cfg.Notifications.RetryDelay,
		}, logr, notify.WithObserver(metrics))
		dispatcher.Start(context.Background())
		defer dispatcher.Stop(notifyDrain)
		notifier = dispatcher
	}

	submissionRepo := repository.NewSubmissionRepository(db)
	articleRepo := repository.NewArticleRepository(db)
	admissionRepo := repository.NewAdmissionRepository(db)

	authSvc := service.NewAuthService(logr, service.AuthConfig{AccessTokenSecret: cfg.JWT.Secret, Issuer: cfg.JWT.Issuer})
	submissionSvc := service.NewSubmissionService(submissionRepo, notifier, validate, logr, service.SubmissionConfig{
		MaxFileSize:    cfg.Submissions.MaxFileSizeBytes,
		AllowedMIMEs:   cfg.Submissions.AllowedMIMEs,
		ReviewerEmails: cfg.Notifications.ReviewerEmails,
	})
	moderationSvc := service.NewModerationService(submissionRepo, notifier, cacheSvc, metrics, logr)
	articleSvc := service.NewArticleService(articleRepo, cacheSvc, metrics, validate, logr, cfg.Articles.CacheTTL)
	admissionSvc := service.NewAdmissionService(admissionRepo, notifier, metrics, validate, logr, service.AdmissionConfig{
		AdmissionNumberPrefix:   cfg.Admissions.AdmissionNumberPrefix,
		ApplicationNumberPrefix: cfg.Admissions.ApplicationNumberPrefix,
		OfficeEmails:            cfg.Notifications.AdmissionEmails,
	})

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metrics))
	// Leave headroom for multipart framing around the largest accepted attachment.
	r.MaxMultipartMemory = cfg.Submissions.MaxFileSizeBytes + 1<<20

	handler.RegisterRoutes(r, cfg.APIPrefix, authSvc, handler.Handlers{
		Submissions: handler.NewSubmissionHandler(submissionSvc, moderationSvc),
		Articles:    handler.NewArticleHandler(articleSvc),
		Admissions:  handler.NewAdmissionHandler(admissionSvc),
		Metrics:     handler.NewMetricsHandler(metrics, readinessChecks(db, cacheRepo)),
	})

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
	logr.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Error("graceful shutdown failed", zap.Error(err))
	}
}

// connectCache returns nil when redis is unreachable; the article cache then stays off.
func connectCache(ctx context.Context, cfg config.RedisConfig, logr *zap.Logger) *repository.CacheRepository {
	startCtx, cancel := context.WithTimeout(ctx, startupTimeout)
	defer cancel()
	client, err := cache.NewRedis(startCtx, cfg)
	if err != nil {
		logr.Warn("redis unavailable, article cache disabled", zap.Error(err))
		return nil
	}
	return repository.NewCacheRepository(client, logr)
}

func readinessChecks(db *sqlx.DB, cacheRepo *repository.CacheRepository) map[string]handler.ReadinessCheck {
	checks := map[string]handler.ReadinessCheck{
		"postgres": db.PingContext,
	}
	if cacheRepo != nil {
		checks["redis"] = cacheRepo.Ping
	}
	return checks
}
