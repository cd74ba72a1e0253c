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

	_ "github.com/noah-isme/sma-docs-api/api/swagger"
	"github.com/noah-isme/sma-docs-api/internal/handler"
	"github.com/noah-isme/sma-docs-api/internal/middleware"
	"github.com/noah-isme/sma-docs-api/internal/models"
	"github.com/noah-isme/sma-docs-api/internal/repository"
	"github.com/noah-isme/sma-docs-api/internal/service"
	"github.com/noah-isme/sma-docs-api/pkg/cache"
	"github.com/noah-isme/sma-docs-api/pkg/config"
	"github.com/noah-isme/sma-docs-api/pkg/database"
	"github.com/noah-isme/sma-docs-api/pkg/jobs"
	"github.com/noah-isme/sma-docs-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/sma-docs-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/sma-docs-api/pkg/middleware/requestid"
	"github.com/noah-isme/sma-docs-api/pkg/storage"
)

// @title SMA Document Services API
// @version 1.0.0
// @description Document request lifecycle service for students and administrators
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

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close()

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Warnw("redis unavailable, stats cache disabled", "error", err)
		redisClient = nil
	}

	metricsSvc := service.NewMetricsService()

	userRepo := repository.NewUserRepository(db)
	requestRepo := repository.NewRequestRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)

	cacheSvc := service.NewCacheService(cacheRepo, metricsSvc, cfg.Requests.StatsCacheTTL, logr,
		cfg.Requests.StatsCacheEnabled && redisClient != nil)

	authSvc := service.NewAuthService(userRepo, nil, logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		ResetTokenExpiry:   cfg.JWT.ResetExpiration,
		Issuer:             "sma-docs-api",
	})

	notificationSvc := service.NewNotificationService(notificationRepo, logr, jobs.QueueConfig{
		Workers:    cfg.Notifications.Workers,
		BufferSize: cfg.Notifications.BufferSize,
		MaxRetries: cfg.Notifications.MaxRetries,
		RetryDelay: cfg.Notifications.RetryDelay,
		Logger:     logr,
	})

	uploadStorage, err := storage.NewLocalStorage(cfg.Uploads.StorageDir)
	if err != nil {
		logr.Sugar().Fatalw("failed to init upload storage", "error", err)
	}
	signer := storage.NewSignedURLSigner(cfg.Uploads.SignedURLSecret, cfg.Uploads.SignedURLTTL)

	requestSvc := service.NewRequestService(requestRepo, userRepo, logr, service.RequestServiceConfig{
		StatsCacheTTL:  cfg.Requests.StatsCacheTTL,
		ProcessingDays: processingDays(cfg.Requests),
		MaxFileSize:    cfg.Uploads.MaxFileSizeBytes,
		AllowedMIMEs:   cfg.Uploads.AllowedMIMEs,
		UploadBasePath: cfg.Uploads.PublicPath,
	},
		service.WithRequestNotifier(notificationSvc),
		service.WithRequestCache(cacheSvc),
		service.WithRequestStorage(uploadStorage),
		service.WithRequestMetrics(metricsSvc),
	)

	exportSvc := service.NewExportService(requestRepo, uploadStorage, signer,
		service.ExportConfig{APIPrefix: cfg.APIPrefix}, logr, nil, nil)

	authHandler := handler.NewAuthHandler(authSvc)
	requestHandler := handler.NewRequestHandler(requestSvc, exportSvc)
	notificationHandler := handler.NewNotificationHandler(notificationSvc)
	metricsHandler := handler.NewMetricsHandler(metricsSvc)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	notificationSvc.Start(ctx)
	defer notificationSvc.Stop()

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))
	r.Use(middleware.WithResponseMeta())

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", func(c *gin.Context) {
		if err := db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", metricsHandler.Prometheus)
	r.GET("/metrics/system", metricsHandler.System)
	r.Static(cfg.Uploads.PublicPath, cfg.Uploads.StorageDir)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)

	auth := api.Group("/auth")
	{
		auth.POST("/register", authHandler.Register)
		auth.POST("/login", authHandler.Login)
		auth.POST("/refresh", authHandler.Refresh)
		auth.POST("/forgot-password", authHandler.ForgotPassword)
		auth.POST("/reset-password", authHandler.ResetPassword)

		authed := auth.Group("", middleware.JWT(authSvc))
		authed.POST("/logout", authHandler.Logout)
		authed.POST("/change-password", authHandler.ChangePassword)
		authed.GET("/me", authHandler.Me)
	}

	// Export downloads authenticate via the signed token in the path.
	api.GET("/requests/export/:token", requestHandler.DownloadExport)

	requests := api.Group("/requests", middleware.JWT(authSvc))
	{
		requests.POST("", requestHandler.Create)
		requests.GET("/my", requestHandler.ListMine)
		requests.GET("/:id", requestHandler.Get)
		requests.POST("/:id/documents", requestHandler.AttachDocument)

		admin := requests.Group("", middleware.RequireRoles(models.RoleAdmin, models.RoleSuperAdmin))
		admin.GET("", requestHandler.ListAll)
		admin.GET("/stats", requestHandler.Stats)
		admin.GET("/export",
			middleware.Audit(userRepo, models.AuditActionRequestExport, "document_request"),
			requestHandler.ExportRegister)
		admin.PATCH("/:id/status", requestHandler.UpdateStatus)
		admin.POST("/:id/remarks", requestHandler.AddRemark)
		admin.POST("/:id/reject", requestHandler.Reject)
	}

	notifications := api.Group("/notifications", middleware.JWT(authSvc))
	{
		notifications.GET("", notificationHandler.List)
		notifications.POST("/:id/read", notificationHandler.MarkRead)
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
	logr.Sugar().Infow("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Errorw("server shutdown failed", "error", err)
	}
}

// processingDays derives the per-type processing window. Correction and
// re-evaluation requests take longer than plain certificate reprints.
func processingDays(cfg config.RequestsConfig) map[models.RequestType]int {
	base := cfg.ProcessingDays
	if base <= 0 {
		base = 7
	}
	extra := cfg.CorrectionExtraDays
	if extra < 0 {
		extra = 0
	}
	return map[models.RequestType]int{
		models.RequestTypeDegreeCertificate:      base,
		models.RequestTypeProvisionalCertificate: base,
		models.RequestTypeMigrationCertificate:   base,
		models.RequestTypeTranscript:             base,
		models.RequestTypeMarksheet:              base,
		models.RequestTypeNameCorrection:         base + extra,
		models.RequestTypeDOBCorrection:          base + extra,
		models.RequestTypeRetotaling:             base + extra,
		models.RequestTypeRechecking:             base + extra,
		models.RequestTypeOther:                  base,
	}
}
