package main

import (
	"context"
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

	_ "github.com/basal-program/admin-api/api/swagger"
	"github.com/basal-program/admin-api/internal/handler"
	"github.com/basal-program/admin-api/internal/middleware"
	"github.com/basal-program/admin-api/internal/models"
	"github.com/basal-program/admin-api/internal/repository"
	"github.com/basal-program/admin-api/internal/service"
	"github.com/basal-program/admin-api/pkg/cache"
	"github.com/basal-program/admin-api/pkg/config"
	"github.com/basal-program/admin-api/pkg/database"
	"github.com/basal-program/admin-api/pkg/jobs"
	"github.com/basal-program/admin-api/pkg/logger"
	corsmiddleware "github.com/basal-program/admin-api/pkg/middleware/cors"
	reqidmiddleware "github.com/basal-program/admin-api/pkg/middleware/requestid"
	"github.com/basal-program/admin-api/pkg/storage"
)

// @title Basal Admin API
// @version 1.0.0
// @description Enrollment, seat allocation and invoicing for the Basal program
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
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close()

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Warnw("redis unavailable, caching disabled", "error", err)
		redisClient = nil
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	schoolRepo := repository.NewSchoolRepository(db)
	signupRepo := repository.NewSignupRepository(db)
	invoiceRepo := repository.NewInvoiceRepository(db)
	userRepo := repository.NewUserRepository(db)
	reportRepo := repository.NewReportRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)

	validate := validator.New()
	metricsSvc := service.NewMetricsService()
	cacheSvc := service.NewCacheService(cacheRepo, metricsSvc, cfg.Dashboard.CacheTTL, logr, cfg.Dashboard.Enabled && redisClient != nil)

	policy := service.EnrollmentPolicy{
		FirstYearSeats:    cfg.Enrollment.FirstYearSeats,
		AnchoringSeats:    cfg.Enrollment.AnchoringSeats,
		SignupCutoffMonth: cfg.Enrollment.SignupCutoffMonth,
		SignupCutoffDay:   cfg.Enrollment.SignupCutoffDay,
	}

	seatUsageSvc := service.NewSeatUsageService(signupRepo, logr)
	enrollmentSvc := service.NewEnrollmentService(schoolRepo, seatUsageSvc, userRepo, cacheSvc, policy, validate, logr)
	schoolSvc := service.NewSchoolService(schoolRepo, policy, validate, logr)
	invoiceSvc := service.NewInvoiceService(invoiceRepo, schoolRepo, validate, logr)
	gapSvc := service.NewInvoiceGapService(schoolRepo, seatUsageSvc, invoiceRepo, metricsSvc, policy, cfg.Enrollment.InvoiceLookbackYears, logr)
	dashboardSvc := service.NewDashboardService(schoolRepo, cacheSvc, cfg.Dashboard.CacheTTL, logr)
	authSvc := service.NewAuthService(userRepo, validate, logr, service.AuthConfig{
		AccessTokenSecret: cfg.JWT.Secret,
		AccessTokenExpiry: cfg.JWT.Expiration,
		Issuer:            cfg.JWT.Issuer,
	})

	var reportSvc *service.ReportService
	if cfg.Reports.Enabled {
		store, err := storage.NewLocalStorage(cfg.Reports.StorageDir)
		if err != nil {
			logr.Sugar().Fatalw("failed to prepare report storage", "error", err)
		}
		signer := storage.NewReportTokenSigner(cfg.Reports.SignedURLSecret, cfg.Reports.SignedURLTTL)
		reportSvc = service.NewReportService(reportRepo, gapSvc, store, signer, logr)

		queue := jobs.NewQueue("reports", reportSvc.Process, jobs.Options{
			Workers:     cfg.Reports.WorkerConcurrency,
			MaxAttempts: cfg.Reports.WorkerRetries,
			Logger:      logr,
		})
		reportSvc.BindQueue(queue)
		queue.Start(ctx)
		defer queue.Stop()

		go func() {
			ticker := time.NewTicker(cfg.Reports.CleanupInterval)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					deleted, err := store.CleanupOlderThan(cfg.Reports.SignedURLTTL)
					if err != nil {
						logr.Sugar().Warnw("report cleanup failed", "error", err)
						continue
					}
					if len(deleted) > 0 {
						logr.Sugar().Infow("report files cleaned up", "count", len(deleted))
					}
				}
			}
		}()
	}

	authHandler := handler.NewAuthHandler(authSvc)
	schoolHandler := handler.NewSchoolHandler(schoolSvc)
	enrollmentHandler := handler.NewEnrollmentHandler(enrollmentSvc)
	invoiceHandler := handler.NewInvoiceHandler(invoiceSvc, gapSvc)
	dashboardHandler := handler.NewDashboardHandler(dashboardSvc)
	signupHandler := handler.NewSignupHandler(seatUsageSvc)
	schoolYearHandler := handler.NewSchoolYearHandler()
	metricsHandler := handler.NewMetricsHandler(metricsSvc)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))

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
	r.GET("/metrics", metricsHandler.Metrics)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)
	api.POST("/auth/login", authHandler.Login)
	api.GET("/school-years/current", schoolYearHandler.Current)
	api.GET("/school-years/:label", schoolYearHandler.Resolve)

	authorized := api.Group("")
	authorized.Use(middleware.JWT(authSvc))
	{
		authorized.GET("/auth/me", authHandler.Me)
		authorized.GET("/dashboard/stats", dashboardHandler.Stats)

		authorized.GET("/schools", schoolHandler.List)
		authorized.GET("/schools/:id", schoolHandler.Get)
		authorized.GET("/schools/:id/enrollment", enrollmentHandler.Overview)
		authorized.GET("/schools/:id/entitlement", enrollmentHandler.Entitlement)
		authorized.GET("/schools/:id/signups", signupHandler.ListForSchool)
		authorized.GET("/schools/:id/invoices", invoiceHandler.ListBySchool)
		authorized.GET("/courses", signupHandler.Courses)
		authorized.GET("/invoices/missing", invoiceHandler.Missing)

		staff := authorized.Group("")
		staff.Use(middleware.RequireRoles(models.RoleAdmin, models.RoleStaff))
		{
			staff.POST("/schools", schoolHandler.Create)
			staff.PUT("/schools/:id", schoolHandler.Update)
			staff.POST("/schools/:id/enroll", enrollmentHandler.Enroll)
			staff.POST("/schools/:id/withdraw", enrollmentHandler.Withdraw)
			staff.POST("/schools/:id/invoices", invoiceHandler.Create)
			staff.PUT("/schools/:id/invoices/:invoiceID/status", invoiceHandler.UpdateStatus)
		}

		admin := authorized.Group("")
		admin.Use(middleware.RequireRoles(models.RoleAdmin))
		{
			admin.DELETE("/schools/:id", schoolHandler.Delete)
			admin.POST("/schools/:id/credentials", schoolHandler.RegenerateCredentials)
			admin.POST("/schools/:id/enrollment/reset", enrollmentHandler.Reset)
		}

		if reportSvc != nil {
			reportHandler := handler.NewReportHandler(reportSvc)
			api.GET("/downloads/reports", reportHandler.Download)
			authorized.POST("/reports", reportHandler.Create)
			authorized.GET("/reports/:id", reportHandler.Get)
			authorized.GET("/reports/:id/download-url", reportHandler.DownloadURL)
		}
	}

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{Addr: addr, Handler: r}

	go func() {
		logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Sugar().Infow("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Errorw("shutdown failed", "error", err)
	}
}
