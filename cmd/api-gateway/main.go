package main

import (
	"fmt"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/noah-isme/tutoring-adm-api/api/swagger"
	"github.com/noah-isme/tutoring-adm-api/internal/handler"
	"github.com/noah-isme/tutoring-adm-api/internal/middleware"
	"github.com/noah-isme/tutoring-adm-api/internal/repository"
	"github.com/noah-isme/tutoring-adm-api/internal/service"
	"github.com/noah-isme/tutoring-adm-api/pkg/cache"
	"github.com/noah-isme/tutoring-adm-api/pkg/config"
	"github.com/noah-isme/tutoring-adm-api/pkg/database"
	"github.com/noah-isme/tutoring-adm-api/pkg/export"
	"github.com/noah-isme/tutoring-adm-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/tutoring-adm-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/tutoring-adm-api/pkg/middleware/requestid"
)

// @title Tutoring ADM API
// @version 0.1.0
// @description Admin API for a small tutoring room: roster, attendance, prepaid cycles, billing
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

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to database", "error", err)
	}
	defer db.Close()

	metricsSvc := service.NewMetricsService()

	// Redis is optional: without it the dashboard cache is simply disabled.
	var cacheSvc *service.CacheService
	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Warnw("redis unavailable, dashboard cache disabled", "error", err)
		cacheSvc = service.NewCacheService(nil, metricsSvc, cfg.Dashboard.CacheTTL, logr, false)
	} else {
		defer redisClient.Close()
		cacheRepo := repository.NewCacheRepository(redisClient, logr)
		cacheSvc = service.NewCacheService(cacheRepo, metricsSvc, cfg.Dashboard.CacheTTL, logr, cfg.Dashboard.Enabled)
	}

	validate := validator.New()

	userRepo := repository.NewUserRepository(db)
	studentRepo := repository.NewStudentRepository(db)
	groupRepo := repository.NewClassGroupRepository(db)
	attendanceRepo := repository.NewAttendanceRepository(db)
	cycleRepo := repository.NewCycleRepository(db)
	paymentRepo := repository.NewPaymentRepository(db)

	authSvc := service.NewAuthService(userRepo, validate, logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		Issuer:             "tutoring-adm-api",
	})
	paymentSvc := service.NewPaymentService(paymentRepo, cfg.Billing, validate, logr)
	cycleSvc := service.NewCycleService(cycleRepo, studentRepo, groupRepo, paymentSvc, cfg.Billing, logr)
	enrollmentSvc := service.NewEnrollmentService(studentRepo, cycleSvc, validate, logr)
	studentSvc := service.NewStudentService(studentRepo, groupRepo, cycleRepo, cfg.Billing, validate, logr)
	groupSvc := service.NewClassGroupService(groupRepo, validate, logr)
	attendanceSvc := service.NewAttendanceService(attendanceRepo, cycleRepo, studentRepo, groupRepo, cfg.Billing, validate, logr)
	dashboardSvc := service.NewDashboardService(cycleRepo, paymentRepo, cacheSvc, cfg.Billing, cfg.Dashboard.CacheTTL, logr)
	exportSvc := service.NewExportService(attendanceRepo, paymentRepo, export.NewCSVExporter(), export.NewPDFExporter(), logr)

	authHandler := handler.NewAuthHandler(authSvc)
	studentHandler := handler.NewStudentHandler(studentSvc, enrollmentSvc)
	groupHandler := handler.NewClassGroupHandler(groupSvc)
	attendanceHandler := handler.NewAttendanceHandler(attendanceSvc)
	cycleHandler := handler.NewCycleHandler(cycleSvc)
	paymentHandler := handler.NewPaymentHandler(paymentSvc)
	dashboardHandler := handler.NewDashboardHandler(dashboardSvc, metricsSvc)
	exportHandler := handler.NewExportHandler(exportSvc)
	metricsHandler := handler.NewMetricsHandler(metricsSvc)

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

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
		if err := db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})

	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)

	auth := api.Group("/auth")
	{
		auth.POST("/login", authHandler.Login)
		auth.POST("/refresh", authHandler.Refresh)
		auth.POST("/logout", middleware.JWT(authSvc), authHandler.Logout)
		auth.GET("/me", middleware.JWT(authSvc), authHandler.Me)
	}

	protected := api.Group("")
	protected.Use(middleware.JWT(authSvc))
	{
		students := protected.Group("/students")
		{
			students.GET("", studentHandler.List)
			students.POST("", studentHandler.Create)
			students.GET("/:id", studentHandler.Get)
			students.PUT("/:id", studentHandler.Update)
			students.DELETE("/:id", studentHandler.Delete)
			students.PUT("/:id/status", studentHandler.ChangeStatus)
			students.PUT("/:id/level-test", studentHandler.UpdateLevelTest)
			students.GET("/:id/history", studentHandler.History)
			students.POST("/:id/cycles", cycleHandler.Start)
			students.GET("/:id/cycles/current", cycleHandler.Current)
		}

		groups := protected.Group("/class-groups")
		{
			groups.GET("", groupHandler.List)
			groups.POST("", groupHandler.Create)
			groups.GET("/:id", groupHandler.Get)
			groups.PUT("/:id", groupHandler.Update)
			groups.DELETE("/:id", groupHandler.Delete)
		}

		attendance := protected.Group("/attendance")
		{
			attendance.GET("", attendanceHandler.Daily)
			attendance.POST("", attendanceHandler.Record)
			attendance.POST("/bulk", attendanceHandler.BulkRecord)
			attendance.GET("/:id", attendanceHandler.Get)
			attendance.PUT("/:id", attendanceHandler.Update)
			attendance.DELETE("/:id", attendanceHandler.Delete)
		}

		cycles := protected.Group("/cycles")
		{
			cycles.GET("/:id", cycleHandler.Get)
			cycles.POST("/:id/complete", cycleHandler.Complete)
			cycles.POST("/:id/recount", cycleHandler.Recount)
		}

		payments := protected.Group("/payments")
		{
			payments.GET("", paymentHandler.List)
			payments.GET("/:id", paymentHandler.Get)
			payments.POST("/:id/confirm", paymentHandler.Confirm)
			payments.POST("/:id/message", paymentHandler.Message)
		}

		if cfg.Dashboard.Enabled {
			protected.GET("/dashboard", dashboardHandler.Overview)
			protected.GET("/dashboard/system", dashboardHandler.System)
		}

		if cfg.Exports.Enabled {
			exports := protected.Group("/exports")
			exports.GET("/attendance", exportHandler.Attendance)
			exports.GET("/payments", exportHandler.Payments)
		}
	}

	addr := fmt.Sprintf(":%d", cfg.Port)
	logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
	if err := r.Run(addr); err != nil {
		logr.Sugar().Fatalw("server failed", "error", err)
	}
}
