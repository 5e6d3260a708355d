// Package main runs the community center HTTP API with graceful shutdown.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/centre-social/backend/config"
	"github.com/centre-social/backend/internal/auth"
	"github.com/centre-social/backend/internal/emaillogs"
	"github.com/centre-social/backend/internal/events"
	"github.com/centre-social/backend/internal/metrics"
	"github.com/centre-social/backend/internal/middleware"
	"github.com/centre-social/backend/internal/models"
	"github.com/centre-social/backend/internal/notifications"
	"github.com/centre-social/backend/internal/registrations"
	"github.com/centre-social/backend/pkg/database"
	"github.com/centre-social/backend/pkg/queue"
	"github.com/centre-social/backend/pkg/redis"
	"github.com/centre-social/backend/pkg/response"
)

func main() {
	logger := newLogger()
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}

	ctx := context.Background()
	pool, err := database.NewPostgresPool(ctx, cfg.Database.DSN(), logger)
	if err != nil {
		logger.Fatal("database", zap.Error(err))
	}
	defer pool.Close()

	if err := database.Migrate(ctx, pool, logger); err != nil {
		logger.Fatal("migrate", zap.Error(err))
	}

	m := metrics.New()
	jwtService := auth.NewJWTService(cfg.JWT.Secret, cfg.JWT.ExpireHours)

	// Auth
	authRepo := auth.NewRepository(pool)
	authHandler := auth.NewHandler(authRepo, jwtService, logger)
	if err := auth.Bootstrap(ctx, authRepo, cfg.Admin.BootstrapEmail, cfg.Admin.BootstrapPassword, cfg.Admin.BootstrapName, logger); err != nil {
		logger.Fatal("bootstrap administrator", zap.Error(err))
	}

	// Email logs
	emailLogsRepo := emaillogs.NewRepository(pool)
	emailLogsHandler := emaillogs.NewHandler(emailLogsRepo, logger)

	// Notifications: sent inline, or queued for cmd/worker
	var notifier notifications.Notifier
	if cfg.Notifications.QueueEnabled() {
		rdb, err := redis.NewClient(ctx, cfg.Redis, logger)
		if err != nil {
			logger.Fatal("redis", zap.Error(err))
		}
		defer rdb.Close()
		notifier = notifications.NewQueueDispatcher(queue.NewQueue(rdb.Client, logger), emailLogsRepo, m, logger)
		logger.Info("notifications queued", zap.String("queue", queue.QueueEmails))
	} else {
		sender := notifications.NewSender(cfg.Email, logger)
		timeout := time.Duration(cfg.Notifications.SendTimeoutSec) * time.Second
		notifier = notifications.NewDispatcher(sender, emailLogsRepo, m, timeout, logger)
	}

	// Events
	eventRepo := events.NewRepository(pool)
	eventHandler := events.NewHandler(eventRepo, logger)

	// Registrations
	registrationRepo := registrations.NewRepository(pool)
	registrationSvc := registrations.NewService(registrationRepo, eventRepo, notifier, registrations.Links{
		AppName:     cfg.App.Name,
		ConfirmURL:  cfg.App.APIURL + "/registrations/confirm",
		AdminURL:    cfg.App.PublicURL + cfg.App.AdminDashboardPath,
		AdminEmails: cfg.App.AdminEmails,
	}, m, logger)
	registrationHandler := registrations.NewHandler(registrationSvc, cfg.App.PublicURL+cfg.App.ConfirmRedirectPath, logger)
	if len(cfg.App.AdminEmails) == 0 {
		logger.Warn("ADMIN_NOTIFICATION_EMAILS is empty; admin review requests will not be delivered")
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CORS(cfg.Server.CORSAllowedOrigins))
	router.Use(middleware.Logger(logger))

	// Health and metrics
	router.GET("/health", func(c *gin.Context) {
		if err := pool.Ping(c.Request.Context()); err != nil {
			response.Fail(c, http.StatusServiceUnavailable, "database_unavailable", "database unavailable")
			return
		}
		response.OK(c, gin.H{"status": "ok"})
	})
	router.GET("/metrics", m.Handler())

	// Public: events and registration workflow
	router.GET("/events", eventHandler.List)
	router.GET("/events/:id", eventHandler.GetByID)
	router.POST("/events/:id/registrations", registrationHandler.Submit)
	router.GET("/registrations/confirm", registrationHandler.ConfirmLink)
	router.POST("/registrations/confirm", registrationHandler.Confirm)

	// Auth (public)
	router.POST("/auth/login", authHandler.Login)

	// Admin dashboard (JWT required). Finer role checks happen in the workflow.
	admin := router.Group("")
	admin.Use(middleware.JWT(jwtService), middleware.RequireRole(models.ReadRoles...))
	{
		admin.GET("/auth/me", authHandler.Me)

		admin.GET("/admin/registrations", registrationHandler.List)
		admin.GET("/admin/registrations/stats", registrationHandler.Stats)
		admin.GET("/admin/registrations/export.csv", registrationHandler.Export)
		admin.GET("/admin/registrations/:id", registrationHandler.Get)
		admin.GET("/admin/registrations/:id/emails", emailLogsHandler.ListByRegistration)
		admin.POST("/admin/registrations/:id/approve", registrationHandler.Approve)
		admin.POST("/admin/registrations/:id/reject", registrationHandler.Reject)
		admin.PATCH("/admin/registrations/:id/status", registrationHandler.ChangeStatus)
		admin.DELETE("/admin/registrations/:id", registrationHandler.Delete)
	}

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	go func() {
		logger.Info("server listening", zap.String("port", cfg.Server.Port), zap.String("notify_mode", cfg.Notifications.Mode))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}
	logger.Info("server stopped")
}

func newLogger() *zap.Logger {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, _ := config.Build()
	return logger
}
