// Package main runs the call recording HTTP API with graceful shutdown.
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

	"github.com/callcoach/backend/config"
	"github.com/callcoach/backend/internal/appointments"
	"github.com/callcoach/backend/internal/auth"
	"github.com/callcoach/backend/internal/middleware"
	"github.com/callcoach/backend/internal/recordings"
	"github.com/callcoach/backend/internal/sessions"
	"github.com/callcoach/backend/pkg/database"
	"github.com/callcoach/backend/pkg/response"
	"github.com/callcoach/backend/pkg/storage"
)

func main() {
	logger := newLogger()
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}

	ctx := context.Background()
	pool, err := database.Connect(ctx, cfg.Database.DSN(), logger)
	if err != nil {
		logger.Fatal("database", zap.Error(err))
	}
	defer pool.Close()

	if err := database.Migrate(ctx, pool, logger); err != nil {
		logger.Fatal("migrate", zap.Error(err))
	}

	gateway, err := storage.NewGateway(ctx, storage.Config{
		Region:          cfg.AWS.Region,
		AccessKeyID:     cfg.AWS.AccessKeyID,
		SecretAccessKey: cfg.AWS.SecretAccessKey,
		Bucket:          cfg.AWS.RecordingsBucket,
		UploadExpire:    cfg.AWS.UploadExpire(),
		DownloadExpire:  cfg.AWS.DownloadExpire(),
	}, logger)
	if err != nil {
		logger.Fatal("storage gateway", zap.Error(err))
	}

	jwtService := auth.NewJWTService(cfg.JWT.Secret, cfg.JWT.ExpireHours)

	sessionRepo := sessions.NewRepository(pool)
	sweeper := sessions.NewSweeper(sessionRepo, cfg.Sessions.SweepInterval(), nil, logger)

	authRepo := auth.NewRepository(pool)
	authHandler := auth.NewHandler(authRepo, sessionRepo, jwtService, logger)

	appointmentRepo := appointments.NewRepository(pool)
	appointmentHandler := appointments.NewHandler(appointmentRepo, logger)

	recordingRepo := recordings.NewRepository(pool)
	recordingService := recordings.NewService(recordingRepo, appointmentRepo, gateway, nil, logger)
	recordingHandler := recordings.NewHandler(recordingService, cfg.Upload.MaxUploadBytes(), logger)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CORS(cfg.Server.CORSAllowedOrigins))
	router.Use(middleware.RequestLogger(logger))

	router.GET("/health", func(c *gin.Context) { response.OK(c, gin.H{"status": "ok"}) })

	authGroup := router.Group("/auth")
	{
		authGroup.POST("/register", authHandler.Register)
		authGroup.POST("/login", authHandler.Login)
	}

	api := router.Group("")
	api.Use(middleware.JWT(jwtService))
	{
		api.POST("/appointments", appointmentHandler.Create)
		api.GET("/appointments", appointmentHandler.List)

		api.POST("/recordings/upload-to-s3", recordingHandler.UploadToS3)
		api.POST("/recordings/presigned-url", recordingHandler.PresignedURL)
		api.GET("/recordings", recordingHandler.List)
		api.GET("/recordings/:id/download", recordingHandler.Download)
		api.GET("/recordings/:id/analysis", recordingHandler.Analysis)
	}

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	sweepCtx, sweepCancel := context.WithCancel(context.Background())
	defer sweepCancel()
	go sweeper.Run(sweepCtx)

	go func() {
		logger.Info("server listening", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	sweepCancel()
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
