package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/lk2023060901/file-container/internal/auth"
	"github.com/lk2023060901/file-container/internal/auth/middleware"
	"github.com/lk2023060901/file-container/internal/conf"
	"github.com/lk2023060901/file-container/internal/container/biz"
	"github.com/lk2023060901/file-container/internal/container/service"
	"github.com/lk2023060901/file-container/internal/data"
	"github.com/lk2023060901/file-container/internal/pkg/logger"
	"github.com/lk2023060901/file-container/internal/server"
	"go.uber.org/zap"
)

var (
	configFile = flag.String("config", "config.yaml", "config file path")
)

func main() {
	flag.Parse()

	// Load configuration
	config, err := conf.LoadConfig(*configFile)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	// Initialize logger with config
	logConfig := &logger.Config{
		Level:            config.Log.Level,
		Format:           config.Log.Format,
		Output:           config.Log.Output,
		EnableCaller:     config.Log.EnableCaller,
		EnableStacktrace: config.Log.EnableStacktrace,
		File: logger.FileConfig{
			Filename:   config.Log.File.Filename,
			MaxSize:    config.Log.File.MaxSize,
			MaxAge:     config.Log.File.MaxAge,
			MaxBackups: config.Log.File.MaxBackups,
			Compress:   config.Log.File.Compress,
		},
	}

	log, err := logger.New(logConfig)
	if err != nil {
		panic("failed to initialize logger: " + err.Error())
	}
	defer log.Sync()

	// Initialize global logger
	if err := logger.InitGlobal(logConfig); err != nil {
		log.Fatal("failed to initialize global logger", zap.Error(err))
	}

	log.Info("config loaded successfully")

	// Initialize data layer
	d, cleanup, err := data.NewData(config, log)
	if err != nil {
		log.Fatal("failed to initialize data layer", zap.Error(err))
	}
	defer cleanup()

	// Initialize use cases
	hasher := auth.NewBcryptHasher(config.Auth.BcryptCost)
	folderUseCase := biz.NewFolderUseCase(d.Store, d.Blobs, hasher, log.Logger)
	fileUseCase := biz.NewFileUseCase(d.Store, d.Blobs, folderUseCase, log.Logger)
	uploadUseCase := biz.NewUploadUseCase(folderUseCase, fileUseCase, d.Blobs, d.Pool, config.Storage.MaxFileSize, log.Logger)

	// Initialize services
	containerService := service.NewContainerService(folderUseCase, fileUseCase, uploadUseCase, log.Logger)

	var guards []gin.HandlerFunc
	if config.RateLimit.Enabled {
		guards = append(guards, middleware.RateLimiter(d.Redis, middleware.RateLimiterConfig{
			MaxRequests:   config.RateLimit.MaxRequests,
			WindowSeconds: config.RateLimit.WindowSeconds,
			Strategy:      "endpoint",
			Prefix:        "file-container:ratelimit",
		}, log))
	}

	httpServer := server.NewHTTPServer(config, log, containerService, guards...)

	go func() {
		if err := httpServer.Start(); err != nil {
			log.Fatal("failed to start HTTP server", zap.Error(err))
		}
	}()

	log.Info("file container server started",
		zap.Int("port", config.Server.Port),
		zap.String("storage", config.Storage.Backend),
		zap.String("uploads_dir", config.Storage.UploadsDir),
		zap.String("data_dir", config.Storage.DataDir),
	)

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server...")

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), config.Server.ShutdownTimeout)
	defer cancel()

	if err := httpServer.Stop(ctx); err != nil {
		log.Error("HTTP server forced to shutdown", zap.Error(err))
	}

	log.Info("server exited")
}
