package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/lk2023060901/file-container/internal/conf"
	"github.com/lk2023060901/file-container/internal/container/service"
	"github.com/lk2023060901/file-container/internal/pkg/logger"
	"github.com/lk2023060901/file-container/internal/pkg/response"
	"go.uber.org/zap"
)

type HTTPServer struct {
	server *http.Server
	router *gin.Engine
	logger *logger.Logger
}

// NewHTTPServer builds the router. guards run in front of the routes that
// check a folder password.
func NewHTTPServer(
	config *conf.Config,
	log *logger.Logger,
	containerService *service.ContainerService,
	guards ...gin.HandlerFunc,
) *HTTPServer {
	if gin.Mode() != gin.TestMode {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(logger.GinRecovery(log))
	router.Use(logger.GinLogger(log, logger.MiddlewareOptions{SkipPaths: []string{"/health"}}))

	// Health check
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status": "ok",
			"time":   time.Now().Format(time.RFC3339),
		})
	})

	if index := indexFile(config.Server.WebRoot); index != "" {
		router.GET("/", func(c *gin.Context) {
			c.File(index)
		})
	}

	// API routes
	api := router.Group("/api")
	containerService.RegisterRoutes(api, guards...)

	router.NoRoute(func(c *gin.Context) {
		response.NotFound(c, "endpoint not found")
	})

	addr := fmt.Sprintf("%s:%d", config.Server.Host, config.Server.Port)

	return &HTTPServer{
		server: &http.Server{
			Addr:              addr,
			Handler:           router,
			ReadHeaderTimeout: config.Server.ReadHeaderTimeout,
			IdleTimeout:       config.Server.IdleTimeout,
		},
		router: router,
		logger: log,
	}
}

// Handler exposes the router, mainly for tests.
func (s *HTTPServer) Handler() http.Handler {
	return s.router
}

func (s *HTTPServer) Start() error {
	s.logger.Info("starting HTTP server", zap.String("addr", s.server.Addr))

	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	return nil
}

func (s *HTTPServer) Stop(ctx context.Context) error {
	s.logger.Info("stopping HTTP server")
	return s.server.Shutdown(ctx)
}

// indexFile returns webRoot/index.html when it exists. Only that one file
// is served; the uploads tree stays behind the API.
func indexFile(webRoot string) string {
	if webRoot == "" {
		return ""
	}
	index := filepath.Join(webRoot, "index.html")
	if info, err := os.Stat(index); err != nil || info.IsDir() {
		return ""
	}
	return index
}
