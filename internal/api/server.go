package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/as-progression-tracker/internal/classifier"
	"github.com/as-progression-tracker/internal/domain"
	"github.com/as-progression-tracker/internal/middleware"
	"github.com/as-progression-tracker/internal/service"
	"github.com/as-progression-tracker/internal/session"
)

// ClassifierAdmin exposes classifier status and reload to operators
type ClassifierAdmin interface {
	Status() classifier.Status
	Reload(ctx context.Context) error
}

// Server represents the HTTP server
type Server struct {
	configManager domain.ConfigManager
	tracker       *service.Tracker
	sessions      *session.Manager
	classifiers   ClassifierAdmin
	logger        *logrus.Logger
	router        *gin.Engine
	server        *http.Server
}

// NewServer creates a new HTTP server instance
func NewServer(configManager domain.ConfigManager, tracker *service.Tracker, sessions *session.Manager, classifiers ClassifierAdmin, logger *logrus.Logger) *Server {
	cfg := configManager.GetConfig()
	if logger == nil {
		logger = logrus.New()
	}

	if gin.Mode() != gin.TestMode {
		if cfg.Logging.Level == "debug" {
			gin.SetMode(gin.DebugMode)
		} else {
			gin.SetMode(gin.ReleaseMode)
		}
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CorrelationID())
	router.Use(middleware.AuditLogger(logger))
	router.Use(middleware.SecurityHeaders())
	router.Use(corsMiddleware())
	router.Use(middleware.RequestTimeout(cfg.Server.RequestTimeout))

	server := &Server{
		configManager: configManager,
		tracker:       tracker,
		sessions:      sessions,
		classifiers:   classifiers,
		logger:        logger,
		router:        router,
	}

	server.setupRoutes()

	return server
}

// Handler returns the configured router
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start serves until ctx is cancelled, then shuts down gracefully
func (s *Server) Start(ctx context.Context) error {
	cfg := s.configManager.GetServerConfig()
	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)

	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.WithField("addr", addr).Info("HTTP server listening")
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("failed to start server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	s.logger.Info("HTTP server shutting down")
	return s.server.Shutdown(shutdownCtx)
}

func (s *Server) setupRoutes() {
	s.router.GET("/health", s.handleHealth)

	v1 := s.router.Group("/api/v1")
	{
		v1.POST("/sessions", s.handleCreateSession)

		sessions := v1.Group("/sessions/:id")
		sessions.GET("", s.handleGetSession)
		sessions.DELETE("", s.handleEndSession)
		sessions.PUT("/patient", s.handleSetPatient)
		sessions.POST("/measurements", s.handleAddMeasurement)
		sessions.GET("/measurements", s.handleListMeasurements)
		sessions.GET("/trends", s.handleTrends)
		sessions.POST("/predictions", s.handlePredict)
		sessions.GET("/predictions/latest", s.handleLastPrediction)

		v1.GET("/classifier", s.handleClassifierStatus)
		v1.POST("/classifier/reload", s.handleReloadClassifier)
	}
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization, "+middleware.CorrelationIDHeader)
		c.Header("Access-Control-Expose-Headers", middleware.CorrelationIDHeader)

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
