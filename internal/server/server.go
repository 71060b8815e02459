package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/atlasops/requisition-service/internal/config"
	"github.com/atlasops/requisition-service/internal/engine"
	"github.com/atlasops/requisition-service/internal/export"
)

// Server wraps the HTTP transport around the workflow engine.
type Server struct {
	engine   *engine.Engine
	exporter *export.Exporter
	logger   *zap.Logger
	srv      *http.Server
}

// New creates a new HTTP server
func New(cfg config.ServerConfig, eng *engine.Engine, exporter *export.Exporter, logger *zap.Logger) *Server {
	s := &Server{
		engine:   eng,
		exporter: exporter,
		logger:   logger,
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(loggingMiddleware(logger))
	router.Use(corsMiddleware())

	s.registerRoutes(router)

	s.srv = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	return s
}

func (s *Server) registerRoutes(router *gin.Engine) {
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "healthy",
			"service": "requisition-service",
			"time":    time.Now().Format(time.RFC3339),
		})
	})

	api := router.Group("/api/v1")
	{
		categories := api.Group("/categories")
		{
			categories.POST("", s.createCategory)
			categories.GET("", s.listCategories)
			categories.GET("/:id", s.getCategory)
			categories.PUT("/:id", s.updateCategory)
		}

		requisitions := api.Group("/requisitions")
		{
			requisitions.POST("", s.createRequisition)
			requisitions.GET("", s.listRequisitions)
			requisitions.GET("/export", s.exportRegister)
			requisitions.GET("/number/:no", s.getRequisitionByNumber)
			requisitions.GET("/:id", s.getRequisition)
			requisitions.PUT("/:id", s.updateRequisition)
			requisitions.POST("/:id/submit", s.submitRequisition)
			requisitions.POST("/:id/action", s.actOnRequisition)
			requisitions.POST("/:id/execute", s.executeRequisition)
			requisitions.POST("/:id/cancel", s.cancelRequisition)
			requisitions.GET("/:id/workflow", s.getWorkflow)
			requisitions.GET("/:id/logs", s.getHistory)

			requisitions.POST("/:id/quotations", s.addQuotation)
			requisitions.GET("/:id/quotations", s.listQuotations)
			requisitions.PUT("/:id/quotations/:quotationID", s.updateQuotation)
			requisitions.POST("/:id/quotations/:quotationID/select", s.selectQuotation)
		}
	}
}

// Start runs the HTTP server until it is shut down.
func (s *Server) Start() error {
	s.logger.Info("HTTP server listening", zap.String("addr", s.srv.Addr))
	if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown gracefully stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down HTTP server")
	return s.srv.Shutdown(ctx)
}

// loggingMiddleware logs HTTP requests
func loggingMiddleware(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery

		c.Next()

		latency := time.Since(start)

		logger.Info("HTTP request",
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.String("query", query),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", latency),
			zap.String("ip", c.ClientIP()),
		)
	}
}

// corsMiddleware adds CORS headers
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Actor-Id, X-Actor-Role")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
