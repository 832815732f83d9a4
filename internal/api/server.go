package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/skin-lesion-advisor/internal/database"
	"github.com/skin-lesion-advisor/internal/domain"
	"github.com/skin-lesion-advisor/internal/middleware"
	"github.com/skin-lesion-advisor/internal/reporting"
	"github.com/skin-lesion-advisor/internal/results"
	"github.com/skin-lesion-advisor/internal/service"
)

// Version is reported by the health endpoint
const Version = "1.0.0"

// HealthChecker is a database whose liveness, migration state and pool usage
// are reported by /health
type HealthChecker interface {
	Health(ctx context.Context) error
	SchemaVersion(ctx context.Context) (version uint, dirty bool, err error)
	PoolStats() database.PoolStats
}

// Dependencies are the collaborators the HTTP server routes to
type Dependencies struct {
	Catalog    *service.Catalog
	Resolver   *service.Resolver
	Inference  domain.InferenceService
	Store      results.Store
	Statistics *reporting.StatisticsService
	Verifier   *TokenVerifier
	Database   HealthChecker // optional
	Logger     *logrus.Logger
}

// Server represents the HTTP server
type Server struct {
	configManager domain.ConfigManager
	deps          Dependencies
	logger        *logrus.Logger
	router        *gin.Engine
	server        *http.Server
}

// NewServer creates a new HTTP server instance
func NewServer(configManager domain.ConfigManager, deps Dependencies) *Server {
	cfg := configManager.GetConfig()

	// Set Gin mode based on environment
	if cfg.Logging.Level == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.MaxMultipartMemory = cfg.Server.MaxUploadBytes

	router.Use(gin.Recovery())
	router.Use(middleware.CorrelationID())
	router.Use(middleware.AuditLogger(deps.Logger))
	router.Use(middleware.SecurityHeaders())
	router.Use(corsMiddleware())
	router.Use(middleware.RequestTimeout(cfg.Server.RequestTimeout))

	server := &Server{
		configManager: configManager,
		deps:          deps,
		logger:        deps.Logger,
		router:        router,
	}

	server.setupRoutes()

	return server
}

// Handler exposes the router, mainly for tests
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start serves HTTP until ctx is cancelled, then shuts down gracefully
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

	s.logger.Info("Shutting down HTTP server")
	return s.server.Shutdown(shutdownCtx)
}

// setupRoutes configures the API routes
func (s *Server) setupRoutes() {
	cfg := s.configManager.GetConfig()

	s.router.GET("/health", s.handleHealth)

	v1 := s.router.Group("/api/v1")
	{
		v1.GET("/conditions", s.handleListConditions)
		v1.GET("/conditions/:label", s.handleGetCondition)
		v1.POST("/classify", s.handleClassify)
		v1.POST("/advisories", s.handleResolve)
		v1.POST("/statistics/summarize", s.handleSummarize)
		v1.POST("/scan", OptionalAuth(s.deps.Verifier), s.handleScan)

		authed := v1.Group("/results", RequireAuth(s.deps.Verifier))
		{
			authed.POST("", s.handleSaveResult)
			authed.GET("", s.handleListResults)

			admin := authed.Group("", RequireRole(cfg.Auth.AdminRole))
			admin.GET("/statistics", s.handleResultStatistics)
			admin.GET("/statistics/:label", s.handlePredictionDetails)
			admin.GET("/export", s.handleExportResults)
			admin.DELETE("/:id", s.handleDeleteResult)
		}
	}
}

// corsMiddleware adds CORS headers to responses
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Content-Length, Accept-Encoding, Authorization, X-Correlation-ID")
		c.Header("Access-Control-Expose-Headers", "Content-Length, X-Correlation-ID")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// abortWithError writes a standardized error body and stops the chain
func abortWithError(c *gin.Context, status int, code, message, details string) {
	c.AbortWithStatusJSON(status, domain.NewAdvisorError(code, message, details, c.GetString(middleware.CorrelationIDKey)))
}

// respondError maps service errors onto HTTP responses
func (s *Server) respondError(c *gin.Context, err error) {
	var ve *domain.ValidationError
	switch {
	case errors.As(err, &ve):
		abortWithError(c, http.StatusBadRequest, domain.ErrCodeValidation, ve.Error(), ve.Field)
	case errors.Is(err, domain.ErrNotFound):
		abortWithError(c, http.StatusNotFound, domain.ErrCodeNotFound, "Resource not found", "")
	default:
		s.logger.WithError(err).WithField("correlation_id", c.GetString(middleware.CorrelationIDKey)).
			Error("Request failed")
		abortWithError(c, http.StatusInternalServerError, domain.ErrCodeInternalServer, "Internal server error", "")
	}
}
