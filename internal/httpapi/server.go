// Package httpapi exposes the knowledge service over HTTP.
package httpapi

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/brightclass/knowledged/internal/access"
	"github.com/brightclass/knowledged/internal/config"
	"github.com/brightclass/knowledged/internal/knowledge"
	"github.com/brightclass/knowledged/internal/logging"
)

// Knowledge is the service surface the handlers consume. *knowledge.Service
// implements it; tests substitute fakes.
type Knowledge interface {
	Ingest(ctx context.Context, req knowledge.IngestRequest) error
	Search(ctx context.Context, req knowledge.SearchRequest) ([]knowledge.Result, error)
	ListDocuments(ctx context.Context, req knowledge.ListRequest) (*knowledge.DocumentList, error)
	DeleteDocument(ctx context.Context, req knowledge.DeleteRequest) error
}

// Server provides the HTTP endpoints.
type Server struct {
	echo      *echo.Echo
	knowledge Knowledge
	checker   access.Checker
	logger    *logging.Logger
	config    config.ServerConfig
}

// NewServer creates the HTTP server.
func NewServer(cfg config.ServerConfig, svc Knowledge, checker access.Checker, logger *logging.Logger) (*Server, error) {
	if svc == nil {
		return nil, fmt.Errorf("knowledge service is required")
	}
	if checker == nil {
		return nil, fmt.Errorf("access checker is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	cfg.ApplyDefaults()

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()

			// Carry the request id into the context so every log line
			// below the handler correlates.
			requestID := c.Response().Header().Get(echo.HeaderXRequestID)
			ctx := logging.WithRequestID(c.Request().Context(), requestID)
			c.SetRequest(c.Request().WithContext(ctx))

			err := next(c)

			logger.Info(ctx, "http request",
				zap.String("method", c.Request().Method),
				zap.String("uri", c.Request().RequestURI),
				zap.Int("status", c.Response().Status),
				zap.Duration("duration", time.Since(start)),
			)
			return err
		}
	})

	s := &Server{
		echo:      e,
		knowledge: svc,
		checker:   checker,
		logger:    logger.Named("httpapi"),
		config:    cfg,
	}
	s.registerRoutes()
	return s, nil
}

func (s *Server) registerRoutes() {
	s.echo.GET("/health", s.handleHealth)
	s.echo.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	v1 := s.echo.Group("/api/v1")
	v1.POST("/search", s.handleSearch)

	docs := v1.Group("/tenants/:tenant/collections/:collection/documents")
	docs.POST("", s.handleIngest)
	docs.GET("", s.handleListDocuments)
	docs.DELETE("/:file", s.handleDeleteDocument)
}

// HealthResponse is the response body for GET /health.
type HealthResponse struct {
	Status string `json:"status"`
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, HealthResponse{Status: "ok"})
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.logger.Info(context.Background(), "starting http server", zap.String("addr", addr))
	return s.echo.Start(addr)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info(ctx, "shutting down http server")
	return s.echo.Shutdown(ctx)
}
