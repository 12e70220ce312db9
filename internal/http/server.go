// Package http provides the HTTP API for forged.
package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/forged/internal/apperr"
	"github.com/fyrsmithlabs/forged/internal/project"
)

// Orchestrator is the application surface the HTTP handlers call into.
// *orchestrator.Service satisfies it.
type Orchestrator interface {
	CreateProject(ctx context.Context, name string, framework project.Framework) (*project.Project, error)
	Get(ctx context.Context, id string) (*project.Project, error)
	List(ctx context.Context, limit int) ([]*project.Project, error)
	UpdateContext(ctx context.Context, id string, patch project.Patch) (*project.Project, error)
	Delete(ctx context.Context, id string) error
	Count(ctx context.Context) (int, error)
	GenerateText(ctx context.Context, id, instruction string) (*project.Project, error)
	GenerateAudio(ctx context.Context, id string) (*project.Project, error)
}

// Config holds HTTP server configuration.
type Config struct {
	Host      string
	Port      int
	AssetsDir string
}

// ApplyDefaults sets default values for unset fields.
func (c *Config) ApplyDefaults() {
	if c.Host == "" {
		c.Host = "localhost"
	}
	if c.Port == 0 {
		c.Port = 8080
	}
	if c.AssetsDir == "" {
		c.AssetsDir = "data/assets"
	}
}

// Server provides HTTP endpoints for the project API.
type Server struct {
	echo    *echo.Echo
	orch    Orchestrator
	metrics *Metrics
	logger  *zap.Logger
	config  Config
}

// NewServer creates a new HTTP server.
func NewServer(orch Orchestrator, logger *zap.Logger, cfg Config) (*Server, error) {
	if orch == nil {
		return nil, fmt.Errorf("orchestrator cannot be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required for request tracking and debugging")
	}
	cfg.ApplyDefaults()

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	m := NewMetrics(logger)

	// Middleware
	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(m.Middleware())
	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			duration := time.Since(start)

			logger.Info("http request",
				zap.String("method", c.Request().Method),
				zap.String("uri", c.Request().RequestURI),
				zap.Int("status", c.Response().Status),
				zap.Duration("duration", duration),
				zap.String("request_id", c.Response().Header().Get(echo.HeaderXRequestID)),
			)

			return err
		}
	})

	s := &Server{
		echo:    e,
		orch:    orch,
		metrics: m,
		logger:  logger,
		config:  cfg,
	}

	// Register routes
	s.registerRoutes()

	return s, nil
}

// registerRoutes sets up the HTTP endpoints.
func (s *Server) registerRoutes() {
	// Health check and operational endpoints
	s.echo.GET("/health", s.handleHealth)
	s.echo.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	// Generated audio assets
	s.echo.Static("/assets", s.config.AssetsDir)

	// API routes
	api := s.echo.Group("/api")
	api.GET("/status", s.handleStatus)
	api.GET("/projects", s.handleListProjects)
	api.POST("/projects", s.handleCreateProject)
	api.GET("/projects/:id", s.handleGetProject)
	api.PUT("/projects/:id", s.handleUpdateProject)
	api.DELETE("/projects/:id", s.handleDeleteProject)
	api.POST("/generate", s.handleGenerate)
	api.POST("/generate-audio", s.handleGenerateAudio)
}

// CreateProjectRequest is the request body for POST /api/projects.
type CreateProjectRequest struct {
	Name      string            `json:"name"`
	Framework project.Framework `json:"framework"`
}

// GenerateRequest is the request body for POST /api/generate.
type GenerateRequest struct {
	ProjectID string `json:"projectId"`
	Prompt    string `json:"prompt"`
}

// GenerateAudioRequest is the request body for POST /api/generate-audio.
type GenerateAudioRequest struct {
	ProjectID string `json:"projectId"`
}

// StatusResponse is the response body for GET /api/status.
type StatusResponse struct {
	Status       string `json:"status"`
	ProjectCount int    `json:"projectCount"`
}

// HealthResponse is the response body for GET /health.
type HealthResponse struct {
	Status string `json:"status"`
}

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error string `json:"error"`
}

// handleHealth returns a simple health check response.
func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, HealthResponse{Status: "ok"})
}

// handleStatus reports service liveness plus the stored record count.
func (s *Server) handleStatus(c echo.Context) error {
	count, err := s.orch.Count(c.Request().Context())
	if err != nil {
		return s.writeError(c, err)
	}
	return c.JSON(http.StatusOK, StatusResponse{Status: "ok", ProjectCount: count})
}

func (s *Server) handleListProjects(c echo.Context) error {
	limit := 0
	if raw := c.QueryParam("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "limit must be a non-negative integer"})
		}
		limit = n
	}

	recs, err := s.orch.List(c.Request().Context(), limit)
	if err != nil {
		return s.writeError(c, err)
	}
	return c.JSON(http.StatusOK, recs)
}

func (s *Server) handleCreateProject(c echo.Context) error {
	var req CreateProjectRequest
	if err := c.Bind(&req); err != nil {
		s.logger.Warn("invalid create request", zap.Error(err))
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
	}

	rec, err := s.orch.CreateProject(c.Request().Context(), req.Name, req.Framework)
	if err != nil {
		return s.writeError(c, err)
	}
	return c.JSON(http.StatusCreated, rec)
}

func (s *Server) handleGetProject(c echo.Context) error {
	rec, err := s.orch.Get(c.Request().Context(), c.Param("id"))
	if err != nil {
		return s.writeError(c, err)
	}
	return c.JSON(http.StatusOK, rec)
}

func (s *Server) handleUpdateProject(c echo.Context) error {
	var patch project.Patch
	if err := c.Bind(&patch); err != nil {
		s.logger.Warn("invalid update request", zap.Error(err))
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
	}

	rec, err := s.orch.UpdateContext(c.Request().Context(), c.Param("id"), patch)
	if err != nil {
		return s.writeError(c, err)
	}
	return c.JSON(http.StatusOK, rec)
}

func (s *Server) handleDeleteProject(c echo.Context) error {
	if err := s.orch.Delete(c.Request().Context(), c.Param("id")); err != nil {
		return s.writeError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) handleGenerate(c echo.Context) error {
	var req GenerateRequest
	if err := c.Bind(&req); err != nil {
		s.logger.Warn("invalid generate request", zap.Error(err))
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
	}
	if req.ProjectID == "" {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "projectId field is required"})
	}

	rec, err := s.orch.GenerateText(c.Request().Context(), req.ProjectID, req.Prompt)
	if err != nil {
		return s.writeError(c, err)
	}
	return c.JSON(http.StatusOK, rec)
}

func (s *Server) handleGenerateAudio(c echo.Context) error {
	var req GenerateAudioRequest
	if err := c.Bind(&req); err != nil {
		s.logger.Warn("invalid generate-audio request", zap.Error(err))
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
	}
	if req.ProjectID == "" {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "projectId field is required"})
	}

	rec, err := s.orch.GenerateAudio(c.Request().Context(), req.ProjectID)
	if err != nil {
		return s.writeError(c, err)
	}
	return c.JSON(http.StatusOK, rec)
}

// writeError maps application errors onto HTTP status codes. Unrecognized
// errors become a 500 with a generic body so internals never leak.
func (s *Server) writeError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, apperr.ErrInvalidArgument):
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
	case errors.Is(err, apperr.ErrNotFound):
		return c.JSON(http.StatusNotFound, ErrorResponse{Error: err.Error()})
	case errors.Is(err, apperr.ErrInvalidState), errors.Is(err, apperr.ErrDuplicateKey):
		return c.JSON(http.StatusConflict, ErrorResponse{Error: err.Error()})
	default:
		s.logger.Error("request failed", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
	}
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.logger.Info("starting http server", zap.String("addr", addr))
	return s.echo.Start(addr)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down http server")
	return s.echo.Shutdown(ctx)
}
