package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"workboard/internal/apperr"
	"workboard/internal/models"
	"workboard/internal/service"
)

// HealthCheck checks a dependency for the readiness endpoint.
type HealthCheck func(ctx context.Context) error

// Options configures the HTTP server.
type Options struct {
	Logger         *slog.Logger
	JWTSecret      []byte
	RequestTimeout time.Duration
	Checks         map[string]HealthCheck
}

// Server exposes the domain services over HTTP.
type Server struct {
	engine   *gin.Engine
	services *service.Services
	logger   *slog.Logger
	auth     *Authenticator
	timeout  time.Duration
	checks   map[string]HealthCheck
}

// New constructs the HTTP server with routes and middleware configured.
func New(services *service.Services, opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	srv := &Server{
		engine:   router,
		services: services,
		logger:   logger,
		auth:     NewAuthenticator(opts.JWTSecret),
		timeout:  opts.RequestTimeout,
		checks:   opts.Checks,
	}
	router.Use(srv.accessLog(), srv.withTimeout())

	srv.registerRoutes()
	return srv
}

// Engine exposes the underlying Gin engine.
func (s *Server) Engine() *gin.Engine {
	return s.engine
}

// registerRoutes wires all API handlers together.
func (s *Server) registerRoutes() {
	api := s.engine.Group("/api")
	api.GET("/healthz", s.handleHealth)
	api.POST("/users", s.handleCreateUser)

	authed := api.Group("", s.auth.Middleware())
	s.registerUserRoutes(authed)
	s.registerProjectRoutes(authed)
	s.registerBoardRoutes(authed)
	s.registerColumnRoutes(authed)
	s.registerTaskRoutes(authed)

	s.engine.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": gin.H{"kind": apperr.KindNotFound, "message": "endpoint not found"}})
	})
}

// handleHealth reports ok when every registered dependency answers.
func (s *Server) handleHealth(c *gin.Context) {
	failed := gin.H{}
	for name, check := range s.checks {
		if err := check(c.Request.Context()); err != nil {
			failed[name] = err.Error()
		}
	}
	if len(failed) > 0 {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "failed": failed})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) accessLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.InfoContext(c.Request.Context(), "request",
			slog.String("method", c.Request.Method),
			slog.String("path", c.Request.URL.Path),
			slog.Int("status", c.Writer.Status()),
			slog.Duration("duration", time.Since(start)),
		)
	}
}

// withTimeout bounds the context handed to the services.
func (s *Server) withTimeout() gin.HandlerFunc {
	return func(c *gin.Context) {
		if s.timeout <= 0 {
			c.Next()
			return
		}
		ctx, cancel := context.WithTimeout(c.Request.Context(), s.timeout)
		defer cancel()
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// statusOf maps an error kind to the HTTP status returned to clients.
func statusOf(err error) int {
	switch apperr.KindOf(err) {
	case apperr.KindValidation:
		return http.StatusBadRequest
	case apperr.KindNotFound:
		return http.StatusNotFound
	case apperr.KindPermissionDenied:
		return http.StatusForbidden
	case apperr.KindConflict:
		return http.StatusConflict
	case apperr.KindStorage:
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

// respondError logs the error and returns a JSON payload.
func (s *Server) respondError(c *gin.Context, err error) {
	status := statusOf(err)
	attrs := []any{slog.String("path", c.FullPath()), slog.Int("status", status), slog.String("error", err.Error())}
	if status >= http.StatusInternalServerError {
		s.logger.ErrorContext(c.Request.Context(), "request failed", attrs...)
	} else {
		s.logger.DebugContext(c.Request.Context(), "request rejected", attrs...)
	}

	var ae *apperr.Error
	if !errors.As(err, &ae) {
		c.JSON(status, gin.H{"error": gin.H{"kind": "INTERNAL_ERROR", "message": "internal error"}})
		return
	}
	c.JSON(status, gin.H{"error": ae})
}

// respondSuccess writes payload as JSON; a nil payload sends only the status.
func respondSuccess(c *gin.Context, status int, payload any) {
	if payload == nil {
		c.Status(status)
		return
	}
	c.JSON(status, payload)
}

// bindJSON decodes the request body, answering 400 on malformed JSON.
func (s *Server) bindJSON(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		s.respondError(c, apperr.Validation(apperr.Field{Field: "body", Message: err.Error(), Code: "INVALID_FORMAT"}))
		return false
	}
	return true
}

// bindQuery decodes query parameters into each of dst.
func (s *Server) bindQuery(c *gin.Context, dst ...any) bool {
	for _, d := range dst {
		if err := c.ShouldBindQuery(d); err != nil {
			s.respondError(c, apperr.Validation(apperr.Field{Field: "query", Message: err.Error(), Code: "INVALID_FORMAT"}))
			return false
		}
	}
	return true
}

// listQuery reads the shared sort and pagination parameters.
func (s *Server) listQuery(c *gin.Context) (models.Sort, models.Pagination, bool) {
	var sort models.Sort
	var page models.Pagination
	ok := s.bindQuery(c, &sort, &page)
	return sort, page, ok
}

func queryBool(c *gin.Context, name string) bool {
	b, _ := strconv.ParseBool(strings.TrimSpace(c.Query(name)))
	return b
}
