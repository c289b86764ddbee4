// Package api provides the HTTP API adapter built on gin.
package api

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/custodia-labs/sercha-kb/internal/core/ports/driving"
	"github.com/custodia-labs/sercha-kb/internal/logger"
	"github.com/custodia-labs/sercha-kb/internal/telemetry"
)

// ErrMissingQueryService is returned when the query service is not provided.
var ErrMissingQueryService = errors.New("api: query service is required")

// Ports aggregates the driving ports served over HTTP.
type Ports struct {
	// Query answers questions. Required.
	Query driving.QueryService

	// Audit reads the audit trail. Optional.
	Audit driving.AuditService

	// Indexer runs syncs. Optional; without it POST /v1/sync is not served.
	Indexer driving.Indexer

	// DefaultManifest is synced when a request names no manifest.
	DefaultManifest string

	// Metrics serves /metrics. Optional.
	Metrics http.Handler
}

// Server serves the HTTP API.
type Server struct {
	ports  Ports
	engine *gin.Engine

	// syncMu serialises sync runs started over HTTP.
	syncMu sync.Mutex
}

// NewServer creates the server and registers its routes.
func NewServer(ports Ports) (*Server, error) {
	if ports.Query == nil {
		return nil, ErrMissingQueryService
	}

	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery(), traceRequests(), logRequests())

	s := &Server{ports: ports, engine: engine}
	s.registerRoutes()
	return s, nil
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.engine
}

func (s *Server) registerRoutes() {
	s.engine.GET("/healthz", s.handleHealth)
	if s.ports.Metrics != nil {
		s.engine.GET("/metrics", gin.WrapH(s.ports.Metrics))
	}

	v1 := s.engine.Group("/v1")
	{
		v1.POST("/ask", s.handleAsk)
		v1.POST("/retrieve", s.handleRetrieve)
		if s.ports.Indexer != nil {
			v1.POST("/sync", s.handleSync)
		}
		if s.ports.Audit != nil {
			v1.GET("/queries", s.handleListQueries)
			v1.GET("/queries/:id", s.handleGetQuery)
			v1.GET("/sync-runs", s.handleListSyncRuns)
			v1.GET("/docs", s.handleListDocuments)
		}
	}
}

// Run listens on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Graceful shutdown when context is cancelled
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		httpServer.Shutdown(shutdownCtx) //nolint:errcheck
	}()

	logger.Info("Listening on %s", addr)
	err := httpServer.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// traceRequests starts a server span per request.
func traceRequests() gin.HandlerFunc {
	tracer := telemetry.Tracer()
	return func(c *gin.Context) {
		ctx, span := tracer.Start(c.Request.Context(), c.Request.Method+" "+c.FullPath(),
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(
				attribute.String("http.method", c.Request.Method),
				attribute.String("http.route", c.FullPath()),
			))
		defer span.End()

		c.Request = c.Request.WithContext(ctx)
		c.Next()

		status := c.Writer.Status()
		span.SetAttributes(attribute.Int("http.status_code", status))
		if status >= http.StatusInternalServerError {
			span.SetStatus(codes.Error, http.StatusText(status))
		}
	}
}

// logRequests writes one event line per request.
func logRequests() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Event("http_request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"latency_ms", time.Since(start).Milliseconds())
	}
}
