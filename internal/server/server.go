package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"mcpbridge/internal/bridge"
	"mcpbridge/internal/telemetry"
	"mcpbridge/pkg/logging"

	"github.com/gin-gonic/gin"
)

const subsystem = "Server"

// MetricsSource provides the metrics snapshot served at /api/metrics.
type MetricsSource interface {
	Snapshot(ctx context.Context) ([]telemetry.Metric, error)
}

// Config configures the management API server.
type Config struct {
	ListenAddr string
	// Metrics is optional; without it /api/metrics is not routed.
	Metrics MetricsSource
}

// Server serves the management API and the agent plugin endpoints over HTTP.
type Server struct {
	config Config
	bridge *bridge.Bridge
	engine *gin.Engine

	mu         sync.Mutex
	httpServer *http.Server
	listener   net.Listener
}

// New builds the gin engine and registers every route.
func New(cfg Config, b *bridge.Bridge) *Server {
	engine := gin.New()
	engine.Use(gin.Recovery(), requestLogger())

	s := &Server{config: cfg, bridge: b, engine: engine}
	s.registerRoutes()
	return s
}

// Handler returns the HTTP handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.engine
}

func (s *Server) registerRoutes() {
	s.engine.GET("/healthz", s.handleHealth)

	servers := s.engine.Group("/api/mcp-servers")
	servers.GET("/force-reload", s.handleForceReload)
	servers.GET("/list", s.handleList)
	servers.POST("/toggle", s.handleToggle)
	servers.POST("/delete", s.handleDelete)
	servers.POST("/create", s.handleCreate)
	servers.POST("/parse-install-command", s.handleParseInstallCommand)

	agent := s.engine.Group("/api/agent")
	agent.GET("/plugins", s.handlePlugins)
	agent.POST("/plugins/:name/invoke", s.handleInvoke)

	if s.config.Metrics != nil {
		s.engine.GET("/api/metrics", s.handleMetrics)
	}
}

// Start listens on the configured address and serves in the background.
func (s *Server) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.httpServer != nil {
		return fmt.Errorf("server already started on %s", s.listener.Addr())
	}

	ln, err := net.Listen("tcp", s.config.ListenAddr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.config.ListenAddr, err)
	}

	srv := &http.Server{
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.httpServer = srv
	s.listener = ln

	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.Error(subsystem, err, "Management API stopped unexpectedly")
		}
	}()

	logging.Info(subsystem, "Management API listening on http://%s", ln.Addr())
	return nil
}

// Addr returns the bound address, or "" before Start.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Shutdown stops accepting requests and waits for in-flight ones.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	srv := s.httpServer
	s.httpServer, s.listener = nil, nil
	s.mu.Unlock()

	if srv == nil {
		return nil
	}
	logging.Info(subsystem, "Shutting down management API")
	return srv.Shutdown(ctx)
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logging.Debug(subsystem, "%s %s -> %d (%v)",
			c.Request.Method, c.Request.URL.Path, c.Writer.Status(), time.Since(start))
	}
}
