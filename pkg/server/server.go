// Package server is the HTTP transport of the helper. One router serves the
// coordinator surface (/submit), the local executor surface (/execute), or
// both, depending on which services are configured.
package server

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// DefaultRequestTimeout is the outer budget for one HTTP request
const DefaultRequestTimeout = 30 * time.Second

// writeGrace lets a handler that used its whole budget still write the reply
const writeGrace = 2 * time.Second

// NewRouter builds the gin engine. Routes are registered only for the
// services that are non-nil.
func NewRouter(coordinator Submitter, executor Executor, logger *zap.Logger) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()

	r.Use(Recovery(logger))
	r.Use(RequestID())
	r.Use(TraceContext())
	r.Use(RequestLogger(logger))
	r.Use(Metrics())

	r.GET("/health", health)
	if coordinator != nil {
		r.POST("/submit", submit(coordinator, logger))
	}
	if executor != nil {
		r.POST("/execute", execute(executor))
	}

	return r
}

// Config represents the HTTP server configuration
type Config struct {
	BindAddr string

	// RequestTimeout bounds reading a request and writing its response
	RequestTimeout time.Duration

	// At least one of Coordinator and Executor is required
	Coordinator Submitter
	Executor    Executor

	Logger *zap.Logger
}

// Validate validates the server configuration
func (c *Config) Validate() error {
	if c.BindAddr == "" {
		return fmt.Errorf("bind address is required")
	}
	if c.Coordinator == nil && c.Executor == nil {
		return fmt.Errorf("nothing to serve: coordinator and executor are both disabled")
	}
	if c.RequestTimeout == 0 {
		c.RequestTimeout = DefaultRequestTimeout
	}
	if c.Logger == nil {
		return fmt.Errorf("logger is required")
	}
	return nil
}

// Server serves the helper HTTP API
type Server struct {
	config   *Config
	logger   *zap.Logger
	server   *http.Server
	listener net.Listener
}

// New creates a new server
func New(config *Config) (*Server, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &Server{
		config: config,
		logger: config.Logger,
		server: &http.Server{
			Handler:           NewRouter(config.Coordinator, config.Executor, config.Logger),
			ReadHeaderTimeout: config.RequestTimeout,
			ReadTimeout:       config.RequestTimeout,
			WriteTimeout:      config.RequestTimeout + writeGrace,
		},
	}, nil
}

// Start binds the listener and serves in the background
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.config.BindAddr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.config.BindAddr, err)
	}
	s.listener = ln

	s.logger.Info("Starting HTTP server",
		zap.String("address", ln.Addr().String()),
		zap.Bool("coordinator", s.config.Coordinator != nil),
		zap.Bool("executor", s.config.Executor != nil),
		zap.Duration("request_timeout", s.config.RequestTimeout),
	)

	go func() {
		if err := s.server.Serve(ln); err != nil && err != http.ErrServerClosed {
			s.logger.Error("HTTP server error", zap.Error(err))
		}
	}()

	return nil
}

// Addr returns the bound address, or "" before Start
func (s *Server) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Stop stops the server gracefully
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("Stopping HTTP server")

	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown HTTP server: %w", err)
	}
	return nil
}
