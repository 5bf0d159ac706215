package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/custodia-labs/docqa/internal/logger"
)

// Defaults applied to zero Config fields.
const (
	DefaultAddr           = ":8000"
	DefaultMaxUploadBytes = 50 << 20
	DefaultAllowedOrigin  = "http://localhost:3000"

	// shutdownTimeout bounds how long in-flight requests may run after cancel.
	shutdownTimeout = 10 * time.Second
)

// Config configures the HTTP server.
type Config struct {
	// Addr is the listen address.
	Addr string

	// MaxUploadBytes caps the size of an uploaded PDF.
	MaxUploadBytes int64

	// AllowedOrigin is the browser origin permitted by CORS.
	AllowedOrigin string
}

func (c Config) withDefaults() Config {
	if c.Addr == "" {
		c.Addr = DefaultAddr
	}
	if c.MaxUploadBytes <= 0 {
		c.MaxUploadBytes = DefaultMaxUploadBytes
	}
	if c.AllowedOrigin == "" {
		c.AllowedOrigin = DefaultAllowedOrigin
	}
	return c
}

// Server serves the docqa JSON API.
type Server struct {
	ports  *Ports
	config Config
	engine *gin.Engine
}

// NewServer creates a server with routes and middleware registered.
func NewServer(ports *Ports, cfg Config) (*Server, error) {
	if err := ports.Validate(); err != nil {
		return nil, fmt.Errorf("validating ports: %w", err)
	}

	if !logger.IsVerbose() {
		gin.SetMode(gin.ReleaseMode)
	}

	s := &Server{
		ports:  ports,
		config: cfg.withDefaults(),
		engine: gin.New(),
	}

	s.engine.Use(gin.Recovery(), requestID(), requestLogger(), cors(s.config.AllowedOrigin))
	s.registerRoutes()

	return s, nil
}

func (s *Server) registerRoutes() {
	s.engine.GET("/health", s.handleHealth)
	s.engine.POST("/upload", s.handleUpload)
	s.engine.POST("/query", s.handleQuery)
	s.engine.GET("/documents", s.handleListDocuments)
	s.engine.DELETE("/documents/:filename", s.handleDeleteDocument)
}

// Handler returns the HTTP handler serving the API.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Addr returns the configured listen address.
func (s *Server) Addr() string {
	return s.config.Addr
}

// Run listens on the configured address until ctx is cancelled,
// then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	httpServer := &http.Server{
		Addr:              s.config.Addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Warn("HTTP shutdown: %v", err)
		}
	}()

	logger.Info("HTTP server listening on %s", s.config.Addr)
	err := httpServer.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}
