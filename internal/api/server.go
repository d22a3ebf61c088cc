// Package api implements the admin/health HTTP surface, adapted from
// the teacher's gin-based Server: same router/CORS/logging-middleware
// shape, new routes for this server's own health, channel listing and
// metrics scrape.
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/yourusername/streamcast/internal/catalog"
	"github.com/yourusername/streamcast/internal/manifest"
	"github.com/yourusername/streamcast/internal/metrics"
)

// Server is the admin HTTP server: health check, channel listing, and
// (when metrics are enabled) a Prometheus scrape endpoint.
type Server struct {
	logger     *zap.Logger
	httpServer *http.Server
	router     *gin.Engine
	port       int

	catalog       *catalog.Catalog
	metrics       *metrics.Registry
	clientCounter func() int
	manifests     manifest.Writer
}

// Config bundles the admin server's dependencies.
type Config struct {
	Port          int
	Production    bool
	Logger        *zap.Logger
	Catalog       *catalog.Catalog
	Metrics       *metrics.Registry // nil disables /metrics
	ClientCounter func() int
}

// NewServer builds the admin server's router without starting to
// listen.
func NewServer(cfg Config) *Server {
	if cfg.Production {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(corsMiddleware())
	router.Use(loggerMiddleware(cfg.Logger))

	s := &Server{
		logger:        cfg.Logger,
		router:        router,
		port:          cfg.Port,
		catalog:       cfg.Catalog,
		metrics:       cfg.Metrics,
		clientCounter: cfg.ClientCounter,
		manifests:     manifest.DebugWriter{},
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.GET("/healthz", s.handleHealth)
	s.router.GET("/v1/channels", s.handleChannels)
	s.router.GET("/v1/channels/:name/manifest", s.handleManifest)
	if s.metrics != nil {
		s.router.GET("/metrics", gin.WrapH(s.metrics.Handler()))
	}
}

// Start begins serving in the background; call Stop to shut down.
func (s *Server) Start() error {
	addr := fmt.Sprintf(":%d", s.port)
	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	s.logger.Info("starting admin server", zap.String("addr", addr))
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error("admin server error", zap.Error(err))
		}
	}()
	return nil
}

// Stop gracefully shuts the admin server down.
func (s *Server) Stop(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleHealth(c *gin.Context) {
	clients := 0
	if s.clientCounter != nil {
		clients = s.clientCounter()
	}
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"time":    time.Now().UTC(),
		"clients": clients,
	})
}

func (s *Server) handleChannels(c *gin.Context) {
	names := s.catalog.Names()
	out := make([]gin.H, 0, len(names))
	for _, name := range names {
		ch, ok := s.catalog.Lookup(name)
		if !ok {
			continue
		}
		out = append(out, gin.H{
			"name":      ch.Name(),
			"timescale": ch.Timescale(),
			"vduration": ch.VDuration(),
			"aduration": ch.ADuration(),
			"init_vts":  ch.InitVTS(),
			"vformats":  formatVideoNames(ch),
			"aformats":  formatAudioNames(ch),
		})
	}
	c.JSON(http.StatusOK, gin.H{"channels": out})
}

// handleManifest renders the debug (non-DASH) manifest snapshot for one
// channel — the only caller of internal/manifest, per spec.md's Non-goal
// on real manifest generation.
func (s *Server) handleManifest(c *gin.Context) {
	ch, ok := s.catalog.Lookup(c.Param("name"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown channel"})
		return
	}
	c.Writer.Header().Set("Content-Type", "text/plain; charset=utf-8")
	c.Status(http.StatusOK)
	if err := s.manifests.WriteManifest(c.Writer, ch); err != nil {
		s.logger.Warn("write manifest", zap.Error(err))
	}
}

func formatVideoNames(ch *catalog.Channel) []string {
	formats := ch.VFormats()
	names := make([]string, len(formats))
	for i, f := range formats {
		names[i] = f.String()
	}
	return names
}

func formatAudioNames(ch *catalog.Channel) []string {
	formats := ch.AFormats()
	names := make([]string, len(formats))
	for i, f := range formats {
		names[i] = f.String()
	}
	return names
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

func loggerMiddleware(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		c.Next()
		logger.Debug("admin http request",
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
		)
	}
}
