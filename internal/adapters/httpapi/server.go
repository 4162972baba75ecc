// Package httpapi exposes the market-data engine over HTTP: a one-shot
// snapshot endpoint and a server-sent-events stream of live updates.
package httpapi

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"cryptoPulse/internal/app"
	"cryptoPulse/internal/ports"
)

const (
	defaultSnapshotLimit = 200
	maxSnapshotLimit     = 1000
)

// Server wires the registry into a gin engine.
type Server struct {
	registry *app.Registry
	logger   ports.Logger
	engine   *gin.Engine
}

// Config holds configuration for the HTTP server.
type Config struct {
	Registry *app.Registry
	Logger   ports.Logger
}

// New builds the HTTP server and registers its routes.
func New(cfg Config) *Server {
	gin.SetMode(gin.ReleaseMode)
	s := &Server{
		registry: cfg.Registry,
		logger:   cfg.Logger,
		engine:   gin.New(),
	}
	s.engine.Use(gin.Recovery())

	s.engine.GET("/healthz", s.health)
	api := s.engine.Group("/api")
	{
		api.GET("/crypto", s.snapshot)
		api.GET("/stream", s.stream)
	}
	return s
}

// Handler returns the underlying http.Handler, used both by Run and by tests.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run serves until the context is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()
	s.logger.Info(ctx, "HTTP server listening", map[string]interface{}{"addr": addr})

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// snapshot answers GET /api/crypto?timeframe=1h&limit=200 with the latest
// per-symbol candle and indicator values for the timeframe.
func (s *Server) snapshot(c *gin.Context) {
	timeframe := c.Query("timeframe")
	if timeframe == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "timeframe is required"})
		return
	}

	limit := defaultSnapshotLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
			return
		}
		limit = n
	}
	if limit > maxSnapshotLimit {
		limit = maxSnapshotLimit
	}

	events, err := s.registry.Snapshot(c.Request.Context(), timeframe, limit)
	if err != nil {
		if errors.Is(err, ports.ErrUnknownTimeframe) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unsupported timeframe: " + timeframe})
			return
		}
		s.logger.Error(c.Request.Context(), err, "snapshot request failed", map[string]interface{}{
			"timeframe": timeframe,
		})
		c.JSON(http.StatusBadGateway, gin.H{"error": "upstream data unavailable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"timeframe": timeframe, "data": events})
}

// stream answers GET /api/stream?timeframe=1h with a server-sent-events feed
// of update events. The subscription lives as long as the client connection.
func (s *Server) stream(c *gin.Context) {
	timeframe := c.Query("timeframe")
	if timeframe == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "timeframe is required"})
		return
	}

	sub, err := s.registry.Subscribe(c.Request.Context(), timeframe)
	if err != nil {
		if errors.Is(err, ports.ErrUnknownTimeframe) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unsupported timeframe: " + timeframe})
			return
		}
		s.logger.Error(c.Request.Context(), err, "stream subscription failed", map[string]interface{}{
			"timeframe": timeframe,
		})
		c.JSON(http.StatusBadGateway, gin.H{"error": "upstream data unavailable"})
		return
	}
	defer s.registry.Unsubscribe(timeframe, sub)

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")

	clientGone := c.Request.Context().Done()
	c.Stream(func(w io.Writer) bool {
		select {
		case <-clientGone:
			return false
		case ev, ok := <-sub.Events():
			if !ok {
				return false
			}
			c.SSEvent("candle", ev)
			return true
		}
	})
}
