// Package healthserver exposes the status of a running stream and its Prometheus
// metrics over HTTP.
package healthserver

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/user/screenstream/pkg/pipeline"
	"github.com/user/screenstream/pkg/ports"
)

// StatusSource reports the current stream status.
type StatusSource interface {
	Status() pipeline.StreamStatus
}

// Server wraps the HTTP server with its dependencies.
type Server struct {
	router  *gin.Engine
	source  StatusSource
	started time.Time
	logger  ports.Logger
	srv     *http.Server
}

// New creates a Server serving source's status and the metrics gathered by gatherer.
func New(source StatusSource, gatherer prometheus.Gatherer, logger ports.Logger) *Server {
	gin.SetMode(gin.ReleaseMode)

	s := &Server{
		source:  source,
		started: time.Now(),
		logger:  logger.WithComponent("health"),
	}

	router := gin.New()
	router.Use(gin.Recovery())

	api := router.Group("/api")
	{
		api.GET("/ping", s.handlePing)
		api.GET("/health", s.handleHealth)
	}
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))

	s.router = router
	return s
}

// Handler returns the HTTP handler, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start serves on addr in the background.
func (s *Server) Start(addr string) {
	s.srv = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	s.logger.Info("Health server listening on %s", addr)

	go func() {
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("Health server failed: %s", err)
		}
	}()
}

// Shutdown stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.srv == nil {
		return nil
	}
	return s.srv.Shutdown(ctx)
}

func (s *Server) handlePing(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"message": "pong"})
}

// handleHealth reports 200 while the encoder is alive or the stream has not failed,
// and 503 once the encoder is gone before completion.
func (s *Server) handleHealth(c *gin.Context) {
	st := s.source.Status()

	code := http.StatusOK
	healthy := st.Alive || st.State == pipeline.StatusCompleted.String()
	if !healthy && st.State == pipeline.StatusInProgress.String() {
		code = http.StatusServiceUnavailable
	}

	c.JSON(code, HealthResponse{
		Healthy:       code == http.StatusOK,
		UptimeSeconds: int(time.Since(s.started).Seconds()),
		Stream:        st,
	})
}
