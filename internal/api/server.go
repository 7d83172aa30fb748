package api

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"agentq/internal/metrics"
	"agentq/internal/runner"
	"agentq/internal/stats"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
)

// Controller is the slice of runner.Manager the API needs.
type Controller interface {
	metrics.Source
	Errors() *stats.ErrorLog
	State() runner.State
	StartTime() time.Time
	RunID() string
	Config() runner.Config
	Stop() error
}

// Server exposes run state, a stop switch and Prometheus metrics over HTTP.
type Server struct {
	ctl    Controller
	log    zerolog.Logger
	router *gin.Engine
	srv    *http.Server
}

func NewServer(addr string, ctl Controller, reg *prometheus.Registry, log zerolog.Logger) *Server {
	if gin.Mode() == gin.DebugMode {
		gin.SetMode(gin.ReleaseMode)
	}

	s := &Server{
		ctl: ctl,
		log: log.With().Str("component", "api").Logger(),
	}

	router := gin.New()
	router.Use(gin.Recovery(), s.requestLogger())
	router.GET("/healthz", s.health)
	v1 := router.Group("/v1")
	v1.GET("/run", s.getRun)
	v1.GET("/agents", s.listAgents)
	v1.POST("/stop", s.stop)
	if reg != nil {
		router.GET("/metrics", gin.WrapH(metrics.Handler(reg)))
	}

	s.router = router
	s.srv = &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

func (s *Server) Handler() http.Handler { return s.router }

// Start listens on the configured address and serves in the background.
func (s *Server) Start() (net.Addr, error) {
	ln, err := net.Listen("tcp", s.srv.Addr)
	if err != nil {
		return nil, err
	}
	go func() {
		s.log.Info().Str("addr", ln.Addr().String()).Msg("api listening")
		if err := s.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error().Err(err).Msg("api server failed")
		}
	}()
	return ln.Addr(), nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.log.Debug().
			Str("method", c.Request.Method).
			Str("path", c.FullPath()).
			Int("status", c.Writer.Status()).
			Dur("latency", time.Since(start)).
			Msg("request")
	}
}
