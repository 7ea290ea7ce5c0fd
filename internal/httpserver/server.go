// Package httpserver exposes the analysis session over a small read-only
// HTTP API: pipeline status, track snapshots and Prometheus metrics.
package httpserver

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"github.com/tphakala/speechscope/internal/conf"
	"github.com/tphakala/speechscope/internal/datastore"
	"github.com/tphakala/speechscope/internal/logger"
	"github.com/tphakala/speechscope/internal/observability"
	"github.com/tphakala/speechscope/internal/pipeline"
)

// Server timeouts.
const (
	ReadTimeout     = 10 * time.Second
	WriteTimeout    = 30 * time.Second
	IdleTimeout     = 60 * time.Second
	ShutdownTimeout = 5 * time.Second
)

// GetLogger returns the HTTP server logger.
func GetLogger() logger.Logger {
	return logger.Global().Module("httpserver")
}

// StatusProvider is implemented by *pipeline.Pipeline.
type StatusProvider interface {
	Status() pipeline.Status
}

// Server serves the read API for one analysis session.
type Server struct {
	echo     *echo.Echo
	address  string
	store    *datastore.DataStore
	analysis *conf.Analysis
	status   StatusProvider
	metrics  *observability.Metrics
	log      logger.Logger

	oscilloscopeRate float64
	startTime        time.Time
}

// Option configures a Server.
type Option func(*Server)

// WithMetrics serves /metrics from m and records request metrics.
func WithMetrics(m *observability.Metrics) Option {
	return func(s *Server) { s.metrics = m }
}

// WithStatus exposes the pipeline status.
func WithStatus(p StatusProvider) Option {
	return func(s *Server) { s.status = p }
}

// WithLogger replaces the module logger.
func WithLogger(l logger.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.log = l
		}
	}
}

// New creates a server for store. analysis supplies and updates the view
// settings used to shape snapshots.
func New(address string, store *datastore.DataStore, analysis *conf.Analysis, opts ...Option) *Server {
	s := &Server{
		address:          address,
		store:            store,
		analysis:         analysis,
		log:              GetLogger(),
		oscilloscopeRate: pipeline.OscilloscopeRate,
		startTime:        time.Now(),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.echo = echo.New()
	s.echo.HideBanner = true
	s.echo.HidePort = true
	s.echo.Server.ReadTimeout = ReadTimeout
	s.echo.Server.WriteTimeout = WriteTimeout
	s.echo.Server.IdleTimeout = IdleTimeout

	s.setupMiddleware()
	s.setupRoutes()
	return s
}

func (s *Server) setupMiddleware() {
	// Recovery middleware - should be first
	s.echo.Use(echomw.Recover())
	s.echo.Use(s.requestLogger())
	if s.metrics != nil {
		s.echo.Use(s.requestMetrics)
	}
	s.echo.Use(echomw.GzipWithConfig(echomw.GzipConfig{Level: 5}))
}

func (s *Server) setupRoutes() {
	s.echo.GET("/health", s.healthCheck)

	v1 := s.echo.Group("/api/v1")
	v1.GET("/status", s.getStatus)
	v1.GET("/snapshot", s.getSnapshot)
	v1.GET("/view", s.getView)
	v1.PUT("/view", s.putView)

	if s.metrics != nil {
		s.echo.GET("/metrics", echo.WrapHandler(s.metrics.Handler()))
	}
}

func (s *Server) requestLogger() echo.MiddlewareFunc {
	return echomw.RequestLoggerWithConfig(echomw.RequestLoggerConfig{
		LogStatus:   true,
		LogURI:      true,
		LogMethod:   true,
		LogLatency:  true,
		LogRemoteIP: true,
		LogError:    true,
		LogValuesFunc: func(_ echo.Context, v echomw.RequestLoggerValues) error {
			fields := []logger.Field{
				logger.String("method", v.Method),
				logger.String("uri", v.URI),
				logger.Int("status", v.Status),
				logger.String("ip", v.RemoteIP),
				logger.Duration("latency", v.Latency),
			}
			if v.Error != nil {
				fields = append(fields, logger.Error(v.Error))
			}
			s.log.Debug("request", fields...)
			return nil
		},
	})
}

func (s *Server) requestMetrics(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		start := time.Now()
		err := next(c)
		if err != nil {
			c.Error(err)
		}
		s.metrics.HTTP.RecordRequest(c.Request().Method, c.Path(), c.Response().Status,
			time.Since(start).Seconds(), c.Response().Size)
		return nil
	}
}

// Handler returns the root handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errc := make(chan error, 1)
	go func() {
		s.log.Info("HTTP server starting", logger.String("address", s.address))
		if err := s.echo.Start(s.address); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
		close(errc)
	}()

	select {
	case err := <-errc:
		if err != nil {
			s.log.Error("HTTP server error", logger.Error(err))
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
	defer cancel()
	if err := s.echo.Shutdown(shutdownCtx); err != nil {
		s.log.Error("error during server shutdown", logger.Error(err))
		return err
	}
	<-errc
	s.log.Info("HTTP server shutdown complete")
	return nil
}
