package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	gommonlog "github.com/labstack/gommon/log"

	"github.com/tphakala/birdnet-api2ha/internal/datastore"
	"github.com/tphakala/birdnet-api2ha/internal/errors"
	"github.com/tphakala/birdnet-api2ha/internal/logger"
	"github.com/tphakala/birdnet-api2ha/internal/observability"
	"github.com/tphakala/birdnet-api2ha/internal/securefs"
)

// Repository is the read side of the detection database used by the handlers.
type Repository interface {
	Available() bool
	ListDetections(ctx context.Context, q datastore.DetectionQuery) ([]datastore.Detection, error)
	AggregateStats(ctx context.Context, q datastore.StatsQuery) ([]datastore.SpeciesCount, error)
	ClipPath(ctx context.Context, id string) (string, error)
}

// Server is the HTTP query service.
type Server struct {
	echo    *echo.Echo
	config  Config
	repo    Repository
	clips   *securefs.SecureFS
	log     logger.Logger
	metrics *observability.Metrics
	clock   func() time.Time
}

// ServerOption is a functional option for configuring the Server.
type ServerOption func(*Server)

// WithLogger sets the module logger.
func WithLogger(l logger.Logger) ServerOption {
	return func(s *Server) {
		if l != nil {
			s.log = l
		}
	}
}

// WithMetrics records request metrics and, when enabled in the config,
// serves /metrics.
func WithMetrics(m *observability.Metrics) ServerOption {
	return func(s *Server) {
		s.metrics = m
	}
}

// WithClips enables /api/audio and audio_url generation.
func WithClips(clips *securefs.SecureFS) ServerOption {
	return func(s *Server) {
		s.clips = clips
	}
}

// WithClock replaces time.Now, used for period=week.
func WithClock(clock func() time.Time) ServerOption {
	return func(s *Server) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// New creates the HTTP server. A nil repo answers every query with an
// empty result.
func New(cfg Config, repo Repository, opts ...ServerOption) (*Server, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = DefaultShutdownTimeout
	}

	s := &Server{
		config: cfg,
		repo:   repo,
		log:    logger.NewSlogLogger(nil, logger.LogLevelError, nil),
		clock:  time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}

	s.echo = echo.New()
	s.echo.HideBanner = true
	s.echo.HidePort = true
	// Requests are logged by middleware; echo's own logger stays quiet.
	s.echo.Logger.SetLevel(gommonlog.OFF)
	s.echo.HTTPErrorHandler = s.handleError

	s.echo.Server.ReadTimeout = cfg.ReadTimeout
	s.echo.Server.WriteTimeout = cfg.WriteTimeout
	s.echo.Server.IdleTimeout = cfg.IdleTimeout

	s.setupMiddleware()
	s.setupRoutes()

	s.log.Debug("HTTP server initialized",
		logger.String("address", cfg.Address()),
		logger.Bool("clips", s.clips != nil),
		logger.Bool("metrics", s.metricsEndpointEnabled()))
	return s, nil
}

func (s *Server) setupRoutes() {
	s.echo.GET("/health", s.healthCheck)

	api := s.echo.Group("/api")
	api.GET("/detections", s.listDetections)
	api.GET("/stats", s.aggregateStats)
	api.GET("/audio", s.serveAudio)

	if s.metricsEndpointEnabled() {
		s.echo.GET("/metrics", echo.WrapHandler(s.metrics.Handler()))
	}
}

func (s *Server) metricsEndpointEnabled() bool {
	return s.config.MetricsEnabled && s.metrics != nil
}

// Echo returns the underlying Echo instance.
func (s *Server) Echo() *echo.Echo {
	return s.echo
}

// Start serves HTTP until ctx is cancelled, then shuts down gracefully.
// It returns nil after a clean shutdown.
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- s.echo.Start(s.config.Address())
	}()

	s.log.Info("HTTP server starting", logger.String("address", s.config.Address()))

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return errors.New(fmt.Errorf("http server: %w", err)).
			Component("api").
			Category(errors.CategoryNetwork).
			Context("address", s.config.Address()).
			Build()
	case <-ctx.Done():
		return s.Shutdown()
	}
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
	defer cancel()

	if err := s.echo.Shutdown(ctx); err != nil {
		s.log.Error("error during server shutdown", logger.Error(err))
		return fmt.Errorf("shutdown error: %w", err)
	}
	s.log.Info("HTTP server stopped")
	return nil
}
