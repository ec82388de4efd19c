package api

import (
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"golang.org/x/time/rate"

	"github.com/tphakala/birdnet-api2ha/internal/logger"
)

// rateLimiterExpiry drops idle per-client limiters.
const rateLimiterExpiry = 3 * time.Minute

// unmatchedRoute labels requests that hit no registered route, keeping the
// metric's path label bounded.
const unmatchedRoute = "unmatched"

// setupMiddleware configures the Echo middleware stack. Recover sits
// innermost so the logger and metrics see the 500 it produces.
func (s *Server) setupMiddleware() {
	s.echo.Use(echomw.RequestIDWithConfig(echomw.RequestIDConfig{
		Generator: uuid.NewString,
		RequestIDHandler: func(c echo.Context, id string) {
			req := c.Request()
			c.SetRequest(req.WithContext(logger.WithTraceID(req.Context(), id)))
		},
	}))
	s.echo.Use(s.requestMetrics())
	s.echo.Use(newRequestLogger(s.log))
	s.echo.Use(echomw.Recover())
	if s.config.RateLimit > 0 {
		s.echo.Use(newRateLimiter(s.config.RateLimit))
	}
}

// newRateLimiter limits each client IP to limit requests per second with a
// burst of one second's worth. Health checks are never limited.
func newRateLimiter(limit float64) echo.MiddlewareFunc {
	burst := max(1, int(math.Ceil(limit)))
	return echomw.RateLimiterWithConfig(echomw.RateLimiterConfig{
		Skipper: func(c echo.Context) bool {
			return c.Path() == "/health"
		},
		Store: echomw.NewRateLimiterMemoryStoreWithConfig(echomw.RateLimiterMemoryStoreConfig{
			Rate:      rate.Limit(limit),
			Burst:     burst,
			ExpiresIn: rateLimiterExpiry,
		}),
	})
}

// newRequestLogger logs every request through the module logger. Errors are
// handed to the HTTP error handler here so the logged status is final.
func newRequestLogger(log logger.Logger) echo.MiddlewareFunc {
	return echomw.RequestLoggerWithConfig(echomw.RequestLoggerConfig{
		LogStatus:    true,
		LogURI:       true,
		LogMethod:    true,
		LogLatency:   true,
		LogRemoteIP:  true,
		LogRequestID: true,
		LogError:     true,
		HandleError:  true,
		LogValuesFunc: func(c echo.Context, v echomw.RequestLoggerValues) error {
			fields := []logger.Field{
				logger.String("method", v.Method),
				logger.String("uri", v.URI),
				logger.Int("status", v.Status),
				logger.String("ip", v.RemoteIP),
				logger.Duration("latency", v.Latency),
				logger.String("request_id", v.RequestID),
			}
			if v.Error != nil {
				fields = append(fields, logger.Error(v.Error))
			}

			switch {
			case v.Status >= 500:
				log.Error("request failed", fields...)
			case c.Path() == "/health" || c.Path() == "/metrics":
				log.Debug("request", fields...)
			default:
				log.Info("request", fields...)
			}
			return nil
		},
	})
}

// requestMetrics records the final status of every request by route template.
func (s *Server) requestMetrics() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if s.metrics == nil {
				return next(c)
			}
			start := time.Now()
			err := next(c)

			path := c.Path()
			if path == "" || path == "/*" {
				path = unmatchedRoute
			}
			s.metrics.HTTP.RecordRequest(c.Request().Method, path, c.Response().Status, time.Since(start))
			return err
		}
	}
}
