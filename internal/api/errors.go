package api

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/tphakala/birdnet-api2ha/internal/datastore"
	"github.com/tphakala/birdnet-api2ha/internal/errors"
	"github.com/tphakala/birdnet-api2ha/internal/logger"
)

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error string `json:"error"`
}

// handleError renders err as {"error": message}. Non-HTTP errors become 500.
func (s *Server) handleError(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	code := http.StatusInternalServerError
	message := http.StatusText(code)

	var he *echo.HTTPError
	if errors.As(err, &he) {
		code = he.Code
		if msg, ok := he.Message.(string); ok {
			message = msg
		} else {
			message = http.StatusText(code)
		}
		if he.Internal != nil {
			err = he.Internal
		}
	}

	if code >= http.StatusInternalServerError {
		fields := []logger.Field{
			logger.String("path", c.Request().URL.Path),
			logger.Int("code", code),
			logger.Error(err),
		}
		var ee *errors.EnhancedError
		if errors.As(err, &ee) {
			fields = append(fields, logger.String("category", ee.GetCategory()))
		}
		// The request id travels as trace_id, also tagging the SQL log lines.
		s.log.WithContext(c.Request().Context()).Error("request error", fields...)
	}

	var writeErr error
	if c.Request().Method == http.MethodHead {
		writeErr = c.NoContent(code)
	} else {
		writeErr = c.JSON(code, ErrorResponse{Error: message})
	}
	if writeErr != nil {
		s.log.Warn("failed to write error response", logger.Error(writeErr))
	}
}

// queryError maps a repository failure onto a 500 with a stable message.
func queryError(err error) error {
	message := "database query failed"
	if datastore.IsSchemaError(err) {
		message = "unsupported database schema"
	}
	return echo.NewHTTPError(http.StatusInternalServerError, message).SetInternal(err)
}
