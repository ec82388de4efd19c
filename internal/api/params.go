package api

import (
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/tphakala/birdnet-api2ha/internal/datastore"
)

// periodWeek selects Monday of the current week through today.
const periodWeek = "week"

// dateRange reads date_start and date_end, letting period=week override both.
func (s *Server) dateRange(c echo.Context) (start, end string) {
	if c.QueryParam("period") == periodWeek {
		return weekRange(s.clock().In(s.config.Location))
	}
	return c.QueryParam("date_start"), c.QueryParam("date_end")
}

// weekRange returns the Monday of now's week and now's date.
func weekRange(now time.Time) (start, end string) {
	sinceMonday := (int(now.Weekday()) + 6) % 7
	monday := now.AddDate(0, 0, -sinceMonday)
	return monday.Format(time.DateOnly), now.Format(time.DateOnly)
}

// parseLimit falls back to the default for missing or non-numeric input.
func parseLimit(raw string) int {
	limit, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return datastore.DefaultLimit
	}
	return datastore.NormalizeLimit(limit)
}
