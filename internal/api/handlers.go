package api

import (
	"net/http"
	"net/url"

	"github.com/labstack/echo/v4"

	"github.com/tphakala/birdnet-api2ha/internal/datastore"
)

// serviceName is reported by /health.
const serviceName = "birdnet-api2ha"

// HealthResponse is the body of /health.
type HealthResponse struct {
	Status  string `json:"status"`
	Service string `json:"service"`
}

// DetectionResponse is a detection augmented with a playable clip URL.
type DetectionResponse struct {
	datastore.Detection
	AudioURL string `json:"audio_url"`
}

func (s *Server) healthCheck(c echo.Context) error {
	return c.JSON(http.StatusOK, HealthResponse{Status: "healthy", Service: serviceName})
}

// databaseReady reports whether queries can run; otherwise handlers answer
// with an empty list.
func (s *Server) databaseReady() bool {
	return s.repo != nil && s.repo.Available()
}

// listDetections handles GET /api/detections.
func (s *Server) listDetections(c echo.Context) error {
	if !s.databaseReady() {
		return c.JSON(http.StatusOK, []DetectionResponse{})
	}

	start, end := s.dateRange(c)
	q := datastore.DetectionQuery{
		DateStart:  start,
		DateEnd:    end,
		NameFilter: c.QueryParam("common_name"),
		Limit:      parseLimit(c.QueryParam("limit")),
	}

	detections, err := s.repo.ListDetections(c.Request().Context(), q)
	if err != nil {
		if datastore.IsNotFound(err) {
			return c.JSON(http.StatusOK, []DetectionResponse{})
		}
		return queryError(err)
	}

	base := c.Scheme() + "://" + c.Request().Host
	out := make([]DetectionResponse, 0, len(detections))
	for _, d := range detections {
		out = append(out, DetectionResponse{Detection: d, AudioURL: s.audioURL(base, &d)})
	}
	return c.JSON(http.StatusOK, out)
}

// audioURL points at /api/audio when the detection has a clip and clips
// are served.
func (s *Server) audioURL(base string, d *datastore.Detection) string {
	if s.clips == nil || d.AudioPath == "" {
		return ""
	}
	return base + "/api/audio?id=" + url.QueryEscape(d.ID)
}

// aggregateStats handles GET /api/stats.
func (s *Server) aggregateStats(c echo.Context) error {
	if !s.databaseReady() {
		return c.JSON(http.StatusOK, []datastore.SpeciesCount{})
	}

	start, end := s.dateRange(c)
	stats, err := s.repo.AggregateStats(c.Request().Context(), datastore.StatsQuery{DateStart: start, DateEnd: end})
	if err != nil {
		if datastore.IsNotFound(err) {
			return c.JSON(http.StatusOK, []datastore.SpeciesCount{})
		}
		return queryError(err)
	}
	if stats == nil {
		stats = []datastore.SpeciesCount{}
	}
	return c.JSON(http.StatusOK, stats)
}

// serveAudio handles GET /api/audio?id=N.
func (s *Server) serveAudio(c echo.Context) error {
	if s.clips == nil || !s.databaseReady() {
		return echo.NewHTTPError(http.StatusNotFound, "audio clip not found")
	}

	clip, err := s.repo.ClipPath(c.Request().Context(), c.QueryParam("id"))
	if err != nil {
		if datastore.IsNotFound(err) {
			return echo.NewHTTPError(http.StatusNotFound, "audio clip not found")
		}
		return queryError(err)
	}
	return s.clips.ServeClip(c, clip)
}
