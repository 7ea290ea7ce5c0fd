package httpserver

import (
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/tphakala/speechscope/internal/conf"
	"github.com/tphakala/speechscope/internal/errors"
	"github.com/tphakala/speechscope/internal/logger"
	"github.com/tphakala/speechscope/internal/pipeline"
	"github.com/tphakala/speechscope/internal/snapshot"
)

// ErrorResponse is the body of every failed API call.
type ErrorResponse struct {
	Error         string `json:"error"`
	Message       string `json:"message"`
	Code          int    `json:"code"`
	CorrelationID string `json:"correlation_id"`
}

// StatusResponse is the body of GET /api/v1/status.
type StatusResponse struct {
	SessionID    string           `json:"sessionId"`
	CatchupCount uint64           `json:"catchupCount"`
	WriteCount   uint64           `json:"writeCount"`
	Uptime       float64          `json:"uptimeSeconds"`
	Pipeline     *pipeline.Status `json:"pipeline,omitempty"`
}

func (s *Server) handleError(c echo.Context, err error, message string, code int) error {
	resp := ErrorResponse{
		Message:       message,
		Code:          code,
		CorrelationID: uuid.NewString()[:8],
	}
	if err != nil {
		resp.Error = err.Error()
	}
	s.log.Warn("API error",
		logger.String("correlation_id", resp.CorrelationID),
		logger.String("message", message),
		logger.String("error", resp.Error),
		logger.Int("code", code),
		logger.String("path", c.Request().URL.Path))
	return c.JSON(code, resp)
}

func (s *Server) healthCheck(c echo.Context) error {
	uptime := time.Since(s.startTime)
	return c.JSON(http.StatusOK, map[string]any{
		"status":         "healthy",
		"uptime":         uptime.String(),
		"uptime_seconds": uptime.Seconds(),
		"timestamp":      time.Now().Format(time.RFC3339),
	})
}

func (s *Server) getStatus(c echo.Context) error {
	resp := StatusResponse{
		SessionID:    s.store.SessionID().String(),
		CatchupCount: s.store.CatchupCount(),
		WriteCount:   s.store.WriteCount(),
		Uptime:       time.Since(s.startTime).Seconds(),
	}
	if s.status != nil {
		st := s.status.Status()
		resp.Pipeline = &st
	}
	return c.JSON(http.StatusOK, resp)
}

func (s *Server) getSnapshot(c echo.Context) error {
	var req snapshot.Request
	var err error

	if v := c.QueryParam("since"); v != "" {
		since, perr := strconv.ParseFloat(v, 64)
		if perr != nil {
			return s.handleError(c, perr, "invalid since parameter", http.StatusBadRequest)
		}
		req.Since = &since
	}
	if v := c.QueryParam("duration"); v != "" {
		if req.Duration, err = strconv.ParseFloat(v, 64); err != nil {
			return s.handleError(c, err, "invalid duration parameter", http.StatusBadRequest)
		}
	}
	if v := c.QueryParam("rows"); v != "" {
		if req.Rows, err = strconv.Atoi(v); err != nil {
			return s.handleError(c, err, "invalid rows parameter", http.StatusBadRequest)
		}
	}

	snap, err := snapshot.Build(s.store, s.analysis.View(), req, s.oscilloscopeRate)
	if err != nil {
		code := http.StatusInternalServerError
		if errors.Is(err, snapshot.ErrInvalidRequest) {
			code = http.StatusBadRequest
		}
		return s.handleError(c, err, "failed to build snapshot", code)
	}
	if s.metrics != nil {
		s.metrics.HTTP.RecordSnapshot(len(snap.Spectrogram.Columns))
	}
	return c.JSON(http.StatusOK, snap)
}

func (s *Server) getView(c echo.Context) error {
	return c.JSON(http.StatusOK, s.analysis.View())
}

// putView replaces the view settings. The spectrogram worker picks up a new
// maximum frequency on its next hop.
func (s *Server) putView(c echo.Context) error {
	var v conf.ViewSettings
	if err := c.Bind(&v); err != nil {
		return s.handleError(c, err, "invalid view settings body", http.StatusBadRequest)
	}
	if err := s.analysis.UpdateView(v); err != nil {
		return s.handleError(c, err, "view settings rejected", http.StatusUnprocessableEntity)
	}
	s.log.Info("view settings updated",
		logger.Int("max_frequency", v.MaxFrequency),
		logger.Int("fft_size", v.FFTSize),
		logger.String("frequency_scale", v.FrequencyScale))
	return c.JSON(http.StatusOK, s.analysis.View())
}
