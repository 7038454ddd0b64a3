package api

import (
	"math"
	"net/http"
	"strconv"

	"github.com/Southclaws/fault"
	"github.com/Southclaws/fault/fmsg"
	"github.com/Southclaws/fault/ftag"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/icco/riffloop/internal/annotation"
	"github.com/icco/riffloop/internal/grid"
	"github.com/icco/riffloop/internal/store"
)

// GridResponse is the derived bar grid of a session.
type GridResponse struct {
	Bars        []float64 `json:"bars"`
	BarWidth    *float64  `json:"barWidth"`
	SlotsPerBar int       `json:"slotsPerBar"`
}

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error string `json:"error"`
}

// healthCheck godoc
// @Summary Health check endpoint
// @Tags health
// @Produce json
// @Success 200 {object} map[string]string
// @Router /health [get]
func healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": "riffloop",
	})
}

// listSessions godoc
// @Summary List saved sessions
// @Tags sessions
// @Produce json
// @Success 200 {array} store.Summary
// @Router /sessions [get]
func (s *Server) listSessions(c *gin.Context) {
	list, err := s.store.List(c.Request.Context())
	if err != nil {
		s.fail(c, err)
		return
	}
	if list == nil {
		list = []store.Summary{}
	}
	c.JSON(http.StatusOK, list)
}

// createSession godoc
// @Summary Save a new session under a generated id
// @Tags sessions
// @Accept json
// @Produce json
// @Param session body store.Record true "Session"
// @Success 201 {object} map[string]string
// @Failure 400 {object} ErrorResponse
// @Router /sessions [post]
func (s *Server) createSession(c *gin.Context) {
	rec, ok := s.bindRecord(c)
	if !ok {
		return
	}
	id := uuid.NewString()
	if err := s.store.Save(c.Request.Context(), id, rec); err != nil {
		s.fail(c, err)
		return
	}
	c.Header("Location", "/api/v1/sessions/"+id)
	c.JSON(http.StatusCreated, gin.H{"id": id})
}

// getSession godoc
// @Summary Load a session
// @Tags sessions
// @Produce json
// @Param id path string true "Session id"
// @Success 200 {object} store.Record
// @Failure 404 {object} ErrorResponse
// @Router /sessions/{id} [get]
func (s *Server) getSession(c *gin.Context) {
	rec, err := s.store.Load(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, rec)
}

// putSession godoc
// @Summary Create or replace a session
// @Tags sessions
// @Accept json
// @Param id path string true "Session id"
// @Param session body store.Record true "Session"
// @Success 204
// @Failure 400 {object} ErrorResponse
// @Router /sessions/{id} [put]
func (s *Server) putSession(c *gin.Context) {
	rec, ok := s.bindRecord(c)
	if !ok {
		return
	}
	if err := s.store.Save(c.Request.Context(), c.Param("id"), rec); err != nil {
		s.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// deleteSession godoc
// @Summary Delete a session
// @Tags sessions
// @Param id path string true "Session id"
// @Success 204
// @Failure 404 {object} ErrorResponse
// @Router /sessions/{id} [delete]
func (s *Server) deleteSession(c *gin.Context) {
	if err := s.store.Delete(c.Request.Context(), c.Param("id")); err != nil {
		s.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// sessionGrid godoc
// @Summary Bar grid of a session for a track length
// @Tags sessions
// @Produce json
// @Param id path string true "Session id"
// @Param duration query number true "Track length in seconds"
// @Success 200 {object} GridResponse
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /sessions/{id}/grid [get]
func (s *Server) sessionGrid(c *gin.Context) {
	duration, err := strconv.ParseFloat(c.Query("duration"), 64)
	if err != nil || math.IsNaN(duration) || math.IsInf(duration, 0) || duration <= 0 {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "duration must be a positive number of seconds"})
		return
	}
	rec, err := s.store.Load(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gridOf(rec, duration))
}

func gridOf(rec store.Record, duration float64) GridResponse {
	cfg := grid.TempoConfig{
		BPM:         grid.BPMFromPtr(rec.BPM),
		BeatsPerBar: grid.DefaultBeatsPerBar,
	}
	if rec.BeatsPerBar != nil {
		cfg.BeatsPerBar = *rec.BeatsPerBar
	}
	if rec.OffsetSeconds != nil {
		cfg.Offset = *rec.OffsetSeconds
	}
	resp := GridResponse{
		Bars:        grid.Bars(duration, cfg),
		SlotsPerBar: grid.SlotsPerBar(cfg.BeatsPerBar),
	}
	if w, ok := grid.BarWidth(cfg); ok {
		resp.BarWidth = &w
	}
	return resp
}

// bindRecord decodes and checks a request body. It writes the error response
// itself and reports false on failure.
func (s *Server) bindRecord(c *gin.Context) (store.Record, bool) {
	var rec store.Record
	if err := c.ShouldBindJSON(&rec); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid session: " + err.Error()})
		return rec, false
	}
	if rec.SourceRef == "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "sourceRef is required"})
		return rec, false
	}
	if _, err := annotation.FromRecord(rec.Chords, rec.Tabs); err != nil {
		s.fail(c, fault.Wrap(err, ftag.With(ftag.InvalidArgument), fmsg.WithDesc("bad annotations", err.Error())))
		return rec, false
	}
	return rec, true
}

// fail maps a tagged error to its status code.
func (s *Server) fail(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch ftag.Get(err) {
	case ftag.NotFound:
		status = http.StatusNotFound
	case ftag.InvalidArgument:
		status = http.StatusBadRequest
	}

	msg := fmsg.GetIssue(err)
	if msg == "" {
		msg = err.Error()
	}
	if status == http.StatusInternalServerError {
		s.log.WithError(err).Error("request failed")
		msg = "internal error"
	}
	c.JSON(status, ErrorResponse{Error: msg})
}
