package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/as-progression-tracker/internal/domain"
	"github.com/as-progression-tracker/internal/session"
)

// MeasurementRequest is the body of an add-measurement call. Fields are
// pointers so a missing value is told apart from zero.
type MeasurementRequest struct {
	Date         string   `json:"date"`
	PSALevel     *float64 `json:"psa_level"`
	GlandVolume  *float64 `json:"gland_volume"`
	GleasonGrade *float64 `json:"gleason_grade"`
}

// ToMeasurement converts the request, reporting the first missing or malformed field
func (r MeasurementRequest) ToMeasurement() (domain.Measurement, error) {
	return domain.MeasurementInput{
		Date:         r.Date,
		PSALevel:     r.PSALevel,
		GlandVolume:  r.GlandVolume,
		GleasonGrade: r.GleasonGrade,
	}.Measurement()
}

// PatientRequest is the body of a set-patient call
type PatientRequest struct {
	Age *int `json:"age"`
}

// SessionState is the full presentation view of one session
type SessionState struct {
	session.Snapshot
	Count   int                     `json:"count"`
	Derived *domain.DerivedFeatures `json:"derived,omitempty"`
}

func (s *Server) handleHealth(c *gin.Context) {
	status := s.classifiers.Status()

	overall := "healthy"
	if !status.Available {
		overall = "degraded"
	}

	c.JSON(http.StatusOK, gin.H{
		"status":     overall,
		"timestamp":  time.Now().UTC(),
		"version":    s.configManager.GetConfig().MCP.ServerVersion,
		"classifier": status,
		"sessions":   s.sessions.Len(),
	})
}

func (s *Server) handleCreateSession(c *gin.Context) {
	sess := s.sessions.Create()
	c.JSON(http.StatusCreated, gin.H{
		"session_id": sess.ID,
		"created_at": sess.CreatedAt,
	})
}

// lookup resolves the :id path parameter, writing the error response on failure
func (s *Server) lookup(c *gin.Context) (*session.Session, bool) {
	sess, err := s.sessions.Get(c.Param("id"))
	if err != nil {
		s.respondError(c, err)
		return nil, false
	}
	return sess, true
}

func (s *Server) handleGetSession(c *gin.Context) {
	sess, ok := s.lookup(c)
	if !ok {
		return
	}

	snapshot := sess.Snapshot()
	state := SessionState{Snapshot: snapshot, Count: len(snapshot.Measurements)}
	if derived, err := s.tracker.Derived(sess); err == nil {
		state.Derived = &derived
	} else if !errors.Is(err, domain.ErrInsufficientHistory) {
		s.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, state)
}

func (s *Server) handleEndSession(c *gin.Context) {
	if err := s.sessions.End(c.Param("id")); err != nil {
		s.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) handleSetPatient(c *gin.Context) {
	sess, ok := s.lookup(c)
	if !ok {
		return
	}

	var req PatientRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.respondBadRequest(c, err)
		return
	}
	if req.Age == nil {
		s.respondError(c, domain.NewValidationError("age", "age is required", nil))
		return
	}

	patient := domain.PatientInfo{Age: *req.Age}
	if err := s.tracker.SetPatient(sess, patient); err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, patient)
}

func (s *Server) handleAddMeasurement(c *gin.Context) {
	sess, ok := s.lookup(c)
	if !ok {
		return
	}

	var req MeasurementRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.respondBadRequest(c, err)
		return
	}
	m, err := req.ToMeasurement()
	if err != nil {
		s.respondError(c, err)
		return
	}

	receipt, err := s.tracker.AddMeasurement(sess, m)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, receipt)
}

func (s *Server) handleListMeasurements(c *gin.Context) {
	sess, ok := s.lookup(c)
	if !ok {
		return
	}

	measurements := s.tracker.Measurements(sess)
	if measurements == nil {
		measurements = []domain.Measurement{}
	}
	c.JSON(http.StatusOK, gin.H{
		"measurements": measurements,
		"count":        len(measurements),
	})
}

func (s *Server) handleTrends(c *gin.Context) {
	sess, ok := s.lookup(c)
	if !ok {
		return
	}

	trends, err := s.tracker.Trends(sess)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, trends)
}

func (s *Server) handlePredict(c *gin.Context) {
	sess, ok := s.lookup(c)
	if !ok {
		return
	}

	result, err := s.tracker.Predict(c.Request.Context(), sess)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (s *Server) handleLastPrediction(c *gin.Context) {
	sess, ok := s.lookup(c)
	if !ok {
		return
	}

	result, found := s.tracker.LastPrediction(sess)
	if !found {
		s.respondError(c, domain.ErrNoPrediction)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (s *Server) handleClassifierStatus(c *gin.Context) {
	c.JSON(http.StatusOK, s.classifiers.Status())
}

func (s *Server) handleReloadClassifier(c *gin.Context) {
	if err := s.classifiers.Reload(c.Request.Context()); err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, s.classifiers.Status())
}
