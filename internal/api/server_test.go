package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/as-progression-tracker/internal/classifier"
	"github.com/as-progression-tracker/internal/domain"
	"github.com/as-progression-tracker/internal/service"
	"github.com/as-progression-tracker/internal/session"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type stubConfigManager struct {
	config *domain.Config
}

func (m *stubConfigManager) GetConfig() *domain.Config             { return m.config }
func (m *stubConfigManager) GetServerConfig() *domain.ServerConfig { return &m.config.Server }
func (m *stubConfigManager) GetClassifierConfig() *domain.ClassifierConfig {
	return &m.config.Classifier
}
func (m *stubConfigManager) Reload() error       { return nil }
func (m *stubConfigManager) Validate() error     { return nil }
func (m *stubConfigManager) IsProduction() bool  { return false }
func (m *stubConfigManager) IsDevelopment() bool { return true }

func fixedProbability(p float64) domain.Classifier {
	return domain.ClassifierFunc(func(context.Context, domain.FeatureVector) (float64, error) {
		return p, nil
	})
}

func newTestServer(t *testing.T, provider *classifier.Provider) *Server {
	t.Helper()
	logger, _ := test.NewNullLogger()
	cfg := &domain.Config{
		Server:  domain.ServerConfig{Port: 8080, RequestTimeout: 5 * time.Second},
		Session: domain.SessionConfig{MaxSessions: 10, TTL: time.Hour, ChronologyPolicy: domain.ChronologyAccept},
		Logging: domain.LoggingConfig{Level: "info"},
		MCP:     domain.MCPConfig{ServerVersion: "test"},
	}
	interpreter, err := service.NewInterpreter(domain.DefaultDecisionThreshold)
	require.NoError(t, err)
	tracker := service.NewTracker(
		service.NewMeasurementEntry(cfg.Session.ChronologyPolicy, logger),
		interpreter,
		provider,
		logger,
	)
	sessions := session.NewManager(cfg.Session, logger)
	return NewServer(&stubConfigManager{config: cfg}, tracker, sessions, provider, logger)
}

func do(t *testing.T, s *Server, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		switch b := body.(type) {
		case string:
			buf.WriteString(b)
		default:
			require.NoError(t, json.NewEncoder(&buf).Encode(b))
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), v))
}

func createSession(t *testing.T, s *Server) string {
	t.Helper()
	w := do(t, s, http.MethodPost, "/api/v1/sessions", nil)
	require.Equal(t, http.StatusCreated, w.Code)
	var resp struct {
		SessionID string `json:"session_id"`
	}
	decode(t, w, &resp)
	require.NotEmpty(t, resp.SessionID)
	return resp.SessionID
}

func errorCode(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var resp ErrorResponse
	decode(t, w, &resp)
	require.NotNil(t, resp.Error)
	return resp.Error.Code
}

func TestHealth(t *testing.T) {
	t.Run("healthy", func(t *testing.T) {
		s := newTestServer(t, classifier.NewStaticProvider(fixedProbability(0.5), "v1"))
		w := do(t, s, http.MethodGet, "/health", nil)

		require.Equal(t, http.StatusOK, w.Code)
		var resp map[string]interface{}
		decode(t, w, &resp)
		assert.Equal(t, "healthy", resp["status"])
		assert.Equal(t, "test", resp["version"])
	})

	t.Run("degraded without classifier", func(t *testing.T) {
		s := newTestServer(t, classifier.NewProvider("artifact", nil, nil))
		w := do(t, s, http.MethodGet, "/health", nil)

		require.Equal(t, http.StatusOK, w.Code)
		var resp map[string]interface{}
		decode(t, w, &resp)
		assert.Equal(t, "degraded", resp["status"])
	})
}

func TestSessionLifecycle(t *testing.T) {
	s := newTestServer(t, classifier.NewStaticProvider(fixedProbability(0.3), "v1"))
	id := createSession(t, s)

	w := do(t, s, http.MethodGet, "/api/v1/sessions/"+id, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var state map[string]interface{}
	decode(t, w, &state)
	assert.Equal(t, id, state["session_id"])
	assert.EqualValues(t, 0, state["count"])
	assert.NotContains(t, state, "derived")

	w = do(t, s, http.MethodDelete, "/api/v1/sessions/"+id, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = do(t, s, http.MethodGet, "/api/v1/sessions/"+id, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, domain.ErrCodeSessionNotFound, errorCode(t, w))

	w = do(t, s, http.MethodDelete, "/api/v1/sessions/"+id, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestAddMeasurementAndPredict(t *testing.T) {
	s := newTestServer(t, classifier.NewStaticProvider(fixedProbability(0.3), "v1"))
	id := createSession(t, s)
	base := "/api/v1/sessions/" + id

	w := do(t, s, http.MethodPost, base+"/measurements", `{"date":"2023-12-01","psa_level":6.89,"gland_volume":70,"gleason_grade":1}`)
	require.Equal(t, http.StatusCreated, w.Code)
	var receipt service.EntryReceipt
	decode(t, w, &receipt)
	assert.True(t, receipt.FirstMeasurement)

	w = do(t, s, http.MethodPost, base+"/measurements", `{"date":"2024-12-01","psa_level":9.4,"gland_volume":70,"gleason_grade":1}`)
	require.Equal(t, http.StatusCreated, w.Code)
	decode(t, w, &receipt)
	assert.Equal(t, 366, receipt.DaysSincePrevious)
	assert.Equal(t, 2, receipt.Count)

	w = do(t, s, http.MethodGet, base+"/predictions/latest", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, domain.ErrCodeNoPrediction, errorCode(t, w))

	w = do(t, s, http.MethodPost, base+"/predictions", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var result domain.PredictionResult
	decode(t, w, &result)
	assert.Equal(t, 0.3, result.Probability)
	assert.Equal(t, domain.VerdictUnlikelyProgression, result.Verdict)
	assert.Equal(t, "Cancer is unlikely to progress in the next five years.", result.Message)
	assert.Equal(t, domain.FeatureVector{PSALevel: 9.4, GlandVolume: 70, GleasonGrade: 1, DaysSinceFirst: 366}, result.Features)

	w = do(t, s, http.MethodGet, base+"/predictions/latest", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var latest domain.PredictionResult
	decode(t, w, &latest)
	assert.Equal(t, result, latest)

	w = do(t, s, http.MethodGet, base+"/measurements", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var list struct {
		Measurements []domain.Measurement `json:"measurements"`
		Count        int                  `json:"count"`
	}
	decode(t, w, &list)
	assert.Equal(t, 2, list.Count)
	assert.Equal(t, "2023-12-01", list.Measurements[0].Date.String())

	w = do(t, s, http.MethodGet, base+"/trends", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var trends service.Trends
	decode(t, w, &trends)
	require.Len(t, trends.PSALevel, 2)
	assert.Equal(t, 9.4, trends.PSALevel[1].Value)

	w = do(t, s, http.MethodGet, base, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var state SessionState
	decode(t, w, &state)
	require.NotNil(t, state.Derived)
	assert.Equal(t, 366, state.Derived.DaysSinceFirst)
	require.NotNil(t, state.LastPrediction)
}

func TestAddMeasurement_Rejections(t *testing.T) {
	s := newTestServer(t, classifier.NewStaticProvider(fixedProbability(0.3), "v1"))
	id := createSession(t, s)
	path := "/api/v1/sessions/" + id + "/measurements"

	tests := []struct {
		name      string
		body      string
		wantCode  string
		wantField string
	}{
		{"malformed json", `{"date":`, domain.ErrCodeInvalidInput, ""},
		{"missing date", `{"psa_level":1,"gland_volume":1,"gleason_grade":1}`, domain.ErrCodeValidation, "date"},
		{"bad date", `{"date":"01/02/2024","psa_level":1,"gland_volume":1,"gleason_grade":1}`, domain.ErrCodeValidation, "date"},
		{"missing psa", `{"date":"2024-01-01","gland_volume":1,"gleason_grade":1}`, domain.ErrCodeValidation, "psa_level"},
		{"psa out of range", `{"date":"2024-01-01","psa_level":51,"gland_volume":1,"gleason_grade":1}`, domain.ErrCodeValidation, "psa_level"},
		{"volume out of range", `{"date":"2024-01-01","psa_level":1,"gland_volume":201,"gleason_grade":1}`, domain.ErrCodeValidation, "gland_volume"},
		{"fractional gleason", `{"date":"2024-01-01","psa_level":1,"gland_volume":1,"gleason_grade":2.5}`, domain.ErrCodeValidation, "gleason_grade"},
		{"gleason out of range", `{"date":"2024-01-01","psa_level":1,"gland_volume":1,"gleason_grade":6}`, domain.ErrCodeValidation, "gleason_grade"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(t, s, http.MethodPost, path, tt.body)

			assert.Equal(t, http.StatusBadRequest, w.Code)
			var resp ErrorResponse
			decode(t, w, &resp)
			assert.Equal(t, tt.wantCode, resp.Error.Code)
			assert.Equal(t, tt.wantField, resp.Error.Field)
		})
	}

	w := do(t, s, http.MethodGet, path, nil)
	var list struct {
		Count int `json:"count"`
	}
	decode(t, w, &list)
	assert.Equal(t, 0, list.Count, "rejected measurements must not reach the ledger")
}

func TestPredict_Errors(t *testing.T) {
	t.Run("empty ledger", func(t *testing.T) {
		s := newTestServer(t, classifier.NewStaticProvider(fixedProbability(0.3), "v1"))
		id := createSession(t, s)

		w := do(t, s, http.MethodPost, "/api/v1/sessions/"+id+"/predictions", nil)
		assert.Equal(t, http.StatusConflict, w.Code)
		assert.Equal(t, domain.ErrCodeInsufficientHistory, errorCode(t, w))
	})

	t.Run("classifier unavailable", func(t *testing.T) {
		s := newTestServer(t, classifier.NewProvider("artifact", nil, nil))
		id := createSession(t, s)
		w := do(t, s, http.MethodPost, "/api/v1/sessions/"+id+"/measurements", `{"date":"2024-01-01","psa_level":5,"gland_volume":40,"gleason_grade":1}`)
		require.Equal(t, http.StatusCreated, w.Code)

		w = do(t, s, http.MethodPost, "/api/v1/sessions/"+id+"/predictions", nil)
		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
		assert.Equal(t, domain.ErrCodeClassifierUnavailable, errorCode(t, w))
	})

	t.Run("inference failure", func(t *testing.T) {
		failing := domain.ClassifierFunc(func(context.Context, domain.FeatureVector) (float64, error) {
			return 0, errors.New("feature shape mismatch")
		})
		s := newTestServer(t, classifier.NewStaticProvider(failing, "v1"))
		id := createSession(t, s)
		w := do(t, s, http.MethodPost, "/api/v1/sessions/"+id+"/measurements", `{"date":"2024-01-01","psa_level":5,"gland_volume":40,"gleason_grade":1}`)
		require.Equal(t, http.StatusCreated, w.Code)

		w = do(t, s, http.MethodPost, "/api/v1/sessions/"+id+"/predictions", nil)
		assert.Equal(t, http.StatusBadGateway, w.Code)
		assert.Equal(t, domain.ErrCodeInference, errorCode(t, w))
	})
}

func TestSetPatient(t *testing.T) {
	s := newTestServer(t, classifier.NewStaticProvider(fixedProbability(0.3), "v1"))
	id := createSession(t, s)
	path := "/api/v1/sessions/" + id + "/patient"

	w := do(t, s, http.MethodPut, path, `{"age":64}`)
	require.Equal(t, http.StatusOK, w.Code)

	w = do(t, s, http.MethodPut, path, `{"age":12}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, domain.ErrCodeValidation, errorCode(t, w))

	w = do(t, s, http.MethodPut, path, `{}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, s, http.MethodGet, "/api/v1/sessions/"+id, nil)
	var state SessionState
	decode(t, w, &state)
	assert.Equal(t, 64, state.Patient.Age)
}

func TestReloadClassifier(t *testing.T) {
	attempts := 0
	provider := classifier.NewProvider("artifact", func(context.Context) (domain.Classifier, string, error) {
		attempts++
		if attempts == 1 {
			return nil, "", errors.New("artifact not found")
		}
		return fixedProbability(0.8), "v2", nil
	}, nil)
	require.Error(t, provider.Load(context.Background()))
	s := newTestServer(t, provider)

	w := do(t, s, http.MethodGet, "/api/v1/classifier", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var status classifier.Status
	decode(t, w, &status)
	assert.False(t, status.Available)
	assert.Contains(t, status.Error, "artifact not found")

	w = do(t, s, http.MethodPost, "/api/v1/classifier/reload", nil)
	require.Equal(t, http.StatusOK, w.Code)
	decode(t, w, &status)
	assert.True(t, status.Available)
	assert.Equal(t, "v2", status.Version)
}

func TestCorrelationIDInErrors(t *testing.T) {
	s := newTestServer(t, classifier.NewStaticProvider(fixedProbability(0.3), "v1"))
	req := httptest.NewRequest(http.MethodGet, "/api/v1/sessions/missing", nil)
	req.Header.Set("X-Correlation-ID", "trace-42")
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)

	var resp ErrorResponse
	decode(t, w, &resp)
	assert.Equal(t, "trace-42", resp.Error.RequestID)
	assert.Equal(t, "trace-42", w.Header().Get("X-Correlation-ID"))
}
