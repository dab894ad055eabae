package mcp

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/sirupsen/logrus"

	"github.com/as-progression-tracker/internal/domain"
)

// AddMeasurementParams defines parameters for the add_measurement tool.
// Values are pointers so an omitted argument is rejected instead of read as zero.
type AddMeasurementParams struct {
	Date         string   `json:"date" jsonschema:"visit date formatted YYYY-MM-DD"`
	PSALevel     *float64 `json:"psa_level" jsonschema:"prostate-specific antigen in ng/mL, 0 to 50"`
	GlandVolume  *float64 `json:"gland_volume" jsonschema:"prostate gland volume in cm³, 0 to 200"`
	GleasonGrade *float64 `json:"gleason_grade" jsonschema:"Gleason grade group, integer 1 to 5"`
}

// SetPatientParams defines parameters for the set_patient tool
type SetPatientParams struct {
	Age int `json:"age" jsonschema:"patient age in years, 18 to 120"`
}

// NoParams is the input of tools that take no arguments
type NoParams struct{}

// MeasurementList is the list_measurements result
type MeasurementList struct {
	SessionID    string                  `json:"session_id"`
	Patient      domain.PatientInfo      `json:"patient"`
	Measurements []domain.Measurement    `json:"measurements"`
	Count        int                     `json:"count"`
	Derived      *domain.DerivedFeatures `json:"derived,omitempty"`
}

func (s *Server) handleAddMeasurement(ctx context.Context, req *mcp.CallToolRequest, params AddMeasurementParams) (*mcp.CallToolResult, any, error) {
	s.logger.WithField("tool", "add_measurement").Debug("Tool invoked")

	m, err := params.toMeasurement()
	if err != nil {
		return s.createErrorResult("add_measurement", err), nil, nil
	}
	receipt, err := s.tracker.AddMeasurement(s.current(), m)
	if err != nil {
		return s.createErrorResult("add_measurement", err), nil, nil
	}
	return s.createResult(receipt)
}

func (p AddMeasurementParams) toMeasurement() (domain.Measurement, error) {
	return domain.MeasurementInput{
		Date:         p.Date,
		PSALevel:     p.PSALevel,
		GlandVolume:  p.GlandVolume,
		GleasonGrade: p.GleasonGrade,
	}.Measurement()
}

func (s *Server) handleListMeasurements(ctx context.Context, req *mcp.CallToolRequest, _ NoParams) (*mcp.CallToolResult, any, error) {
	sess := s.current()
	snapshot := sess.Snapshot()

	list := MeasurementList{
		SessionID:    snapshot.ID,
		Patient:      snapshot.Patient,
		Measurements: snapshot.Measurements,
		Count:        len(snapshot.Measurements),
	}
	if list.Measurements == nil {
		list.Measurements = []domain.Measurement{}
	}
	derived, err := s.tracker.Derived(sess)
	switch {
	case err == nil:
		list.Derived = &derived
	case !errors.Is(err, domain.ErrInsufficientHistory):
		return s.createErrorResult("list_measurements", err), nil, nil
	}
	return s.createResult(list)
}

func (s *Server) handleSetPatient(ctx context.Context, req *mcp.CallToolRequest, params SetPatientParams) (*mcp.CallToolResult, any, error) {
	patient := domain.PatientInfo{Age: params.Age}
	if err := s.tracker.SetPatient(s.current(), patient); err != nil {
		return s.createErrorResult("set_patient", err), nil, nil
	}
	return s.createResult(patient)
}

func (s *Server) handlePredict(ctx context.Context, req *mcp.CallToolRequest, _ NoParams) (*mcp.CallToolResult, any, error) {
	result, err := s.tracker.Predict(ctx, s.current())
	if err != nil {
		return s.createErrorResult("predict_progression", err), nil, nil
	}
	return s.createResult(result)
}

func (s *Server) handleLastPrediction(ctx context.Context, req *mcp.CallToolRequest, _ NoParams) (*mcp.CallToolResult, any, error) {
	result, ok := s.tracker.LastPrediction(s.current())
	if !ok {
		return s.createErrorResult("get_last_prediction", domain.ErrNoPrediction), nil, nil
	}
	return s.createResult(result)
}

func (s *Server) handleTrends(ctx context.Context, req *mcp.CallToolRequest, _ NoParams) (*mcp.CallToolResult, any, error) {
	trends, err := s.tracker.Trends(s.current())
	if err != nil {
		return s.createErrorResult("get_trends", err), nil, nil
	}
	return s.createResult(trends)
}

func (s *Server) handleReset(ctx context.Context, req *mcp.CallToolRequest, _ NoParams) (*mcp.CallToolResult, any, error) {
	sess := s.reset()
	return s.createResult(map[string]string{"session_id": sess.ID})
}

func (s *Server) handleClassifierStatus(ctx context.Context, req *mcp.CallToolRequest, _ NoParams) (*mcp.CallToolResult, any, error) {
	return s.createResult(s.classifiers.Status())
}

func (s *Server) handleReloadClassifier(ctx context.Context, req *mcp.CallToolRequest, _ NoParams) (*mcp.CallToolResult, any, error) {
	if err := s.classifiers.Reload(ctx); err != nil {
		return s.createErrorResult("reload_classifier", err), nil, nil
	}
	return s.createResult(s.classifiers.Status())
}

// createResult renders v as indented JSON text content
func (s *Server) createResult(v interface{}) (*mcp.CallToolResult, any, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, nil, err
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: string(data)}},
	}, nil, nil
}

// createErrorResult reports a tool failure to the client as an error result
func (s *Server) createErrorResult(tool string, err error) *mcp.CallToolResult {
	appErr := domain.ToAppError(err, "")
	s.logger.WithFields(logrus.Fields{
		"tool":  tool,
		"code":  appErr.Code,
		"field": appErr.Field,
	}).WithError(err).Warn("Tool call failed")

	if appErr.Code == domain.ErrCodeInternalServer {
		appErr.Details = ""
	}
	data, marshalErr := json.MarshalIndent(appErr, "", "  ")
	if marshalErr != nil {
		data = []byte(appErr.Error())
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: string(data)}},
		IsError: true,
	}
}
