// Package mcp exposes the progression tracker as Model Context Protocol tools
// so an AI assistant can record visits and request predictions.
package mcp

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/sirupsen/logrus"

	"github.com/as-progression-tracker/internal/classifier"
	"github.com/as-progression-tracker/internal/domain"
	"github.com/as-progression-tracker/internal/service"
	"github.com/as-progression-tracker/internal/session"
)

// ClassifierAdmin exposes classifier status and reload
type ClassifierAdmin interface {
	Status() classifier.Status
	Reload(ctx context.Context) error
}

// Server is the MCP server. A stdio process serves exactly one client, so it
// holds a single patient session that reset_session replaces.
type Server struct {
	configManager domain.ConfigManager
	tracker       *service.Tracker
	classifiers   ClassifierAdmin
	mcpServer     *mcp.Server
	logger        *logrus.Logger

	mu      sync.RWMutex
	session *session.Session
}

// NewServer creates a new MCP server instance with all tools registered
func NewServer(configManager domain.ConfigManager, tracker *service.Tracker, classifiers ClassifierAdmin, logger *logrus.Logger) *Server {
	if logger == nil {
		logger = logrus.New()
	}
	cfg := configManager.GetConfig()

	serverInfo := &mcp.Implementation{
		Name:    cfg.MCP.ServerName,
		Version: cfg.MCP.ServerVersion,
	}

	s := &Server{
		configManager: configManager,
		tracker:       tracker,
		classifiers:   classifiers,
		mcpServer:     mcp.NewServer(serverInfo, nil),
		logger:        logger,
		session:       session.New(uuid.New().String()),
	}

	s.registerTools()
	return s
}

// Start serves the protocol over stdin/stdout until ctx is cancelled or the client disconnects
func (s *Server) Start(ctx context.Context) error {
	s.logger.WithField("session_id", s.current().ID).Info("Starting MCP server on stdio")

	if err := s.mcpServer.Run(ctx, &mcp.StdioTransport{}); err != nil {
		return fmt.Errorf("MCP server failed: %w", err)
	}
	return nil
}

func (s *Server) current() *session.Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.session
}

func (s *Server) reset() *session.Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	previous := s.session.ID
	s.session = session.New(uuid.New().String())
	s.logger.WithFields(logrus.Fields{
		"previous_session_id": previous,
		"session_id":          s.session.ID,
	}).Info("Session reset")
	return s.session
}

func (s *Server) registerTools() {
	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "add_measurement",
		Description: "Record one surveillance visit (date YYYY-MM-DD, PSA ng/mL 0-50, gland volume cm³ 0-200, Gleason grade group 1-5) in the current patient history.",
	}, s.handleAddMeasurement)

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "list_measurements",
		Description: "List the recorded visits in entry order together with the derived days since first and previous visit.",
	}, s.handleListMeasurements)

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "set_patient",
		Description: "Record the patient's age (18-120). Age is informational and not used by the model.",
	}, s.handleSetPatient)

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "predict_progression",
		Description: "Estimate the probability that the cancer progresses within five years from the latest visit and the time since the first visit.",
	}, s.handlePredict)

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "get_last_prediction",
		Description: "Return the most recent prediction made in this session.",
	}, s.handleLastPrediction)

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "get_trends",
		Description: "Return the PSA level and gland volume series over time.",
	}, s.handleTrends)

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "reset_session",
		Description: "Discard the current patient history and start an empty one.",
	}, s.handleReset)

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "classifier_status",
		Description: "Report whether the progression model is loaded.",
	}, s.handleClassifierStatus)

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "reload_classifier",
		Description: "Retry loading the progression model, e.g. after the model file was restored.",
	}, s.handleReloadClassifier)

	s.logger.WithField("tool_count", 9).Info("Registered MCP tools")
}
