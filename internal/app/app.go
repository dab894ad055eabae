// Package app wires configuration into the components shared by every entry point.
package app

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/as-progression-tracker/internal/classifier"
	"github.com/as-progression-tracker/internal/domain"
	"github.com/as-progression-tracker/internal/service"
	"github.com/as-progression-tracker/internal/session"
)

// App holds the long-lived components of one process
type App struct {
	Classifiers *classifier.Provider
	Tracker     *service.Tracker
	Sessions    *session.Manager
	Logger      *logrus.Logger
}

// New builds the components and performs the one-time classifier load. A load
// failure does not fail startup: measurement entry keeps working and
// predictions report the classifier as unavailable until a reload succeeds.
func New(ctx context.Context, cfg *domain.Config, logger *logrus.Logger) (*App, error) {
	interpreter, err := service.NewInterpreter(cfg.Classifier.Threshold)
	if err != nil {
		return nil, fmt.Errorf("classifier: %w", err)
	}

	provider := classifier.NewProviderFromConfig(cfg.Classifier, cfg.Cache, logger)
	if err := provider.Load(ctx); err != nil {
		logger.WithError(err).Warn("Starting without a classifier; predictions are unavailable until reload")
	}
	return build(cfg, provider, interpreter, logger), nil
}

// NewWithProvider builds the components around an existing provider
func NewWithProvider(cfg *domain.Config, provider *classifier.Provider, logger *logrus.Logger) (*App, error) {
	interpreter, err := service.NewInterpreter(cfg.Classifier.Threshold)
	if err != nil {
		return nil, fmt.Errorf("classifier: %w", err)
	}
	return build(cfg, provider, interpreter, logger), nil
}

func build(cfg *domain.Config, provider *classifier.Provider, interpreter *service.Interpreter, logger *logrus.Logger) *App {
	tracker := service.NewTracker(
		service.NewMeasurementEntry(cfg.Session.ChronologyPolicy, logger),
		interpreter,
		provider,
		logger,
	)

	return &App{
		Classifiers: provider,
		Tracker:     tracker,
		Sessions:    session.NewManager(cfg.Session, logger),
		Logger:      logger,
	}
}

// Close releases classifier resources
func (a *App) Close() error {
	return a.Classifiers.Close()
}
