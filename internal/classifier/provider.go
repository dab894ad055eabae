package classifier

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/as-progression-tracker/internal/domain"
)

// Status describes the provider state for health reporting
type Status struct {
	Available bool      `json:"available"`
	Backend   string    `json:"backend"`
	Version   string    `json:"version,omitempty"`
	Error     string    `json:"error,omitempty"`
	LoadedAt  time.Time `json:"loaded_at,omitempty"`
}

// Factory builds a classifier backend. It is invoked once per Load.
type Factory func(ctx context.Context) (clf domain.Classifier, version string, err error)

// Provider owns the one-time initialization of the classifier. A failed load is
// remembered and returned from every Get until a Reload succeeds.
type Provider struct {
	mu       sync.RWMutex
	factory  Factory
	backend  string
	clf      domain.Classifier
	version  string
	loadErr  error
	loadedAt time.Time
	closers  []func() error
	logger   *logrus.Logger
}

// NewProvider creates a provider around a backend factory. Call Load before serving.
func NewProvider(backend string, factory Factory, logger *logrus.Logger) *Provider {
	if logger == nil {
		logger = logrus.New()
	}
	return &Provider{
		factory: factory,
		backend: backend,
		loadErr: fmt.Errorf("%w: classifier not loaded yet", domain.ErrClassifierUnavailable),
		logger:  logger,
	}
}

// NewStaticProvider returns an already loaded provider around clf
func NewStaticProvider(clf domain.Classifier, version string) *Provider {
	p := NewProvider("static", func(context.Context) (domain.Classifier, string, error) {
		return clf, version, nil
	}, nil)
	_ = p.Load(context.Background())
	return p
}

// NewProviderFromConfig wires the configured backend with the optional prediction cache
func NewProviderFromConfig(classifierCfg domain.ClassifierConfig, cacheCfg domain.CacheConfig, logger *logrus.Logger) *Provider {
	p := NewProvider(classifierCfg.Backend, nil, logger)
	p.factory = func(ctx context.Context) (domain.Classifier, string, error) {
		var (
			clf     domain.Classifier
			version string
		)
		pinned := true
		switch classifierCfg.Backend {
		case domain.BackendArtifact:
			model, err := LoadArtifact(classifierCfg.ArtifactPath)
			if err != nil {
				return nil, "", err
			}
			clf, version = model, model.Version()
		case domain.BackendRemote:
			remote, err := NewRemoteClient(classifierCfg.Remote, p.logger)
			if err != nil {
				return nil, "", err
			}
			clf, version, pinned = remote, remote.Version(), remote.Versioned()
		default:
			return nil, "", fmt.Errorf("%w: unknown classifier backend %q", domain.ErrClassifierUnavailable, classifierCfg.Backend)
		}

		if !cacheCfg.Enabled {
			return clf, version, nil
		}
		if !pinned {
			p.logger.Warn("Prediction cache disabled: set classifier.remote.model_version to cache remote results")
			return clf, version, nil
		}

		var shared SharedCache
		if cacheCfg.RedisURL != "" {
			redisCache, err := NewRedisCache(ctx, cacheCfg.RedisURL, cacheCfg.TTL)
			if err != nil {
				p.logger.WithError(err).Warn("Redis prediction cache unavailable, using memory cache only")
			} else {
				shared = redisCache
				p.addCloser(redisCache.Close)
			}
		}
		cached, err := NewCachingClassifier(clf, classifierCfg.Backend+":"+version, cacheCfg.MaxItems, shared, p.logger)
		if err != nil {
			return nil, "", err
		}
		return cached, version, nil
	}
	return p
}

// Load performs the initialization. The returned error is also retained for Get.
func (p *Provider) Load(ctx context.Context) error {
	clf, version, err := p.factory(ctx)

	p.mu.Lock()
	defer p.mu.Unlock()

	if err != nil {
		if !errors.Is(err, domain.ErrClassifierUnavailable) {
			err = fmt.Errorf("%w: %v", domain.ErrClassifierUnavailable, err)
		}
		p.loadErr = err
		p.logger.WithError(err).WithField("backend", p.backend).Error("Failed to load classifier")
		return err
	}

	p.clf = clf
	p.version = version
	p.loadErr = nil
	p.loadedAt = time.Now().UTC()
	p.logger.WithFields(logrus.Fields{
		"backend": p.backend,
		"version": version,
	}).Info("Classifier loaded successfully")
	return nil
}

// Reload retries initialization; a previously loaded classifier is replaced only on success
func (p *Provider) Reload(ctx context.Context) error {
	clf, version, err := p.factory(ctx)

	p.mu.Lock()
	defer p.mu.Unlock()

	if err != nil {
		if !errors.Is(err, domain.ErrClassifierUnavailable) {
			err = fmt.Errorf("%w: %v", domain.ErrClassifierUnavailable, err)
		}
		if p.clf != nil {
			p.logger.WithError(err).Warn("Classifier reload failed, keeping current model")
			return err
		}
		p.loadErr = err
		p.logger.WithError(err).WithField("backend", p.backend).Error("Failed to load classifier")
		return err
	}

	p.clf = clf
	p.version = version
	p.loadErr = nil
	p.loadedAt = time.Now().UTC()
	p.logger.WithField("version", version).Info("Classifier reloaded")
	return nil
}

// Get returns the loaded classifier or the load failure
func (p *Provider) Get() (domain.Classifier, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.clf == nil {
		return nil, p.loadErr
	}
	return p.clf, nil
}

// Status reports whether a classifier is available
func (p *Provider) Status() Status {
	p.mu.RLock()
	defer p.mu.RUnlock()
	s := Status{
		Available: p.clf != nil,
		Backend:   p.backend,
		Version:   p.version,
		LoadedAt:  p.loadedAt,
	}
	if p.clf == nil && p.loadErr != nil {
		s.Error = p.loadErr.Error()
	}
	return s
}

// Close releases backend resources
func (p *Provider) Close() error {
	p.mu.Lock()
	closers := p.closers
	p.closers = nil
	p.mu.Unlock()

	var errs []error
	for _, closeFn := range closers {
		if err := closeFn(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (p *Provider) addCloser(fn func() error) {
	p.mu.Lock()
	p.closers = append(p.closers, fn)
	p.mu.Unlock()
}
