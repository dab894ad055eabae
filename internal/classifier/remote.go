package classifier

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"github.com/as-progression-tracker/internal/domain"
)

var (
	// errRejectedInput marks 4xx responses; the service is healthy but refused the vector
	errRejectedInput = errors.New("scoring service rejected input")

	// errModelMismatch marks responses from a model other than the configured one
	errModelMismatch = errors.New("scoring model version mismatch")
)

// unversionedModel names a remote model whose version is not configured
const unversionedModel = "unversioned"

// ScoringRequest is the body sent to the remote scoring service
type ScoringRequest struct {
	Features     []float64 `json:"features"`
	FeatureNames []string  `json:"feature_names"`
}

// ScoringResponse is the body returned by the remote scoring service
type ScoringResponse struct {
	Probability  *float64 `json:"probability"`
	ModelVersion string   `json:"model_version,omitempty"`
}

// RemoteClient calls an HTTP scoring service hosting the trained model.
// Calls are rate limited and guarded by a circuit breaker; there are no retries.
type RemoteClient struct {
	endpoint     string
	apiKey       string
	modelVersion string
	client       *http.Client
	rateLimit    *rate.Limiter
	breaker      *gobreaker.CircuitBreaker
	logger       *logrus.Logger
}

// NewRemoteClient creates a remote scoring client from configuration
func NewRemoteClient(config domain.RemoteScoringConfig, logger *logrus.Logger) (*RemoteClient, error) {
	if config.URL == "" {
		return nil, fmt.Errorf("%w: remote scoring URL is required", domain.ErrClassifierUnavailable)
	}
	if logger == nil {
		logger = logrus.New()
	}

	timeout := config.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	limit := rate.Inf
	if config.RateLimit > 0 {
		limit = rate.Limit(config.RateLimit)
	}
	maxRequests := config.BreakerMaxRequests
	if maxRequests == 0 {
		maxRequests = 3
	}
	failureRatio := config.BreakerFailureRatio
	if failureRatio <= 0 {
		failureRatio = 0.6
	}

	c := &RemoteClient{
		endpoint:     config.URL,
		apiKey:       config.APIKey,
		modelVersion: config.ModelVersion,
		client:       &http.Client{Timeout: timeout},
		rateLimit:    rate.NewLimiter(limit, 1),
		logger:       logger,
	}

	c.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "scoring-service",
		MaxRequests: maxRequests,
		Interval:    config.BreakerInterval,
		Timeout:     config.BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			ratio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 3 && ratio >= failureRatio
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, errRejectedInput) || errors.Is(err, errModelMismatch)
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.WithFields(logrus.Fields{
				"breaker": name,
				"from":    from.String(),
				"to":      to.String(),
			}).Warn("Circuit breaker state changed")
		},
	})

	return c, nil
}

// PredictProba implements domain.Classifier
func (c *RemoteClient) PredictProba(ctx context.Context, vector domain.FeatureVector) (float64, error) {
	if err := c.rateLimit.Wait(ctx); err != nil {
		return 0, fmt.Errorf("%w: rate limiter: %v", domain.ErrClassifierUnavailable, err)
	}

	result, err := c.breaker.Execute(func() (interface{}, error) {
		return c.score(ctx, vector)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return 0, fmt.Errorf("%w: scoring service circuit open", domain.ErrClassifierUnavailable)
		}
		return 0, err
	}
	return result.(float64), nil
}

// Version returns the configured model version, or "unversioned"
func (c *RemoteClient) Version() string {
	if c.modelVersion == "" {
		return unversionedModel
	}
	return c.modelVersion
}

// Versioned reports whether responses are pinned to a configured model version
func (c *RemoteClient) Versioned() bool {
	return c.modelVersion != ""
}

// State reports the circuit breaker state for health checks
func (c *RemoteClient) State() string {
	return c.breaker.State().String()
}

func (c *RemoteClient) score(ctx context.Context, vector domain.FeatureVector) (float64, error) {
	body, err := json.Marshal(ScoringRequest{
		Features:     vector.Values(),
		FeatureNames: domain.FeatureNames[:],
	})
	if err != nil {
		return 0, fmt.Errorf("%w: failed to marshal scoring request: %v", domain.ErrInferenceFailed, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewBuffer(body))
	if err != nil {
		return 0, fmt.Errorf("%w: failed to create scoring request: %v", domain.ErrClassifierUnavailable, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("%w: scoring service request failed: %v", domain.ErrClassifierUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 && resp.StatusCode < 500 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return 0, fmt.Errorf("%w: %w: status %d: %s", domain.ErrInferenceFailed, errRejectedInput, resp.StatusCode, bytes.TrimSpace(msg))
	}
	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("%w: scoring service returned status %d", domain.ErrInferenceFailed, resp.StatusCode)
	}

	var scored ScoringResponse
	if err := json.NewDecoder(resp.Body).Decode(&scored); err != nil {
		return 0, fmt.Errorf("%w: failed to decode scoring response: %v", domain.ErrInferenceFailed, err)
	}
	if scored.Probability == nil {
		return 0, fmt.Errorf("%w: scoring response has no probability", domain.ErrInferenceFailed)
	}
	p := *scored.Probability
	if math.IsNaN(p) || p < 0 || p > 1 {
		return 0, fmt.Errorf("%w: probability %v outside [0,1]", domain.ErrInferenceFailed, p)
	}
	if c.modelVersion != "" && scored.ModelVersion != "" && scored.ModelVersion != c.modelVersion {
		return 0, fmt.Errorf("%w: %w: service scored with %q, configured %q",
			domain.ErrInferenceFailed, errModelMismatch, scored.ModelVersion, c.modelVersion)
	}
	return p, nil
}
