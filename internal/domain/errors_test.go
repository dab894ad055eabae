package domain

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestAppError(t *testing.T) {
	tests := []struct {
		name      string
		code      string
		message   string
		details   string
		requestID string
	}{
		{
			name:      "Validation error",
			code:      ErrCodeValidation,
			message:   "PSA level out of range",
			details:   "psa_level must be between 0 and 50",
			requestID: "req-123",
		},
		{
			name:      "Classifier error",
			code:      ErrCodeClassifierUnavailable,
			message:   "Classifier not loaded",
			details:   "artifact missing",
			requestID: "req-456",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewAppError(tt.code, tt.message, tt.details, tt.requestID)

			assert.Equal(t, tt.code, err.Code)
			assert.Equal(t, tt.message, err.Message)
			assert.Equal(t, tt.details, err.Details)
			assert.Equal(t, tt.requestID, err.RequestID)
			assert.WithinDuration(t, time.Now(), err.Timestamp, time.Minute)
			assert.Equal(t, tt.code+": "+tt.message, err.Error())
		})
	}
}

func TestValidationError(t *testing.T) {
	err := NewValidationError("gleason_grade", "must be between 1 and 5", 7)

	assert.Equal(t, "gleason_grade", err.Field)
	assert.Equal(t, 7, err.Value)
	assert.Equal(t, "validation error for field 'gleason_grade': must be between 1 and 5", err.Error())
}

func TestErrorCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"nil", nil, ""},
		{"validation", fmt.Errorf("submit: %w", NewValidationError("psa_level", "bad", -1.0)), ErrCodeValidation},
		{"insufficient history", fmt.Errorf("assemble: %w", ErrInsufficientHistory), ErrCodeInsufficientHistory},
		{"classifier unavailable", fmt.Errorf("%w: artifact missing", ErrClassifierUnavailable), ErrCodeClassifierUnavailable},
		{"inference", fmt.Errorf("%w: boom", ErrInferenceFailed), ErrCodeInference},
		{"session", ErrSessionNotFound, ErrCodeSessionNotFound},
		{"no prediction", ErrNoPrediction, ErrCodeNoPrediction},
		{"other", errors.New("disk on fire"), ErrCodeInternalServer},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ErrorCode(tt.err))
		})
	}
}

func TestToAppError(t *testing.T) {
	t.Run("validation keeps field", func(t *testing.T) {
		appErr := ToAppError(NewValidationError("gland_volume", "must be between 0 and 200", 250.0), "req-1")
		assert.Equal(t, ErrCodeValidation, appErr.Code)
		assert.Equal(t, "gland_volume", appErr.Field)
		assert.Equal(t, "must be between 0 and 200", appErr.Message)
		assert.Equal(t, "req-1", appErr.RequestID)
	})

	t.Run("internal errors hide message", func(t *testing.T) {
		appErr := ToAppError(errors.New("nil pointer"), "")
		assert.Equal(t, ErrCodeInternalServer, appErr.Code)
		assert.Equal(t, "internal error", appErr.Message)
		assert.Equal(t, "nil pointer", appErr.Details)
	})

	t.Run("passes app errors through", func(t *testing.T) {
		original := NewAppError(ErrCodeInvalidInput, "bad json", "", "req-2")
		assert.Same(t, original, ToAppError(fmt.Errorf("wrap: %w", original), "req-3"))
	})
}
