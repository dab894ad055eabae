package domain

import (
	"errors"
	"fmt"
	"time"
)

// AppError represents a standardized error response
type AppError struct {
	Code      string    `json:"code"`
	Message   string    `json:"message"`
	Details   string    `json:"details,omitempty"`
	Field     string    `json:"field,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	RequestID string    `json:"request_id,omitempty"`
}

// Error implements the error interface
func (e *AppError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Error codes for different failure scenarios
const (
	ErrCodeInvalidInput          = "INVALID_INPUT"
	ErrCodeValidation            = "VALIDATION_ERROR"
	ErrCodeInsufficientHistory   = "INSUFFICIENT_HISTORY"
	ErrCodeClassifierUnavailable = "CLASSIFIER_UNAVAILABLE"
	ErrCodeInference             = "INFERENCE_ERROR"
	ErrCodeSessionNotFound       = "SESSION_NOT_FOUND"
	ErrCodeNoPrediction          = "NO_PREDICTION"
	ErrCodeInternalServer        = "INTERNAL_SERVER_ERROR"
)

var (
	// ErrInsufficientHistory is returned when a prediction is requested on an empty ledger
	ErrInsufficientHistory = errors.New("insufficient history: add at least one measurement set before predicting")

	// ErrClassifierUnavailable is returned when the classifier was never loaded or cannot be reached
	ErrClassifierUnavailable = errors.New("classifier unavailable")

	// ErrInferenceFailed is returned when the classifier was invoked but failed
	ErrInferenceFailed = errors.New("inference failed")

	// ErrSessionNotFound is returned for unknown or expired sessions
	ErrSessionNotFound = errors.New("session not found")

	// ErrNoPrediction is returned when the last prediction is requested before any was made
	ErrNoPrediction = errors.New("no prediction has been made in this session")
)

// ValidationError represents input validation errors
type ValidationError struct {
	Field   string      `json:"field"`
	Message string      `json:"message"`
	Value   interface{} `json:"value"`
}

// Error implements the error interface
func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error for field '%s': %s", e.Field, e.Message)
}

// NewAppError creates a new AppError with timestamp
func NewAppError(code, message, details, requestID string) *AppError {
	return &AppError{
		Code:      code,
		Message:   message,
		Details:   details,
		Timestamp: time.Now().UTC(),
		RequestID: requestID,
	}
}

// NewValidationError creates a new ValidationError
func NewValidationError(field, message string, value interface{}) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: message,
		Value:   value,
	}
}

// ErrorCode classifies err into one of the error codes above
func ErrorCode(err error) string {
	var validationErr *ValidationError
	switch {
	case err == nil:
		return ""
	case errors.As(err, &validationErr):
		return ErrCodeValidation
	case errors.Is(err, ErrInsufficientHistory):
		return ErrCodeInsufficientHistory
	case errors.Is(err, ErrClassifierUnavailable):
		return ErrCodeClassifierUnavailable
	case errors.Is(err, ErrInferenceFailed):
		return ErrCodeInference
	case errors.Is(err, ErrSessionNotFound):
		return ErrCodeSessionNotFound
	case errors.Is(err, ErrNoPrediction):
		return ErrCodeNoPrediction
	default:
		return ErrCodeInternalServer
	}
}

// ToAppError converts err into the user-visible error envelope
func ToAppError(err error, requestID string) *AppError {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}

	code := ErrorCode(err)
	appErr = NewAppError(code, err.Error(), "", requestID)

	var validationErr *ValidationError
	if errors.As(err, &validationErr) {
		appErr.Field = validationErr.Field
		appErr.Message = validationErr.Message
	}
	if code == ErrCodeInternalServer {
		appErr.Message = "internal error"
		appErr.Details = err.Error()
	}
	return appErr
}
