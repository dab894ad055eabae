package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/as-progression-tracker/internal/domain"
	"github.com/as-progression-tracker/internal/middleware"
)

// ErrorResponse wraps an AppError in every non-2xx body
type ErrorResponse struct {
	Error *domain.AppError `json:"error"`
}

func statusFor(code string) int {
	switch code {
	case domain.ErrCodeValidation, domain.ErrCodeInvalidInput:
		return http.StatusBadRequest
	case domain.ErrCodeSessionNotFound, domain.ErrCodeNoPrediction:
		return http.StatusNotFound
	case domain.ErrCodeInsufficientHistory:
		return http.StatusConflict
	case domain.ErrCodeInference:
		return http.StatusBadGateway
	case domain.ErrCodeClassifierUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) respondError(c *gin.Context, err error) {
	appErr := domain.ToAppError(err, middleware.GetCorrelationID(c))
	status := statusFor(appErr.Code)

	if status >= http.StatusInternalServerError {
		s.logger.WithError(err).WithField("correlation_id", appErr.RequestID).Error("Request failed")
		if appErr.Code == domain.ErrCodeInternalServer {
			appErr.Details = ""
		}
	}
	c.AbortWithStatusJSON(status, ErrorResponse{Error: appErr})
}

func (s *Server) respondBadRequest(c *gin.Context, err error) {
	appErr := domain.NewAppError(domain.ErrCodeInvalidInput, "malformed request body", err.Error(), middleware.GetCorrelationID(c))
	c.AbortWithStatusJSON(http.StatusBadRequest, ErrorResponse{Error: appErr})
}
