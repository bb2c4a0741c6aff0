package middleware

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/kapwanet/exchange/internal/app/models/dto"
	"github.com/kapwanet/exchange/internal/pkg/apperrors"
	"github.com/kapwanet/exchange/internal/pkg/logger"
)

type errorMapping struct {
	target error
	status int
	code   dto.ErrorCode
}

// Checked in order; the first match wins
var errorMappings = []errorMapping{
	{apperrors.ErrResourceNotFound, http.StatusNotFound, dto.ErrorCodeResourceNotFound},
	{apperrors.ErrValidationFailed, http.StatusBadRequest, dto.ErrorCodeValidationFailed},
	{apperrors.ErrBadRequest, http.StatusBadRequest, dto.ErrorCodeBadRequest},
	{apperrors.ErrTokenExpired, http.StatusUnauthorized, dto.ErrorCodeExpiredToken},
	{apperrors.ErrTokenInvalid, http.StatusUnauthorized, dto.ErrorCodeInvalidToken},
	{apperrors.ErrNotMember, http.StatusForbidden, dto.ErrorCodeNotMember},
	{apperrors.ErrNotParticipant, http.StatusForbidden, dto.ErrorCodeNotParticipant},
	{apperrors.ErrPermissionDenied, http.StatusForbidden, dto.ErrorCodeForbidden},
	{apperrors.ErrInvalidTransition, http.StatusConflict, dto.ErrorCodeInvalidTransition},
	{apperrors.ErrDuplicateInterest, http.StatusConflict, dto.ErrorCodeDuplicateInterest},
	{apperrors.ErrSelfInterestForbidden, http.StatusConflict, dto.ErrorCodeSelfInterest},
	{apperrors.ErrPostNotOpen, http.StatusConflict, dto.ErrorCodePostNotOpen},
	{apperrors.ErrQuantityExceeded, http.StatusConflict, dto.ErrorCodeQuantityExceeded},
	{apperrors.ErrNotSuspended, http.StatusConflict, dto.ErrorCodeNotSuspended},
	{apperrors.ErrConflict, http.StatusConflict, dto.ErrorCodeConflict},
	{apperrors.ErrConsistency, http.StatusInternalServerError, dto.ErrorCodeConsistency},
}

// HandleAPIError handles common API errors and returns appropriate responses
func HandleAPIError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	code := dto.ErrorCodeInternalServer
	for _, m := range errorMappings {
		if errors.Is(err, m.target) {
			status, code = m.status, m.code
			break
		}
	}

	if status >= http.StatusInternalServerError {
		logger.Error().Err(err).
			Str("method", c.Request.Method).
			Str("path", c.FullPath()).
			Msg("Request failed")
	}

	c.AbortWithStatusJSON(status, dto.NewErrorResponse(errorDetail(status, code, err)))
}

func errorDetail(status int, code dto.ErrorCode, err error) *dto.ErrorDetail {
	if code == dto.ErrorCodeInternalServer {
		return dto.NewErrorDetail(code, "Internal server error").WithSeverity(dto.ErrorSeverityCritical)
	}

	message := err.Error()
	if status >= http.StatusInternalServerError {
		// the cause of a rollback stays in the logs
		message = apperrors.ErrConsistency.Error()
	}
	detail := dto.NewErrorDetail(code, message)
	if status < http.StatusInternalServerError {
		detail.WithSeverity(dto.ErrorSeverityWarning)
	}

	var te *apperrors.TransitionError
	if errors.As(err, &te) {
		allowed := te.Allowed
		if allowed == nil {
			allowed = []string{}
		}
		return detail.WithDetails(map[string]interface{}{
			"entity":  te.Entity,
			"from":    te.From,
			"to":      te.To,
			"allowed": allowed,
		})
	}

	var ce *apperrors.CustomError
	if errors.As(err, &ce) && ce.Details != nil {
		if field, ok := ce.Details["field"].(string); ok {
			detail.WithField(field)
		}
		detail.WithDetails(ce.Details)
	}
	return detail
}
