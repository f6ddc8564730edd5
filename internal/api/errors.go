package api

import (
	"errors"
	"log/slog"
	"net/http"

	"regulie/therapy-app/internal/billing"
	"regulie/therapy-app/internal/oauth"
	"regulie/therapy-app/internal/repository"
	"regulie/therapy-app/internal/service"

	"github.com/gin-gonic/gin"
)

var (
	badRequestErrors = []error{
		service.ErrValidation,
		service.ErrInvalidResetToken,
		service.ErrInvalidMFACode,
		service.ErrUnsupportedContentType,
		service.ErrInvalidObjectKey,
		service.ErrUploadNotFound,
		service.ErrTierNotAvailable,
		billing.ErrInvalidSignature,
	}
	unauthorizedErrors = []error{
		service.ErrAuthenticationFailed,
		service.ErrInvalidToken,
		oauth.ErrInvalidToken,
		oauth.ErrEmailNotVerified,
	}
	notFoundErrors = []error{
		service.ErrUserNotFound,
		service.ErrClientNotFound,
		service.ErrGoalNotFound,
		service.ErrParentNotLinked,
		service.ErrSessionNotFound,
		service.ErrTemplateNotFound,
		service.ErrAccessRequestNotFound,
		service.ErrMediaNotFound,
		service.ErrTherapistNotFound,
		service.ErrNoBillingAccount,
		repository.ErrNotFound,
	}
	conflictErrors = []error{
		service.ErrUserAlreadyExists,
		service.ErrTemplateNameTaken,
		service.ErrDuplicateRequest,
		service.ErrRequestNotPending,
		service.ErrMFAAlreadyEnabled,
		service.ErrMFANotEnabled,
		service.ErrMFANotPending,
		repository.ErrDuplicate,
		repository.ErrConflict,
	}
)

// statusFor maps a service error to its HTTP status. Unknown errors are 500.
func statusFor(err error) int {
	var limitErr *service.LimitExceededError
	switch {
	case errors.As(err, &limitErr):
		return http.StatusForbidden
	case errors.Is(err, service.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, service.ErrFileTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, oauth.ErrNotConfigured):
		return http.StatusServiceUnavailable
	case isAny(err, badRequestErrors):
		return http.StatusBadRequest
	case isAny(err, unauthorizedErrors):
		return http.StatusUnauthorized
	case isAny(err, notFoundErrors):
		return http.StatusNotFound
	case isAny(err, conflictErrors):
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

func isAny(err error, targets []error) bool {
	for _, target := range targets {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// respondError writes the JSON error for err. Internal errors are logged and
// replaced by a generic message.
func respondError(c *gin.Context, err error) {
	var limitErr *service.LimitExceededError
	if errors.As(err, &limitErr) {
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
			"error":    limitErr.Error(),
			"code":     "limit_exceeded",
			"resource": limitErr.Resource,
			"tier":     limitErr.Tier,
			"limit":    limitErr.Limit,
		})
		return
	}

	status := statusFor(err)
	if status == http.StatusInternalServerError {
		slog.ErrorContext(c.Request.Context(), "request failed",
			"method", c.Request.Method,
			"route", c.FullPath(),
			"error", err,
		)
		abortWithError(c, status, "An unexpected error occurred")
		return
	}
	abortWithError(c, status, err.Error())
}
