package service

import (
	"errors"
	"fmt"

	"regulie/therapy-app/internal/domain"
)

// --- Error Definitions ---
var (
	// ErrValidation is wrapped with a description of the offending field.
	ErrValidation = errors.New("validation failed")
	ErrForbidden  = errors.New("operation not permitted for this user")

	ErrUserNotFound          = errors.New("user not found")
	ErrClientNotFound        = errors.New("client not found")
	ErrGoalNotFound          = errors.New("goal not found")
	ErrParentNotLinked       = errors.New("parent is not linked to this client")
	ErrSessionNotFound       = errors.New("session not found")
	ErrTemplateNotFound      = errors.New("template not found")
	ErrTemplateNameTaken     = errors.New("a template with this name already exists")
	ErrAccessRequestNotFound = errors.New("access request not found")
	ErrMediaNotFound         = errors.New("media not found")
)

func validationError(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// LimitExceededError is returned when an operation would exceed the caller's tier limit.
type LimitExceededError struct {
	Resource domain.Resource
	Tier     domain.Tier
	Limit    int
}

func (e *LimitExceededError) Error() string {
	return fmt.Sprintf("%s limit of %d reached for the %s tier", e.Resource, e.Limit, e.Tier)
}
