package core

import (
	"errors"

	"github.com/vovakirdan/chatcore/internal/store"
)

// Error codes for domain errors.
const (
	ErrCodeNotFound           = "not_found"
	ErrCodeInvalidInput       = "invalid_input"
	ErrCodePersistenceFailure = "persistence_failure"
	ErrCodeUnauthorized       = "unauthorized"
	ErrCodeRateLimited        = "rate_limited"
)

// CoreError wraps a code and human-readable message.
type CoreError struct {
	Code    string
	Message string
}

func (e *CoreError) Error() string {
	return e.Message
}

func coreError(code, msg string) *CoreError {
	return &CoreError{Code: code, Message: msg}
}

// NewCoreError builds a CoreError for layers outside the core (e.g. protocol validation).
func NewCoreError(code, msg string) *CoreError {
	return coreError(code, msg)
}

// storeError classifies a repository error. notFoundMsg is used when the entity is missing.
func storeError(err error, notFoundMsg string) *CoreError {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return coreError(ErrCodeNotFound, notFoundMsg)
	case errors.Is(err, store.ErrInvalidArgument):
		return coreError(ErrCodeInvalidInput, err.Error())
	default:
		return coreError(ErrCodePersistenceFailure, "failed to persist, try again")
	}
}
