package core

import "errors"

// Error codes reported to attached clients.
const (
	ErrCodeBadRequest     = "bad_request"
	ErrCodeInvalidPersona = "invalid_persona"
	ErrCodeStorage        = "storage_error"
	ErrCodeRateLimited    = "rate_limited"
	ErrCodeUnsupported    = "unsupported_version"
)

var (
	// ErrStopped is returned when a command is queued after Run has exited.
	ErrStopped = errors.New("conversation stopped")
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
