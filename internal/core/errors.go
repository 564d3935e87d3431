package core

import "errors"

// Error codes for domain errors.
const (
	ErrCodeBadRequest       = "bad_request"
	ErrCodeEmptyMessage     = "empty_message"
	ErrCodeReceiverNotFound = "receiver_not_found"
	ErrCodePersistFailed    = "persist_failed"
	ErrCodeRateLimited      = "rate_limited"
	ErrCodeUnauthorized     = "unauthorized"
)

var (
	ErrEmptyMessage     = errors.New("message needs content or an image")
	ErrReceiverNotFound = errors.New("receiver not found")
	ErrPersistFailed    = errors.New("message could not be persisted")
	ErrBadRequest       = errors.New("bad request")
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
