package core

import "errors"

// Error codes surfaced to the originating connection. None of these affect
// other connections' state.
const (
	ErrCodeAuthentication  = "authentication_error"
	ErrCodeValidation      = "validation_error"
	ErrCodePersistence     = "persistence_error"
	ErrCodeNotFound        = "not_found"
	ErrCodeInvalidArgument = "invalid_argument"
)

var (
	// ErrSelfPair is returned when a pairwise channel key is requested for
	// two identical user ids.
	ErrSelfPair = errors.New("pair channel requires two distinct users")
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
