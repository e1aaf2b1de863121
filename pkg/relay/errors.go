package relay

import (
	"errors"
	"fmt"
)

// ErrorCode categorizes transport errors by the policy they demand.
type ErrorCode string

const (
	// ErrCodeNetwork is a transient transport failure. The cycle is
	// retried at the next scheduled poll; no data is lost.
	ErrCodeNetwork ErrorCode = "NETWORK"

	// ErrCodeAuth means the store rejected the access token (401).
	// Fatal: the loop stops so the operator notices.
	ErrCodeAuth ErrorCode = "AUTH"

	// ErrCodeNotFound means the repository or mailbox path does not
	// exist (404). Fatal: this is a configuration problem.
	ErrCodeNotFound ErrorCode = "NOT_FOUND"

	// ErrCodeDecode means the fetched content was not valid base64/JSON.
	// Fatal for the cycle: the mailbox is never overwritten with guessed
	// or empty data.
	ErrCodeDecode ErrorCode = "DECODE"

	// ErrCodeConflict means the mailbox changed between fetch and write.
	// Expected and transient: always resolved by refetch-and-redo, never
	// by a forced overwrite.
	ErrCodeConflict ErrorCode = "CONFLICT"

	// ErrCodeAlreadyExists means a side-file create hit an existing
	// file. For names the relay minted itself this is success: a prior
	// attempt landed.
	ErrCodeAlreadyExists ErrorCode = "ALREADY_EXISTS"
)

// TransportError is a store-client failure with enough structure for the
// listener to pick a policy without string matching.
type TransportError struct {
	// Code identifies the error category.
	Code ErrorCode

	// Message is a human-readable description.
	Message string

	// Path is the remote path involved, when known.
	Path string

	// Status is the HTTP status that produced the error, when any.
	Status int

	// Err is the underlying cause, when any.
	Err error
}

// Error implements the error interface.
func (e *TransportError) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Code, e.Message)
	if e.Path != "" {
		msg += fmt.Sprintf(" (path=%s)", e.Path)
	}
	if e.Err != nil {
		msg += fmt.Sprintf(": %v", e.Err)
	}
	return msg
}

// Unwrap exposes the underlying cause to errors.Is/As chains.
func (e *TransportError) Unwrap() error {
	return e.Err
}

// codeIs reports whether err is a *TransportError with the given code.
// Uses errors.As to handle wrapped errors.
func codeIs(err error, code ErrorCode) bool {
	var te *TransportError
	if errors.As(err, &te) {
		return te.Code == code
	}
	return false
}

// IsNetwork reports a transient transport failure.
func IsNetwork(err error) bool { return codeIs(err, ErrCodeNetwork) }

// IsAuth reports an access-token rejection.
func IsAuth(err error) bool { return codeIs(err, ErrCodeAuth) }

// IsNotFound reports a missing repository or path.
func IsNotFound(err error) bool { return codeIs(err, ErrCodeNotFound) }

// IsDecode reports undecodable mailbox content.
func IsDecode(err error) bool { return codeIs(err, ErrCodeDecode) }

// IsConflict reports a version-token mismatch on a conditional write.
func IsConflict(err error) bool { return codeIs(err, ErrCodeConflict) }

// IsAlreadyExists reports a side-file create against an existing file.
func IsAlreadyExists(err error) bool { return codeIs(err, ErrCodeAlreadyExists) }

// IsFatal reports errors that should stop the poll loop rather than be
// retried: auth rejections and missing-path configuration problems.
func IsFatal(err error) bool { return IsAuth(err) || IsNotFound(err) }

// NewNetworkError wraps a transport-level failure.
func NewNetworkError(path string, err error) *TransportError {
	return &TransportError{Code: ErrCodeNetwork, Message: "request failed", Path: path, Err: err}
}

// NewAuthError reports a 401 from the store.
func NewAuthError(path string) *TransportError {
	return &TransportError{Code: ErrCodeAuth, Message: "access token rejected", Path: path, Status: 401}
}

// NewNotFoundError reports a 404 from the store.
func NewNotFoundError(path string) *TransportError {
	return &TransportError{Code: ErrCodeNotFound, Message: "repository or path not found", Path: path, Status: 404}
}

// NewDecodeError wraps undecodable fetched content.
func NewDecodeError(path string, err error) *TransportError {
	return &TransportError{Code: ErrCodeDecode, Message: "undecodable mailbox content", Path: path, Err: err}
}

// NewConflictError reports a conditional write that lost the race.
func NewConflictError(path string, status int) *TransportError {
	return &TransportError{Code: ErrCodeConflict, Message: "mailbox changed since fetch", Path: path, Status: status}
}

// NewAlreadyExistsError reports a side-file create against an existing file.
func NewAlreadyExistsError(path string) *TransportError {
	return &TransportError{Code: ErrCodeAlreadyExists, Message: "file already exists", Path: path}
}
