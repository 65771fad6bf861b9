package errors

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrorCode represents a classified adapter failure.
type ErrorCode string

const (
	ErrTimeout            ErrorCode = "timeout"
	ErrContextCancelled   ErrorCode = "context_cancelled"
	ErrRateLimit          ErrorCode = "rate_limit"
	ErrServiceUnavailable ErrorCode = "service_unavailable"
	ErrAuthFailed         ErrorCode = "auth_failed"
	ErrMissingInput       ErrorCode = "missing_input"
	ErrParseError         ErrorCode = "parse_error"
	ErrProcessingError    ErrorCode = "processing_error"
)

// StageError is a structured error for a failed run stage
// (listing, index, store, publish, fathom).
type StageError struct {
	Code    ErrorCode
	Stage   string
	Message string
	Cause   error
}

func (e *StageError) Error() string {
	if e.Stage != "" {
		return fmt.Sprintf("%s: %s: %s", e.Code, e.Stage, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *StageError) Unwrap() error {
	return e.Cause
}

// ClassifyError inspects an error and returns a *StageError with the
// appropriate code. Unknown errors are classified as ErrProcessingError.
func ClassifyError(err error, stage string) *StageError {
	if err == nil {
		return nil
	}

	se := &StageError{
		Stage: stage,
		Cause: err,
	}

	if errors.Is(err, context.DeadlineExceeded) {
		se.Code = ErrTimeout
		se.Message = "operation timed out"
		return se
	}
	if errors.Is(err, context.Canceled) {
		se.Code = ErrContextCancelled
		se.Message = "operation cancelled"
		return se
	}

	msg := err.Error()
	lower := strings.ToLower(msg)
	se.Message = msg

	switch {
	case errors.Is(err, ErrUnauthorized) || strings.Contains(lower, "401") || strings.Contains(lower, "invalid api key"):
		se.Code = ErrAuthFailed
	case errors.Is(err, ErrNotFound) || strings.Contains(lower, "no such file") || strings.Contains(lower, "does not exist"):
		se.Code = ErrMissingInput
	case errors.Is(err, ErrValidation) || strings.Contains(lower, "parse") || strings.Contains(lower, "unexpected end of json"):
		se.Code = ErrParseError
	case strings.Contains(lower, "rate limit") || strings.Contains(lower, "429") || strings.Contains(lower, "too many requests"):
		se.Code = ErrRateLimit
	case strings.Contains(lower, "connection refused") || strings.Contains(lower, "unavailable") ||
		strings.Contains(lower, "503") || strings.Contains(lower, "no such host"):
		se.Code = ErrServiceUnavailable
	default:
		se.Code = ErrProcessingError
	}
	return se
}

// IsTimeout returns true if the error is a classified timeout.
func IsTimeout(err error) bool {
	var se *StageError
	if errors.As(err, &se) {
		return se.Code == ErrTimeout
	}
	return false
}

// IsErrorRetryable returns true if the error is likely transient and worth retrying.
func IsErrorRetryable(err error) bool {
	var se *StageError
	if errors.As(err, &se) {
		return IsRetryable(se.Code)
	}
	return false
}
