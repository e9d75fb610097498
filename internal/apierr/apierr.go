package apierr

import (
	"errors"
	"fmt"
	"net/http"
)

// Stable error codes surfaced to API clients.
const (
	CodeNotFound         = "NOT_FOUND"
	CodeBadStatus        = "BAD_STATUS"
	CodeInvalidStage     = "INVALID_STAGE"
	CodeNoProvider       = "NO_PROVIDER"
	CodeGenerationFailed = "GENERATION_FAILED"
	CodeTruncated        = "TRUNCATED"
	CodeParseError       = "PARSE_ERROR"
	CodeBadRequest       = "BAD_REQUEST"
	CodeRateLimited      = "RATE_LIMITED"
)

type Error struct {
	Status int
	Code   string
	Err    error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	if e.Code != "" {
		return e.Code
	}
	if e.Status != 0 {
		return fmt.Sprintf("api error (%d)", e.Status)
	}
	return "api error"
}

func (e *Error) Unwrap() error { return e.Err }

func New(status int, code string, err error) *Error {
	return &Error{Status: status, Code: code, Err: err}
}

func NotFound(format string, args ...any) *Error {
	return New(http.StatusNotFound, CodeNotFound, fmt.Errorf(format, args...))
}

func BadStatus(format string, args ...any) *Error {
	return New(http.StatusBadRequest, CodeBadStatus, fmt.Errorf(format, args...))
}

func InvalidStage(format string, args ...any) *Error {
	return New(http.StatusBadRequest, CodeInvalidStage, fmt.Errorf(format, args...))
}

func NoProvider(format string, args ...any) *Error {
	return New(http.StatusBadRequest, CodeNoProvider, fmt.Errorf(format, args...))
}

func GenerationFailed(format string, args ...any) *Error {
	return New(http.StatusUnprocessableEntity, CodeGenerationFailed, fmt.Errorf(format, args...))
}

func Truncated(format string, args ...any) *Error {
	return New(http.StatusUnprocessableEntity, CodeTruncated, fmt.Errorf(format, args...))
}

func ParseError(format string, args ...any) *Error {
	return New(http.StatusUnprocessableEntity, CodeParseError, fmt.Errorf(format, args...))
}

func BadRequest(format string, args ...any) *Error {
	return New(http.StatusBadRequest, CodeBadRequest, fmt.Errorf(format, args...))
}

func RateLimited(format string, args ...any) *Error {
	return New(http.StatusTooManyRequests, CodeRateLimited, fmt.Errorf(format, args...))
}

// Code extracts the stable code from any error, falling back to empty.
func Code(err error) string {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Code
	}
	return ""
}

// Is reports whether err carries the given code.
func Is(err error, code string) bool {
	return Code(err) == code
}
