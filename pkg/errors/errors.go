package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
)

// ErrorType represents different types of errors that can occur
type ErrorType string

const (
	ErrorTypeNetwork     ErrorType = "network"
	ErrorTypeTimeout     ErrorType = "timeout"
	ErrorTypeRateLimit   ErrorType = "rate_limit"
	ErrorTypeAuth        ErrorType = "auth"
	ErrorTypeParsing     ErrorType = "parsing"
	ErrorTypeNotFound    ErrorType = "not_found"
	ErrorTypeServerError ErrorType = "server_error"
	ErrorTypeClientError ErrorType = "client_error"
	ErrorTypeUnknown     ErrorType = "unknown"
)

var (
	// ErrMalformedResponse is returned when a response lacks the expected shape or fields.
	ErrMalformedResponse = stderrors.New("malformed response")
	// ErrMissingPayload is returned when a media response carries no encoded image.
	ErrMissingPayload = stderrors.New("missing image payload")
	// ErrRetryExhausted marks a request that used its whole attempt budget.
	ErrRetryExhausted = stderrors.New("retry attempts exhausted")
)

// Error represents an API error with type information
type Error struct {
	Type    ErrorType
	Message string
	Code    int
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s error (code %d): %s: %v", e.Type, e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s error (code %d): %s", e.Type, e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// TransportError is the single error surfaced for a request that could not be
// completed. StatusCode is the last observed HTTP status, or 0 when no response
// was received; Err carries the underlying cause.
type TransportError struct {
	Method     string
	URL        string
	Attempts   int
	StatusCode int
	Type       ErrorType
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s %s failed after %d attempt(s): status %d (%s)",
			e.Method, e.URL, e.Attempts, e.StatusCode, http.StatusText(e.StatusCode))
	}
	return fmt.Sprintf("%s %s failed after %d attempt(s): %v", e.Method, e.URL, e.Attempts, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// Malformed wraps ErrMalformedResponse with context about what was missing.
func Malformed(format string, args ...interface{}) error {
	return &Error{
		Type:    ErrorTypeParsing,
		Message: fmt.Sprintf(format, args...),
		Err:     ErrMalformedResponse,
	}
}

// ClassifyStatus maps an HTTP status code to an ErrorType
func ClassifyStatus(statusCode int) ErrorType {
	switch {
	case statusCode == 0:
		return ErrorTypeNetwork
	case statusCode == http.StatusTooManyRequests:
		return ErrorTypeRateLimit
	case statusCode == http.StatusUnauthorized, statusCode == http.StatusForbidden:
		return ErrorTypeAuth
	case statusCode == http.StatusNotFound:
		return ErrorTypeNotFound
	case statusCode == http.StatusRequestTimeout, statusCode == http.StatusGatewayTimeout:
		return ErrorTypeTimeout
	case statusCode >= 500:
		return ErrorTypeServerError
	case statusCode >= 400:
		return ErrorTypeClientError
	default:
		return ErrorTypeUnknown
	}
}

// IsRetryable checks if an error type should be retried
func IsRetryable(errorType ErrorType) bool {
	switch errorType {
	case ErrorTypeNetwork, ErrorTypeTimeout, ErrorTypeRateLimit, ErrorTypeServerError:
		return true
	default:
		return false
	}
}

// StatusCode extracts the last HTTP status from err, or 0.
func StatusCode(err error) int {
	var te *TransportError
	if stderrors.As(err, &te) {
		return te.StatusCode
	}
	var e *Error
	if stderrors.As(err, &e) {
		return e.Code
	}
	return 0
}
