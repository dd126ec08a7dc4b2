package api

import "fmt"

// ErrorType represents the category of an engine error.
type ErrorType string

const (
	ErrorTypeTransport       ErrorType = "transport_error"
	ErrorTypeServerError     ErrorType = "server_error"
	ErrorTypeInvalidRequest  ErrorType = "invalid_request"
	ErrorTypeNotFound        ErrorType = "not_found"
	ErrorTypeTooManyRequests ErrorType = "too_many_requests"
)

// Error is a structured error with a type discriminator. Transport errors
// additionally carry the HTTP status and (truncated) response body of the
// failed backend exchange; these are never swallowed on the way up.
type Error struct {
	Type    ErrorType `json:"type"`
	Message string    `json:"message"`
	Status  int       `json:"status,omitempty"`
	Body    string    `json:"body,omitempty"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s: HTTP %d: %s", e.Type, e.Status, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// ErrorResponse wraps an Error for JSON serialization as the top-level
// error response on the HTTP façade.
type ErrorResponse struct {
	Error *Error `json:"error"`
}

// NewTransportError creates an Error for a failed backend exchange:
// a non-2xx status or a connection-level failure. The body is the raw
// (possibly truncated) response body, kept for diagnostics.
func NewTransportError(status int, body, message string) *Error {
	return &Error{
		Type:    ErrorTypeTransport,
		Message: message,
		Status:  status,
		Body:    body,
	}
}

// NewInvalidRequestError creates an Error for invalid caller input.
func NewInvalidRequestError(message string) *Error {
	return &Error{
		Type:    ErrorTypeInvalidRequest,
		Message: message,
	}
}

// NewNotFoundError creates an Error for resources that cannot be found.
func NewNotFoundError(message string) *Error {
	return &Error{
		Type:    ErrorTypeNotFound,
		Message: message,
	}
}

// NewServerError creates an Error for internal failures.
func NewServerError(message string) *Error {
	return &Error{
		Type:    ErrorTypeServerError,
		Message: message,
	}
}

// NewTooManyRequestsError creates an Error for rate limiting.
func NewTooManyRequestsError(message string) *Error {
	return &Error{
		Type:    ErrorTypeTooManyRequests,
		Message: message,
	}
}
