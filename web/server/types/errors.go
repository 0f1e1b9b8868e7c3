package types

import "net/http"

// InternalError represents a 500 Internal Server Error HTTP response.
type InternalError struct {
	Response
}

// NewInternalError creates a new InternalError with the specified message.
func NewInternalError(message string) *InternalError {
	return &InternalError{
		Response: Response{
			StatusCode: http.StatusInternalServerError,
			Status:     http.StatusText(http.StatusInternalServerError),
			Error:      message,
		},
	}
}

// UnavailableError represents a 503 Service Unavailable HTTP response.
type UnavailableError struct {
	Response
}

// NewUnavailableError creates a new UnavailableError with the specified message.
func NewUnavailableError(message string) *UnavailableError {
	return &UnavailableError{
		Response: Response{
			StatusCode: http.StatusServiceUnavailable,
			Status:     http.StatusText(http.StatusServiceUnavailable),
			Error:      message,
		},
	}
}
