package llm

import (
	"errors"
	"fmt"
)

var (
	// ErrNoAPIKey is returned when a backend requiring an API key is
	// constructed without one.
	ErrNoAPIKey = errors.New("llm: api key is required")

	// ErrNoBaseURL is returned when a backend is constructed without an
	// API URL.
	ErrNoBaseURL = errors.New("llm: base url is required")

	// ErrUnavailable is returned by the manager when no backend can
	// serve requests.
	ErrUnavailable = errors.New("llm: client is not available")

	// ErrUnknownBackend is returned when the configured backend type has
	// no registered constructor.
	ErrUnknownBackend = errors.New("llm: unknown backend type")
)

// APIError is a non-2xx response from a backend API.
type APIError struct {
	Provider   string
	StatusCode int
	Message    string
	Retryable  bool
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s API error: status=%d message=%s", e.Provider, e.StatusCode, e.Message)
}

// NewAPIError creates an APIError, marking 429 and 5xx as retryable.
func NewAPIError(provider string, statusCode int, message string) *APIError {
	const maxMessageLen = 512
	if len(message) > maxMessageLen {
		message = message[:maxMessageLen] + "..."
	}
	return &APIError{
		Provider:   provider,
		StatusCode: statusCode,
		Message:    message,
		Retryable:  statusCode == 429 || (statusCode >= 500 && statusCode <= 504),
	}
}

// WrapError annotates an error with the provider name.
func WrapError(provider string, err error) error {
	return fmt.Errorf("%s: %w", provider, err)
}
