package api

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrUnauthorized matches any 401 response via errors.Is.
var ErrUnauthorized = errors.New("unauthorized")

// APIError is a non-2xx response from the API.
type APIError struct {
	StatusCode int
	Message    string // "message" field of the response body, if any
	RequestID  string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("api: %d %s: %s", e.StatusCode, http.StatusText(e.StatusCode), e.Message)
	}
	return fmt.Sprintf("api: request failed with status code %d", e.StatusCode)
}

// Is reports whether a 401 response is being compared with ErrUnauthorized.
func (e *APIError) Is(target error) bool {
	return target == ErrUnauthorized && e.StatusCode == http.StatusUnauthorized
}

// TransportError wraps a failure to reach the API or read its response.
type TransportError struct {
	Method string
	URL    string
	Err    error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Method, e.URL, e.Err)
}

// Unwrap returns the underlying error.
func (e *TransportError) Unwrap() error {
	return e.Err
}

// Message extracts a human readable string from an error returned by the
// client: the server's message when there is one, otherwise the error text,
// otherwise a generic fallback. Errors that did not come from the client
// yield "Unknown error occurred".
func Message(err error) string {
	if err == nil {
		return ""
	}

	var apiErr *APIError
	if errors.As(err, &apiErr) {
		if apiErr.Message != "" {
			return apiErr.Message
		}
		if apiErr.StatusCode != 0 {
			return fmt.Sprintf("Request failed with status code %d", apiErr.StatusCode)
		}
		return "Something went wrong"
	}

	var transportErr *TransportError
	if errors.As(err, &transportErr) {
		if transportErr.Err != nil && transportErr.Err.Error() != "" {
			return transportErr.Err.Error()
		}
		return "Something went wrong"
	}

	return "Unknown error occurred"
}
