package api

import "fmt"

// AuthenticationError reports a 401/403 from the marketplace API.
// Fatal: surfaced verbatim to the caller.
type AuthenticationError struct {
	Status  int
	Message string
}

func (e *AuthenticationError) Error() string {
	return fmt.Sprintf("authentication failed (status %d): %s", e.Status, e.Message)
}

// RateLimitError reports a 429 from the marketplace API.
type RateLimitError struct {
	Message string
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limited: %s", e.Message)
}

// NotFoundError reports a 404 for a model or endpoint lookup.
type NotFoundError struct {
	Resource string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("not found: %s", e.Resource)
}

// StatusError is the generic error for any other non-success status.
type StatusError struct {
	Status  int
	Message string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("API error (status %d): %s", e.Status, e.Message)
}

// statusToError maps an error status code to the taxonomy.
func statusToError(status int, resource, body string) error {
	switch {
	case status == 401 || status == 403:
		return &AuthenticationError{Status: status, Message: body}
	case status == 429:
		return &RateLimitError{Message: body}
	case status == 404:
		return &NotFoundError{Resource: resource}
	default:
		return &StatusError{Status: status, Message: body}
	}
}
