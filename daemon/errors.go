package daemon

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

// ErrUnauthorized matches any APIError with status 401.
// Use errors.Is(err, ErrUnauthorized) to check for expired or revoked sessions.
var ErrUnauthorized = errors.New("daemon: unauthorized (401)")

// APIError is returned when the daemon answers with a status >= 400.
type APIError struct {
	// StatusCode is the HTTP status code.
	StatusCode int

	// Reason is the standard text for StatusCode, or "Unknown Code".
	Reason string

	// URL is the request URL.
	URL string

	// Message is the human-readable message, enriched from the body when
	// the daemon supplied one.
	Message string

	// Body is the raw response body.
	Body []byte
}

// Error implements the error interface.
func (e *APIError) Error() string {
	return e.Message
}

// Is reports whether target is ErrUnauthorized and this is a 401.
func (e *APIError) Is(target error) bool {
	return target == ErrUnauthorized && e.IsUnauthorized()
}

// IsUnauthorized returns true if the session was rejected.
func (e *APIError) IsUnauthorized() bool {
	return e.StatusCode == http.StatusUnauthorized
}

// IsClientError returns true for 4xx statuses.
func (e *APIError) IsClientError() bool {
	return e.StatusCode >= 400 && e.StatusCode < 500
}

// IsServerError returns true for 5xx statuses.
func (e *APIError) IsServerError() bool {
	return e.StatusCode >= 500
}

// IsAPIError returns true if the error is an APIError.
func IsAPIError(err error) bool {
	var e *APIError
	return errors.As(err, &e)
}

// NewAPIError builds an APIError, enriching the message from the response
// body on 400 and 500 when it can be parsed.
func NewAPIError(statusCode int, url string, body []byte) *APIError {
	reason := http.StatusText(statusCode)
	if reason == "" {
		reason = "Unknown Code"
	}

	e := &APIError{
		StatusCode: statusCode,
		Reason:     reason,
		URL:        url,
		Message:    fmt.Sprintf("%d %s for url: %s", statusCode, reason, url),
		Body:       body,
	}

	switch statusCode {
	case http.StatusBadRequest:
		var parsed clientErrorBody
		if json.Unmarshal(body, &parsed) == nil && parsed.Message != nil {
			e.Message = fmt.Sprintf("Client Error for %s: %s", url, *parsed.Message)
		}
	case http.StatusInternalServerError:
		var parsed serverErrorBody
		if json.Unmarshal(body, &parsed) == nil && parsed.Error != nil && parsed.Error.Message != nil {
			e.Message = fmt.Sprintf("Server Error for %s: %s", url, *parsed.Error.Message)
		}
	}

	return e
}

type clientErrorBody struct {
	Message *string `json:"message"`
}

type serverErrorBody struct {
	Error *struct {
		Message *string `json:"message"`
	} `json:"error"`
}

// AuthError is returned when the handshake does not yield a session token.
type AuthError struct {
	// Response is the handshake response body as returned by the daemon.
	Response string
}

// Error implements the error interface.
func (e *AuthError) Error() string {
	return "daemon: authentication failed: " + e.Response
}

// IsAuthError returns true if the error is an AuthError.
func IsAuthError(err error) bool {
	var e *AuthError
	return errors.As(err, &e)
}
