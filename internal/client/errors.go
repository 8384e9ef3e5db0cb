package client

import (
	"errors"
	"fmt"
)

var (
	// ErrAuthenticationFailed is returned by Login for rejected credentials.
	ErrAuthenticationFailed = errors.New("authentication failed")

	// ErrUnauthorized is returned when an authenticated call gets a 401.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrNetwork matches every *NetworkError.
	ErrNetwork = errors.New("network failure")
)

// DefaultAuthMessage is shown when the API rejects a login without a detail.
const DefaultAuthMessage = "Invalid credentials"

// AuthError carries the API's reason for rejecting a login.
type AuthError struct {
	StatusCode int
	Detail     string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("%s: %s", ErrAuthenticationFailed, e.Message())
}

// Message returns the API's detail, or a generic message when it sent none.
func (e *AuthError) Message() string {
	if e.Detail == "" {
		return DefaultAuthMessage
	}
	return e.Detail
}

func (e *AuthError) Unwrap() error { return ErrAuthenticationFailed }

// NetworkError wraps a transport failure: the request never completed.
type NetworkError struct {
	Endpoint string
	Err      error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("failed to reach portfolio API (%s): %v", e.Endpoint, e.Err)
}

func (e *NetworkError) Unwrap() []error { return []error{ErrNetwork, e.Err} }

// StatusError is a non-2xx response other than 401.
type StatusError struct {
	Endpoint   string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s: server returned %d", e.Endpoint, e.StatusCode)
	}
	return fmt.Sprintf("%s: server returned %d: %s", e.Endpoint, e.StatusCode, e.Body)
}
