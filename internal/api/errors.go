package api

import (
	"errors"
	"fmt"
)

// ErrUnauthorized is returned for 401/403 responses and for authenticated
// calls made without a token. Callers tear the session down on it.
var ErrUnauthorized = errors.New("unauthorized")

// NetworkError is a transport failure: the request never got a response.
type NetworkError struct {
	Op  string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("%s: network error: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// Error is a business error reported by the server.
type Error struct {
	Status  int
	Message string
}

func (e *Error) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("request failed with status %d", e.Status)
	}
	return e.Message
}

// Message turns err into something short enough to show in a notice.
func Message(err error) string {
	var apiErr *Error
	var netErr *NetworkError
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrUnauthorized):
		return "Authentication failed. Please login again."
	case errors.As(err, &apiErr):
		return apiErr.Error()
	case errors.As(err, &netErr):
		return "Network error. Please check your connection and try again."
	default:
		return err.Error()
	}
}
