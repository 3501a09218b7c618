package api

import (
	"errors"
	"fmt"
	"net/http"
)

var ErrInvalidCredentials = errors.New("api: invalid credentials")

// StatusError is any non-success response from the booking API.
type StatusError struct {
	Method     string
	Path       string
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s %s: status=%d: %s", e.Method, e.Path, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s %s: status=%d", e.Method, e.Path, e.StatusCode)
}

// Is makes a 401 from the login endpoint match ErrInvalidCredentials.
func (e *StatusError) Is(target error) bool {
	return target == ErrInvalidCredentials && e.Path == pathLogin && e.StatusCode == http.StatusUnauthorized
}

// StatusCode returns the HTTP status carried by err, or 0.
func StatusCode(err error) int {
	var se *StatusError
	if errors.As(err, &se) {
		return se.StatusCode
	}
	return 0
}
