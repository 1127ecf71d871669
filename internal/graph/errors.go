package graph

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrNotFound matches APIError values with a 404 status, and is returned when a
// lookup by name finds nothing.
var ErrNotFound = errors.New("resource not found")

// APIError is returned for non-success responses.
type APIError struct {
	Method     string
	URL        string
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s %s: status %d: %s", e.Method, e.URL, e.StatusCode, e.Body)
}

// Is lets errors.Is(err, ErrNotFound) match 404 responses.
func (e *APIError) Is(target error) bool {
	return target == ErrNotFound && e.StatusCode == http.StatusNotFound
}
