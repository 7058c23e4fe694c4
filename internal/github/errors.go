package github

import (
	"fmt"
	"net/http"

	"ghedit-go/internal/ws"
)

// APIError is a non-2xx response from the API.
type APIError struct {
	StatusCode       int    `json:"-"`
	Method           string `json:"-"`
	Path             string `json:"-"`
	Message          string `json:"message"`
	DocumentationURL string `json:"documentation_url,omitempty"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("github: %s %s: %d %s", e.Method, e.Path, e.StatusCode, e.Message)
}

// Is reports a 401 as ws.ErrUnauthorized.
func (e *APIError) Is(target error) bool {
	return target == ws.ErrUnauthorized && e.StatusCode == http.StatusUnauthorized
}
