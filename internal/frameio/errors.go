package frameio

import (
	"errors"
	"fmt"

	"github.com/LukeVan/frame-io-max-activation/internal/services"
)

// APIError carries the HTTP status of a failed remote call so retry policy
// can distinguish transient from permanent conditions.
type APIError struct {
	StatusCode int
	Operation  string
	Body       string
}

func (e *APIError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s: unexpected status %d", e.Operation, e.StatusCode)
	}
	return fmt.Sprintf("%s: unexpected status %d: %s", e.Operation, e.StatusCode, e.Body)
}

// Unwrap tags the error with the taxonomy marker matching its status class:
// 429 and 5xx are transient, other 4xx are permanent.
func (e *APIError) Unwrap() error {
	if e.StatusCode == 429 || e.StatusCode >= 500 {
		return services.ErrTransientNetwork
	}
	if e.StatusCode >= 400 {
		return services.ErrPermanentRequest
	}
	return nil
}

// StatusOf extracts the HTTP status code from an error chain, or 0.
func StatusOf(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode
	}
	return 0
}
