package services

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
)

var (
	// ErrInvalidSource marks a task whose local source file is missing or
	// empty. The task is dropped without retry.
	ErrInvalidSource = errors.New("invalid source")
	// ErrTransientNetwork marks failures worth retrying (connection resets,
	// timeouts, 429s, 5xx responses).
	ErrTransientNetwork = errors.New("transient network failure")
	// ErrPermanentRequest marks 4xx-class failures that are surfaced
	// immediately without retry.
	ErrPermanentRequest = errors.New("permanent request failure")
	// ErrProcessingFailed marks a terminal failure reported by the remote
	// side for an otherwise-successful transfer.
	ErrProcessingFailed = errors.New("remote processing failed")
	// ErrStateCorruption marks an unreadable or mismatched persisted state
	// database. Startup must fail fast rather than silently reset tracking.
	ErrStateCorruption = errors.New("state corruption")
)

// Wrap builds an error message that includes component context while tagging
// it with the provided marker for later classification. The marker should be
// one of the exported sentinel errors above.
func Wrap(marker error, component, operation, message string, err error) error {
	detail := buildDetail(component, operation, message)
	if marker == nil {
		marker = ErrTransientNetwork
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// IsTransient reports whether err represents a condition that warrants an
// automatic retry under the standard retry policy. Explicitly tagged errors
// win; untagged errors are classified from their network characteristics and
// message text.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	switch {
	case errors.Is(err, ErrTransientNetwork):
		return true
	case errors.Is(err, ErrPermanentRequest),
		errors.Is(err, ErrInvalidSource),
		errors.Is(err, ErrProcessingFailed),
		errors.Is(err, ErrStateCorruption):
		return false
	case errors.Is(err, context.Canceled):
		return false
	case errors.Is(err, context.DeadlineExceeded):
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	message := strings.ToLower(err.Error())
	if strings.Contains(message, "429") || strings.Contains(message, "rate limit") {
		return true
	}
	for _, code := range []string{"502", "503", "504"} {
		if strings.Contains(message, code) {
			return true
		}
	}
	transientTokens := []string{
		"timeout",
		"deadline exceeded",
		"connection reset",
		"connection refused",
		"temporary failure",
		"awaiting headers",
	}
	for _, token := range transientTokens {
		if strings.Contains(message, token) {
			return true
		}
	}
	return false
}

func buildDetail(component, operation, message string) string {
	parts := make([]string, 0, 3)
	if component = strings.TrimSpace(component); component != "" {
		parts = append(parts, component)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
