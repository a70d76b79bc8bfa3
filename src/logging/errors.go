package logging

import (
	"context"
	"errors"
	"strings"
)

// IsRateLimit reports whether err looks like an upstream 429.
func IsRateLimit(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "rate_limit") || strings.Contains(msg, "429")
}

// IsTimeout reports whether err came from an expired deadline.
func IsTimeout(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, context.DeadlineExceeded) || strings.Contains(err.Error(), "Client.Timeout exceeded")
}

// Classify returns a short tag for log lines.
func Classify(err error) string {
	switch {
	case err == nil:
		return "ok"
	case IsRateLimit(err):
		return "rate_limited"
	case IsTimeout(err):
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "canceled"
	default:
		return "error"
	}
}
