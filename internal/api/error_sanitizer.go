package api

import (
	"net/http"
	"strings"

	"github.com/incosense/incosense/internal/pkg/httputil"
	"github.com/incosense/incosense/internal/pkg/logger"
)

// =============================================================================
// ERROR SANITIZER
// Internal errors (driver messages, hosts, constraint names) never reach the
// client. 5xx responses carry a generic message; the full error is logged.
// =============================================================================

// respondSafeError logs the internal error and writes a sanitized plain-text
// body in the same "<Kind>: <detail>" shape as rejections.
func respondSafeError(w http.ResponseWriter, log *logger.Logger, code int, internalErr error) {
	msg := safeErrorMessage(code, internalErr)
	if internalErr != nil {
		log.Error("request failed", "status", code, "public", msg, "error", internalErr)
	}
	httputil.Text(w, code, "Storage: "+msg)
}

// safeErrorMessage maps common internal error patterns to public-safe messages.
// 4xx errors describe user input and are returned as-is.
func safeErrorMessage(code int, internalErr error) string {
	if code < 500 {
		if internalErr != nil {
			return internalErr.Error()
		}
		return "bad request"
	}

	if internalErr == nil {
		return "an internal error occurred"
	}

	errStr := strings.ToLower(internalErr.Error())

	switch {
	case strings.Contains(errStr, "connection refused") ||
		strings.Contains(errStr, "connection reset") ||
		strings.Contains(errStr, "no such host") ||
		strings.Contains(errStr, "dial tcp"):
		return "service temporarily unavailable"

	case strings.Contains(errStr, "timeout") ||
		strings.Contains(errStr, "deadline exceeded") ||
		strings.Contains(errStr, "context canceled"):
		return "request timed out"

	case strings.Contains(errStr, "sql") ||
		strings.Contains(errStr, "pq:") ||
		strings.Contains(errStr, "insert") ||
		strings.Contains(errStr, "database"):
		return "a database error occurred"

	default:
		return "an internal error occurred"
	}
}
