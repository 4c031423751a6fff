// Package respond writes JSON responses and maps the error taxonomy to
// HTTP status codes in one place.
package respond

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"storefront/internal/apperr"
)

// JSON writes payload with the given status.
func JSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload != nil {
		_ = json.NewEncoder(w).Encode(payload)
	}
}

// StatusFor maps an error kind to its HTTP status.
func StatusFor(err error) int {
	switch apperr.KindOf(err) {
	case apperr.Unauthenticated:
		return http.StatusUnauthorized
	case apperr.Forbidden:
		return http.StatusForbidden
	case apperr.InvalidSignature, apperr.Validation:
		return http.StatusBadRequest
	case apperr.Conflict:
		return http.StatusConflict
	case apperr.NotFound:
		return http.StatusNotFound
	case apperr.UpstreamUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// Error logs err with its full cause chain and writes only the
// caller-safe message to the response.
func Error(w http.ResponseWriter, logger *slog.Logger, err error, attrs ...any) {
	status := StatusFor(err)
	if logger != nil {
		if status >= http.StatusInternalServerError {
			logger.Error("request failed", append(attrs, "error", err)...)
		} else {
			logger.Warn("request rejected", append(attrs, "error", err)...)
		}
	}
	JSON(w, status, map[string]string{"message": apperr.PublicMessage(err)})
}
