package httpapi

import (
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/SARVESHVARADKAR123/RealChat/services/messenger/internal/domain"
	"github.com/SARVESHVARADKAR123/RealChat/services/messenger/internal/observability"
	"github.com/SARVESHVARADKAR123/RealChat/services/messenger/internal/partition"
)

// MapError converts a service error into an HTTP status and error code.
func MapError(err error) (int, string) {
	switch {
	case errors.Is(err, domain.ErrNotParticipant):
		return http.StatusForbidden, "forbidden"

	case errors.Is(err, domain.ErrConversationNotFound),
		errors.Is(err, partition.ErrNotFound):
		return http.StatusNotFound, "not_found"

	case errors.Is(err, domain.ErrMessageTooLarge):
		return http.StatusRequestEntityTooLarge, "message_too_large"

	case domain.IsValidation(err),
		errors.Is(err, domain.ErrInvalidContent),
		errors.Is(err, domain.ErrInvalidInput),
		errors.Is(err, domain.ErrInvalidCursor),
		errors.Is(err, partition.ErrInvalidKey):
		return http.StatusBadRequest, "invalid_argument"

	case errors.Is(err, partition.ErrTimeout):
		return http.StatusGatewayTimeout, "timeout"

	case errors.Is(err, partition.ErrUnavailable):
		return http.StatusServiceUnavailable, "unavailable"

	default:
		return http.StatusInternalServerError, "internal_error"
	}
}

// WriteServiceError logs the underlying error and writes its mapped form.
// Internal errors never leak their message to the client.
func WriteServiceError(w http.ResponseWriter, r *http.Request, err error) {
	status, code := MapError(err)
	log := observability.GetLogger(r.Context())

	if status >= http.StatusInternalServerError {
		log.Warn("request_failed", zap.String("code", code), zap.Error(err))
	}

	switch status {
	case http.StatusInternalServerError:
		WriteError(w, status, code, "an unexpected error occurred")
	case http.StatusServiceUnavailable:
		WriteError(w, status, code, "store temporarily unavailable")
	case http.StatusGatewayTimeout:
		WriteError(w, status, code, "request timed out")
	default:
		WriteError(w, status, code, err.Error())
	}
}
