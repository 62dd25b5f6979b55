package httpx

import (
	"errors"
	"log/slog"
	"net/http"

	"bookmarket/internal/apperr"
)

// WriteError maps an apperr kind onto a status code and error envelope.
// Unclassified errors are logged and hidden behind a generic 500.
func WriteError(w http.ResponseWriter, r *http.Request, err error) {
	switch kind := apperr.KindOf(err); {
	case errors.Is(kind, apperr.ErrValidation):
		JSONError(w, r, http.StatusBadRequest, "VALIDATION_ERROR", apperr.Reason(err), nil)
	case errors.Is(kind, apperr.ErrConflict):
		JSONError(w, r, http.StatusBadRequest, "CONFLICT", apperr.Reason(err), nil)
	case errors.Is(kind, apperr.ErrNotFound):
		JSONError(w, r, http.StatusNotFound, "NOT_FOUND", apperr.Reason(err), nil)
	case errors.Is(kind, apperr.ErrForbidden):
		JSONError(w, r, http.StatusForbidden, "FORBIDDEN", apperr.Reason(err), nil)
	case errors.Is(kind, apperr.ErrUnauthenticated):
		JSONError(w, r, http.StatusUnauthorized, "UNAUTHORIZED", apperr.Reason(err), nil)
	default:
		slog.ErrorContext(r.Context(), "unhandled error",
			"error", err,
			"method", r.Method,
			"path", r.URL.Path,
			"request_id", RequestIDFrom(r),
		)
		JSONError(w, r, http.StatusInternalServerError, "INTERNAL_ERROR", "Internal server error", nil)
	}
}
