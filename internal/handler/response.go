package handler

// RESPONSE HELPERS:
// Every handler answers through writeJSON and writeError, so all error
// responses share one shape:
//
//	{"error": "rate_limited", "message": "Please wait 1 minute before posting again"}
//
// Validation failures also list each failing field:
//
//	{"error": "validation_error", "message": "...", "fields": {"comment": "Please share your thoughts"}}

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/sakif/repo-rater/internal/apperror"
)

// ErrorResponse is the error format returned by the API endpoints.
type ErrorResponse struct {
	Error   string            `json:"error"`   // machine-readable error type, e.g. "not_found"
	Message string            `json:"message"` // human-readable description
	Fields  map[string]string `json:"fields,omitempty"`
}

// writeJSON sends data as JSON. Headers and status must go out before the
// body; once Encode writes, header changes are ignored.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			slog.Error("failed to encode JSON response", slog.String("error", err.Error()))
		}
	}
}

// errorStatus maps an error class to its HTTP status and error type.
func errorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, apperror.ErrValidation):
		return http.StatusBadRequest, "validation_error"
	case errors.Is(err, apperror.ErrBlocked):
		return http.StatusForbidden, "blocked"
	case errors.Is(err, apperror.ErrContentRejected):
		return http.StatusForbidden, "content_rejected"
	case errors.Is(err, apperror.ErrRateLimited):
		return http.StatusTooManyRequests, "rate_limited"
	case errors.Is(err, apperror.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, apperror.ErrStore):
		return http.StatusInternalServerError, "store_error"
	case errors.Is(err, apperror.ErrMetadataFetch):
		return http.StatusBadGateway, "metadata_error"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}

// writeError translates a domain error to HTTP. The service layer never
// sees status codes; this is the one place they are decided.
//
// Only *apperror.AppError messages reach the client. Anything else gets a
// generic message so SQL, file paths and the like never leak.
func writeError(w http.ResponseWriter, err error) {
	var appErr *apperror.AppError
	if !errors.As(err, &appErr) {
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{
			Error:   "internal_error",
			Message: "An internal error occurred",
		})
		return
	}

	status, errorType := errorStatus(err)
	writeJSON(w, status, ErrorResponse{
		Error:   errorType,
		Message: appErr.Message,
		Fields:  appErr.Fields,
	})
}
