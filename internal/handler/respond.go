package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/foldr/foldr-go/internal/model"
	"github.com/foldr/foldr-go/internal/service"
)

const (
	authBodyLimit = 1 << 20  // 1MB
	syncBodyLimit = 32 << 20 // 32MB
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to write response", "error", err)
	}
}

func errorResponse(msg string) model.ErrorResponse {
	return model.ErrorResponse{Success: false, Error: msg}
}

// decodeJSON reads a size-limited JSON body into v. On failure it writes the
// error response itself and returns false.
func decodeJSON(w http.ResponseWriter, r *http.Request, limit int64, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, limit)

	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSON(w, http.StatusRequestEntityTooLarge, errorResponse("Request body too large"))
			return false
		}
		writeJSON(w, http.StatusBadRequest, errorResponse("Invalid request body"))
		return false
	}
	return true
}

// writeError maps service errors to status codes. Anything that is not a
// *service.Error is logged and reported as a 500.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	var svcErr *service.Error
	if !errors.As(err, &svcErr) {
		slog.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse("Internal server error"))
		return
	}

	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, service.ErrValidation):
		status = http.StatusBadRequest
	case errors.Is(err, service.ErrAuth):
		status = http.StatusUnauthorized
	case errors.Is(err, service.ErrForbidden):
		status = http.StatusForbidden
	case errors.Is(err, service.ErrNotFound):
		status = http.StatusNotFound
	}
	writeJSON(w, status, errorResponse(svcErr.Msg))
}

// Unavailable answers every request with 500 "Database not configured". It
// stands in for the API routes when the server started without a database.
func Unavailable(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusInternalServerError, errorResponse("Database not configured"))
}
