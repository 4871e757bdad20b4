package handler

// RESPONSE HELPERS:
// Every handler answers through writeJSON or writeError, so every error
// response from the API has the same shape:
//
//	{"error": "validation_error", "message": "...", "fields": {"price": ["..."]}}
//
// "fields" is present only for validation errors.

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/recipe-api/internal/apperror"
)

// maxJSONBody caps JSON request bodies. Images go through multipart instead.
const maxJSONBody = 1 << 20

// ErrorResponse is the standard error format returned by all API endpoints.
type ErrorResponse struct {
	Error   string              `json:"error"`   // Machine-readable error type (e.g., "not_found")
	Message string              `json:"message"` // Human-readable description
	Fields  map[string][]string `json:"fields,omitempty"`
}

// writeJSON sends a JSON response with the given status code.
// Headers and status must be set before the body is written.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			// Headers are already sent; all we can do is log.
			slog.Error("failed to encode JSON response", slog.String("error", err.Error()))
		}
	}
}

// writeError maps a domain error to the appropriate HTTP status code and sends it.
//
// errors.Is walks the wrap chain, so a service returning
// fmt.Errorf("creating recipe: %w", apperror.ValidationFailed(...)) still
// maps to 400.
//
// Errors that map to 500 are logged with logger; the cause never reaches
// the client.
func writeError(w http.ResponseWriter, logger *slog.Logger, err error) {
	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		status := http.StatusInternalServerError
		errorType := "internal_error"

		switch {
		case errors.Is(err, apperror.ErrValidation):
			status = http.StatusBadRequest // 400
			errorType = "validation_error"
		case errors.Is(err, apperror.ErrUnauthorized):
			status = http.StatusUnauthorized // 401
			errorType = "unauthorized"
		case errors.Is(err, apperror.ErrForbidden):
			status = http.StatusForbidden // 403
			errorType = "forbidden"
		case errors.Is(err, apperror.ErrNotFound):
			status = http.StatusNotFound // 404
			errorType = "not_found"
		case errors.Is(err, apperror.ErrConflict):
			status = http.StatusConflict // 409
			errorType = "conflict"
		}

		if status == http.StatusInternalServerError {
			logger.Error("unmapped application error", slog.String("error", err.Error()))
			writeInternal(w)
			return
		}

		resp := ErrorResponse{Error: errorType, Message: appErr.Message}
		if status == http.StatusBadRequest && !appErr.Fields.Empty() {
			resp.Fields = appErr.Fields
		}
		writeJSON(w, status, resp)
		return
	}

	// Unknown error: log the cause, never expose it.
	logger.Error("internal error", slog.String("error", err.Error()))
	writeInternal(w)
}

func writeInternal(w http.ResponseWriter) {
	writeJSON(w, http.StatusInternalServerError, ErrorResponse{
		Error:   "internal_error",
		Message: "An internal error occurred",
	})
}

// NotFound and MethodNotAllowed replace chi's plain-text defaults.
func NotFound(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusNotFound, ErrorResponse{Error: "not_found", Message: "Not found."})
}

func MethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusMethodNotAllowed, ErrorResponse{
		Error:   "method_not_allowed",
		Message: `Method "` + r.Method + `" not allowed.`,
	})
}

// decodeJSON reads a single JSON object into dst. Unknown fields are
// ignored, so a client sending "user" or "id" cannot set them. A wrongly
// typed field becomes a validation error on that field.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBody)

	err := json.NewDecoder(r.Body).Decode(dst)
	if err == nil {
		return nil
	}

	var typeErr *json.UnmarshalTypeError
	var maxErr *http.MaxBytesError
	switch {
	case errors.As(err, &typeErr) && typeErr.Field != "":
		return apperror.ValidationFailed(typeErr.Field, "Incorrect type. Expected "+typeErr.Type.String()+".")
	case errors.As(err, &maxErr):
		return apperror.ValidationFailed("non_field_errors", "Request body too large.")
	case errors.Is(err, io.EOF):
		return apperror.ValidationFailed("non_field_errors", "Request body is empty.")
	default:
		return apperror.ValidationFailed("non_field_errors", "JSON parse error - "+err.Error())
	}
}

// pathID reads the {id} URL parameter. Anything that is not a positive
// integer cannot name a row, so it is a 404 like any other missing row.
func pathID(r *http.Request, resource string) (int64, error) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, apperror.NotFound(resource, raw)
	}
	return id, nil
}

// parseIDList parses a comma-separated list of integer IDs such as "1,2,3".
// An empty value means "no filter".
func parseIDList(raw, param string) ([]int64, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	parts := strings.Split(raw, ",")
	ids := make([]int64, 0, len(parts))
	for _, p := range parts {
		id, err := strconv.ParseInt(strings.TrimSpace(p), 10, 64)
		if err != nil {
			return nil, apperror.ValidationFailed(param, "Enter a whole number: "+strconv.Quote(p)+".")
		}
		ids = append(ids, id)
	}
	return ids, nil
}
