package httputil

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/AdamBeresnev/bracket-engine/internal/bracket"
)

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
}

func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

// DecodeJSON reads a request body into v, rejecting unknown fields.
func DecodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return errors.Join(bracket.ErrValidation, err)
	}
	return nil
}

// Error writes err with the status of its kind. Unclassified errors are
// logged and hidden behind a generic 500.
func Error(w http.ResponseWriter, err error) {
	switch bracket.Kind(err) {
	case bracket.ErrValidation:
		BadRequest(w, err.Error(), err)
	case bracket.ErrNotFound:
		NotFound(w, err.Error(), err)
	case bracket.ErrConflict:
		slog.Warn("conflict", "error", err)
		WriteJSON(w, http.StatusConflict, ErrorResponse{Error: err.Error(), Kind: "state_conflict"})
	case bracket.ErrConcurrency:
		slog.Warn("concurrent modification", "error", err)
		w.Header().Set("Retry-After", "1")
		WriteJSON(w, http.StatusServiceUnavailable, ErrorResponse{Error: err.Error(), Kind: "concurrency"})
	default:
		InternalServerError(w, "request failed", err)
	}
}

func InternalServerError(w http.ResponseWriter, msg string, err error) {
	slog.Error(msg, "error", err)
	WriteJSON(w, http.StatusInternalServerError, ErrorResponse{Error: "Internal Server Error"})
}

func BadRequest(w http.ResponseWriter, msg string, err error) {
	if err != nil {
		slog.Warn("bad request", "message", msg, "error", err)
	} else {
		slog.Warn("bad request", "message", msg)
	}
	WriteJSON(w, http.StatusBadRequest, ErrorResponse{Error: msg, Kind: "validation"})
}

func NotFound(w http.ResponseWriter, msg string, err error) {
	if err != nil {
		slog.Warn("not found", "message", msg, "error", err)
	} else {
		slog.Warn("not found", "message", msg)
	}
	WriteJSON(w, http.StatusNotFound, ErrorResponse{Error: msg, Kind: "not_found"})
}

func TooManyRequests(w http.ResponseWriter, msg string) {
	WriteJSON(w, http.StatusTooManyRequests, ErrorResponse{Error: msg})
}
