package httputil

import (
	"encoding/json"
	"net/http"

	"github.com/ignite/email-tracker/internal/pkg/logger"
)

// ErrorResponse is the error body returned by the tracking routes.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details any    `json:"details,omitempty"`
}

// JSON encodes data with status. Encoding failures are logged; the status
// line has already been sent by then.
func JSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.Error("json response encode failed", "status", status, "error", err)
	}
}

// OK writes data with 200.
func OK(w http.ResponseWriter, data any) { JSON(w, http.StatusOK, data) }

// Error writes an ErrorResponse carrying message.
func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, ErrorResponse{Error: message, Code: codeFor(status)})
}

// BadRequest answers 400 with message.
func BadRequest(w http.ResponseWriter, message string) { Error(w, http.StatusBadRequest, message) }

// NotFound answers 404 with message.
func NotFound(w http.ResponseWriter, message string) { Error(w, http.StatusNotFound, message) }

// InternalError logs err and answers 500 without exposing it.
func InternalError(w http.ResponseWriter, err error) {
	logger.Error("request failed", "error", err)
	Error(w, http.StatusInternalServerError, "Internal server error")
}

func codeFor(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "bad_request"
	case http.StatusNotFound:
		return "not_found"
	case http.StatusRequestEntityTooLarge:
		return "payload_too_large"
	case http.StatusInternalServerError:
		return "internal"
	}
	return ""
}
