package api

import (
	"encoding/json"
	"net/http"

	"github.com/nerrad567/gray-logic-tuyable/internal/bridges/tuyable"
)

// ErrorResponse is the body of every non-2xx response. Command failures
// carry the same code as the MQTT ack so clients handle both alike.
type ErrorResponse struct {
	Status    int    `json:"status"`
	Code      string `json:"code"`
	Message   string `json:"message"`
	RequestID string `json:"request_id,omitempty"`
}

// Request-level error codes. Command errors use the tuyable.ErrCode* set.
const (
	ErrCodeBadRequest       = "bad_request"
	ErrCodeValidation       = "validation_error"
	ErrCodeNotFound         = "not_found"
	ErrCodeMethodNotAllowed = "method_not_allowed"
	ErrCodeUnauthorized     = "unauthorised"
	ErrCodeUnavailable      = "service_unavailable"
	ErrCodeInternal         = "internal_error"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		//nolint:errcheck // client may have gone away; status is already sent
		json.NewEncoder(w).Encode(v)
	}
}

// writeError writes an ErrorResponse tagged with the request ID that
// requestIDMiddleware put on the response headers.
func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, ErrorResponse{
		Status:    status,
		Code:      code,
		Message:   message,
		RequestID: w.Header().Get(headerRequestID),
	})
}

func writeBadRequest(w http.ResponseWriter, message string) {
	writeError(w, http.StatusBadRequest, ErrCodeBadRequest, message)
}

func writeNotFound(w http.ResponseWriter, message string) {
	writeError(w, http.StatusNotFound, ErrCodeNotFound, message)
}

func writeUnauthorized(w http.ResponseWriter, message string) {
	writeError(w, http.StatusUnauthorized, ErrCodeUnauthorized, message)
}

func writeUnavailable(w http.ResponseWriter, message string) {
	writeError(w, http.StatusServiceUnavailable, ErrCodeUnavailable, message)
}

func writeInternalError(w http.ResponseWriter, message string) {
	writeError(w, http.StatusInternalServerError, ErrCodeInternal, message)
}

// writeCommandError reports a failed entity command with its ack code.
func writeCommandError(w http.ResponseWriter, err error) {
	code := tuyable.ErrorCode(err)
	writeError(w, commandStatus(code), code, err.Error())
}

// commandStatus maps an ack error code onto an HTTP status.
func commandStatus(code string) int {
	switch code {
	case tuyable.ErrCodeEntityNotFound:
		return http.StatusNotFound
	case tuyable.ErrCodeInvalidCommand, tuyable.ErrCodeInvalidParameters:
		return http.StatusBadRequest
	case tuyable.ErrCodeDeviceUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
