package httputil

import (
	"encoding/json"
	"net/http"
)

// APIError is the JSON error envelope returned by every endpoint.
type APIError struct {
	Error APIErrorBody `json:"error"`
}

type APIErrorBody struct {
	Message   string `json:"message"`
	Type      string `json:"type"`
	Code      string `json:"code"`
	RequestID string `json:"request_id,omitempty"`
}

func WriteError(w http.ResponseWriter, requestID string, statusCode int, errType, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Request-ID", requestID)
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(APIError{
		Error: APIErrorBody{
			Message:   message,
			Type:      errType,
			Code:      code,
			RequestID: requestID,
		},
	})
}

func WriteBadRequestError(w http.ResponseWriter, requestID, message string) {
	WriteError(w, requestID, http.StatusBadRequest, "invalid_request_error", "invalid_request", message)
}

func WriteNotFoundError(w http.ResponseWriter, requestID, message string) {
	WriteError(w, requestID, http.StatusNotFound, "invalid_request_error", "not_found", message)
}

func WriteInternalError(w http.ResponseWriter, requestID, message string) {
	WriteError(w, requestID, http.StatusInternalServerError, "server_error", "internal_error", message)
}

func WriteServiceUnavailableError(w http.ResponseWriter, requestID, message string) {
	WriteError(w, requestID, http.StatusServiceUnavailable, "server_error", "service_unavailable", message)
}

// WriteJSON writes a 200 JSON body with the request id echoed.
func WriteJSON(w http.ResponseWriter, requestID string, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Request-ID", requestID)
	json.NewEncoder(w).Encode(payload)
}
