package http

import (
	"encoding/json"
	"net/http"
)

// MessageResponse is the envelope for every non-payload response.
// Error responses always carry success=false and a human-readable message.
type MessageResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// WriteJSON writes v as a JSON response with the given status code
func WriteJSON(w http.ResponseWriter, statusCode int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	// Encoding errors are not recoverable at this point; headers are sent
	_ = json.NewEncoder(w).Encode(v)
}

// WriteMessage writes a {success, message} envelope
func WriteMessage(w http.ResponseWriter, statusCode int, success bool, message string) {
	WriteJSON(w, statusCode, MessageResponse{Success: success, Message: message})
}

// Common error writers for consistency
func WriteBadRequest(w http.ResponseWriter, message string) {
	WriteMessage(w, http.StatusBadRequest, false, message)
}

func WriteUnauthorized(w http.ResponseWriter, message string) {
	WriteMessage(w, http.StatusUnauthorized, false, message)
}

func WriteForbidden(w http.ResponseWriter, message string) {
	WriteMessage(w, http.StatusForbidden, false, message)
}

func WriteNotFound(w http.ResponseWriter, message string) {
	WriteMessage(w, http.StatusNotFound, false, message)
}

func WriteTooManyRequests(w http.ResponseWriter, message string) {
	WriteMessage(w, http.StatusTooManyRequests, false, message)
}

func WriteInternalError(w http.ResponseWriter, message string) {
	WriteMessage(w, http.StatusInternalServerError, false, message)
}
