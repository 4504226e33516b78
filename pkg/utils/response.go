package utils

import (
	"encoding/json"
	"log"
	"net/http"
	"time"
)

// APIResponse is the envelope every request/response call returns.
type APIResponse struct {
	Success   bool        `json:"success"`
	Data      interface{} `json:"data,omitempty"`
	Error     string      `json:"error,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

// RespondJSON writes payload inside the success envelope.
func RespondJSON(w http.ResponseWriter, status int, payload interface{}) {
	write(w, status, APIResponse{Success: true, Data: payload, Timestamp: time.Now().UTC()})
}

// RespondError writes an error envelope with the given status.
func RespondError(w http.ResponseWriter, status int, message string) {
	write(w, status, APIResponse{Success: false, Error: message, Timestamp: time.Now().UTC()})
}

func write(w http.ResponseWriter, status int, body APIResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Printf("failed to encode response: %v", err)
	}
}
