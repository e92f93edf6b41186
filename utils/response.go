package utils

import (
	"encoding/json"
	"net/http"
)

type APIResponse struct {
	Success bool        `json:"success"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func WriteJSON(w http.ResponseWriter, status int, resp APIResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(resp)
}

// WriteOK writes a successful envelope carrying data.
func WriteOK(w http.ResponseWriter, status int, message string, data interface{}) {
	WriteJSON(w, status, APIResponse{Success: true, Message: message, Data: data})
}

// WriteError writes a failed envelope with a client-safe message.
func WriteError(w http.ResponseWriter, status int, message string) {
	WriteJSON(w, status, APIResponse{Success: false, Message: message})
}
