// Package api provides the HTTP handlers and middleware for the chatbot
// backend: session lifecycle, query dispatch, and static bearer-token
// authentication.
package api

import (
	"encoding/json"
	"net/http"
)

// errorResponse is the JSON body for every error the API returns.
type errorResponse struct {
	Detail string `json:"detail"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, detail string) {
	writeJSON(w, code, errorResponse{Detail: detail})
}
