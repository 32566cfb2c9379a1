package handlers

import (
	"encoding/json"
	"net/http"
)

func respondJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(v)
}

func respondError(w http.ResponseWriter, status int, msg string) {
	respondJSON(w, status, map[string]any{"error": msg})
}

// respondValidation returns field-level validation messages.
func respondValidation(w http.ResponseWriter, messages map[string]string) {
	respondJSON(w, http.StatusBadRequest, map[string]any{
		"error":    "Error de validación",
		"messages": messages,
	})
}
