package httpserver

import (
	"encoding/json"
	"net/http"
)

// MsgInternalError — единственное сообщение, которое клиент видит при сбое на нашей стороне.
const MsgInternalError = "AI request failed"

type errorBody struct {
	Error string `json:"error"`
}

// WriteJSON пишет v как JSON с указанным статусом. <, > и & не экранируются.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(v)
}

// WriteError возвращает ошибку в едином формате {"error": "..."}.
func WriteError(w http.ResponseWriter, status int, message string) {
	WriteJSON(w, status, errorBody{Error: message})
}
