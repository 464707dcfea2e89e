package server

import (
	"encoding/json"
	"net/http"

	"github.com/agora-commons/agora/auth"
)

// errorEnvelope is the uniform error shape: {"error":{"code","message"}}.
type errorEnvelope struct {
	Error errorBody `json:"error"`
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, errorEnvelope{Error: errorBody{Code: code, Message: msg}})
}

// writeAuthError maps a coded authentication error onto the envelope. The
// code doubles as the metrics outcome label at call sites.
func writeAuthError(w http.ResponseWriter, err error) string {
	if e, ok := auth.AsError(err); ok {
		writeError(w, e.Status, string(e.Code), e.Message)
		return string(e.Code)
	}
	writeError(w, http.StatusInternalServerError, "INTERNAL", "internal error")
	return "INTERNAL"
}
