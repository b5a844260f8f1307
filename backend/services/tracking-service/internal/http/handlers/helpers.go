package handlers

import (
	"encoding/json"
	"net/http"

	"trackhub/backend/services/tracking-service/internal/http/middleware"
	"trackhub/backend/services/tracking-service/internal/models"
)

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

func scopeFrom(r *http.Request) (models.Scope, bool) {
	p, ok := middleware.PrincipalFromContext(r.Context())
	if !ok {
		return models.Scope{}, false
	}
	return p.Scope(), true
}
