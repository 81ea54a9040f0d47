package api

import (
	"net/http"
	"time"
)

type healthResponse struct {
	Status    string   `json:"status"`
	Service   string   `json:"service"`
	Timestamp string   `json:"timestamp"`
	Endpoints []string `json:"endpoints"`
}

// health is unauthenticated and never touches the mail transport.
func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	writeJSON(w, http.StatusOK, healthResponse{
		Status:    "ok",
		Service:   h.service,
		Timestamp: h.now().UTC().Format(time.RFC3339),
		Endpoints: SendRoutes,
	})
}
