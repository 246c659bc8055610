package controllers

import (
	"encoding/json"
	"net/http"
)

// SessionGauge reports how many browser sessions are leased right now.
type SessionGauge interface {
	ActiveSessions() int64
}

type HealthController struct {
	sessions SessionGauge
}

// NewHealthController builds the liveness handler; sessions may be nil.
func NewHealthController(sessions SessionGauge) *HealthController {
	return &HealthController{sessions: sessions}
}

type healthResponse struct {
	Status         string `json:"status"`
	ActiveSessions int64  `json:"activeSessions"`
}

func (h *HealthController) HealthCheck(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{Status: "ok"}
	if h.sessions != nil {
		resp.ActiveSessions = h.sessions.ActiveSessions()
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(resp)
}
