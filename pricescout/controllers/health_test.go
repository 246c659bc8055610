package controllers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

type fixedGauge int64

func (g fixedGauge) ActiveSessions() int64 { return int64(g) }

func TestHealthCheck(t *testing.T) {
	tests := []struct {
		name     string
		sessions SessionGauge
		want     int64
	}{
		{"no browser", nil, 0},
		{"sessions leased", fixedGauge(4), 4},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := httptest.NewRecorder()
			NewHealthController(tt.sessions).HealthCheck(rr, httptest.NewRequest("GET", "/health", nil))

			if rr.Code != http.StatusOK {
				t.Errorf("expected status %d, got %d", http.StatusOK, rr.Code)
			}
			if ct := rr.Header().Get("Content-Type"); ct != "application/json" {
				t.Errorf("expected Content-Type application/json, got %q", ct)
			}

			var body struct {
				Status         string `json:"status"`
				ActiveSessions int64  `json:"activeSessions"`
			}
			if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
				t.Fatalf("body is not json: %v", err)
			}
			if body.Status != "ok" {
				t.Errorf("expected status ok, got %q", body.Status)
			}
			if body.ActiveSessions != tt.want {
				t.Errorf("expected %d active sessions, got %d", tt.want, body.ActiveSessions)
			}
		})
	}
}
