package health

import (
	"encoding/json"
	"net/http"
)

// LivenessHandler serves the liveness report
func (c *Checker) LivenessHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		write(w, c.CheckLiveness())
	}
}

// ReadinessHandler serves the readiness report. Degraded still serves
// traffic, so only unhealthy maps to 503.
func (c *Checker) ReadinessHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		write(w, c.CheckReadiness())
	}
}

func write(w http.ResponseWriter, resp Response) {
	status := http.StatusOK
	if resp.Status == StatusUnhealthy {
		status = http.StatusServiceUnavailable
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(resp)
}
