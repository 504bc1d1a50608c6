// Package health provides readiness state tracking and HTTP probe handlers.
// The probes are unauthenticated; the authenticated /api/health endpoint is
// the caller-facing status check.
package health

import (
	"encoding/json"
	"net/http"
	"sync/atomic"
	"time"
)

// State constants for the readiness state machine.
const (
	stateStarting int32 = iota
	stateReady
	stateDraining
)

// Checker tracks the readiness state of the service.
// It is safe for concurrent use.
type Checker struct {
	state     atomic.Int32
	startedAt time.Time
}

// NewChecker creates a Checker in the Starting state.
func NewChecker() *Checker {
	return &Checker{startedAt: time.Now()}
}

// SetReady transitions to the Ready state. Called once the HTTP listener and
// session store are up.
func (c *Checker) SetReady() {
	c.state.Store(stateReady)
}

// SetDraining transitions to the Draining state during shutdown.
func (c *Checker) SetDraining() {
	c.state.Store(stateDraining)
}

// IsReady returns true when the state is Ready.
func (c *Checker) IsReady() bool {
	return c.state.Load() == stateReady
}

// State returns the current state as a human-readable string.
func (c *Checker) State() string {
	switch c.state.Load() {
	case stateReady:
		return "ready"
	case stateDraining:
		return "draining"
	default:
		return "starting"
	}
}

// probeResponse is the JSON body returned by probe endpoints.
type probeResponse struct {
	Status        string `json:"status"`
	UptimeSeconds int64  `json:"uptime_seconds"`
}

// LivenessHandler returns an http.HandlerFunc that always responds 200 OK.
// Use this for K8s livenessProbe (/healthz).
func (c *Checker) LivenessHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, probeResponse{
			Status:        "ok",
			UptimeSeconds: int64(time.Since(c.startedAt).Seconds()),
		})
	}
}

// ReadinessHandler returns an http.HandlerFunc that responds 200 when ready
// and 503 when starting or draining.
// Use this for K8s readinessProbe (/readyz).
func (c *Checker) ReadinessHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		code := http.StatusOK
		if !c.IsReady() {
			code = http.StatusServiceUnavailable
		}
		writeJSON(w, code, probeResponse{
			Status:        c.State(),
			UptimeSeconds: int64(time.Since(c.startedAt).Seconds()),
		})
	}
}

func writeJSON(w http.ResponseWriter, code int, v probeResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
