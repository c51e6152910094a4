// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package handlers

import (
	"log/slog"
	"net/http"

	"github.com/linuxfoundation/lfx-v2-meeting-attendance/pkg/constants"
)

// ReadinessCheck reports whether one dependency can take traffic.
type ReadinessCheck struct {
	Name  string
	Ready func() bool
}

// HealthHandler serves the Kubernetes liveness and readiness probes.
type HealthHandler struct {
	checks []ReadinessCheck
}

func NewHealthHandler(checks ...ReadinessCheck) *HealthHandler {
	return &HealthHandler{checks: checks}
}

// Register mounts the probe endpoints on mux.
func (h *HealthHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET "+constants.LivezPath, h.Livez)
	mux.HandleFunc("GET "+constants.ReadyzPath, h.Readyz)
}

// Livez always succeeds while the process runs. Unrecoverable failures
// terminate the process instead.
func (h *HealthHandler) Livez(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	_, _ = w.Write([]byte("OK\n"))
}

// Readyz succeeds when every readiness check passes.
func (h *HealthHandler) Readyz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	for _, check := range h.checks {
		if !check.Ready() {
			slog.WarnContext(r.Context(), "service not ready", "check", check.Name)
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(check.Name + " not ready\n"))
			return
		}
	}
	_, _ = w.Write([]byte("OK\n"))
}
