// Package web exposes the agent's status endpoint: a health check and a
// snapshot of the registered sync jobs.
package web

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/slotdb/slotdb/internal/syncsvc"
)

// NewRouter builds the status endpoint handler.
func NewRouter(svc *syncsvc.Service, version string) http.Handler {
	mux := &http.ServeMux{}
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]string{"status": "ok", "version": version})
	})
	mux.HandleFunc("GET /api/jobs", func(w http.ResponseWriter, r *http.Request) {
		jobs := svc.Jobs()
		if jobs == nil {
			jobs = []syncsvc.JobStatus{}
		}
		writeJSON(w, jobs)
	})
	return mux
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to encode response", "err", err)
	}
}
