package handlers

import (
	"context"
	"net/http"
	"time"
)

// Pinger reports whether a backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

const readinessTimeout = 2 * time.Second

type checkResult struct {
	Status    string `json:"status"`
	Message   string `json:"message,omitempty"`
	LatencyMs int64  `json:"latency_ms"`
}

type healthResponse struct {
	Status    string                 `json:"status"`
	Checks    map[string]checkResult `json:"checks,omitempty"`
	Timestamp string                 `json:"timestamp"`
}

// Healthz reports liveness. It never touches dependencies.
func Healthz() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, healthResponse{
			Status:    "ok",
			Timestamp: time.Now().UTC().Format(time.RFC3339),
		})
	}
}

// Readyz answers 503 while the store cannot be pinged within two seconds.
func Readyz(store Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), readinessTimeout)
		defer cancel()

		start := time.Now()
		check := checkResult{Status: "pass"}
		status, code := "ready", http.StatusOK
		if err := store.Ping(ctx); err != nil {
			check.Status = "fail"
			check.Message = "database unreachable"
			if ctx.Err() == context.DeadlineExceeded {
				check.Message = "database ping timed out"
			}
			status, code = "unavailable", http.StatusServiceUnavailable
		}
		check.LatencyMs = time.Since(start).Milliseconds()

		writeJSON(w, code, healthResponse{
			Status:    status,
			Checks:    map[string]checkResult{"database": check},
			Timestamp: time.Now().UTC().Format(time.RFC3339),
		})
	}
}
